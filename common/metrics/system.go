// Package metrics reports runtime facts about the process for health and
// diagnostics endpoints.
package metrics

import (
	"os"
	"runtime"
)

// SystemInfo is a snapshot of the process environment
type SystemInfo struct {
	Hostname    string `json:"hostname"`
	OS          string `json:"os"`
	Arch        string `json:"arch"`
	CPULogical  int    `json:"cpu_logical"`
	GoVersion   string `json:"go_version"`
	InContainer bool   `json:"in_container"`
	Goroutines  int    `json:"goroutines"`
	HeapAllocMB uint64 `json:"heap_alloc_mb"`
}

// CaptureSystemInfo gathers the current process environment
func CaptureSystemInfo() *SystemInfo {
	info := &SystemInfo{
		OS:          runtime.GOOS,
		Arch:        runtime.GOARCH,
		CPULogical:  runtime.NumCPU(),
		GoVersion:   runtime.Version(),
		InContainer: inContainer(),
		Goroutines:  runtime.NumGoroutine(),
	}

	if hostname, err := os.Hostname(); err == nil {
		info.Hostname = hostname
	} else {
		info.Hostname = "unknown"
	}

	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	info.HeapAllocMB = stats.HeapAlloc / (1024 * 1024)

	return info
}

func inContainer() bool {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	if _, err := os.Stat("/var/run/secrets/kubernetes.io"); err == nil {
		return true
	}
	return false
}
