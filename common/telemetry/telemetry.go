// Package telemetry exposes runtime diagnostics: a pprof listener and
// structured duration/event records through the service logger.
package telemetry

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"time"

	"github.com/dandihub/archive/common/logger"
	"github.com/dandihub/archive/common/metrics"
)

// Telemetry holds observability components
type Telemetry struct {
	log         *logger.Logger
	enablePprof bool
	pprofAddr   string
}

// New creates telemetry components
func New(enablePprof bool, pprofPort int, log *logger.Logger) *Telemetry {
	return &Telemetry{
		log:         log,
		enablePprof: enablePprof,
		pprofAddr:   fmt.Sprintf("localhost:%d", pprofPort),
	}
}

// Start starts telemetry endpoints and logs a system snapshot
func (t *Telemetry) Start(ctx context.Context) error {
	info := metrics.CaptureSystemInfo()
	t.log.Info("runtime environment",
		"hostname", info.Hostname,
		"os", info.OS,
		"arch", info.Arch,
		"cpu_logical", info.CPULogical,
		"go_version", info.GoVersion,
		"in_container", info.InContainer)

	if t.enablePprof {
		go func() {
			t.log.Info("pprof server starting", "addr", t.pprofAddr)
			if err := http.ListenAndServe(t.pprofAddr, nil); err != nil {
				t.log.Error("pprof server error", "error", err)
			}
		}()
	}

	return nil
}

// RecordDuration records operation duration
func (t *Telemetry) RecordDuration(operation string, start time.Time) {
	duration := time.Since(start)
	t.log.Debug("operation completed",
		"operation", operation,
		"duration_ms", duration.Milliseconds(),
	)
}

// RecordEvent records a telemetry event
func (t *Telemetry) RecordEvent(event string, attrs map[string]any) {
	t.log.Info("telemetry_event",
		"event", event,
		"attrs", attrs,
	)
}
