// Package search filters asset listings with CEL (Common Expression
// Language) expressions over asset metadata and path.
package search

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/dandihub/archive/common/models"
)

// Filter evaluates CEL filter expressions against assets, caching compiled
// programs across requests
type Filter struct {
	cache map[string]cel.Program
	mu    sync.RWMutex
}

// NewFilter creates a new filter with program caching
func NewFilter() *Filter {
	return &Filter{
		cache: make(map[string]cel.Program),
	}
}

// Match reports whether the asset satisfies the expression. The expression
// sees the asset's path, size and metadata document, for example:
//
//	path.startsWith("sub-01/") && metadata.encodingFormat == "application/x-nwb"
func (f *Filter) Match(expr string, asset *models.Asset) (bool, error) {
	prg, err := f.program(expr)
	if err != nil {
		return false, err
	}

	out, _, err := prg.Eval(map[string]interface{}{
		"path":     asset.Path,
		"size":     asset.Size,
		"metadata": map[string]interface{}(asset.Metadata),
	})
	if err != nil {
		return false, fmt.Errorf("filter evaluation error: %w", err)
	}

	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("filter expression did not return boolean, got %T", out.Value())
	}

	return result, nil
}

// Apply returns the assets matching the expression, preserving order. An
// empty expression matches everything.
func (f *Filter) Apply(expr string, assets []*models.Asset) ([]*models.Asset, error) {
	if expr == "" {
		return assets, nil
	}

	matched := make([]*models.Asset, 0, len(assets))
	for _, asset := range assets {
		ok, err := f.Match(expr, asset)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, asset)
		}
	}
	return matched, nil
}

func (f *Filter) program(expr string) (cel.Program, error) {
	// Check cache first
	f.mu.RLock()
	prg, exists := f.cache[expr]
	f.mu.RUnlock()
	if exists {
		return prg, nil
	}

	prg, err := f.compile(expr)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.cache[expr] = prg
	f.mu.Unlock()
	return prg, nil
}

func (f *Filter) compile(expr string) (cel.Program, error) {
	env, err := cel.NewEnv(
		cel.Variable("path", cel.StringType),
		cel.Variable("size", cel.IntType),
		cel.Variable("metadata", cel.DynType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("filter compilation error: %w", issues.Err())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	return prg, nil
}

// CacheSize returns the number of cached programs
func (f *Filter) CacheSize() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.cache)
}
