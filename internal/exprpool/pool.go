// Package exprpool caches compiled expr programs so that per-row evaluation
// pays compilation once per distinct source string.
package exprpool

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Pool caches compiled expressions keyed by their source text.
type Pool struct {
	mu       sync.RWMutex
	programs map[string]*vm.Program
}

// New creates an empty pool.
func New() *Pool {
	return &Pool{programs: make(map[string]*vm.Program)}
}

// Get retrieves or compiles the program for src. Identifiers are left
// undeclared at compile time; callers supply them per evaluation.
func (p *Pool) Get(src string) (*vm.Program, error) {
	p.mu.RLock()
	prog, ok := p.programs[src]
	p.mu.RUnlock()
	if ok {
		return prog, nil
	}

	prog, err := expr.Compile(src, expr.Env(map[string]any{}), expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("compile expression %q: %w", src, err)
	}

	p.mu.Lock()
	p.programs[src] = prog
	p.mu.Unlock()
	return prog, nil
}

// Eval runs a compiled program against vars and coerces the result to
// float64. Booleans map to 0/1, the encoding recordings use for flags.
func (p *Pool) Eval(prog *vm.Program, vars map[string]any) (float64, error) {
	out, err := expr.Run(prog, vars)
	if err != nil {
		return 0, fmt.Errorf("evaluate expression: %w", err)
	}
	v, ok := toFloat(out)
	if !ok {
		return 0, fmt.Errorf("expression result %T is not numeric", out)
	}
	return v, nil
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}
