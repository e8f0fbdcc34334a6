// Package operation implements the dispatch engine that maps a calculation
// kind to its binary function.
package operation

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/CalcStack/calc_service/internal/app/domain/calculation"
)

// ErrUnknownOperation reports a kind with no registered function.
var ErrUnknownOperation = errors.New("unknown operation")

// ErrInvalidOperation reports inputs the operation itself rejects.
var ErrInvalidOperation = errors.New("invalid operation")

// Func is a pure binary computation.
type Func func(a, b float64) (float64, error)

// Registry maps operation kinds to functions. All registrations happen during
// construction; afterwards the registry is read-only and safe for concurrent
// dispatch without locking.
type Registry struct {
	ops map[calculation.Kind]Func
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{ops: make(map[calculation.Kind]Func)}
}

// NewDefault returns a registry with the four built-in operations.
func NewDefault() *Registry {
	r := New()
	r.Register(calculation.KindAdd, func(a, b float64) (float64, error) {
		return a + b, nil
	})
	r.Register(calculation.KindSubtract, func(a, b float64) (float64, error) {
		return a - b, nil
	})
	r.Register(calculation.KindMultiply, func(a, b float64) (float64, error) {
		return a * b, nil
	})
	r.Register(calculation.KindDivide, func(a, b float64) (float64, error) {
		if b == 0 {
			return 0, errors.New("division by zero is not allowed")
		}
		return a / b, nil
	})
	return r
}

// Register associates a kind with a function. Call before the registry is
// shared; dispatch performs no locking.
func (r *Registry) Register(kind calculation.Kind, fn Func) {
	r.ops[kind] = fn
}

// Dispatch computes the result for the given kind and operands. Operands and
// result must be finite; violations fail with ErrInvalidOperation, missing
// kinds with ErrUnknownOperation.
func (r *Registry) Dispatch(kind calculation.Kind, a, b float64) (float64, error) {
	fn, ok := r.ops[kind]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownOperation, string(kind))
	}

	if !isFinite(a) || !isFinite(b) {
		return 0, fmt.Errorf("%w: operands must be finite numbers", ErrInvalidOperation)
	}

	result, err := fn(a, b)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidOperation, err)
	}
	if !isFinite(result) {
		return 0, fmt.Errorf("%w: result is not a finite number", ErrInvalidOperation)
	}
	return result, nil
}

// Kinds returns the registered kinds in lexical order.
func (r *Registry) Kinds() []calculation.Kind {
	kinds := make([]calculation.Kind, 0, len(r.ops))
	for k := range r.ops {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
