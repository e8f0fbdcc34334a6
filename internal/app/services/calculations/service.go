// Package calculations implements browse, read, edit, add, and delete over
// owner-scoped calculation records.
package calculations

import (
	"context"
	"errors"
	"time"

	"github.com/CalcStack/calc_service/internal/app/domain/calculation"
	"github.com/CalcStack/calc_service/internal/app/domain/principal"
	"github.com/CalcStack/calc_service/internal/app/metrics"
	"github.com/CalcStack/calc_service/internal/app/operation"
	"github.com/CalcStack/calc_service/internal/app/storage"
	apperrors "github.com/CalcStack/calc_service/internal/errors"
	"github.com/CalcStack/calc_service/pkg/logger"
)

const (
	defaultLimit = 100
	maxLimit     = 500
)

// Service coordinates record persistence with operation dispatch. Results
// are always computed server-side; clients never supply them.
type Service struct {
	store    storage.CalculationStore
	registry *operation.Registry
	log      *logger.Logger
}

// New constructs the calculations service. A nil registry gets the default
// built-in operations.
func New(store storage.CalculationStore, registry *operation.Registry, log *logger.Logger) *Service {
	if registry == nil {
		registry = operation.NewDefault()
	}
	if log == nil {
		log = logger.NewDefault("calculations")
	}
	return &Service{store: store, registry: registry, log: log}
}

// Create dispatches the operation and persists the record under the owner.
// Dispatch runs first so nothing is stored when the inputs are rejected.
func (s *Service) Create(ctx context.Context, owner principal.Principal, a, b float64, kind calculation.Kind) (calculation.Calculation, error) {
	result, err := s.dispatch(kind, a, b)
	if err != nil {
		return calculation.Calculation{}, dispatchError(err)
	}

	created, err := s.store.CreateCalculation(ctx, calculation.Calculation{
		OwnerID: owner.ID,
		A:       a,
		B:       b,
		Kind:    kind,
		Result:  result,
	})
	if err != nil {
		return calculation.Calculation{}, apperrors.Internal("create calculation", err)
	}

	s.log.WithFields(map[string]interface{}{
		"calculation_id": created.ID,
		"kind":           string(kind),
	}).Info("calculation created")
	return created, nil
}

// Browse lists the owner's records in creation order. Offset below zero is
// treated as zero; limit defaults to 100 and is capped at 500.
func (s *Service) Browse(ctx context.Context, owner principal.Principal, offset, limit int) ([]calculation.Calculation, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	records, err := s.store.ListCalculations(ctx, owner.ID, offset, limit)
	if err != nil {
		return nil, apperrors.Internal("list calculations", err)
	}
	return records, nil
}

// Read returns a single record owned by the caller.
func (s *Service) Read(ctx context.Context, owner principal.Principal, id string) (calculation.Calculation, error) {
	record, err := s.store.GetCalculation(ctx, owner.ID, id)
	if err != nil {
		return calculation.Calculation{}, storeError(err, "get calculation")
	}
	return record, nil
}

// Edit applies a partial update: nil fields keep their stored values. The
// result is recomputed from the merged operands before anything persists, so
// a rejected dispatch leaves the record untouched.
func (s *Service) Edit(ctx context.Context, owner principal.Principal, id string, a, b *float64, kind *calculation.Kind) (calculation.Calculation, error) {
	current, err := s.store.GetCalculation(ctx, owner.ID, id)
	if err != nil {
		return calculation.Calculation{}, storeError(err, "get calculation")
	}

	if a != nil {
		current.A = *a
	}
	if b != nil {
		current.B = *b
	}
	if kind != nil {
		current.Kind = *kind
	}

	result, err := s.dispatch(current.Kind, current.A, current.B)
	if err != nil {
		return calculation.Calculation{}, dispatchError(err)
	}
	current.Result = result

	updated, err := s.store.UpdateCalculation(ctx, current)
	if err != nil {
		return calculation.Calculation{}, storeError(err, "update calculation")
	}

	s.log.WithField("calculation_id", updated.ID).Info("calculation updated")
	return updated, nil
}

// Delete removes a record owned by the caller. Deleting an already-deleted
// record fails with not found.
func (s *Service) Delete(ctx context.Context, owner principal.Principal, id string) error {
	if err := s.store.DeleteCalculation(ctx, owner.ID, id); err != nil {
		return storeError(err, "delete calculation")
	}
	s.log.WithField("calculation_id", id).Info("calculation deleted")
	return nil
}

func (s *Service) dispatch(kind calculation.Kind, a, b float64) (float64, error) {
	start := time.Now()
	result, err := s.registry.Dispatch(kind, a, b)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.RecordOperationDispatch(string(kind), status, time.Since(start))
	return result, err
}

func dispatchError(err error) error {
	switch {
	case errors.Is(err, operation.ErrUnknownOperation),
		errors.Is(err, operation.ErrInvalidOperation):
		return apperrors.Validation(err.Error())
	default:
		return apperrors.Internal("dispatch operation", err)
	}
}

func storeError(err error, action string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.NotFound("calculation not found")
	}
	return apperrors.Internal(action, err)
}
