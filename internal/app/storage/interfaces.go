// Package storage defines the persistence contracts for principals and
// calculation records.
package storage

import (
	"context"
	"errors"

	"github.com/CalcStack/calc_service/internal/app/domain/calculation"
	"github.com/CalcStack/calc_service/internal/app/domain/principal"
)

// ErrNotFound reports a record that does not exist for the requesting owner.
// Stores return it both for absent ids and for ids owned by someone else, so
// callers cannot tell the two cases apart.
var ErrNotFound = errors.New("record not found")

// ErrConflict reports a uniqueness violation on insert.
var ErrConflict = errors.New("record already exists")

// PrincipalStore persists identities. Username and email are globally unique;
// duplicate inserts fail with ErrConflict.
type PrincipalStore interface {
	CreatePrincipal(ctx context.Context, p principal.Principal) (principal.Principal, error)
	GetPrincipal(ctx context.Context, id string) (principal.Principal, error)
	GetPrincipalByUsername(ctx context.Context, username string) (principal.Principal, error)

	// DeletePrincipal removes the principal and all of its calculation
	// records in one atomic unit. No orphaned records survive.
	DeletePrincipal(ctx context.Context, id string) error
}

// CalculationStore persists calculation records. Every read, update, and
// delete is scoped to the owning principal; the owner is a mandatory
// parameter, never inferred from the record payload.
type CalculationStore interface {
	CreateCalculation(ctx context.Context, calc calculation.Calculation) (calculation.Calculation, error)
	ListCalculations(ctx context.Context, ownerID string, offset, limit int) ([]calculation.Calculation, error)
	GetCalculation(ctx context.Context, ownerID, id string) (calculation.Calculation, error)
	UpdateCalculation(ctx context.Context, calc calculation.Calculation) (calculation.Calculation, error)
	DeleteCalculation(ctx context.Context, ownerID, id string) error
}
