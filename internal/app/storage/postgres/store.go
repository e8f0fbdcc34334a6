// Package postgres implements the storage interfaces backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/CalcStack/calc_service/internal/app/domain/calculation"
	"github.com/CalcStack/calc_service/internal/app/domain/principal"
	"github.com/CalcStack/calc_service/internal/app/storage"
)

const uniqueViolation = "23505"

// Store implements the storage interfaces on a SQL database handle.
type Store struct {
	db *sql.DB
}

var _ storage.PrincipalStore = (*Store)(nil)
var _ storage.CalculationStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// --- PrincipalStore -----------------------------------------------------------

func (s *Store) CreatePrincipal(ctx context.Context, p principal.Principal) (principal.Principal, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO principals (id, username, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, p.ID, p.Username, p.Email, p.PasswordHash, p.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return principal.Principal{}, storage.ErrConflict
		}
		return principal.Principal{}, err
	}
	return p, nil
}

func (s *Store) GetPrincipal(ctx context.Context, id string) (principal.Principal, error) {
	return s.scanPrincipal(s.db.QueryRowContext(ctx, `
		SELECT id, username, email, password_hash, created_at
		FROM principals
		WHERE id = $1
	`, id))
}

func (s *Store) GetPrincipalByUsername(ctx context.Context, username string) (principal.Principal, error) {
	return s.scanPrincipal(s.db.QueryRowContext(ctx, `
		SELECT id, username, email, password_hash, created_at
		FROM principals
		WHERE username = $1
	`, username))
}

func (s *Store) scanPrincipal(row *sql.Row) (principal.Principal, error) {
	var p principal.Principal
	if err := row.Scan(&p.ID, &p.Username, &p.Email, &p.PasswordHash, &p.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return principal.Principal{}, storage.ErrNotFound
		}
		return principal.Principal{}, err
	}
	return p, nil
}

// DeletePrincipal removes the principal and its calculation records in a
// single transaction. The schema also declares ON DELETE CASCADE; the
// explicit child delete keeps the cascade visible and covered by the same
// atomic unit regardless of schema drift.
func (s *Store) DeletePrincipal(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM calculations WHERE owner_id = $1`, id); err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM principals WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}

	return tx.Commit()
}

// --- CalculationStore ---------------------------------------------------------

func (s *Store) CreateCalculation(ctx context.Context, calc calculation.Calculation) (calculation.Calculation, error) {
	if calc.ID == "" {
		calc.ID = uuid.NewString()
	}
	calc.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO calculations (id, owner_id, operand_a, operand_b, kind, result, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, calc.ID, calc.OwnerID, calc.A, calc.B, string(calc.Kind), calc.Result, calc.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return calculation.Calculation{}, storage.ErrConflict
		}
		return calculation.Calculation{}, err
	}
	return calc, nil
}

func (s *Store) ListCalculations(ctx context.Context, ownerID string, offset, limit int) ([]calculation.Calculation, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, operand_a, operand_b, kind, result, created_at
		FROM calculations
		WHERE owner_id = $1
		ORDER BY created_at, id
		LIMIT $2 OFFSET $3
	`, ownerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []calculation.Calculation
	for rows.Next() {
		var (
			calc calculation.Calculation
			kind string
		)
		if err := rows.Scan(&calc.ID, &calc.OwnerID, &calc.A, &calc.B, &kind, &calc.Result, &calc.CreatedAt); err != nil {
			return nil, err
		}
		calc.Kind = calculation.Kind(kind)
		result = append(result, calc)
	}
	return result, rows.Err()
}

func (s *Store) GetCalculation(ctx context.Context, ownerID, id string) (calculation.Calculation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, operand_a, operand_b, kind, result, created_at
		FROM calculations
		WHERE id = $1 AND owner_id = $2
	`, id, ownerID)

	var (
		calc calculation.Calculation
		kind string
	)
	if err := row.Scan(&calc.ID, &calc.OwnerID, &calc.A, &calc.B, &kind, &calc.Result, &calc.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return calculation.Calculation{}, storage.ErrNotFound
		}
		return calculation.Calculation{}, err
	}
	calc.Kind = calculation.Kind(kind)
	return calc, nil
}

func (s *Store) UpdateCalculation(ctx context.Context, calc calculation.Calculation) (calculation.Calculation, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE calculations
		SET operand_a = $3, operand_b = $4, kind = $5, result = $6
		WHERE id = $1 AND owner_id = $2
	`, calc.ID, calc.OwnerID, calc.A, calc.B, string(calc.Kind), calc.Result)
	if err != nil {
		return calculation.Calculation{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return calculation.Calculation{}, storage.ErrNotFound
	}

	return s.GetCalculation(ctx, calc.OwnerID, calc.ID)
}

func (s *Store) DeleteCalculation(ctx context.Context, ownerID, id string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM calculations WHERE id = $1 AND owner_id = $2
	`, id, ownerID)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
