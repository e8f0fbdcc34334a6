package postgres

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"

	_ "github.com/lib/pq"

	"github.com/CalcStack/calc_service/internal/app/domain/calculation"
	"github.com/CalcStack/calc_service/internal/app/domain/principal"
	"github.com/CalcStack/calc_service/internal/app/storage"
	"github.com/CalcStack/calc_service/internal/platform/migrations"
)

func TestStoreIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := migrations.Apply(ctx, db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	store := New(db)

	alice, err := store.CreatePrincipal(ctx, principal.Principal{Username: "it-alice", Email: "it-alice@x.com", PasswordHash: "hash"})
	if err != nil {
		t.Fatalf("create principal: %v", err)
	}
	t.Cleanup(func() { _ = store.DeletePrincipal(ctx, alice.ID) })

	if _, err := store.CreatePrincipal(ctx, principal.Principal{Username: "it-alice", Email: "other@x.com", PasswordHash: "hash"}); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("duplicate username: expected ErrConflict, got %v", err)
	}

	calc, err := store.CreateCalculation(ctx, calculation.Calculation{OwnerID: alice.ID, A: 10, B: 5, Kind: calculation.KindAdd, Result: 15})
	if err != nil {
		t.Fatalf("create calculation: %v", err)
	}

	got, err := store.GetCalculation(ctx, alice.ID, calc.ID)
	if err != nil {
		t.Fatalf("get calculation: %v", err)
	}
	if got.Kind != calculation.KindAdd || got.Result != 15 {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	if _, err := store.GetCalculation(ctx, "someone-else", calc.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("foreign read: expected ErrNotFound, got %v", err)
	}

	got.A, got.B, got.Kind, got.Result = 9, 3, calculation.KindDivide, 3
	updated, err := store.UpdateCalculation(ctx, got)
	if err != nil {
		t.Fatalf("update calculation: %v", err)
	}
	if updated.Result != 3 || updated.Kind != calculation.KindDivide {
		t.Fatalf("update mismatch: %+v", updated)
	}

	if err := store.DeletePrincipal(ctx, alice.ID); err != nil {
		t.Fatalf("delete principal: %v", err)
	}
	if _, err := store.GetCalculation(ctx, alice.ID, calc.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("cascade left record behind: %v", err)
	}
}
