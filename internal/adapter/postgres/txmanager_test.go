package postgres_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/tidemark/recordhub-backend/internal/adapter/postgres"
	"github.com/tidemark/recordhub-backend/internal/adapter/postgres/testhelper"
)

func tenantExists(t *testing.T, pool *pgxpool.Pool, tenantID uuid.UUID) bool {
	t.Helper()
	var exists bool
	err := pool.QueryRow(
		context.Background(),
		`SELECT EXISTS(SELECT 1 FROM tenants WHERE id = $1)`,
		tenantID,
	).Scan(&exists)
	if err != nil {
		t.Fatalf("tenantExists query: %v", err)
	}
	return exists
}

func TestRunInTx_Commit(t *testing.T) {
	pool := testhelper.SetupTestDB(t)
	tm := postgres.NewTxManager(pool)

	tenantID := uuid.New()

	err := tm.RunInTx(context.Background(), func(ctx context.Context) error {
		q := postgres.QuerierFromCtx(ctx, pool)
		_, err := q.Exec(ctx,
			`INSERT INTO tenants (id, name) VALUES ($1, $2)`,
			tenantID, "commit-test",
		)
		return err
	})
	if err != nil {
		t.Fatalf("RunInTx returned error: %v", err)
	}

	if !tenantExists(t, pool, tenantID) {
		t.Fatal("expected tenant to exist after committed transaction")
	}
}

func TestRunInTx_RollbackOnError(t *testing.T) {
	pool := testhelper.SetupTestDB(t)
	tm := postgres.NewTxManager(pool)

	tenantID := uuid.New()
	boom := errors.New("boom")

	err := tm.RunInTx(context.Background(), func(ctx context.Context) error {
		q := postgres.QuerierFromCtx(ctx, pool)
		if _, err := q.Exec(ctx,
			`INSERT INTO tenants (id, name) VALUES ($1, $2)`,
			tenantID, "rollback-test",
		); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("RunInTx error = %v, want %v", err, boom)
	}

	if tenantExists(t, pool, tenantID) {
		t.Fatal("expected tenant to be rolled back")
	}
}

func TestRunInTx_RollbackOnPanic(t *testing.T) {
	pool := testhelper.SetupTestDB(t)
	tm := postgres.NewTxManager(pool)

	tenantID := uuid.New()

	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Error("expected panic to propagate")
			}
		}()
		_ = tm.RunInTx(context.Background(), func(ctx context.Context) error {
			q := postgres.QuerierFromCtx(ctx, pool)
			if _, err := q.Exec(ctx,
				`INSERT INTO tenants (id, name) VALUES ($1, $2)`,
				tenantID, "panic-test",
			); err != nil {
				return err
			}
			panic("boom")
		})
	}()

	if tenantExists(t, pool, tenantID) {
		t.Fatal("expected tenant to be rolled back after panic")
	}
}
