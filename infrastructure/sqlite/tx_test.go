package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/uptrace/bun"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := OpenDB(dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	if err := ApplyMigrations(context.Background(), db, ""); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return db
}

func TestWithWriteTxRollsBackOnError(t *testing.T) {
	db := openTestDB(t)

	boom := errors.New("boom")
	err := db.WithWriteTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO orders (id, order_number, pallet_number, status) VALUES (?, ?, ?, 'PENDING')`, "o-rollback", "1001", "P1"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom error, got: %v", err)
	}

	var count int
	err = db.WithReadTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		return tx.NewRaw(`SELECT COUNT(*) FROM orders WHERE id = ?`, "o-rollback").Scan(ctx, &count)
	})
	if err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected rollback to remove insert, count=%d", count)
	}
}

func TestWithWriteTxCommitsOnSuccess(t *testing.T) {
	db := openTestDB(t)

	err := db.WithWriteTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO orders (id, order_number, pallet_number, status) VALUES (?, ?, ?, 'PENDING')`, "o-commit", "1002", "P2")
		return err
	})
	if err != nil {
		t.Fatalf("write tx: %v", err)
	}

	var status string
	err = db.WithReadTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		return tx.NewRaw(`SELECT status FROM orders WHERE id = ?`, "o-commit").Scan(ctx, &status)
	})
	if err != nil {
		t.Fatalf("read order: %v", err)
	}
	if status != "PENDING" {
		t.Fatalf("expected PENDING, got %s", status)
	}
}

func TestWithReadTxRejectsWrites(t *testing.T) {
	db := openTestDB(t)

	err := db.WithReadTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO orders (id, order_number, pallet_number) VALUES ('o-ro', '1', '1')`)
		return err
	})
	if err == nil {
		t.Fatalf("expected write through read handle to fail")
	}
}
