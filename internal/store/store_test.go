package store

import (
	"context"
	"errors"
	"testing"

	"github.com/dukerupert/stremify/internal/database"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db)
}

func TestWithTxCommit(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	var id string
	err := s.WithTx(ctx, func(tx *Store) error {
		u, err := tx.Users.Create(ctx, "Alice", "alice@example.com", "hash")
		if err != nil {
			return err
		}
		id = u.ID
		return nil
	})
	if err != nil {
		t.Fatalf("with tx: %v", err)
	}

	u, err := s.Users.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if u == nil {
		t.Fatal("expected committed user")
	}
}

func TestWithTxRollback(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx *Store) error {
		if _, err := tx.Users.Create(ctx, "Alice", "alice@example.com", "hash"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}

	u, err := s.Users.GetByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if u != nil {
		t.Error("expected rollback to discard user")
	}
}

func TestWithTxPanicRollsBack(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	func() {
		defer func() {
			if recover() == nil {
				t.Error("expected panic to propagate")
			}
		}()
		_ = s.WithTx(ctx, func(tx *Store) error {
			if _, err := tx.Users.Create(ctx, "Alice", "alice@example.com", "hash"); err != nil {
				return err
			}
			panic("boom")
		})
	}()

	u, err := s.Users.GetByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if u != nil {
		t.Error("expected rollback after panic")
	}
}
