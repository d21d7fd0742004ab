package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dukerupert/stremify/internal/model"
)

func TestUserCreate(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	u, err := s.Users.Create(ctx, "Alice", "alice@example.com", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.ID == "" {
		t.Error("expected non-empty ID")
	}
	if u.Email != "alice@example.com" {
		t.Errorf("email = %q, want %q", u.Email, "alice@example.com")
	}
	if u.Role != model.RoleGuest {
		t.Errorf("role = %q, want %q", u.Role, model.RoleGuest)
	}
	if u.Verified {
		t.Error("new user should be unverified")
	}
	if u.Password != "hash" {
		t.Errorf("password = %q, want %q", u.Password, "hash")
	}
}

func TestUserCreateDuplicateEmail(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if _, err := s.Users.Create(ctx, "Alice", "alice@example.com", "hash"); err != nil {
		t.Fatalf("create user: %v", err)
	}
	_, err := s.Users.Create(ctx, "Alice2", "alice@example.com", "hash")
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("err = %v, want ErrEmailTaken", err)
	}
}

func TestUserGetNotFound(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	u, err := s.Users.GetByID(ctx, "missing")
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if u != nil {
		t.Error("expected nil for nonexistent user")
	}
	u, err = s.Users.GetByEmail(ctx, "nobody@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if u != nil {
		t.Error("expected nil for nonexistent email")
	}
}

func TestUserMarkVerified(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	u, _ := s.Users.Create(ctx, "Alice", "alice@example.com", "hash")

	changed, err := s.Users.MarkVerified(ctx, u.ID)
	if err != nil {
		t.Fatalf("mark verified: %v", err)
	}
	if !changed {
		t.Error("first verify should change the row")
	}

	changed, err = s.Users.MarkVerified(ctx, u.ID)
	if err != nil {
		t.Fatalf("mark verified again: %v", err)
	}
	if changed {
		t.Error("second verify should be a no-op")
	}

	got, _ := s.Users.GetByID(ctx, u.ID)
	if !got.Verified {
		t.Error("expected verified user")
	}
}

func TestUserPromoteToSubscriber(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	u, _ := s.Users.Create(ctx, "Alice", "alice@example.com", "hash")
	if ok, err := s.Users.PromoteToSubscriber(ctx, u.ID); err != nil || !ok {
		t.Fatalf("promote = %v, %v; want true, nil", ok, err)
	}
	got, _ := s.Users.GetByID(ctx, u.ID)
	if got.Role != model.RoleSubscriber {
		t.Errorf("role = %q, want %q", got.Role, model.RoleSubscriber)
	}
}

func TestUserPromoteKeepsAdmin(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	u, _ := s.Users.Create(ctx, "Root", "root@example.com", "hash")
	if err := s.Users.SetRole(ctx, u.ID, model.RoleAdmin); err != nil {
		t.Fatalf("set admin: %v", err)
	}

	ok, err := s.Users.PromoteToSubscriber(ctx, u.ID)
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	if ok {
		t.Error("admin should not be changed")
	}
	got, _ := s.Users.GetByID(ctx, u.ID)
	if got.Role != model.RoleAdmin {
		t.Errorf("role = %q, want %q", got.Role, model.RoleAdmin)
	}
}

func TestUserDeleteCascadesOTP(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	u, _ := s.Users.Create(ctx, "Alice", "alice@example.com", "hash")
	if _, err := s.OTPs.Insert(ctx, u.ID, "123456", time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("insert otp: %v", err)
	}
	if err := s.Users.Delete(ctx, u.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	o, err := s.OTPs.GetByUserID(ctx, u.ID)
	if err != nil {
		t.Fatalf("get otp: %v", err)
	}
	if o != nil {
		t.Error("expected otp removed with user")
	}
}

func TestUserDeleteStaleUnverified(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	stale, _ := s.Users.Create(ctx, "Stale", "stale@example.com", "hash")
	withCode, _ := s.Users.Create(ctx, "Pending", "pending@example.com", "hash")
	verified, _ := s.Users.Create(ctx, "Done", "done@example.com", "hash")
	fresh, _ := s.Users.Create(ctx, "Fresh", "fresh@example.com", "hash")
	s.Users.MarkVerified(ctx, verified.ID)

	if _, err := s.db.Exec(
		`UPDATE users SET created_at = datetime('now', '-10 days') WHERE id IN (?, ?, ?)`,
		stale.ID, withCode.ID, verified.ID,
	); err != nil {
		t.Fatalf("backdate users: %v", err)
	}
	if _, err := s.OTPs.Insert(ctx, withCode.ID, "654321", time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("insert otp: %v", err)
	}

	n, err := s.Users.DeleteStaleUnverified(ctx, time.Now().Add(-7*24*time.Hour))
	if err != nil {
		t.Fatalf("delete stale: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}

	for _, id := range []string{withCode.ID, verified.ID, fresh.ID} {
		if u, _ := s.Users.GetByID(ctx, id); u == nil {
			t.Errorf("user %s should survive", id)
		}
	}
	if u, _ := s.Users.GetByID(ctx, stale.ID); u != nil {
		t.Error("stale user should be deleted")
	}
}
