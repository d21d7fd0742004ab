package auth

import (
	"context"
	"testing"

	"github.com/dukerupert/stremify/internal/model"
)

func TestWithSessionAndFromContext(t *testing.T) {
	s := Session{
		ID: "sess-1",
		Data: model.SessionData{
			IsLoggedIn: true,
			User:       &model.SessionUser{ID: "u1", Role: model.RoleAdmin},
		},
	}

	ctx := WithSession(context.Background(), s)
	got, ok := FromContext(ctx)
	if !ok {
		t.Fatal("expected Session in context")
	}
	if got.ID != "sess-1" {
		t.Errorf("ID = %q, want %q", got.ID, "sess-1")
	}
	if UserID(ctx) != "u1" {
		t.Errorf("UserID = %q, want %q", UserID(ctx), "u1")
	}
	if !IsAdmin(ctx) {
		t.Error("expected admin")
	}
}

func TestFromContextMissing(t *testing.T) {
	ctx := context.Background()
	if _, ok := FromContext(ctx); ok {
		t.Error("expected false for missing Session")
	}
	if CurrentUser(ctx) != nil {
		t.Error("expected nil user")
	}
	if UserID(ctx) != "" {
		t.Error("expected empty user id")
	}
}

func TestCurrentUserRequiresLogin(t *testing.T) {
	ctx := WithSession(context.Background(), Session{
		ID:   "sess-1",
		Data: model.SessionData{User: &model.SessionUser{ID: "u1"}},
	})
	if CurrentUser(ctx) != nil {
		t.Error("session without isLoggedIn should not yield a user")
	}
	if IsAdmin(ctx) {
		t.Error("expected not admin")
	}
}
