package auth

import (
	"context"

	"github.com/dukerupert/stremify/internal/model"
)

type contextKey struct{}

// Session is the request's read-only view of its session: the id from the
// cookie (empty for a new visitor) and the data loaded at the start of the
// request.
type Session struct {
	ID   string
	Data model.SessionData
}

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(contextKey{}).(Session)
	return s, ok
}

// CurrentUser returns the logged-in session user, or nil.
func CurrentUser(ctx context.Context) *model.SessionUser {
	s, ok := FromContext(ctx)
	if !ok || !s.Data.IsLoggedIn {
		return nil
	}
	return s.Data.User
}

func UserID(ctx context.Context) string {
	u := CurrentUser(ctx)
	if u == nil {
		return ""
	}
	return u.ID
}

func IsAdmin(ctx context.Context) bool {
	u := CurrentUser(ctx)
	return u != nil && u.Role == model.RoleAdmin
}
