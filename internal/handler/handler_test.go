package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dukerupert/stremify/internal/auth"
	"github.com/dukerupert/stremify/internal/database"
	"github.com/dukerupert/stremify/internal/model"
	"github.com/dukerupert/stremify/internal/password"
	"github.com/dukerupert/stremify/internal/session"
	"github.com/dukerupert/stremify/internal/store"
	"github.com/redis/go-redis/v9"
)

type fakeMailer struct {
	codes map[string]string
}

func (f *fakeMailer) SendVerification(_ context.Context, to, code string) error {
	f.codes[to] = code
	return nil
}

type testEnv struct {
	db       *sql.DB
	store    *store.Store
	sessions *session.Store
	cookies  *session.Cookies
	mailer   *fakeMailer
	auth     *AuthHandler
	logger   *slog.Logger
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	st := store.New(db)
	sessions := session.NewStore(client, time.Hour)
	cookies := session.NewCookies("test-secret", false, "")
	mailer := &fakeMailer{codes: map[string]string{}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := auth.NewService(st, sessions, mailer, 10*time.Minute, logger)

	return &testEnv{
		db:       db,
		store:    st,
		sessions: sessions,
		cookies:  cookies,
		mailer:   mailer,
		auth:     NewAuthHandler(svc, cookies, logger),
		logger:   logger,
	}
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(method, target, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

// asUser attaches a logged-in session snapshot for user to r.
func asUser(r *http.Request, sessionID string, user *model.User) *http.Request {
	s := auth.Session{ID: sessionID, Data: model.SessionData{IsLoggedIn: true, User: model.NewSessionUser(user)}}
	return r.WithContext(auth.WithSession(r.Context(), s))
}

func anonymous(r *http.Request) *http.Request {
	return r.WithContext(auth.WithSession(r.Context(), auth.Session{}))
}

func (e *testEnv) verifiedUser(t *testing.T, email string) *model.User {
	t.Helper()
	ctx := context.Background()
	u, err := e.store.Users.Create(ctx, "Jane", email, mustHash(t))
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := e.store.Users.MarkVerified(ctx, u.ID); err != nil {
		t.Fatalf("mark verified: %v", err)
	}
	u.Verified = true
	return u
}

func mustHash(t *testing.T) string {
	t.Helper()
	h, err := password.Hash("password123")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return h
}
