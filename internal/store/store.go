package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// DBTX is the subset of database/sql used by the stores. Both *sql.DB and
// *sql.Tx satisfy it.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	ErrEmailTaken = errors.New("email already exists")
	ErrCodeTaken  = errors.New("otp code already in use")
)

// Store groups the per-table stores over one handle.
type Store struct {
	db *sql.DB

	Users         *UserStore
	OTPs          *OTPStore
	Subscriptions *SubscriptionStore
	Payments      *PaymentStore
	Providers     *ProviderStore
	WebhookEvents *WebhookEventStore
	Movies        *MovieStore
}

func New(db *sql.DB) *Store {
	s := bind(db)
	s.db = db
	return s
}

func bind(db DBTX) *Store {
	return &Store{
		Users:         NewUserStore(db),
		OTPs:          NewOTPStore(db),
		Subscriptions: NewSubscriptionStore(db),
		Payments:      NewPaymentStore(db),
		Providers:     NewProviderStore(db),
		WebhookEvents: NewWebhookEventStore(db),
		Movies:        NewMovieStore(db),
	}
}

// WithTx runs fn with stores bound to a single transaction. The transaction
// commits when fn returns nil and rolls back on error or panic.
//
// Code inside fn must only use the stores it is given: the pool holds a
// single connection and the outer handle would block.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Store) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if cerr := tx.Commit(); cerr != nil {
			err = fmt.Errorf("commit tx: %w", cerr)
		}
	}()

	return fn(bind(tx))
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		code := se.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

func nullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}
