package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/stremify/internal/model"
	"github.com/google/uuid"
)

type UserStore struct {
	db DBTX
}

func NewUserStore(db DBTX) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	err := scanner.Scan(&u.ID, &u.Name, &u.Email, &u.Password, &u.Role, &u.Verified, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

const userCols = `id, name, email, password, role, verified, created_at, updated_at`

// Create inserts an unverified guest. A taken email yields ErrEmailTaken.
func (s *UserStore) Create(ctx context.Context, name, email, passwordHash string) (*model.User, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password) VALUES (?, ?, ?, ?)`,
		id, name, email, passwordHash,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *UserStore) GetByID(ctx context.Context, id string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// MarkVerified flips verified on. It reports false when the user was
// already verified or does not exist.
func (s *UserStore) MarkVerified(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET verified = 1, updated_at = datetime('now') WHERE id = ? AND verified = 0`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("mark user verified: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// PromoteToSubscriber upgrades a guest. Admins and existing subscribers are
// left untouched.
func (s *UserStore) PromoteToSubscriber(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET role = 'subscriber', updated_at = datetime('now') WHERE id = ? AND role = 'guest'`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("promote user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// SetRole assigns role unconditionally. Used to bootstrap admins.
func (s *UserStore) SetRole(ctx context.Context, id string, role model.Role) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET role = ?, updated_at = datetime('now') WHERE id = ?`,
		role, id,
	)
	if err != nil {
		return fmt.Errorf("set user role: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("set user role: user %s not found", id)
	}
	return nil
}

func (s *UserStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

// DeleteStaleUnverified removes unverified users created before cutoff that
// no longer hold a code.
func (s *UserStore) DeleteStaleUnverified(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM users
		 WHERE verified = 0 AND created_at < ?
		 AND NOT EXISTS (SELECT 1 FROM otps WHERE otps.user_id = users.id)
		 AND NOT EXISTS (SELECT 1 FROM subscriptions WHERE subscriptions.user_id = users.id)`,
		cutoff.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("delete stale users: %w", err)
	}
	return res.RowsAffected()
}
