package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/dukerupert/stremify/internal/model"
	"github.com/google/uuid"
)

// codeRetries bounds how often Issue redraws a code that collides with a
// live one.
const codeRetries = 3

type OTPStore struct {
	db DBTX
}

func NewOTPStore(db DBTX) *OTPStore {
	return &OTPStore{db: db}
}

func scanOTP(scanner interface{ Scan(...any) error }) (*model.OTP, error) {
	var o model.OTP
	err := scanner.Scan(&o.ID, &o.UserID, &o.Code, &o.Attempts, &o.ExpiresAt, &o.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

const otpCols = `id, user_id, code, attempts, expires_at, created_at`

// GenerateCode returns a 6-digit numeric code (100000-999999).
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// Issue replaces any code held by the user with a freshly drawn one.
// Callers should run it inside a transaction so the delete and insert land
// together.
func (s *OTPStore) Issue(ctx context.Context, userID string, expiresAt time.Time) (*model.OTP, error) {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM otps WHERE user_id = ?`, userID); err != nil {
		return nil, fmt.Errorf("delete previous otp: %w", err)
	}

	for range codeRetries {
		code, err := GenerateCode()
		if err != nil {
			return nil, err
		}
		o, err := s.Insert(ctx, userID, code, expiresAt)
		if errors.Is(err, ErrCodeTaken) {
			continue
		}
		return o, err
	}
	return nil, ErrCodeTaken
}

// Insert stores a specific code for the user.
func (s *OTPStore) Insert(ctx context.Context, userID, code string, expiresAt time.Time) (*model.OTP, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO otps (id, user_id, code, expires_at) VALUES (?, ?, ?, ?)`,
		id, userID, code, expiresAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrCodeTaken
		}
		return nil, fmt.Errorf("insert otp: %w", err)
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+otpCols+` FROM otps WHERE id = ?`, id)
	o, err := scanOTP(row)
	if err != nil {
		return nil, fmt.Errorf("get otp: %w", err)
	}
	return o, nil
}

func (s *OTPStore) GetByUserID(ctx context.Context, userID string) (*model.OTP, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+otpCols+` FROM otps WHERE user_id = ?`, userID)
	o, err := scanOTP(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get otp by user: %w", err)
	}
	return o, nil
}

// IncrementAttempts records a failed guess and returns the new count.
func (s *OTPStore) IncrementAttempts(ctx context.Context, id string) (int, error) {
	var attempts int
	err := s.db.QueryRowContext(ctx,
		`UPDATE otps SET attempts = attempts + 1 WHERE id = ? RETURNING attempts`, id,
	).Scan(&attempts)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("increment otp attempts: %w", err)
	}
	return attempts, nil
}

// Delete removes a code and reports whether this call removed it.
func (s *OTPStore) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM otps WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete otp: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// DeleteExpiredBefore removes codes whose expiry is older than cutoff.
func (s *OTPStore) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM otps WHERE expires_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired otps: %w", err)
	}
	return res.RowsAffected()
}
