package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/stremify/internal/apperr"
	"github.com/dukerupert/stremify/internal/model"
	"github.com/dukerupert/stremify/internal/password"
	"github.com/dukerupert/stremify/internal/session"
	"github.com/dukerupert/stremify/internal/store"
)

const (
	maxOTPAttempts = 5
	cleanupTimeout = 5 * time.Second

	// Expired codes and never-verified accounts are kept this long before
	// the sweeper removes them.
	expiredOTPRetention = 24 * time.Hour
	unverifiedRetention = 7 * 24 * time.Hour
)

// Mailer delivers verification codes.
type Mailer interface {
	SendVerification(ctx context.Context, to, code string) error
}

type Service struct {
	store    *store.Store
	sessions *session.Store
	mailer   Mailer
	otpTTL   time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(st *store.Store, sessions *session.Store, mailer Mailer, otpTTL time.Duration, logger *slog.Logger) *Service {
	return &Service{
		store:    st,
		sessions: sessions,
		mailer:   mailer,
		otpTTL:   otpTTL,
		logger:   logger,
		now:      time.Now,
	}
}

// SignUp creates an unverified user and mails a verification code. When the
// mail cannot be sent the user is deleted again.
func (s *Service) SignUp(ctx context.Context, name, email, rawPassword string) (*model.User, error) {
	if err := validateSignUp(name, email, rawPassword); err != nil {
		return nil, err
	}

	hash, err := password.Hash(rawPassword)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	user, err := s.store.Users.Create(ctx, name, email, hash)
	if errors.Is(err, store.ErrEmailTaken) {
		return nil, apperr.Conflict("email already exists")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}

	otp, err := s.issueOTP(ctx, user.ID)
	if err != nil {
		// The user row stays; the sweeper removes it once it goes stale.
		s.logger.Error("issue otp", "user_id", user.ID, "error", err)
		return nil, apperr.Internal(err)
	}

	if err := s.mailer.SendVerification(ctx, user.Email, otp.Code); err != nil {
		s.logger.Error("send verification email", "user_id", user.ID, "error", err)
		cctx, cancel := cleanupContext(ctx)
		defer cancel()
		if derr := s.store.Users.Delete(cctx, user.ID); derr != nil {
			s.logger.Error("delete user after failed signup", "user_id", user.ID, "error", derr)
		}
		return nil, apperr.External("Failed to send email", err)
	}

	s.logger.Info("user signed up", "user_id", user.ID)
	return user, nil
}

// cleanupContext detaches compensating writes from the request, whose
// context may already be done when the step being undone failed.
func cleanupContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
}

func (s *Service) issueOTP(ctx context.Context, userID string) (*model.OTP, error) {
	var otp *model.OTP
	err := s.store.WithTx(ctx, func(tx *store.Store) error {
		var err error
		otp, err = tx.OTPs.Issue(ctx, userID, s.now().Add(s.otpTTL))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("issue otp: %w", err)
	}
	return otp, nil
}

// VerifyInput identifies the user either by email or by id.
type VerifyInput struct {
	Email  string
	UserID string
	Code   string
}

// VerifyUser consumes the user's code and marks the user verified.
func (s *Service) VerifyUser(ctx context.Context, in VerifyInput) (*model.User, error) {
	if err := validateVerify(in); err != nil {
		return nil, err
	}

	var user *model.User
	var err error
	if in.UserID != "" {
		user, err = s.store.Users.GetByID(ctx, in.UserID)
	} else {
		user, err = s.store.Users.GetByEmail(ctx, in.Email)
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if user == nil {
		return nil, apperr.NotFound("user not found")
	}

	otp, err := s.store.OTPs.GetByUserID(ctx, user.ID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if otp == nil {
		return nil, apperr.NotFound("otp not found")
	}
	if otp.Expired(s.now()) {
		s.logger.Warn("otp expired", "user_id", user.ID)
		return nil, apperr.Unauthorized("otp expired")
	}

	if subtle.ConstantTimeCompare([]byte(in.Code), []byte(otp.Code)) != 1 {
		return nil, s.failAttempt(ctx, otp)
	}

	err = s.store.WithTx(ctx, func(tx *store.Store) error {
		consumed, err := tx.OTPs.Delete(ctx, otp.ID)
		if err != nil {
			return err
		}
		if !consumed {
			return apperr.NotFound("otp not found")
		}
		if _, err := tx.Users.MarkVerified(ctx, user.ID); err != nil {
			return err
		}
		user, err = tx.Users.GetByID(ctx, user.ID)
		return err
	})
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, err
		}
		return nil, apperr.Internal(err)
	}

	s.logger.Info("user verified", "user_id", user.ID)
	return user, nil
}

func (s *Service) failAttempt(ctx context.Context, otp *model.OTP) error {
	attempts, err := s.store.OTPs.IncrementAttempts(ctx, otp.ID)
	if err != nil {
		return apperr.Internal(err)
	}
	s.logger.Warn("invalid otp", "user_id", otp.UserID, "attempts", attempts)
	if attempts >= maxOTPAttempts {
		if _, err := s.store.OTPs.Delete(ctx, otp.ID); err != nil {
			return apperr.Internal(err)
		}
		return apperr.Unauthorized("too many attempts")
	}
	return apperr.Unauthorized("invalid otp")
}

// ResendOTP replaces the user's code and mails the new one.
func (s *Service) ResendOTP(ctx context.Context, email string) error {
	if err := validateResend(email); err != nil {
		return err
	}

	user, err := s.store.Users.GetByEmail(ctx, email)
	if err != nil {
		return apperr.Internal(err)
	}
	if user == nil {
		return apperr.NotFound("user not found")
	}
	if user.Verified {
		return apperr.Conflict("user is already verified")
	}

	otp, err := s.issueOTP(ctx, user.ID)
	if err != nil {
		return apperr.Internal(err)
	}
	if err := s.mailer.SendVerification(ctx, user.Email, otp.Code); err != nil {
		s.logger.Error("resend verification email", "user_id", user.ID, "error", err)
		return apperr.External("Failed to send email", err)
	}
	return nil
}

// ValidateUser checks credentials. Unverified users are rejected before the
// password is compared.
func (s *Service) ValidateUser(ctx context.Context, email, rawPassword string) (*model.User, error) {
	user, err := s.store.Users.GetByEmail(ctx, email)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if user == nil {
		return nil, apperr.NotFound("user not found")
	}
	if !user.Verified {
		return nil, apperr.Unauthorized("user is not verified")
	}

	ok, err := password.Verify(rawPassword, user.Password)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if !ok {
		return nil, apperr.Unauthorized("invalid password")
	}
	return user, nil
}

// Login validates credentials and moves the session data to a fresh
// session id. currentID may be empty.
func (s *Service) Login(ctx context.Context, currentID, email, rawPassword string) (string, *model.SessionUser, error) {
	if err := validateLogin(email, rawPassword); err != nil {
		return "", nil, err
	}

	user, err := s.ValidateUser(ctx, email, rawPassword)
	if err != nil {
		return "", nil, err
	}

	sessionUser := model.NewSessionUser(user)
	newID, err := s.sessions.Regenerate(ctx, currentID, model.SessionData{IsLoggedIn: true, User: sessionUser})
	if err != nil {
		return "", nil, apperr.Internal(err)
	}

	s.logger.Info("user logged in", "user_id", user.ID)
	return newID, sessionUser, nil
}

func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if err := s.sessions.Destroy(ctx, sessionID); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// RefreshSession reloads the user behind the session and re-seeds it under
// a new session id.
func (s *Service) RefreshSession(ctx context.Context, sessionID, email string) (string, *model.SessionUser, error) {
	user, err := s.store.Users.GetByEmail(ctx, email)
	if err != nil {
		return "", nil, apperr.Internal(err)
	}
	if user == nil {
		return "", nil, apperr.NotFound("user not found")
	}

	sessionUser := model.NewSessionUser(user)
	newID, err := s.sessions.Regenerate(ctx, sessionID, model.SessionData{IsLoggedIn: true, User: sessionUser})
	if err != nil {
		return "", nil, apperr.Internal(err)
	}
	return newID, sessionUser, nil
}

// SweepResult counts the rows removed by Sweep.
type SweepResult struct {
	ExpiredOTPs     int64
	StaleUnverified int64
}

// Sweep removes long-expired codes and unverified accounts left without a
// code.
func (s *Service) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	now := s.now()

	n, err := s.store.OTPs.DeleteExpiredBefore(ctx, now.Add(-expiredOTPRetention))
	if err != nil {
		return res, err
	}
	res.ExpiredOTPs = n

	n, err = s.store.Users.DeleteStaleUnverified(ctx, now.Add(-unverifiedRetention))
	if err != nil {
		return res, err
	}
	res.StaleUnverified = n
	return res, nil
}
