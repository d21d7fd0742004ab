package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/stremify/internal/model"
	"github.com/google/uuid"
)

type SubscriptionStore struct {
	db DBTX
}

func NewSubscriptionStore(db DBTX) *SubscriptionStore {
	return &SubscriptionStore{db: db}
}

func scanSubscription(scanner interface{ Scan(...any) error }) (*model.Subscription, error) {
	var sub model.Subscription
	var providerSubID sql.NullString
	var periodStart, periodEnd, canceledAt, endedAt sql.NullTime

	err := scanner.Scan(
		&sub.ID, &sub.UserID, &sub.CustomerID, &providerSubID, &sub.Status, &sub.PlanID,
		&periodStart, &periodEnd, &sub.CancelAtPeriodEnd, &canceledAt, &endedAt,
		&sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	sub.ProviderSubscriptionID = stringPtr(providerSubID)
	sub.CurrentPeriodStart = timePtr(periodStart)
	sub.CurrentPeriodEnd = timePtr(periodEnd)
	sub.CanceledAt = timePtr(canceledAt)
	sub.EndedAt = timePtr(endedAt)
	return &sub, nil
}

const subscriptionCols = `id, user_id, customer_id, provider_subscription_id, status, plan_id,
	current_period_start, current_period_end, cancel_at_period_end, canceled_at, ended_at,
	created_at, updated_at`

func (s *SubscriptionStore) Create(ctx context.Context, userID, customerID, planID string, status model.SubscriptionStatus) (*model.Subscription, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subscriptions (id, user_id, customer_id, plan_id, status) VALUES (?, ?, ?, ?, ?)`,
		id, userID, customerID, planID, status,
	)
	if err != nil {
		return nil, fmt.Errorf("insert subscription: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *SubscriptionStore) GetByID(ctx context.Context, id string) (*model.Subscription, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+subscriptionCols+` FROM subscriptions WHERE id = ?`, id)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return sub, nil
}

// GetLatestByUserID returns the user's most recently created subscription.
func (s *SubscriptionStore) GetLatestByUserID(ctx context.Context, userID string) (*model.Subscription, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+subscriptionCols+` FROM subscriptions WHERE user_id = ?
		 ORDER BY created_at DESC, rowid DESC LIMIT 1`,
		userID,
	)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription by user: %w", err)
	}
	return sub, nil
}

func (s *SubscriptionStore) GetByProviderSubscriptionID(ctx context.Context, providerSubID string) (*model.Subscription, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+subscriptionCols+` FROM subscriptions WHERE provider_subscription_id = ?
		 ORDER BY created_at DESC, rowid DESC LIMIT 1`,
		providerSubID,
	)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription by provider id: %w", err)
	}
	return sub, nil
}

// Provision records the provider-side subscription created for a local row.
func (s *SubscriptionStore) Provision(ctx context.Context, id, providerSubID, planID string, status model.SubscriptionStatus, periodStart, periodEnd *time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE subscriptions
		 SET provider_subscription_id = ?, plan_id = ?, status = ?,
		     current_period_start = ?, current_period_end = ?, updated_at = datetime('now')
		 WHERE id = ?`,
		providerSubID, planID, status, nullTime(periodStart), nullTime(periodEnd), id,
	)
	if err != nil {
		return fmt.Errorf("provision subscription: %w", err)
	}
	return nil
}

func (s *SubscriptionStore) UpdateStatus(ctx context.Context, id string, status model.SubscriptionStatus) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE subscriptions SET status = ?, updated_at = datetime('now') WHERE id = ?`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("update subscription status: %w", err)
	}
	return nil
}

// MarkCanceled sets the terminal canceled state.
func (s *SubscriptionStore) MarkCanceled(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE subscriptions
		 SET status = 'canceled', canceled_at = COALESCE(canceled_at, ?), ended_at = ?,
		     updated_at = datetime('now')
		 WHERE id = ?`,
		at.UTC(), at.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("cancel subscription: %w", err)
	}
	return nil
}
