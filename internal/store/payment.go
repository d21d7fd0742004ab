package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/stremify/internal/model"
	"github.com/google/uuid"
)

type PaymentStore struct {
	db DBTX
}

func NewPaymentStore(db DBTX) *PaymentStore {
	return &PaymentStore{db: db}
}

func scanPayment(scanner interface{ Scan(...any) error }) (*model.Payment, error) {
	var p model.Payment
	var customerID, paymentID, subID sql.NullString

	err := scanner.Scan(
		&p.ID, &p.SubscriptionID, &p.ProviderID, &p.Amount, &p.Currency, &p.Status,
		&customerID, &paymentID, &subID, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.ProviderCustomerID = stringPtr(customerID)
	p.ProviderPaymentID = stringPtr(paymentID)
	p.ProviderSubscriptionID = stringPtr(subID)
	return &p, nil
}

const paymentCols = `id, subscription_id, provider_id, amount, currency, status,
	provider_customer_id, provider_payment_id, provider_subscription_id, created_at, updated_at`

// Create inserts p and returns the stored row. An ID is assigned when empty.
func (s *PaymentStore) Create(ctx context.Context, p *model.Payment) (*model.Payment, error) {
	id := p.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO payments (id, subscription_id, provider_id, amount, currency, status,
		 provider_customer_id, provider_payment_id, provider_subscription_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, p.SubscriptionID, p.ProviderID, p.Amount, p.Currency, p.Status,
		nullString(p.ProviderCustomerID), nullString(p.ProviderPaymentID), nullString(p.ProviderSubscriptionID),
	)
	if err != nil {
		return nil, fmt.Errorf("insert payment: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *PaymentStore) GetByID(ctx context.Context, id string) (*model.Payment, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+paymentCols+` FROM payments WHERE id = ?`, id)
	p, err := scanPayment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return p, nil
}

func (s *PaymentStore) GetByProviderPaymentID(ctx context.Context, providerPaymentID string) (*model.Payment, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+paymentCols+` FROM payments WHERE provider_payment_id = ?`, providerPaymentID)
	p, err := scanPayment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get payment by provider id: %w", err)
	}
	return p, nil
}

// GetLatestPendingByProviderSubscriptionID finds the newest pending payment
// recorded against a provider subscription.
func (s *PaymentStore) GetLatestPendingByProviderSubscriptionID(ctx context.Context, providerSubID string) (*model.Payment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+paymentCols+` FROM payments
		 WHERE provider_subscription_id = ? AND status = 'pending'
		 ORDER BY created_at DESC, rowid DESC LIMIT 1`,
		providerSubID,
	)
	p, err := scanPayment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get pending payment: %w", err)
	}
	return p, nil
}

func (s *PaymentStore) ListBySubscriptionID(ctx context.Context, subscriptionID string) ([]model.Payment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+paymentCols+` FROM payments WHERE subscription_id = ? ORDER BY created_at, rowid`,
		subscriptionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var payments []model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

// SetOutcome records the provider's result for a payment. A provider payment
// id is attached only when the row does not already carry one.
func (s *PaymentStore) SetOutcome(ctx context.Context, id, status string, providerPaymentID *string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE payments
		 SET status = ?, provider_payment_id = COALESCE(provider_payment_id, ?),
		     updated_at = datetime('now')
		 WHERE id = ?`,
		status, nullString(providerPaymentID), id,
	)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	return nil
}

type ProviderStore struct {
	db DBTX
}

func NewProviderStore(db DBTX) *ProviderStore {
	return &ProviderStore{db: db}
}

func (s *ProviderStore) GetByName(ctx context.Context, name string) (*model.PaymentProvider, error) {
	var p model.PaymentProvider
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, is_active, created_at, updated_at FROM payment_providers WHERE name = ?`, name,
	).Scan(&p.ID, &p.Name, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get payment provider: %w", err)
	}
	return &p, nil
}
