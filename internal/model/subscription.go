package model

import "time"

type SubscriptionStatus string

const (
	SubscriptionActive     SubscriptionStatus = "active"
	SubscriptionCanceled   SubscriptionStatus = "canceled"
	SubscriptionPastDue    SubscriptionStatus = "past_due"
	SubscriptionPending    SubscriptionStatus = "pending"
	SubscriptionPaused     SubscriptionStatus = "paused"
	SubscriptionNotStarted SubscriptionStatus = "not_started"
)

type Subscription struct {
	ID                     string             `json:"id"`
	UserID                 string             `json:"user_id"`
	CustomerID             string             `json:"customer_id"`
	ProviderSubscriptionID *string            `json:"provider_subscription_id"`
	Status                 SubscriptionStatus `json:"status"`
	PlanID                 string             `json:"plan_id"`
	CurrentPeriodStart     *time.Time         `json:"current_period_start"`
	CurrentPeriodEnd       *time.Time         `json:"current_period_end"`
	CancelAtPeriodEnd      bool               `json:"cancel_at_period_end"`
	CanceledAt             *time.Time         `json:"canceled_at"`
	EndedAt                *time.Time         `json:"ended_at"`
	CreatedAt              time.Time          `json:"created_at"`
	UpdatedAt              time.Time          `json:"updated_at"`
}

const (
	PaymentPending   = "pending"
	PaymentSucceeded = "succeeded"
	PaymentFailed    = "failed"
)

type Payment struct {
	ID                     string    `json:"id"`
	SubscriptionID         string    `json:"subscription_id"`
	ProviderID             string    `json:"provider_id"`
	Amount                 int64     `json:"amount"`
	Currency               string    `json:"currency"`
	Status                 string    `json:"status"`
	ProviderCustomerID     *string   `json:"provider_customer_id"`
	ProviderPaymentID      *string   `json:"provider_payment_id"`
	ProviderSubscriptionID *string   `json:"provider_subscription_id"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

type PaymentProvider struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type WebhookEvent struct {
	ID          int64     `json:"id"`
	Provider    string    `json:"provider"`
	EventID     string    `json:"event_id"`
	Type        string    `json:"type"`
	ProcessedAt time.Time `json:"processed_at"`
}
