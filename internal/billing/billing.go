// Package billing provisions subscriptions through a payment provider and
// reconciles the provider's webhook events with the local ledger.
package billing

import (
	"context"
	"errors"
	"time"
)

type EventType string

const (
	EventInvoicePaymentSucceeded      EventType = "invoice.payment_succeeded"
	EventInvoicePaymentFailed         EventType = "invoice.payment_failed"
	EventInvoicePaymentActionRequired EventType = "invoice.payment_action_required"
	EventSubscriptionDeleted          EventType = "customer.subscription.deleted"
	EventCustomerUpdated              EventType = "customer.updated"
	EventPaymentIntentRequiresAction  EventType = "payment_intent.requires_action"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrPaymentNotFound  = errors.New("no payment matches invoice")
)

// Event is a verified provider callback reduced to the fields the
// reconciler acts on.
type Event struct {
	ID       string
	Type     EventType
	ObjectID string

	// Set for invoice events.
	Invoice *Invoice

	// Provider subscription id for subscription events.
	SubscriptionID string
}

type Invoice struct {
	ID              string
	CustomerID      string
	SubscriptionID  string
	PaymentIntentID string
	Amount          int64
	Currency        string
}

type CustomerParams struct {
	UserID string
	Email  string
	Name   string
}

// ProviderSubscription is a subscription created on the provider side whose
// first invoice still awaits payment.
type ProviderSubscription struct {
	ID              string
	CustomerID      string
	ClientSecret    string
	PaymentIntentID string
	Amount          int64
	Currency        string
	PeriodStart     *time.Time
	PeriodEnd       *time.Time
}

// Gateway is a payment provider.
type Gateway interface {
	Name() string
	CreateCustomer(ctx context.Context, p CustomerParams) (string, error)
	GetCustomer(ctx context.Context, customerID string) (string, error)
	CreateSubscription(ctx context.Context, customerID, planID string) (*ProviderSubscription, error)
	CancelSubscription(ctx context.Context, subscriptionID string) error
	// ParseWebhook verifies the signature over the raw payload and decodes
	// the event. A bad or missing signature yields ErrInvalidSignature.
	ParseWebhook(payload []byte, signature string) (*Event, error)
}
