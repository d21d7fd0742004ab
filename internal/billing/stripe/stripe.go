// Package stripe implements the billing gateway on Stripe.
package stripe

import (
	"context"
	"fmt"
	"time"

	"github.com/dukerupert/stremify/internal/billing"
	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/subscription"
	"github.com/stripe/stripe-go/v82/webhook"
)

const providerName = "stripe"

type Config struct {
	SecretKey     string
	WebhookSecret string
	PlanID        string
}

type Client struct {
	cfg Config
}

func NewClient(cfg Config) *Client {
	stripe.Key = cfg.SecretKey
	return &Client{cfg: cfg}
}

func (c *Client) Name() string {
	return providerName
}

// PlanID returns the configured price subscribers are billed on.
func (c *Client) PlanID() string {
	return c.cfg.PlanID
}

// CreateCustomer creates a Stripe customer tagged with the user id.
func (c *Client) CreateCustomer(ctx context.Context, p billing.CustomerParams) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(p.Email),
		Name:  stripe.String(p.Name),
	}
	params.Context = ctx
	params.AddMetadata("userId", p.UserID)

	cust, err := customer.New(params)
	if err != nil {
		return "", fmt.Errorf("create stripe customer: %w", err)
	}
	return cust.ID, nil
}

// GetCustomer confirms the customer still exists and returns its id.
func (c *Client) GetCustomer(ctx context.Context, customerID string) (string, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx

	cust, err := customer.Get(customerID, params)
	if err != nil {
		return "", fmt.Errorf("get stripe customer: %w", err)
	}
	if cust.Deleted {
		return "", fmt.Errorf("stripe customer %s is deleted", customerID)
	}
	return cust.ID, nil
}

// CreateSubscription creates an incomplete subscription whose first invoice
// is confirmed client-side with the returned secret.
func (c *Client) CreateSubscription(ctx context.Context, customerID, planID string) (*billing.ProviderSubscription, error) {
	params := &stripe.SubscriptionParams{
		Customer: stripe.String(customerID),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(planID)},
		},
		PaymentBehavior: stripe.String("default_incomplete"),
		PaymentSettings: &stripe.SubscriptionPaymentSettingsParams{
			PaymentMethodTypes:       stripe.StringSlice([]string{"card"}),
			SaveDefaultPaymentMethod: stripe.String("on_subscription"),
		},
	}
	params.Context = ctx
	params.AddMetadata("planId", planID)
	params.AddExpand("latest_invoice.confirmation_secret")
	params.AddExpand("latest_invoice.payments")

	sub, err := subscription.New(params)
	if err != nil {
		return nil, fmt.Errorf("create stripe subscription: %w", err)
	}
	return fromSubscription(sub), nil
}

// CancelSubscription cancels immediately.
func (c *Client) CancelSubscription(ctx context.Context, subscriptionID string) error {
	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx

	if _, err := subscription.Cancel(subscriptionID, params); err != nil {
		return fmt.Errorf("cancel stripe subscription: %w", err)
	}
	return nil
}

// ParseWebhook verifies the Stripe-Signature header and decodes the event.
func (c *Client) ParseWebhook(payload []byte, signature string) (*billing.Event, error) {
	if signature == "" {
		return nil, fmt.Errorf("%w: missing signature", billing.ErrInvalidSignature)
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, c.cfg.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", billing.ErrInvalidSignature, err)
	}
	return decodeEvent(event)
}

func fromSubscription(sub *stripe.Subscription) *billing.ProviderSubscription {
	ps := &billing.ProviderSubscription{ID: sub.ID}
	if sub.Customer != nil {
		ps.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		ps.PeriodStart = unixTime(item.CurrentPeriodStart)
		ps.PeriodEnd = unixTime(item.CurrentPeriodEnd)
	}

	inv := sub.LatestInvoice
	if inv == nil {
		return ps
	}
	ps.Amount = inv.AmountDue
	ps.Currency = string(inv.Currency)
	if inv.ConfirmationSecret != nil {
		ps.ClientSecret = inv.ConfirmationSecret.ClientSecret
	}
	if inv.Payments != nil {
		for _, p := range inv.Payments.Data {
			if p.Payment != nil && p.Payment.PaymentIntent != nil {
				ps.PaymentIntentID = p.Payment.PaymentIntent.ID
				break
			}
		}
	}
	return ps
}

func unixTime(sec int64) *time.Time {
	if sec == 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}
