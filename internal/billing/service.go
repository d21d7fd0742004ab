package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/stremify/internal/apperr"
	"github.com/dukerupert/stremify/internal/model"
	"github.com/dukerupert/stremify/internal/store"
)

const compensateTimeout = 10 * time.Second

type Service struct {
	store   *store.Store
	gateway Gateway
	logger  *slog.Logger
	now     func() time.Time
}

func NewService(st *store.Store, gateway Gateway, logger *slog.Logger) *Service {
	return &Service{
		store:   st,
		gateway: gateway,
		logger:  logger,
		now:     time.Now,
	}
}

// CreateResult carries what the client needs to confirm the first payment.
type CreateResult struct {
	SubscriptionID string `json:"subscriptionId"`
	ClientSecret   string `json:"clientSecret"`
}

// CreateSubscription provisions a subscription to planID for user. The
// user's provider customer is reused when one exists. If a local write fails
// after the provider subscription was created, the provider subscription is
// canceled again.
func (s *Service) CreateSubscription(ctx context.Context, planID string, user *model.SessionUser) (*CreateResult, error) {
	current, err := s.store.Subscriptions.GetLatestByUserID(ctx, user.ID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if current != nil && current.Status == model.SubscriptionActive {
		return nil, apperr.Conflict("subscription already active")
	}

	var customerID string
	if current != nil {
		customerID, err = s.gateway.GetCustomer(ctx, current.CustomerID)
		if err != nil {
			s.logger.Error("retrieve customer", "user_id", user.ID, "customer_id", current.CustomerID, "error", err)
			return nil, apperr.External("Failed to create subscription", err)
		}
	} else {
		customerID, err = s.gateway.CreateCustomer(ctx, CustomerParams{UserID: user.ID, Email: user.Email, Name: user.Name})
		if err != nil {
			s.logger.Error("create customer", "user_id", user.ID, "error", err)
			return nil, apperr.External("Failed to create subscription", err)
		}
		s.logger.Info("customer created", "user_id", user.ID, "customer_id", customerID)
	}

	if current == nil || current.Status == model.SubscriptionCanceled {
		current, err = s.store.Subscriptions.Create(ctx, user.ID, customerID, planID, model.SubscriptionPending)
		if err != nil {
			return nil, apperr.Internal(err)
		}
	}

	ps, err := s.gateway.CreateSubscription(ctx, customerID, planID)
	if err != nil {
		s.logger.Error("create provider subscription", "user_id", user.ID, "customer_id", customerID, "error", err)
		return nil, apperr.External("Failed to create subscription", err)
	}

	if ps.ClientSecret == "" {
		s.compensate(ctx, ps.ID)
		return nil, apperr.External("Failed to create subscription", errors.New("provider returned no client secret"))
	}

	err = s.store.WithTx(ctx, func(tx *store.Store) error {
		if err := tx.Subscriptions.Provision(ctx, current.ID, ps.ID, planID, model.SubscriptionPending, ps.PeriodStart, ps.PeriodEnd); err != nil {
			return err
		}
		provider, err := tx.Providers.GetByName(ctx, s.gateway.Name())
		if err != nil {
			return err
		}
		if provider == nil {
			return fmt.Errorf("payment provider %q not registered", s.gateway.Name())
		}
		_, err = tx.Payments.Create(ctx, &model.Payment{
			SubscriptionID:         current.ID,
			ProviderID:             provider.ID,
			Amount:                 ps.Amount,
			Currency:               ps.Currency,
			Status:                 model.PaymentPending,
			ProviderCustomerID:     &customerID,
			ProviderPaymentID:      optional(ps.PaymentIntentID),
			ProviderSubscriptionID: &ps.ID,
		})
		return err
	})
	if err != nil {
		s.logger.Error("record subscription", "user_id", user.ID, "provider_subscription_id", ps.ID, "error", err)
		s.compensate(ctx, ps.ID)
		return nil, apperr.External("Failed to create subscription", err)
	}

	s.logger.Info("subscription created", "user_id", user.ID, "subscription_id", current.ID, "provider_subscription_id", ps.ID)
	return &CreateResult{SubscriptionID: ps.ID, ClientSecret: ps.ClientSecret}, nil
}

// compensate cancels a provider subscription that has no local record. It
// runs detached from ctx so a timed-out request can still clean up.
func (s *Service) compensate(ctx context.Context, providerSubID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensateTimeout)
	defer cancel()
	if err := s.gateway.CancelSubscription(ctx, providerSubID); err != nil {
		s.logger.Error("cancel orphaned provider subscription", "provider_subscription_id", providerSubID, "error", err)
		return
	}
	s.logger.Warn("canceled orphaned provider subscription", "provider_subscription_id", providerSubID)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// CancelSubscription cancels the user's current subscription with the
// provider and marks it canceled locally.
func (s *Service) CancelSubscription(ctx context.Context, userID string) (*model.Subscription, error) {
	sub, err := s.store.Subscriptions.GetLatestByUserID(ctx, userID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if sub == nil {
		return nil, apperr.NotFound("subscription not found")
	}
	if sub.Status == model.SubscriptionCanceled {
		return nil, apperr.Conflict("subscription already canceled")
	}

	if sub.ProviderSubscriptionID != nil {
		if err := s.gateway.CancelSubscription(ctx, *sub.ProviderSubscriptionID); err != nil {
			s.logger.Error("cancel provider subscription", "subscription_id", sub.ID, "error", err)
			return nil, apperr.External("Failed to cancel subscription", err)
		}
	}

	if err := s.store.Subscriptions.MarkCanceled(ctx, sub.ID, s.now()); err != nil {
		return nil, apperr.Internal(err)
	}
	s.logger.Info("subscription canceled", "user_id", userID, "subscription_id", sub.ID)

	sub, err = s.store.Subscriptions.GetByID(ctx, sub.ID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return sub, nil
}

// SubscriptionInfo returns the user's current subscription.
func (s *Service) SubscriptionInfo(ctx context.Context, userID string) (*model.Subscription, error) {
	sub, err := s.store.Subscriptions.GetLatestByUserID(ctx, userID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if sub == nil {
		return nil, apperr.NotFound("subscription not found")
	}
	return sub, nil
}

// HandleWebhook verifies and applies a provider callback.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.gateway.ParseWebhook(payload, signature)
	if err != nil {
		s.logger.Warn("rejected webhook", "error", err)
		return &apperr.Error{Kind: apperr.KindValidation, Message: "invalid webhook signature", Err: err}
	}
	if err := s.Reconcile(ctx, event); err != nil {
		s.logger.Error("reconcile webhook", "event_id", event.ID, "type", event.Type, "error", err)
		return apperr.Internal(err)
	}
	return nil
}

// Reconcile applies a verified event. Each state change is recorded with
// the event id in the same transaction, so a redelivered event is a no-op.
func (s *Service) Reconcile(ctx context.Context, event *Event) error {
	switch event.Type {
	case EventInvoicePaymentSucceeded:
		return s.applyInvoice(ctx, event, model.PaymentSucceeded, model.SubscriptionActive)
	case EventInvoicePaymentFailed:
		return s.applyInvoice(ctx, event, model.PaymentFailed, model.SubscriptionPastDue)
	case EventSubscriptionDeleted:
		return s.applyDeleted(ctx, event)
	case EventInvoicePaymentActionRequired, EventCustomerUpdated, EventPaymentIntentRequiresAction:
		s.logger.Info("webhook acknowledged", "event_id", event.ID, "type", event.Type, "object_id", event.ObjectID)
		return nil
	default:
		s.logger.Debug("unhandled webhook event", "event_id", event.ID, "type", event.Type)
		return nil
	}
}

func (s *Service) applyInvoice(ctx context.Context, event *Event, paymentStatus string, subStatus model.SubscriptionStatus) error {
	inv := event.Invoice
	if inv == nil {
		return fmt.Errorf("event %s carries no invoice", event.ID)
	}

	return s.store.WithTx(ctx, func(tx *store.Store) error {
		fresh, err := tx.WebhookEvents.Record(ctx, s.gateway.Name(), event.ID, string(event.Type))
		if err != nil {
			return err
		}
		if !fresh {
			s.logger.Info("duplicate webhook ignored", "event_id", event.ID)
			return nil
		}

		payment, err := s.findPayment(ctx, tx, inv)
		if err != nil {
			return err
		}
		if err := tx.Payments.SetOutcome(ctx, payment.ID, paymentStatus, optional(inv.PaymentIntentID)); err != nil {
			return err
		}

		sub, err := tx.Subscriptions.GetByID(ctx, payment.SubscriptionID)
		if err != nil {
			return err
		}
		if sub == nil {
			return fmt.Errorf("subscription %s for payment %s: %w", payment.SubscriptionID, payment.ID, ErrPaymentNotFound)
		}
		if err := tx.Subscriptions.UpdateStatus(ctx, sub.ID, subStatus); err != nil {
			return err
		}

		if paymentStatus == model.PaymentSucceeded && subStatus == model.SubscriptionActive {
			promoted, err := tx.Users.PromoteToSubscriber(ctx, sub.UserID)
			if err != nil {
				return err
			}
			if promoted {
				s.logger.Info("user promoted to subscriber", "user_id", sub.UserID)
			}
		}

		s.logger.Info("invoice reconciled",
			"event_id", event.ID,
			"invoice_id", inv.ID,
			"payment_id", payment.ID,
			"payment_status", paymentStatus,
			"subscription_status", subStatus,
		)
		return nil
	})
}

// findPayment resolves the local payment for an invoice: by payment intent,
// then the newest pending payment of the provider subscription, then a new
// renewal payment for that subscription.
func (s *Service) findPayment(ctx context.Context, tx *store.Store, inv *Invoice) (*model.Payment, error) {
	if inv.PaymentIntentID != "" {
		p, err := tx.Payments.GetByProviderPaymentID(ctx, inv.PaymentIntentID)
		if err != nil || p != nil {
			return p, err
		}
	}
	if inv.SubscriptionID == "" {
		return nil, ErrPaymentNotFound
	}

	p, err := tx.Payments.GetLatestPendingByProviderSubscriptionID(ctx, inv.SubscriptionID)
	if err != nil || p != nil {
		return p, err
	}

	sub, err := tx.Subscriptions.GetByProviderSubscriptionID(ctx, inv.SubscriptionID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, ErrPaymentNotFound
	}
	provider, err := tx.Providers.GetByName(ctx, s.gateway.Name())
	if err != nil {
		return nil, err
	}
	if provider == nil {
		return nil, fmt.Errorf("payment provider %q not registered", s.gateway.Name())
	}
	return tx.Payments.Create(ctx, &model.Payment{
		SubscriptionID:         sub.ID,
		ProviderID:             provider.ID,
		Amount:                 inv.Amount,
		Currency:               inv.Currency,
		Status:                 model.PaymentPending,
		ProviderCustomerID:     optional(inv.CustomerID),
		ProviderPaymentID:      optional(inv.PaymentIntentID),
		ProviderSubscriptionID: optional(inv.SubscriptionID),
	})
}

func (s *Service) applyDeleted(ctx context.Context, event *Event) error {
	return s.store.WithTx(ctx, func(tx *store.Store) error {
		fresh, err := tx.WebhookEvents.Record(ctx, s.gateway.Name(), event.ID, string(event.Type))
		if err != nil || !fresh {
			return err
		}

		sub, err := tx.Subscriptions.GetByProviderSubscriptionID(ctx, event.SubscriptionID)
		if err != nil {
			return err
		}
		if sub == nil {
			s.logger.Warn("deleted subscription not found", "provider_subscription_id", event.SubscriptionID)
			return nil
		}
		if err := tx.Subscriptions.MarkCanceled(ctx, sub.ID, s.now()); err != nil {
			return err
		}
		s.logger.Info("subscription canceled by provider", "subscription_id", sub.ID, "provider_subscription_id", event.SubscriptionID)
		return nil
	})
}
