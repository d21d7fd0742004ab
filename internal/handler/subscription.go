package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/dukerupert/stremify/internal/auth"
	"github.com/dukerupert/stremify/internal/billing"
)

const maxWebhookBody = 65536

type SubscriptionHandler struct {
	billing *billing.Service
	planID  string
	logger  *slog.Logger
}

func NewSubscriptionHandler(svc *billing.Service, planID string, logger *slog.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{billing: svc, planID: planID, logger: logger}
}

// Create starts a subscription to the configured plan and returns the
// client secret the browser uses to confirm the first payment.
func (h *SubscriptionHandler) Create(w http.ResponseWriter, r *http.Request) {
	res, err := h.billing.CreateSubscription(r.Context(), h.planID, auth.CurrentUser(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *SubscriptionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	sub, err := h.billing.CancelSubscription(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "subscription canceled", "userSubInfo": sub})
}

func (h *SubscriptionHandler) Info(w http.ResponseWriter, r *http.Request) {
	sub, err := h.billing.SubscriptionInfo(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"userSubInfo": sub})
}

type WebhookHandler struct {
	billing *billing.Service
	logger  *slog.Logger
}

func NewWebhookHandler(svc *billing.Service, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{billing: svc, logger: logger}
}

func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "read body"})
		return
	}

	if err := h.billing.HandleWebhook(r.Context(), body, r.Header.Get("Stripe-Signature")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
