package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dukerupert/stremify/internal/billing"
	"github.com/dukerupert/stremify/internal/model"
)

type fakeGateway struct {
	events map[string]*billing.Event
}

func (f *fakeGateway) Name() string { return "stripe" }

func (f *fakeGateway) CreateCustomer(_ context.Context, p billing.CustomerParams) (string, error) {
	return "cus_" + p.UserID, nil
}

func (f *fakeGateway) GetCustomer(_ context.Context, id string) (string, error) {
	return id, nil
}

func (f *fakeGateway) CreateSubscription(_ context.Context, customerID, _ string) (*billing.ProviderSubscription, error) {
	return &billing.ProviderSubscription{
		ID:              "sub_1",
		CustomerID:      customerID,
		ClientSecret:    "pi_1_secret_abc",
		PaymentIntentID: "pi_1",
		Amount:          999,
		Currency:        "usd",
	}, nil
}

func (f *fakeGateway) CancelSubscription(context.Context, string) error { return nil }

func (f *fakeGateway) ParseWebhook(payload []byte, signature string) (*billing.Event, error) {
	if signature != "valid" {
		return nil, billing.ErrInvalidSignature
	}
	return f.events[string(payload)], nil
}

func setupBilling(t *testing.T) (*SubscriptionHandler, *WebhookHandler, *fakeGateway, *testEnv) {
	t.Helper()
	env := setupEnv(t)
	gw := &fakeGateway{events: map[string]*billing.Event{}}
	svc := billing.NewService(env.store, gw, env.logger)
	return NewSubscriptionHandler(svc, "price_basic", env.logger), NewWebhookHandler(svc, env.logger), gw, env
}

func TestCreateSubscription(t *testing.T) {
	h, _, _, env := setupBilling(t)
	user := env.verifiedUser(t, "jane@x.com")

	rec := httptest.NewRecorder()
	h.Create(rec, asUser(httptest.NewRequest("POST", "/create-sub", nil), "sid", user))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	if got := decodeBody(t, rec)["clientSecret"]; got != "pi_1_secret_abc" {
		t.Errorf("clientSecret = %v, want %q", got, "pi_1_secret_abc")
	}

	sub, err := env.store.Subscriptions.GetLatestByUserID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("get subscription: %v", err)
	}
	if sub == nil || sub.PlanID != "price_basic" {
		t.Errorf("subscription = %+v, want plan price_basic", sub)
	}
}

func TestSubscriptionInfo(t *testing.T) {
	h, _, _, env := setupBilling(t)
	user := env.verifiedUser(t, "jane@x.com")

	rec := httptest.NewRecorder()
	h.Info(rec, asUser(httptest.NewRequest("GET", "/sub-info", nil), "sid", user))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("no subscription: status = %d, want %d", rec.Code, http.StatusNotFound)
	}

	h.Create(httptest.NewRecorder(), asUser(httptest.NewRequest("POST", "/create-sub", nil), "sid", user))

	rec = httptest.NewRecorder()
	h.Info(rec, asUser(httptest.NewRequest("GET", "/sub-info", nil), "sid", user))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	info := decodeBody(t, rec)["userSubInfo"].(map[string]any)
	if info["status"] != string(model.SubscriptionPending) {
		t.Errorf("status = %v, want %q", info["status"], model.SubscriptionPending)
	}
}

func TestCancelSubscription(t *testing.T) {
	h, _, _, env := setupBilling(t)
	user := env.verifiedUser(t, "jane@x.com")
	h.Create(httptest.NewRecorder(), asUser(httptest.NewRequest("POST", "/create-sub", nil), "sid", user))

	rec := httptest.NewRecorder()
	h.Cancel(rec, asUser(httptest.NewRequest("POST", "/cancel-sub", nil), "sid", user))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	info := decodeBody(t, rec)["userSubInfo"].(map[string]any)
	if info["status"] != string(model.SubscriptionCanceled) {
		t.Errorf("status = %v, want %q", info["status"], model.SubscriptionCanceled)
	}

	rec = httptest.NewRecorder()
	h.Cancel(rec, asUser(httptest.NewRequest("POST", "/cancel-sub", nil), "sid", user))
	if rec.Code != http.StatusConflict {
		t.Errorf("second cancel: status = %d, want %d", rec.Code, http.StatusConflict)
	}
}

func TestStripeWebhook(t *testing.T) {
	subs, hooks, gw, env := setupBilling(t)
	user := env.verifiedUser(t, "jane@x.com")
	subs.Create(httptest.NewRecorder(), asUser(httptest.NewRequest("POST", "/create-sub", nil), "sid", user))

	gw.events["paid"] = &billing.Event{
		ID:   "evt_1",
		Type: billing.EventInvoicePaymentSucceeded,
		Invoice: &billing.Invoice{
			ID:              "in_1",
			CustomerID:      "cus_" + user.ID,
			SubscriptionID:  "sub_1",
			PaymentIntentID: "pi_1",
			Amount:          999,
			Currency:        "usd",
		},
	}

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("POST", "/webhooks/stripe", strings.NewReader("paid"))
		req.Header.Set("Stripe-Signature", "valid")
		rec := httptest.NewRecorder()
		hooks.HandleStripeWebhook(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("delivery %d: status = %d, want %d: %s", i+1, rec.Code, http.StatusOK, rec.Body.String())
		}
		if got := decodeBody(t, rec)["received"]; got != true {
			t.Errorf("received = %v, want true", got)
		}
	}

	got, err := env.store.Users.GetByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.Role != model.RoleSubscriber {
		t.Errorf("role = %q, want %q", got.Role, model.RoleSubscriber)
	}
}

func TestStripeWebhookBadSignature(t *testing.T) {
	_, hooks, _, _ := setupBilling(t)

	req := httptest.NewRequest("POST", "/webhooks/stripe", strings.NewReader("{}"))
	req.Header.Set("Stripe-Signature", "forged")
	rec := httptest.NewRecorder()
	hooks.HandleStripeWebhook(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if body := decodeBody(t, rec); body["error"] != "invalid webhook signature" {
		t.Errorf("error = %v, want %q", body["error"], "invalid webhook signature")
	}
}
