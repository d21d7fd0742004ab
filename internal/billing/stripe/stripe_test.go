package stripe

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/dukerupert/stremify/internal/billing"
	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

const testSecret = "whsec_test"

func sign(t *testing.T, payload string) string {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    testSecret,
		Timestamp: time.Now(),
	})
	return signed.Header
}

func TestParseWebhookInvoiceBasil(t *testing.T) {
	c := &Client{cfg: Config{WebhookSecret: testSecret}}
	payload := `{
		"id": "evt_1",
		"object": "event",
		"type": "invoice.payment_succeeded",
		"data": {"object": {
			"id": "in_1",
			"object": "invoice",
			"customer": "cus_1",
			"amount_due": 999,
			"amount_paid": 999,
			"currency": "usd",
			"parent": {"subscription_details": {"subscription": "sub_1"}},
			"payments": {"data": [{"payment": {"type": "payment_intent", "payment_intent": "pi_1"}}]}
		}}
	}`

	ev, err := c.ParseWebhook([]byte(payload), sign(t, payload))
	if err != nil {
		t.Fatalf("parse webhook: %v", err)
	}
	if ev.ID != "evt_1" || ev.Type != billing.EventInvoicePaymentSucceeded {
		t.Errorf("event = %+v", ev)
	}
	inv := ev.Invoice
	if inv == nil {
		t.Fatal("expected invoice")
	}
	if inv.SubscriptionID != "sub_1" {
		t.Errorf("subscription = %q, want %q", inv.SubscriptionID, "sub_1")
	}
	if inv.PaymentIntentID != "pi_1" {
		t.Errorf("payment intent = %q, want %q", inv.PaymentIntentID, "pi_1")
	}
	if inv.CustomerID != "cus_1" || inv.Amount != 999 || inv.Currency != "usd" {
		t.Errorf("invoice = %+v", inv)
	}
}

func TestParseWebhookInvoiceLegacy(t *testing.T) {
	c := &Client{cfg: Config{WebhookSecret: testSecret}}
	payload := `{
		"id": "evt_2",
		"type": "invoice.payment_failed",
		"data": {"object": {
			"id": "in_2",
			"customer": {"id": "cus_2", "object": "customer"},
			"amount_due": 500,
			"currency": "eur",
			"subscription": "sub_2",
			"payment_intent": "pi_2"
		}}
	}`

	ev, err := c.ParseWebhook([]byte(payload), sign(t, payload))
	if err != nil {
		t.Fatalf("parse webhook: %v", err)
	}
	inv := ev.Invoice
	if inv.SubscriptionID != "sub_2" || inv.PaymentIntentID != "pi_2" || inv.CustomerID != "cus_2" {
		t.Errorf("invoice = %+v", inv)
	}
	if inv.Amount != 500 {
		t.Errorf("amount = %d, want 500", inv.Amount)
	}
}

func TestParseWebhookSubscriptionDeleted(t *testing.T) {
	c := &Client{cfg: Config{WebhookSecret: testSecret}}
	payload := `{"id":"evt_3","type":"customer.subscription.deleted","data":{"object":{"id":"sub_3","object":"subscription"}}}`

	ev, err := c.ParseWebhook([]byte(payload), sign(t, payload))
	if err != nil {
		t.Fatalf("parse webhook: %v", err)
	}
	if ev.SubscriptionID != "sub_3" {
		t.Errorf("subscription = %q, want %q", ev.SubscriptionID, "sub_3")
	}
	if ev.Invoice != nil {
		t.Error("subscription event should not carry an invoice")
	}
}

func TestParseWebhookRejectsSignature(t *testing.T) {
	c := &Client{cfg: Config{WebhookSecret: testSecret}}
	payload := `{"id":"evt_1","type":"invoice.payment_succeeded","data":{"object":{"id":"in_1"}}}`

	if _, err := c.ParseWebhook([]byte(payload), ""); !errors.Is(err, billing.ErrInvalidSignature) {
		t.Errorf("missing signature err = %v, want ErrInvalidSignature", err)
	}

	other := &Client{cfg: Config{WebhookSecret: "whsec_other"}}
	if _, err := other.ParseWebhook([]byte(payload), sign(t, payload)); !errors.Is(err, billing.ErrInvalidSignature) {
		t.Errorf("wrong secret err = %v, want ErrInvalidSignature", err)
	}

	tampered := `{"id":"evt_1","type":"invoice.payment_succeeded","data":{"object":{"id":"in_2"}}}`
	if _, err := c.ParseWebhook([]byte(tampered), sign(t, payload)); !errors.Is(err, billing.ErrInvalidSignature) {
		t.Errorf("tampered payload err = %v, want ErrInvalidSignature", err)
	}
}

func TestFromSubscription(t *testing.T) {
	raw := `{
		"id": "sub_1",
		"object": "subscription",
		"customer": "cus_1",
		"items": {"object": "list", "data": [{"id": "si_1", "current_period_start": 1700000000, "current_period_end": 1702592000}]},
		"latest_invoice": {
			"id": "in_1",
			"object": "invoice",
			"amount_due": 999,
			"currency": "usd",
			"confirmation_secret": {"client_secret": "pi_1_secret_abc", "type": "payment_intent"},
			"payments": {"object": "list", "data": [{"id": "inpay_1", "payment": {"type": "payment_intent", "payment_intent": "pi_1"}}]}
		}
	}`
	var sub stripe.Subscription
	if err := json.Unmarshal([]byte(raw), &sub); err != nil {
		t.Fatalf("unmarshal subscription: %v", err)
	}

	ps := fromSubscription(&sub)
	if ps.ID != "sub_1" || ps.CustomerID != "cus_1" {
		t.Errorf("ids = %q, %q", ps.ID, ps.CustomerID)
	}
	if ps.ClientSecret != "pi_1_secret_abc" {
		t.Errorf("client secret = %q", ps.ClientSecret)
	}
	if ps.PaymentIntentID != "pi_1" {
		t.Errorf("payment intent = %q, want %q", ps.PaymentIntentID, "pi_1")
	}
	if ps.Amount != 999 || ps.Currency != "usd" {
		t.Errorf("amount = %d %q", ps.Amount, ps.Currency)
	}
	if ps.PeriodStart == nil || ps.PeriodStart.Unix() != 1700000000 {
		t.Errorf("period start = %v", ps.PeriodStart)
	}
	if ps.PeriodEnd == nil || ps.PeriodEnd.Unix() != 1702592000 {
		t.Errorf("period end = %v", ps.PeriodEnd)
	}
}

func TestExpandableID(t *testing.T) {
	cases := map[string]string{
		`"cus_1"`:        "cus_1",
		`{"id":"cus_2"}`: "cus_2",
		`null`:           "",
	}
	for in, want := range cases {
		var e expandableID
		if err := json.Unmarshal([]byte(in), &e); err != nil {
			t.Fatalf("unmarshal %s: %v", in, err)
		}
		if string(e) != want {
			t.Errorf("%s -> %q, want %q", in, e, want)
		}
	}
}

func TestClientPlanID(t *testing.T) {
	c := NewClient(Config{SecretKey: "sk_test_x", PlanID: "price_123"})
	if got := c.PlanID(); got != "price_123" {
		t.Errorf("PlanID() = %q, want %q", got, "price_123")
	}
}
