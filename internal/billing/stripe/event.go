package stripe

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dukerupert/stremify/internal/billing"
	stripe "github.com/stripe/stripe-go/v82"
)

// expandableID accepts either an object id or an expanded object.
type expandableID string

func (e *expandableID) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*e = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*e = expandableID(s)
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	*e = expandableID(obj.ID)
	return nil
}

// eventObject holds the invoice and subscription fields the reconciler
// needs. Invoices from accounts pinned to older API versions carry
// subscription and payment_intent at the top level; newer ones nest them
// under parent and payments.
type eventObject struct {
	ID            string       `json:"id"`
	Customer      expandableID `json:"customer"`
	AmountDue     int64        `json:"amount_due"`
	AmountPaid    int64        `json:"amount_paid"`
	Currency      string       `json:"currency"`
	Subscription  expandableID `json:"subscription"`
	PaymentIntent expandableID `json:"payment_intent"`
	Parent        *struct {
		SubscriptionDetails *struct {
			Subscription expandableID `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
	Payments *struct {
		Data []struct {
			Payment struct {
				PaymentIntent expandableID `json:"payment_intent"`
			} `json:"payment"`
		} `json:"data"`
	} `json:"payments"`
}

func (o *eventObject) invoice() *billing.Invoice {
	inv := &billing.Invoice{
		ID:              o.ID,
		CustomerID:      string(o.Customer),
		SubscriptionID:  string(o.Subscription),
		PaymentIntentID: string(o.PaymentIntent),
		Amount:          o.AmountPaid,
		Currency:        o.Currency,
	}
	if inv.Amount == 0 {
		inv.Amount = o.AmountDue
	}
	if inv.SubscriptionID == "" && o.Parent != nil && o.Parent.SubscriptionDetails != nil {
		inv.SubscriptionID = string(o.Parent.SubscriptionDetails.Subscription)
	}
	if inv.PaymentIntentID == "" && o.Payments != nil {
		for _, p := range o.Payments.Data {
			if p.Payment.PaymentIntent != "" {
				inv.PaymentIntentID = string(p.Payment.PaymentIntent)
				break
			}
		}
	}
	return inv
}

func decodeEvent(event stripe.Event) (*billing.Event, error) {
	ev := &billing.Event{ID: event.ID, Type: billing.EventType(event.Type)}
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return ev, nil
	}

	var obj eventObject
	if err := json.Unmarshal(event.Data.Raw, &obj); err != nil {
		return nil, fmt.Errorf("decode %s object: %w", event.Type, err)
	}
	ev.ObjectID = obj.ID

	switch {
	case strings.HasPrefix(string(event.Type), "invoice."):
		ev.Invoice = obj.invoice()
	case ev.Type == billing.EventSubscriptionDeleted:
		ev.SubscriptionID = obj.ID
	}
	return ev, nil
}
