package store

import (
	"context"
	"fmt"
)

type WebhookEventStore struct {
	db DBTX
}

func NewWebhookEventStore(db DBTX) *WebhookEventStore {
	return &WebhookEventStore{db: db}
}

// Record marks an event as processed. It reports false when the event was
// already recorded.
func (s *WebhookEventStore) Record(ctx context.Context, provider, eventID, eventType string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO webhook_events (provider, event_id, type) VALUES (?, ?, ?)
		 ON CONFLICT (provider, event_id) DO NOTHING`,
		provider, eventID, eventType,
	)
	if err != nil {
		return false, fmt.Errorf("record webhook event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}
