package events

import (
	"context"

	"github.com/noah-isme/storefront-checkout/internal/db"
)

// PGStore writes events to the domain_events table.
type PGStore struct {
	DB db.DBTX
}

// InsertEvent implements EventStore.
func (s PGStore) InsertEvent(ctx context.Context, topic, aggregateID string, payload []byte) (Event, error) {
	const q = `INSERT INTO domain_events (topic, aggregate_id, payload)
VALUES ($1, $2, $3)
RETURNING id::text, topic, aggregate_id::text, payload, occurred_at`
	var ev Event
	err := s.DB.QueryRow(ctx, q, topic, aggregateID, payload).
		Scan(&ev.ID, &ev.Topic, &ev.AggregateID, &ev.Payload, &ev.OccurredAt)
	return ev, err
}
