package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Outbox persists notification intents. Enqueue joins the caller's
// transaction, so an intent exists exactly when the state change it announces
// committed; a crash between commit and delivery is at worst a delayed
// notification, never a lost one.
type Outbox struct {
	db *pgxpool.Pool
}

func NewOutbox(db *pgxpool.Pool) *Outbox {
	return &Outbox{db: db}
}

func (o *Outbox) Enqueue(ctx context.Context, tx pgx.Tx, event Event, orderID int64, payload Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("outbox: failed to marshal payload: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO notification_outbox (event, order_id, payload)
		VALUES ($1, $2, $3)
	`, string(event), orderID, body)
	if err != nil {
		return fmt.Errorf("outbox: failed to enqueue %s for order %d: %w", event, orderID, err)
	}

	return nil
}

// NextUnsent returns the oldest undelivered message, or nil when the queue is
// empty.
func (o *Outbox) NextUnsent(ctx context.Context) (*Message, error) {
	var m Message
	err := o.db.QueryRow(ctx, `
		SELECT id, event, order_id, payload, created_at
		FROM notification_outbox
		WHERE sent_at IS NULL
		ORDER BY id
		LIMIT 1
	`).Scan(&m.ID, &m.Event, &m.OrderID, &m.Payload, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("outbox: failed to select next unsent message: %w", err)
	}

	return &m, nil
}

func (o *Outbox) MarkSent(ctx context.Context, id int64) error {
	_, err := o.db.Exec(ctx, `
		UPDATE notification_outbox SET sent_at = NOW() WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("outbox: failed to mark message %d sent: %w", id, err)
	}
	return nil
}
