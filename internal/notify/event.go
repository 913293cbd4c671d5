package notify

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type Event string

const (
	EventOrderCreated       Event = "order_created"
	EventOrderStatusChanged Event = "order_status_changed"
	EventPaymentUploaded    Event = "payment_uploaded"
	EventPaymentVerified    Event = "payment_verified"
	EventPaymentRejected    Event = "payment_rejected"
)

// Message is one queued notification intent, enqueued in the same transaction
// as the state change it describes.
type Message struct {
	ID        int64           `json:"id"`
	Event     Event           `json:"event"`
	OrderID   int64           `json:"order_id"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// OrderSnapshot carries the order fields the channels need to compose text.
type OrderSnapshot struct {
	OrderID       int64           `json:"order_id"`
	CustomerName  string          `json:"customer_name"`
	CustomerEmail string          `json:"customer_email"`
	CustomerPhone string          `json:"customer_phone"`
	Total         decimal.Decimal `json:"total"`
	Status        string          `json:"status"`
}

type PaymentSnapshot struct {
	PaymentID       int64           `json:"payment_id"`
	Method          string          `json:"method"`
	Amount          decimal.Decimal `json:"amount"`
	Status          string          `json:"status"`
	ProofRef        string          `json:"proof_ref,omitempty"`
	RejectionReason string          `json:"rejection_reason,omitempty"`
}

// Payload is the envelope body for every event type; Payment is nil for
// order-only events.
type Payload struct {
	Order   OrderSnapshot    `json:"order"`
	Payment *PaymentSnapshot `json:"payment,omitempty"`
}

// Envelope is the versioned wire format published to the event stream.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     Event           `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id"`
	Payload       json.RawMessage `json:"payload"`
}
