package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/gofrs/uuid"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/batikstore/backend/internal/kafka"
)

// StreamChannel publishes versioned event envelopes to the notification
// topic; the WhatsApp gateway consumes them downstream. Publishing is
// fire-and-forget through the buffered producer.
type StreamChannel struct {
	producer *kafkax.Producer
	service  string
}

func NewStreamChannel(producer *kafkax.Producer, service string) *StreamChannel {
	return &StreamChannel{producer: producer, service: service}
}

func (c *StreamChannel) Name() string { return "event-stream" }

func (c *StreamChannel) Send(ctx context.Context, msg Message) error {
	eventID, err := uuid.NewV4()
	if err != nil {
		return fmt.Errorf("stream: failed to generate event id: %w", err)
	}

	ev := Envelope{
		EventID:       eventID.String(),
		EventType:     msg.Event,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      c.service,
		CorrelationID: strconv.FormatInt(msg.OrderID, 10),
		Payload:       msg.Payload,
	}

	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("stream: failed to marshal envelope: %w", err)
	}

	// Key by order id so every event for one order lands on one partition.
	c.producer.Publish([]byte(ev.CorrelationID), value,
		kafkago.Header{Key: "x-event-type", Value: []byte(msg.Event)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)

	return nil
}
