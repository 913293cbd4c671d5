package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Channel is one independent delivery transport. A failing channel must not
// block the others, and never the state change that triggered the message.
type Channel interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// Source is where the dispatcher pulls queued messages from.
type Source interface {
	NextUnsent(ctx context.Context) (*Message, error)
	MarkSent(ctx context.Context, id int64) error
}

// Dispatcher drains the outbox in the background and fans each message out to
// every channel. Delivery is best effort: channel errors are logged and the
// message is still marked sent, matching the single-attempt contract.
type Dispatcher struct {
	source   Source
	channels []Channel
	interval time.Duration
	kick     chan struct{}
	done     chan struct{}
}

func NewDispatcher(source Source, interval time.Duration, channels ...Channel) *Dispatcher {
	return &Dispatcher{
		source:   source,
		channels: channels,
		interval: interval,
		kick:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

func (d *Dispatcher) Run(ctx context.Context) {
	go func() {
		defer close(d.done)
		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				d.drain(ctx)
			case <-d.kick:
				d.drain(ctx)
			}
		}
	}()
}

// Wake nudges the drain loop right after a commit, so the caller does not pay
// for delivery latency but the customer still gets the message promptly.
func (d *Dispatcher) Wake() {
	select {
	case d.kick <- struct{}{}:
	default:
	}
}

// WaitStopped blocks until the drain loop has exited.
func (d *Dispatcher) WaitStopped() { <-d.done }

func (d *Dispatcher) drain(ctx context.Context) {
	for {
		msg, err := d.source.NextUnsent(ctx)
		if err != nil {
			log.Error().Err(err).Msg("dispatcher: failed to fetch next message")
			return
		}
		if msg == nil {
			return
		}

		for _, ch := range d.channels {
			if err := ch.Send(ctx, *msg); err != nil {
				log.Error().Err(err).
					Str("channel", ch.Name()).
					Str("event", string(msg.Event)).
					Int64("order_id", msg.OrderID).
					Msg("dispatcher: channel delivery failed")
			}
		}

		if err := d.source.MarkSent(ctx, msg.ID); err != nil {
			log.Error().Err(err).Int64("message_id", msg.ID).Msg("dispatcher: failed to mark message sent")
			return
		}
	}
}
