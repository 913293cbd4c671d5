package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
)

// EmailSender delivers a composed message; the actual SMTP transport lives
// behind this interface.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// EmailChannel turns outbox messages into customer and admin emails.
type EmailChannel struct {
	sender   EmailSender
	settings *Settings
}

func NewEmailChannel(sender EmailSender, settings *Settings) *EmailChannel {
	return &EmailChannel{sender: sender, settings: settings}
}

func (c *EmailChannel) Name() string { return "email" }

func (c *EmailChannel) Send(ctx context.Context, msg Message) error {
	if !c.settings.GetBool(ctx, "email_notifications", "EMAIL_NOTIFICATIONS", true) {
		log.Debug().Int64("message_id", msg.ID).Msg("email: notifications disabled, skipping")
		return nil
	}

	var p Payload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		return fmt.Errorf("email: failed to decode payload for message %d: %w", msg.ID, err)
	}

	shopName := c.settings.Get(ctx, "shop_name", "SHOP_NAME")
	if shopName == "" {
		shopName = "Batik Store"
	}

	subject, body := composeEmail(shopName, msg.Event, p)

	// Customer and admin copies are independent sends; one failing must not
	// suppress the other.
	var firstErr error
	if to := p.Order.CustomerEmail; to != "" {
		if err := c.sender.Send(ctx, to, subject, body); err != nil {
			firstErr = err
		}
	}
	if adminEmail := c.settings.Get(ctx, "admin_email", "ADMIN_EMAIL"); adminEmail != "" && notifiesAdmin(msg.Event) {
		if err := c.sender.Send(ctx, adminEmail, subject, body); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

func notifiesAdmin(event Event) bool {
	return event == EventOrderCreated || event == EventPaymentUploaded
}

func composeEmail(shopName string, event Event, p Payload) (subject, body string) {
	switch event {
	case EventOrderCreated:
		subject = fmt.Sprintf("[%s] Order #%d received", shopName, p.Order.OrderID)
		body = fmt.Sprintf("Hi %s, we received your order #%d with a total of %s. Please upload your payment proof to proceed.",
			p.Order.CustomerName, p.Order.OrderID, p.Order.Total.StringFixed(2))
	case EventOrderStatusChanged:
		subject = fmt.Sprintf("[%s] Order #%d is now %s", shopName, p.Order.OrderID, p.Order.Status)
		body = fmt.Sprintf("Hi %s, the status of your order #%d changed to %s.",
			p.Order.CustomerName, p.Order.OrderID, p.Order.Status)
	case EventPaymentUploaded:
		subject = fmt.Sprintf("[%s] Payment proof for order #%d received", shopName, p.Order.OrderID)
		body = fmt.Sprintf("Hi %s, we received your payment proof for order #%d. It is waiting for verification.",
			p.Order.CustomerName, p.Order.OrderID)
	case EventPaymentVerified:
		subject = fmt.Sprintf("[%s] Payment for order #%d verified", shopName, p.Order.OrderID)
		body = fmt.Sprintf("Hi %s, your payment for order #%d was verified. We are processing your order.",
			p.Order.CustomerName, p.Order.OrderID)
	case EventPaymentRejected:
		reason := ""
		if p.Payment != nil {
			reason = p.Payment.RejectionReason
		}
		subject = fmt.Sprintf("[%s] Payment for order #%d rejected", shopName, p.Order.OrderID)
		body = fmt.Sprintf("Hi %s, your payment proof for order #%d was rejected: %s. Please upload a new proof.",
			p.Order.CustomerName, p.Order.OrderID, reason)
	default:
		subject = fmt.Sprintf("[%s] Update for order #%d", shopName, p.Order.OrderID)
		body = fmt.Sprintf("Hi %s, there is an update for your order #%d.", p.Order.CustomerName, p.Order.OrderID)
	}
	return subject, body
}

// LogSender is the no-transport EmailSender used when SMTP is not configured.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, to, subject, body string) error {
	log.Info().Str("to", to).Str("subject", subject).Msg("email: delivery skipped (no SMTP transport configured)")
	return nil
}
