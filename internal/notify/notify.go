// Package notify is the boundary to the outbound notification service that
// delivers emails and text messages from templates. Delivery itself is an
// external concern; this package only submits requests.
package notify

import "context"

// Sender submits a templated notification for delivery.
type Sender interface {
	SendEmail(ctx context.Context, templateID, address string, personalisation map[string]string) error
	SendText(ctx context.Context, templateID, phoneNumber string, personalisation map[string]string) error
}

// Noop discards notifications. Used when no notify endpoint is configured,
// e.g. local development.
type Noop struct{}

func (Noop) SendEmail(context.Context, string, string, map[string]string) error { return nil }
func (Noop) SendText(context.Context, string, string, map[string]string) error  { return nil }
