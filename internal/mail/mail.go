// Package mail sends account emails (verification and password reset).
//
// Messages are rendered from embedded templates, handed to a Dispatcher and
// delivered in the background by a Sender. Delivery never blocks or fails the
// HTTP request that triggered it.
package mail

import (
	"context"
	"errors"
	"log/slog"
)

// ErrQueueFull is returned when the dispatcher cannot accept another message.
var ErrQueueFull = errors.New("mail: queue full")

// Message is one outgoing email.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers a single message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender writes messages to the log instead of sending them. Used when no
// SMTP host is configured.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) Send(_ context.Context, msg Message) error {
	s.Logger.Info("email not sent (no SMTP configured)",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("body", msg.Text),
	)
	return nil
}
