// Package delivery is the boundary to the out-of-band message transports
// (SMS, WhatsApp, email). The portal core only depends on the Messenger
// contract; real transports live outside this repository.
package delivery

import (
	"context"
	"log/slog"
)

// Template identifiers understood by the external transports.
const (
	TemplateLoginCode          = "login_code"
	TemplatePasswordResetCode  = "password_reset_code"
	TemplateBookingConfirmed   = "booking_confirmed"
	TemplateBookingRescheduled = "booking_rescheduled"
	TemplateBookingCancelled   = "booking_cancelled"
)

// Message describes one outbound notification.
type Message struct {
	Destination string
	TemplateID  string
	Variables   map[string]string
}

// Messenger delivers messages over an out-of-band channel. Implementations
// must be safe for concurrent use.
type Messenger interface {
	Send(ctx context.Context, message Message) error
}

// LogMessenger records every send through the logger without delivering
// anything. It stands in for the external transports in development and in
// tests.
type LogMessenger struct {
	logger *slog.Logger
}

// NewLogMessenger constructs a LogMessenger.
func NewLogMessenger(logger *slog.Logger) *LogMessenger {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMessenger{logger: logger}
}

// Send logs the message and reports success.
func (m *LogMessenger) Send(ctx context.Context, message Message) error {
	m.logger.InfoContext(ctx, "message dispatched",
		"destination", message.Destination,
		"template_id", message.TemplateID,
	)
	return nil
}
