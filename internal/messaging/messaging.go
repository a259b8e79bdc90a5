// Package messaging provides SMS delivery for loan status updates.
//
// The default sender is a no-op that only logs; the Twilio sender is used
// when credentials are configured.
package messaging

import (
	"context"
	"log/slog"
)

// Sender delivers the loan status text message requested during a call.
type Sender interface {
	SendStatusSMS(ctx context.Context, to, status string) error
}

// NoopSender logs the would-be SMS and reports success. It keeps local runs
// and tests free of external calls.
type NoopSender struct{}

// NewNoopSender creates a no-op SMS sender.
func NewNoopSender() *NoopSender {
	return &NoopSender{}
}

// SendStatusSMS logs the message instead of sending it.
func (s *NoopSender) SendStatusSMS(ctx context.Context, to, status string) error {
	slog.Info("NoopSender.SendStatusSMS: SMS delivery skipped (no sender configured)", "to", to, "status", status)
	return nil
}

var _ Sender = (*NoopSender)(nil)
