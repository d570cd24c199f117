// Package gsm dispatches protocol commands to GSM relay units: it
// validates inputs, encodes the SMS body, hands it to the platform's
// messaging capability through the SMSSender port, and records the outcome
// as a log entry.
package gsm

import (
	"context"

	"github.com/rs/zerolog"
)

// SMSSender is the outbound messaging port. The actual radio transport is
// the host platform's job; implementations deliver one SMS body to one
// recipient and report whether the platform accepted it.
type SMSSender interface {
	Send(ctx context.Context, to, body string) error
}

// LogSender is the default SMSSender: it records the would-be message and
// reports success. Deployments with a real gateway inject their own
// implementation.
type LogSender struct {
	logger zerolog.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger zerolog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send logs the outbound message. The body is not logged verbatim because
// it starts with the device password.
func (s *LogSender) Send(_ context.Context, to, body string) error {
	s.logger.Info().
		Str("to", to).
		Int("body_length", len(body)).
		Msg("sms handed to platform")
	return nil
}
