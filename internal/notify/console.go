package notify

import (
	"context"

	"go.uber.org/zap"
)

// ConsoleSender writes messages to the log instead of delivering them.
// Default in development and test environments.
type ConsoleSender struct {
	logger *zap.Logger
}

var _ Sender = (*ConsoleSender)(nil)

// NewConsoleSender constructs a console sender.
func NewConsoleSender(logger *zap.Logger) *ConsoleSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsoleSender{logger: logger}
}

// Send logs the message and always succeeds.
func (s *ConsoleSender) Send(_ context.Context, msg Message) error {
	s.logger.Info("email (console)",
		zap.String("event", string(msg.Event)),
		zap.String("to", msg.ToEmail),
		zap.String("subject", msg.Subject),
	)
	return nil
}
