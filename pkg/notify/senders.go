package notify

import (
	"context"
	"log/slog"

	"github.com/zachsents/minus-sub000/pkg/eventbus"
	"github.com/zachsents/minus-sub000/pkg/events"
)

// BusSender hands emails to an external mailer through the event bus.
type BusSender struct {
	publisher eventbus.EventPublisher
}

func NewBusSender(publisher eventbus.EventPublisher) *BusSender {
	return &BusSender{publisher: publisher}
}

func (s *BusSender) Send(ctx context.Context, email Email) error {
	event := events.NewEmailRequested(email.To, email.Subject, email.Text, email.HTML)

	err := event.Validate()
	if err != nil {
		return err
	}

	return s.publisher.Publish(ctx, event.ID, event)
}

// LogSender writes emails to the log instead of sending them.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger.With("module", "log_sender")}
}

func (s *LogSender) Send(ctx context.Context, email Email) error {
	s.logger.InfoContext(ctx, "Email", "to", email.To, "subject", email.Subject, "text", email.Text)

	return nil
}
