package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/social-platform-lockout/internal/core/domain"
	"github.com/arklim/social-platform-lockout/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for development environments.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

// Publish logs the event instead of producing it.
func (p *StubPublisher) Publish(_ context.Context, event domain.Event) error {
	at := event.OccurredAt()
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("Stub event published",
		zap.String("event_type", event.EventName()),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", event),
	)
	return nil
}

// PublishAll logs each event in order.
func (p *StubPublisher) PublishAll(ctx context.Context, events []domain.Event) error {
	for _, event := range events {
		if err := p.Publish(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
