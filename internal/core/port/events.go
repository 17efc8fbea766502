package port

import (
	"context"

	"github.com/arklim/social-platform-lockout/internal/core/domain"
)

// EventPublisher publishes lockout domain events to the message bus. Delivery is
// fire-and-forget from the core's perspective; events are fully constructed
// before being handed over.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
	PublishAll(ctx context.Context, events []domain.Event) error
}
