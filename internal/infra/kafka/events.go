package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/social-platform-lockout/internal/core/domain"
	"github.com/arklim/social-platform-lockout/internal/core/port"
	"github.com/arklim/social-platform-lockout/internal/infra/config"
)

const schemaVersion = "1.0"

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	SessionID string           `json:"session_id,omitempty"`
	UserID    string           `json:"user_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

// Publish wraps the event in an envelope and hands it to the async producer.
func (p *EventPublisher) Publish(ctx context.Context, event domain.Event) error {
	eventID, sessionID, userID, payload, err := p.describe(event)
	if err != nil {
		return err
	}

	return p.send(ctx, eventID, event.EventName(), sessionID, userID, event.OccurredAt(), payload)
}

// PublishAll publishes events in order, stopping at the first failure.
func (p *EventPublisher) PublishAll(ctx context.Context, events []domain.Event) error {
	for _, event := range events {
		if err := p.Publish(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

func (p *EventPublisher) describe(event domain.Event) (eventID, sessionID, userID string, payload any, err error) {
	switch e := event.(type) {
	case domain.AccountLockedEvent:
		payload = struct {
			SessionID          string         `json:"session_id"`
			UserID             string         `json:"user_id"`
			ClientIP           string         `json:"client_ip"`
			LockedUntil        time.Time      `json:"locked_until"`
			FailedAttemptCount int            `json:"failed_attempt_count"`
			LockedAt           time.Time      `json:"locked_at"`
			Metadata           map[string]any `json:"metadata,omitempty"`
		}{
			SessionID:          e.SessionID,
			UserID:             e.UserID,
			ClientIP:           e.ClientIP,
			LockedUntil:        e.LockedUntil.UTC(),
			FailedAttemptCount: e.FailedAttemptCount,
			LockedAt:           e.At.UTC(),
			Metadata:           e.Metadata,
		}
		return e.EventID, e.SessionID, e.UserID, payload, nil
	case domain.AccountUnlockedEvent:
		payload = struct {
			SessionID  string         `json:"session_id"`
			UserID     string         `json:"user_id"`
			UnlockedBy string         `json:"unlocked_by"`
			Reason     string         `json:"reason,omitempty"`
			UnlockedAt time.Time      `json:"unlocked_at"`
			Metadata   map[string]any `json:"metadata,omitempty"`
		}{
			SessionID:  e.SessionID,
			UserID:     e.UserID,
			UnlockedBy: e.UnlockedBy,
			Reason:     e.Reason,
			UnlockedAt: e.At.UTC(),
			Metadata:   e.Metadata,
		}
		return e.EventID, e.SessionID, e.UserID, payload, nil
	case domain.AttemptRecordedEvent:
		payload = struct {
			SessionID   string         `json:"session_id"`
			UserID      string         `json:"user_id"`
			ClientIP    string         `json:"client_ip"`
			Succeeded   bool           `json:"succeeded"`
			RiskScore   int            `json:"risk_score"`
			AttemptedAt time.Time      `json:"attempted_at"`
			Metadata    map[string]any `json:"metadata,omitempty"`
		}{
			SessionID:   e.SessionID,
			UserID:      e.UserID,
			ClientIP:    e.ClientIP,
			Succeeded:   e.Succeeded,
			RiskScore:   e.RiskScore,
			AttemptedAt: e.At.UTC(),
			Metadata:    e.Metadata,
		}
		return e.EventID, e.SessionID, e.UserID, payload, nil
	default:
		return "", "", "", nil, fmt.Errorf("unsupported event type %q", event.EventName())
	}
}

func (p *EventPublisher) send(ctx context.Context, eventID, eventType, sessionID, userID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}

	envelope := eventEnvelope{
		EventID:   id,
		EventType: eventType,
		SessionID: sessionID,
		UserID:    userID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Key:   sarama.StringEncoder(sessionID),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ port.EventPublisher = (*EventPublisher)(nil)
