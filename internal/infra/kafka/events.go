package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/access-platform-auth/internal/core/domain"
	"github.com/arklim/access-platform-auth/internal/core/port"
	"github.com/arklim/access-platform-auth/internal/infra/config"
	"github.com/arklim/access-platform-auth/internal/infra/logger"
)

const schemaVersion = "1.0"

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, log *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: log}
}

type eventEnvelope struct {
	EventID   string            `json:"event_id"`
	EventType string            `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Payload   any               `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, userID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	envelope := eventEnvelope{
		EventID:   id,
		EventType: eventType,
		UserID:    userID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata: map[string]string{
			"service":     p.appCfg.Name,
			"environment": p.appCfg.Env,
		},
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishLoginSucceeded publishes auth.login.succeeded events.
func (p *EventPublisher) PublishLoginSucceeded(ctx context.Context, event domain.LoginSucceededEvent) error {
	payload := struct {
		UserID    string    `json:"user_id"`
		SessionID string    `json:"session_id"`
		TwoFactor bool      `json:"two_factor"`
		IPAddress *string   `json:"ip_address,omitempty"`
		UserAgent *string   `json:"user_agent,omitempty"`
		At        time.Time `json:"at"`
	}{
		UserID:    event.UserID,
		SessionID: event.SessionID,
		TwoFactor: event.TwoFactor,
		IPAddress: maskedIP(event.IPAddress),
		UserAgent: event.UserAgent,
		At:        event.OccurredAt.UTC(),
	}

	return p.publish(ctx, event.EventID, "auth.login.succeeded", event.UserID, event.OccurredAt, payload)
}

// PublishLoginFailed publishes auth.login.failed events.
func (p *EventPublisher) PublishLoginFailed(ctx context.Context, event domain.LoginFailedEvent) error {
	payload := struct {
		UserID     string    `json:"user_id,omitempty"`
		Identifier string    `json:"identifier"`
		Reason     string    `json:"reason"`
		Locked     bool      `json:"locked"`
		IPAddress  *string   `json:"ip_address,omitempty"`
		At         time.Time `json:"at"`
	}{
		UserID:     event.UserID,
		Identifier: logger.MaskEmail(event.Identifier),
		Reason:     string(event.Reason),
		Locked:     event.Locked,
		IPAddress:  maskedIP(event.IPAddress),
		At:         event.OccurredAt.UTC(),
	}

	return p.publish(ctx, event.EventID, "auth.login.failed", event.UserID, event.OccurredAt, payload)
}

// PublishSessionRevoked publishes auth.session.revoked events.
func (p *EventPublisher) PublishSessionRevoked(ctx context.Context, event domain.SessionRevokedEvent) error {
	payload := struct {
		SessionID string    `json:"session_id,omitempty"`
		UserID    string    `json:"user_id"`
		Reason    string    `json:"reason"`
		Revoked   int       `json:"revoked"`
		At        time.Time `json:"at"`
	}{
		SessionID: event.SessionID,
		UserID:    event.UserID,
		Reason:    event.Reason,
		Revoked:   event.Revoked,
		At:        event.OccurredAt.UTC(),
	}

	return p.publish(ctx, event.EventID, "auth.session.revoked", event.UserID, event.OccurredAt, payload)
}

// PublishPasswordChanged publishes auth.password.changed events.
func (p *EventPublisher) PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error {
	payload := struct {
		UserID          string    `json:"user_id"`
		SessionsRevoked int       `json:"sessions_revoked"`
		At              time.Time `json:"at"`
	}{
		UserID:          event.UserID,
		SessionsRevoked: event.SessionsRevoked,
		At:              event.OccurredAt.UTC(),
	}

	return p.publish(ctx, event.EventID, "auth.password.changed", event.UserID, event.OccurredAt, payload)
}

// PublishTwoFactorStateChanged publishes auth.two_factor.state_changed events.
func (p *EventPublisher) PublishTwoFactorStateChanged(ctx context.Context, event domain.TwoFactorStateChangedEvent) error {
	payload := struct {
		UserID  string    `json:"user_id"`
		Method  string    `json:"method"`
		Enabled bool      `json:"enabled"`
		At      time.Time `json:"at"`
	}{
		UserID:  event.UserID,
		Method:  string(event.Method),
		Enabled: event.Enabled,
		At:      event.OccurredAt.UTC(),
	}

	return p.publish(ctx, event.EventID, "auth.two_factor.state_changed", event.UserID, event.OccurredAt, payload)
}

func maskedIP(ip *string) *string {
	if ip == nil {
		return nil
	}
	masked := logger.MaskIP(*ip)
	return &masked
}

var _ port.EventPublisher = (*EventPublisher)(nil)
