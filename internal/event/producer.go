package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/evento-ems/access/internal/domain"
	pkgkafka "github.com/evento-ems/access/pkg/kafka"
	"github.com/evento-ems/access/pkg/logger"
)

// Kafka topic constants for access events.
const (
	TopicPasswordResetRequested = "evento.user.password_reset_requested"
	TopicPasswordChanged        = "evento.user.password_changed"
	TopicRoleChanged            = "evento.user.role_changed"
)

// Aggregate type constant.
const AggregateTypeUser = "user"

// Source identifier for events originating from the access service.
const SourceAccessService = "access-service"

// ResetRequested is the payload handed to email delivery when a reset is
// requested. ResetURL carries the plaintext token and is the only place it
// ever leaves the process.
type ResetRequested struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	ResetURL  string    `json:"reset_url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// PasswordChangedData is the payload for a user.password_changed event.
type PasswordChangedData struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// RoleChangedData is the payload for a user.role_changed event.
type RoleChangedData struct {
	UserID  string `json:"user_id"`
	ActorID string `json:"actor_id"`
	OldRole string `json:"old_role"`
	NewRole string `json:"new_role"`
}

// publisher is the part of *pkgkafka.Producer used here.
type publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes access domain events to Kafka.
type Producer struct {
	kafka  publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer for the access service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PasswordResetRequested publishes a user.password_reset_requested event.
func (p *Producer) PasswordResetRequested(ctx context.Context, data ResetRequested) error {
	return p.publish(ctx, TopicPasswordResetRequested, data.UserID, time.Time{}, data)
}

// PasswordChanged publishes a user.password_changed event.
func (p *Producer) PasswordChanged(ctx context.Context, user *domain.User) error {
	data := PasswordChangedData{
		UserID: user.ID,
		Email:  user.Email,
	}
	return p.publish(ctx, TopicPasswordChanged, user.ID, user.UpdatedAt, data)
}

// RoleChanged publishes a user.role_changed event.
func (p *Producer) RoleChanged(ctx context.Context, change *domain.RoleChange) error {
	data := RoleChangedData{
		UserID:  change.TargetID,
		ActorID: change.ActorID,
		OldRole: change.OldRole,
		NewRole: change.NewRole,
	}
	return p.publish(ctx, TopicRoleChanged, change.TargetID, change.CreatedAt, data)
}

// publish stamps the event with at when set, so it matches the stored change.
func (p *Producer) publish(ctx context.Context, topic, userID string, at time.Time, data any) error {
	event, err := pkgkafka.NewEvent(topic, userID, AggregateTypeUser, SourceAccessService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if !at.IsZero() {
		event.At(at)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.InfoContext(ctx, "published access event",
		slog.String("topic", topic),
		slog.String("user_id", userID),
	)
	return nil
}
