package port

import (
	"context"

	"github.com/arklim/access-platform-auth/internal/core/domain"
)

// EventPublisher fans authentication lifecycle events out to the platform bus.
type EventPublisher interface {
	PublishLoginSucceeded(ctx context.Context, event domain.LoginSucceededEvent) error
	PublishLoginFailed(ctx context.Context, event domain.LoginFailedEvent) error
	PublishSessionRevoked(ctx context.Context, event domain.SessionRevokedEvent) error
	PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error
	PublishTwoFactorStateChanged(ctx context.Context, event domain.TwoFactorStateChangedEvent) error
}
