package port

import (
	"context"

	"github.com/arklim/access-platform-auth/internal/core/domain"
)

// TwoFactorRepository persists a user's second-factor configuration.
type TwoFactorRepository interface {
	Get(ctx context.Context, userID string) (*domain.TwoFactorSettings, error)
	// Save upserts the settings, including the remaining recovery code hashes.
	Save(ctx context.Context, settings domain.TwoFactorSettings) error
	Delete(ctx context.Context, userID string) error
}
