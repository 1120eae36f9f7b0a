package port

import (
	"context"

	"github.com/arklim/access-platform-auth/internal/core/domain"
)

// UserRepository exposes persistence behavior for users and their password history.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	// GetByIdentifier resolves a user by username or email, case-insensitively.
	GetByIdentifier(ctx context.Context, identifier string) (*domain.User, error)
	// Save persists the mutable security state of the aggregate
	// (status, failed-attempt counter, lockout window, timestamps, hash).
	Save(ctx context.Context, user domain.User) error
	ListPasswordHistory(ctx context.Context, userID string, limit int) ([]domain.PasswordHistoryEntry, error)
	AddPasswordHistory(ctx context.Context, entry domain.PasswordHistoryEntry) error
	// TrimPasswordHistory drops everything but the most recent maxEntries hashes.
	TrimPasswordHistory(ctx context.Context, userID string, maxEntries int) error
}
