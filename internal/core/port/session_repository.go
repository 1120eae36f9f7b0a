package port

import (
	"context"

	"github.com/arklim/access-platform-auth/internal/core/domain"
)

// SessionRepository exposes persistence behavior for login sessions.
//
// Revocations must be immediately visible to the next GetByID call: token
// validation performs a read-after-write lookup here, so implementations may
// not cache results without invalidating on revoke.
type SessionRepository interface {
	Create(ctx context.Context, session domain.Session) error
	// GetByID fetches a session by its identifier (the access token jti).
	GetByID(ctx context.Context, sessionID string) (*domain.Session, error)
	ListActiveByUser(ctx context.Context, userID string) ([]domain.Session, error)
	UpdateLastSeen(ctx context.Context, sessionID string, ip *string, userAgent *string) error
	Revoke(ctx context.Context, sessionID string, reason string) error
	// RevokeAllForUser revokes every active session for the user and reports how many.
	RevokeAllForUser(ctx context.Context, userID string, reason string) (int, error)
}
