package usecase

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/arklim/access-platform-auth/internal/core/domain"
	"github.com/arklim/access-platform-auth/internal/core/port"
	"github.com/arklim/access-platform-auth/internal/repository"
)

// ErrSessionOwnership indicates the session belongs to a different user.
var ErrSessionOwnership = errors.New("session owned by another user")

// SessionService exposes session inspection and termination to transports.
type SessionService struct {
	sessions port.SessionRepository
	tokens   *TokenService
	log      *zap.Logger
}

// NewSessionService constructs a SessionService.
func NewSessionService(sessions port.SessionRepository, tokens *TokenService, log *zap.Logger) *SessionService {
	return &SessionService{sessions: sessions, tokens: tokens, log: log}
}

// ListForUser returns the user's live sessions, newest activity first.
func (s *SessionService) ListForUser(ctx context.Context, userID string) ([]domain.Session, error) {
	sessions, err := s.sessions.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// RevokeOwn terminates one of the caller's sessions after an ownership check.
func (s *SessionService) RevokeOwn(ctx context.Context, userID, sessionID, reason string) error {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("lookup session: %w", err)
	}

	if session.UserID != userID {
		return ErrSessionOwnership
	}

	return s.tokens.Revoke(ctx, sessionID, reason)
}

// RevokeAllForUser logs the user out everywhere and reports how many sessions closed.
func (s *SessionService) RevokeAllForUser(ctx context.Context, userID, reason string) (int, error) {
	return s.tokens.RevokeAll(ctx, userID, reason)
}

// TouchActivity best-effort updates session metadata on authenticated requests.
func (s *SessionService) TouchActivity(ctx context.Context, sessionID string, ip, userAgent *string) {
	if err := s.sessions.UpdateLastSeen(ctx, sessionID, ip, userAgent); err != nil {
		s.log.Debug("update session activity", zap.String("session_id", sessionID), zap.Error(err))
	}
}
