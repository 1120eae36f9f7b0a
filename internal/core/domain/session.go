package domain

import "time"

// Session represents a persisted login session bound to a device and token pair.
// The session id doubles as the access token's jti claim, so revoking the row
// immediately invalidates the token regardless of its remaining lifetime.
type Session struct {
	ID               string
	UserID           string
	RefreshTokenHash string
	IPAddress        *string
	UserAgent        *string
	DeviceInfo       *string
	CreatedAt        time.Time
	LastSeen         time.Time
	ExpiresAt        time.Time
	RevokedAt        *time.Time
	RevokeReason     *string
}

// IsActive reports whether the session is still valid (not revoked and not expired at the supplied moment).
func (s Session) IsActive(at time.Time) bool {
	if s.RevokedAt != nil {
		return false
	}
	return s.ExpiresAt.After(at)
}

// Touch updates last-seen metadata for the session when activity occurs.
func (s *Session) Touch(at time.Time, ip, userAgent *string) {
	s.LastSeen = at
	if ip != nil {
		ipCopy := *ip
		s.IPAddress = &ipCopy
	}
	if userAgent != nil {
		uaCopy := *userAgent
		s.UserAgent = &uaCopy
	}
}

// Revoke marks the session as revoked. Returns true when the session changed state.
func (s *Session) Revoke(at time.Time, reason string) bool {
	if s.RevokedAt != nil {
		return false
	}
	utc := at.UTC()
	s.RevokedAt = &utc
	s.RevokeReason = &reason
	return true
}
