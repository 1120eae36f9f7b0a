package domain

import "time"

// LoginSucceededEvent is emitted after every completed authentication.
type LoginSucceededEvent struct {
	EventID    string
	UserID     string
	SessionID  string
	OccurredAt time.Time
	IPAddress  *string
	UserAgent  *string
	TwoFactor  bool
}

// LoginFailedEvent is emitted for every rejected authentication attempt.
type LoginFailedEvent struct {
	EventID    string
	UserID     string
	Identifier string
	Reason     FailureReason
	Locked     bool
	OccurredAt time.Time
	IPAddress  *string
}

// SessionRevokedEvent captures explicit session termination.
type SessionRevokedEvent struct {
	EventID    string
	SessionID  string
	UserID     string
	Reason     string
	Revoked    int
	OccurredAt time.Time
}

// PasswordChangedEvent is emitted after an accepted password change.
type PasswordChangedEvent struct {
	EventID         string
	UserID          string
	SessionsRevoked int
	OccurredAt      time.Time
}

// TwoFactorStateChangedEvent captures enabling or disabling the second factor.
type TwoFactorStateChangedEvent struct {
	EventID    string
	UserID     string
	Method     TwoFactorMethod
	Enabled    bool
	OccurredAt time.Time
}
