package domain

import "time"

// TwoFactorMethod enumerates supported second-factor delivery channels.
type TwoFactorMethod string

const (
	// TwoFactorMethodApp uses a TOTP authenticator application.
	TwoFactorMethodApp TwoFactorMethod = "app"
	// TwoFactorMethodEmail delivers one-time codes over email.
	TwoFactorMethodEmail TwoFactorMethod = "email"
	// TwoFactorMethodSMS delivers one-time codes over SMS.
	TwoFactorMethodSMS TwoFactorMethod = "sms"
)

// TwoFactorSettings holds a user's second-factor configuration.
// Recovery codes and the pending delivered code are stored hashed; a code is
// removed the moment it is used.
type TwoFactorSettings struct {
	UserID               string
	SecretKey            string
	Method               TwoFactorMethod
	RecoveryCodeHashes   []string
	PendingCodeHash      *string
	PendingCodeExpiresAt *time.Time
	Enabled              bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// StagePendingCode stores the hash of a one-time login code for delivery
// channels that cannot generate codes locally. Staging a new code replaces
// any previous one.
func (s *TwoFactorSettings) StagePendingCode(hash string, expiresAt time.Time) {
	utc := expiresAt.UTC()
	s.PendingCodeHash = &hash
	s.PendingCodeExpiresAt = &utc
}

// ConsumePendingCode accepts the staged code when the hash matches and the
// code has not expired, clearing it so it cannot be replayed.
func (s *TwoFactorSettings) ConsumePendingCode(hash string, now time.Time) bool {
	if s.PendingCodeHash == nil || s.PendingCodeExpiresAt == nil {
		return false
	}
	if !now.Before(*s.PendingCodeExpiresAt) {
		return false
	}
	if *s.PendingCodeHash != hash {
		return false
	}
	s.PendingCodeHash = nil
	s.PendingCodeExpiresAt = nil
	return true
}

// ConsumeRecoveryCode removes the matching hash from the stored set.
// Returns true when the hash was present, enforcing single use.
func (s *TwoFactorSettings) ConsumeRecoveryCode(hash string) bool {
	for i, stored := range s.RecoveryCodeHashes {
		if stored == hash {
			s.RecoveryCodeHashes = append(s.RecoveryCodeHashes[:i], s.RecoveryCodeHashes[i+1:]...)
			return true
		}
	}
	return false
}
