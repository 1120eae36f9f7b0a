package domain

import "time"

// UserStatus enumerates possible account states.
type UserStatus string

const (
	// UserStatusRegistered marks an account that has signed up but not confirmed its email.
	UserStatusRegistered UserStatus = "registered"
	// UserStatusActive marks an account in good standing.
	UserStatusActive UserStatus = "active"
	// UserStatusSuspended marks an account disabled by an administrator.
	UserStatusSuspended UserStatus = "suspended"
	// UserStatusBlocked marks an account locked out after repeated failed logins.
	UserStatusBlocked UserStatus = "blocked"
	// UserStatusDeleted marks a soft-deleted account.
	UserStatusDeleted UserStatus = "deleted"
)

// User mirrors the persisted representation in the users table.
//
// The lockout fields (Status, AccessFailedCount, LockoutEnd) form a small
// state machine. They must only be mutated through the methods below so the
// invariant "LockoutEnd is set iff Status is blocked" holds everywhere.
type User struct {
	ID                    string
	Username              string
	Email                 string
	Phone                 *string
	PasswordHash          string
	Status                UserStatus
	AccessFailedCount     int
	LockoutEnabled        bool
	LockoutEnd            *time.Time
	TwoFactorEnabled      bool
	EmailConfirmed        bool
	RequirePasswordChange bool
	RegisteredAt          time.Time
	LastPasswordChange    time.Time
	LastLogin             *time.Time
}

// RecordFailedAttempt increments the failed-attempt counter and locks the
// account once the counter reaches threshold. Returns true when the account
// transitioned to the blocked state.
func (u *User) RecordFailedAttempt(threshold int, lockFor time.Duration, at time.Time) bool {
	u.AccessFailedCount++
	if !u.LockoutEnabled || threshold <= 0 || u.AccessFailedCount < threshold {
		return false
	}
	u.Lock(at.Add(lockFor))
	return true
}

// Lock blocks the account until the supplied moment.
func (u *User) Lock(until time.Time) {
	utc := until.UTC()
	u.Status = UserStatusBlocked
	u.LockoutEnd = &utc
}

// Unlock clears an active lockout and restores the account to active.
func (u *User) Unlock() {
	u.LockoutEnd = nil
	u.Status = UserStatusActive
	u.AccessFailedCount = 0
}

// ResetFailedAttempts zeroes the counter. Called on every successful
// authentication, including 2FA completion and token refresh.
func (u *User) ResetFailedAttempts() {
	u.AccessFailedCount = 0
}

// LockoutExpired reports whether a block has elapsed and may be lifted.
func (u *User) LockoutExpired(at time.Time) bool {
	return u.Status == UserStatusBlocked && u.LockoutEnd != nil && !u.LockoutEnd.After(at)
}

// RemainingLockout returns the time left on an active lockout window.
func (u *User) RemainingLockout(at time.Time) time.Duration {
	if u.LockoutEnd == nil {
		return 0
	}
	remaining := u.LockoutEnd.Sub(at)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RecordLogin resets the failure counter and stamps last login.
func (u *User) RecordLogin(at time.Time) {
	u.AccessFailedCount = 0
	utc := at.UTC()
	u.LastLogin = &utc
}

// ChangePassword swaps the credential hash and clears any forced-change flag.
func (u *User) ChangePassword(hash string, at time.Time) {
	u.PasswordHash = hash
	u.LastPasswordChange = at.UTC()
	u.RequirePasswordChange = false
}

// ConfirmEmail marks the address verified and activates registered accounts.
func (u *User) ConfirmEmail() {
	u.EmailConfirmed = true
	if u.Status == UserStatusRegistered {
		u.Status = UserStatusActive
	}
}

// EnableTwoFactor flips the second-factor requirement on.
func (u *User) EnableTwoFactor() {
	u.TwoFactorEnabled = true
}

// DisableTwoFactor flips the second-factor requirement off.
func (u *User) DisableTwoFactor() {
	u.TwoFactorEnabled = false
}

// Sanitized returns a copy safe to hand to transports.
func (u User) Sanitized() User {
	u.PasswordHash = ""
	return u
}

// PasswordHistoryEntry tracks historical password hashes for reuse prevention.
type PasswordHistoryEntry struct {
	ID           string
	UserID       string
	PasswordHash string
	SetAt        time.Time
}

// PasswordContext carries user inputs the strength estimator should penalize.
type PasswordContext struct {
	Username string
	Email    string
	Phone    *string
}

// LoginAttempt records authentication attempts for throttling and audit.
type LoginAttempt struct {
	ID            string
	UserID        *string
	Identifier    string
	Succeeded     bool
	FailureReason *string
	IP            *string
	UserAgent     *string
	CreatedAt     time.Time
}
