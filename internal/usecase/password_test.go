package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/arklim/access-platform-auth/internal/core/domain"
	"github.com/google/uuid"
)

func newPasswordService(env *testEnv, validator stubValidator) *PasswordService {
	return NewPasswordService(env.cfg, env.users, stubHasher{}, validator, env.tokens, env.audit, env.events, env.tokens.log)
}

func TestChangePasswordHappyPath(t *testing.T) {
	env := newTestEnv(t, activeUser("user-1"))
	svc := newPasswordService(env, stubValidator{})

	// Existing sessions on other devices must die with the old credential.
	user := env.users.get(t, "user-1")
	if _, _, err := env.tokens.Issue(context.Background(), user, IssueOptions{}); err != nil {
		t.Fatalf("Issue: %v", err)
	}

	failure, err := svc.ChangePassword(context.Background(), "user-1", "correct-horse", "battery-staple-99")
	if err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if failure != nil {
		t.Fatalf("expected acceptance, got %+v", failure)
	}

	stored := env.users.get(t, "user-1")
	if stored.PasswordHash != "stub$battery-staple-99" {
		t.Fatalf("expected new hash persisted, got %q", stored.PasswordHash)
	}
	if stored.RequirePasswordChange {
		t.Fatal("expected forced-change flag cleared")
	}

	active, err := env.sessions.ListActiveByUser(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("ListActiveByUser: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("expected all sessions revoked, got %d active", len(active))
	}

	history, err := env.users.ListPasswordHistory(context.Background(), "user-1", 0)
	if err != nil {
		t.Fatalf("ListPasswordHistory: %v", err)
	}
	if len(history) != 1 || history[0].PasswordHash != "stub$battery-staple-99" {
		t.Fatalf("expected new hash in history, got %+v", history)
	}
	if env.events.password != 1 {
		t.Fatalf("expected one password-changed event, got %d", env.events.password)
	}
}

func TestChangePasswordWrongCurrent(t *testing.T) {
	env := newTestEnv(t, activeUser("user-1"))
	svc := newPasswordService(env, stubValidator{})

	failure, err := svc.ChangePassword(context.Background(), "user-1", "not-the-password", "battery-staple-99")
	if err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if failure == nil || failure.Reason != domain.FailureInvalidCredentials {
		t.Fatalf("expected invalid_credentials, got %+v", failure)
	}
	if stored := env.users.get(t, "user-1"); stored.PasswordHash != "stub$correct-horse" {
		t.Fatal("expected hash untouched")
	}
}

func TestChangePasswordPolicyViolation(t *testing.T) {
	env := newTestEnv(t, activeUser("user-1"))
	svc := newPasswordService(env, stubValidator{violations: []string{"too short", "no digit"}})

	failure, err := svc.ChangePassword(context.Background(), "user-1", "correct-horse", "weak-candidate")
	if err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if failure == nil || failure.Reason != domain.FailurePasswordPolicyViolation {
		t.Fatalf("expected password_policy_violation, got %+v", failure)
	}
	if len(failure.Violations) != 2 {
		t.Fatalf("expected both violations reported, got %v", failure.Violations)
	}
}

func TestChangePasswordRejectsCurrentPasswordReuse(t *testing.T) {
	env := newTestEnv(t, activeUser("user-1"))
	svc := newPasswordService(env, stubValidator{})

	failure, err := svc.ChangePassword(context.Background(), "user-1", "correct-horse", "correct-horse")
	if err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if failure == nil || failure.Reason != domain.FailurePasswordHistoryViolation {
		t.Fatalf("expected password_history_violation, got %+v", failure)
	}
}

func TestChangePasswordHistoryWindow(t *testing.T) {
	env := newTestEnv(t, activeUser("user-1"))
	svc := newPasswordService(env, stubValidator{})

	// Seed six prior generations; the depth-5 window should retain only
	// the newest five, making the oldest password usable again.
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 6; i++ {
		entry := domain.PasswordHistoryEntry{
			ID:           uuid.NewString(),
			UserID:       "user-1",
			PasswordHash: fmt.Sprintf("stub$generation-%d", i),
			SetAt:        base.Add(time.Duration(i) * time.Minute),
		}
		if err := env.users.AddPasswordHistory(context.Background(), entry); err != nil {
			t.Fatalf("AddPasswordHistory: %v", err)
		}
	}

	// generation-3 is inside the retained window.
	failure, err := svc.ChangePassword(context.Background(), "user-1", "correct-horse", "generation-3")
	if err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if failure == nil || failure.Reason != domain.FailurePasswordHistoryViolation {
		t.Fatalf("expected password_history_violation for recent reuse, got %+v", failure)
	}

	// generation-0 aged out of the window and is acceptable.
	failure, err = svc.ChangePassword(context.Background(), "user-1", "correct-horse", "generation-0")
	if err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if failure != nil {
		t.Fatalf("expected acceptance for aged-out password, got %+v", failure)
	}

	// The window itself stays bounded after the change.
	history, err := env.users.ListPasswordHistory(context.Background(), "user-1", 0)
	if err != nil {
		t.Fatalf("ListPasswordHistory: %v", err)
	}
	if len(history) > env.cfg.Password.HistoryDepth {
		t.Fatalf("expected history trimmed to %d, got %d", env.cfg.Password.HistoryDepth, len(history))
	}
}

func TestChangePasswordUnknownUser(t *testing.T) {
	env := newTestEnv(t)
	svc := newPasswordService(env, stubValidator{})

	if _, err := svc.ChangePassword(context.Background(), "missing", "a", "b"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestForcePasswordChange(t *testing.T) {
	env := newTestEnv(t, activeUser("user-1"))
	svc := newPasswordService(env, stubValidator{})

	if err := svc.ForcePasswordChange(context.Background(), "user-1"); err != nil {
		t.Fatalf("ForcePasswordChange: %v", err)
	}
	if stored := env.users.get(t, "user-1"); !stored.RequirePasswordChange {
		t.Fatal("expected forced-change flag set")
	}
}
