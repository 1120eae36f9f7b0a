package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/arklim/access-platform-auth/internal/core/domain"
	"github.com/arklim/access-platform-auth/internal/repository"
)

func userRow(now time.Time) *pgxmock.Rows {
	return pgxmock.NewRows(userColumns).
		AddRow(
			"user-1", "alice", "alice@example.com", nil, "hash", domain.UserStatusActive,
			0, true, nil, false, true, false, now, now, nil,
		)
}

func TestUserRepositoryGetByIdentifier(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT .+ FROM auth\.users WHERE \(LOWER\(username\) = \$1 OR LOWER\(email\) = \$2\) LIMIT 1`).
		WithArgs("alice@example.com", "alice@example.com").
		WillReturnRows(userRow(now))

	// Surrounding whitespace and case are normalized before the query.
	user, err := repo.GetByIdentifier(context.Background(), "  Alice@Example.COM ")
	if err != nil {
		t.Fatalf("GetByIdentifier: %v", err)
	}
	if user.ID != "user-1" || user.Status != domain.UserStatusActive {
		t.Fatalf("unexpected user: %+v", user)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepositoryGetByIdentifierNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)

	mock.ExpectQuery(`SELECT .+ FROM auth\.users`).
		WithArgs("nobody", "nobody").
		WillReturnRows(pgxmock.NewRows(userColumns))

	if _, err := repo.GetByIdentifier(context.Background(), "nobody"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepositorySave(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)

	now := time.Now().UTC()
	lockoutEnd := now.Add(15 * time.Minute)
	user := domain.User{
		ID:                 "user-1",
		PasswordHash:       "hash",
		Status:             domain.UserStatusBlocked,
		AccessFailedCount:  5,
		LockoutEnabled:     true,
		LockoutEnd:         &lockoutEnd,
		EmailConfirmed:     true,
		LastPasswordChange: now,
	}

	mock.ExpectExec(`UPDATE auth\.users SET`).
		WithArgs(
			"hash", domain.UserStatusBlocked, 5, true, lockoutEnd,
			false, true, false, now, nil, "user-1",
		).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := repo.Save(context.Background(), user); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepositorySaveUnknownUser(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)

	mock.ExpectExec(`UPDATE auth\.users SET`).
		WithArgs(
			"hash", domain.UserStatusActive, 0, false, nil,
			false, false, false, pgxmock.AnyArg(), nil, "missing",
		).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = repo.Save(context.Background(), domain.User{ID: "missing", PasswordHash: "hash", Status: domain.UserStatusActive})
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepositoryPasswordHistory(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)

	now := time.Now().UTC()
	rows := pgxmock.NewRows([]string{"id", "user_id", "password_hash", "set_at"}).
		AddRow("entry-2", "user-1", "hash-2", now).
		AddRow("entry-1", "user-1", "hash-1", now.Add(-time.Hour))

	mock.ExpectQuery(`SELECT id, user_id, password_hash, set_at FROM auth\.password_history WHERE user_id = \$1 ORDER BY set_at DESC LIMIT 5`).
		WithArgs("user-1").
		WillReturnRows(rows)

	history, err := repo.ListPasswordHistory(context.Background(), "user-1", 5)
	if err != nil {
		t.Fatalf("ListPasswordHistory: %v", err)
	}
	if len(history) != 2 || history[0].PasswordHash != "hash-2" {
		t.Fatalf("unexpected history: %+v", history)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepositoryTrimPasswordHistory(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)

	mock.ExpectExec(`DELETE FROM auth\.password_history`).
		WithArgs("user-1", 5).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))

	if err := repo.TrimPasswordHistory(context.Background(), "user-1", 5); err != nil {
		t.Fatalf("TrimPasswordHistory: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
