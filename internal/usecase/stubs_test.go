package usecase

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/arklim/access-platform-auth/internal/core/domain"
	"github.com/arklim/access-platform-auth/internal/infra/config"
	"github.com/arklim/access-platform-auth/internal/infra/security"
	"github.com/arklim/access-platform-auth/internal/repository"
)

func newTestConfig() *config.AppConfig {
	return &config.AppConfig{
		App: config.AppSettings{Name: "access-platform-auth", Env: "test"},
		JWT: config.JWTSettings{
			AccessTokenTTL:   2 * time.Hour,
			ExtendedTokenTTL: 168 * time.Hour,
			RefreshTokenTTL:  168 * time.Hour,
		},
		Lockout: config.LockoutSettings{Threshold: 5, Duration: 15 * time.Minute},
		Password: config.PasswordSettings{
			MinLength:    8,
			MaxLength:    128,
			HistoryDepth: 5,
		},
		TwoFactor: config.TwoFactorSettings{
			Issuer:        "access-platform",
			Period:        30,
			Digits:        6,
			Skew:          1,
			RecoveryCodes: 8,
		},
	}
}

type stubUserRepo struct {
	mu      sync.Mutex
	users   map[string]domain.User
	history map[string][]domain.PasswordHistoryEntry
}

func newStubUserRepo(users ...domain.User) *stubUserRepo {
	repo := &stubUserRepo{
		users:   make(map[string]domain.User),
		history: make(map[string][]domain.PasswordHistoryEntry),
	}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (r *stubUserRepo) Create(_ context.Context, user domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = user
	return nil
}

func (r *stubUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user, ok := r.users[id]; ok {
		clone := user
		return &clone, nil
	}
	return nil, repository.ErrNotFound
}

func (r *stubUserRepo) GetByIdentifier(_ context.Context, identifier string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	needle := strings.ToLower(strings.TrimSpace(identifier))
	for _, user := range r.users {
		if strings.ToLower(user.Username) == needle || strings.ToLower(user.Email) == needle {
			clone := user
			return &clone, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *stubUserRepo) Save(_ context.Context, user domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return repository.ErrNotFound
	}
	r.users[user.ID] = user
	return nil
}

func (r *stubUserRepo) ListPasswordHistory(_ context.Context, userID string, limit int) ([]domain.PasswordHistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := append([]domain.PasswordHistoryEntry(nil), r.history[userID]...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].SetAt.After(entries[j].SetAt) })
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (r *stubUserRepo) AddPasswordHistory(_ context.Context, entry domain.PasswordHistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history[entry.UserID] = append(r.history[entry.UserID], entry)
	return nil
}

func (r *stubUserRepo) TrimPasswordHistory(_ context.Context, userID string, maxEntries int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := r.history[userID]
	if maxEntries <= 0 || len(entries) <= maxEntries {
		return nil
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].SetAt.After(entries[j].SetAt) })
	r.history[userID] = entries[:maxEntries]
	return nil
}

func (r *stubUserRepo) get(t *testing.T, id string) domain.User {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		t.Fatalf("user %s not found in stub", id)
	}
	return user
}

type stubSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
}

func newStubSessionRepo() *stubSessionRepo {
	return &stubSessionRepo{sessions: make(map[string]domain.Session)}
}

func (r *stubSessionRepo) Create(_ context.Context, session domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.ID] = session
	return nil
}

func (r *stubSessionRepo) GetByID(_ context.Context, sessionID string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if session, ok := r.sessions[sessionID]; ok {
		clone := session
		return &clone, nil
	}
	return nil, repository.ErrNotFound
}

func (r *stubSessionRepo) ListActiveByUser(_ context.Context, userID string) ([]domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	active := make([]domain.Session, 0)
	for _, session := range r.sessions {
		if session.UserID == userID && session.IsActive(now) {
			active = append(active, session)
		}
	}
	return active, nil
}

func (r *stubSessionRepo) UpdateLastSeen(_ context.Context, sessionID string, ip, userAgent *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[sessionID]
	if !ok {
		return repository.ErrNotFound
	}
	session.Touch(time.Now().UTC(), ip, userAgent)
	r.sessions[sessionID] = session
	return nil
}

func (r *stubSessionRepo) Revoke(_ context.Context, sessionID, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[sessionID]
	if !ok {
		return repository.ErrNotFound
	}
	session.Revoke(time.Now().UTC(), reason)
	r.sessions[sessionID] = session
	return nil
}

func (r *stubSessionRepo) RevokeAllForUser(_ context.Context, userID, reason string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	revoked := 0
	for id, session := range r.sessions {
		if session.UserID == userID && session.Revoke(now, reason) {
			r.sessions[id] = session
			revoked++
		}
	}
	return revoked, nil
}

func (r *stubSessionRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

type stubTwoFactorRepo struct {
	mu       sync.Mutex
	settings map[string]domain.TwoFactorSettings
}

func newStubTwoFactorRepo() *stubTwoFactorRepo {
	return &stubTwoFactorRepo{settings: make(map[string]domain.TwoFactorSettings)}
}

func (r *stubTwoFactorRepo) Get(_ context.Context, userID string) (*domain.TwoFactorSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if settings, ok := r.settings[userID]; ok {
		clone := settings
		clone.RecoveryCodeHashes = append([]string(nil), settings.RecoveryCodeHashes...)
		return &clone, nil
	}
	return nil, repository.ErrNotFound
}

func (r *stubTwoFactorRepo) Save(_ context.Context, settings domain.TwoFactorSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings[settings.UserID] = settings
	return nil
}

func (r *stubTwoFactorRepo) Delete(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.settings, userID)
	return nil
}

// stubHasher keeps tests fast by skipping real key derivation.
type stubHasher struct{}

func (stubHasher) Hash(password string) (string, error) {
	return "stub$" + password, nil
}

func (stubHasher) Verify(password, encoded string) (bool, error) {
	return encoded == "stub$"+password, nil
}

type stubValidator struct {
	violations []string
}

func (v stubValidator) Validate(password string, _ domain.PasswordContext) []string {
	if strings.HasPrefix(password, "weak") {
		return append([]string(nil), v.violations...)
	}
	return nil
}

type stubNotifier struct {
	mu      sync.Mutex
	err     error
	codes   []string
	methods []domain.TwoFactorMethod
}

func (n *stubNotifier) SendCode(_ context.Context, _ domain.User, method domain.TwoFactorMethod, code string) error {
	if n.err != nil {
		return n.err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.methods = append(n.methods, method)
	n.codes = append(n.codes, code)
	return nil
}

func (n *stubNotifier) lastCode(t *testing.T) string {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.codes) == 0 {
		t.Fatal("no code was delivered")
	}
	return n.codes[len(n.codes)-1]
}

type stubCaptcha struct {
	ok  bool
	err error
}

func (c stubCaptcha) Validate(context.Context, string, string) (bool, error) {
	return c.ok, c.err
}

type stubAudit struct {
	mu       sync.Mutex
	attempts []domain.LoginAttempt
	actions  []string
}

func (a *stubAudit) LogAttempt(_ context.Context, attempt domain.LoginAttempt) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.attempts = append(a.attempts, attempt)
}

func (a *stubAudit) LogAction(_ context.Context, _ string, action string, _ map[string]any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.actions = append(a.actions, action)
}

func (a *stubAudit) attemptCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.attempts)
}

type stubEvents struct {
	mu        sync.Mutex
	succeeded int
	failed    int
	revoked   int
	password  int
	twoFactor int
}

func (e *stubEvents) PublishLoginSucceeded(context.Context, domain.LoginSucceededEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.succeeded++
	return nil
}

func (e *stubEvents) PublishLoginFailed(context.Context, domain.LoginFailedEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failed++
	return nil
}

func (e *stubEvents) PublishSessionRevoked(context.Context, domain.SessionRevokedEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.revoked++
	return nil
}

func (e *stubEvents) PublishPasswordChanged(context.Context, domain.PasswordChangedEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.password++
	return nil
}

func (e *stubEvents) PublishTwoFactorStateChanged(context.Context, domain.TwoFactorStateChangedEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.twoFactor++
	return nil
}

// testEnv bundles the wired services and their backing stubs.
type testEnv struct {
	cfg       *config.AppConfig
	users     *stubUserRepo
	sessions  *stubSessionRepo
	twoFactor *stubTwoFactorRepo
	notifier  *stubNotifier
	audit     *stubAudit
	events    *stubEvents
	signer    *security.TokenSigner
	tokens    *TokenService
	auth      *AuthService
}

func newTestEnv(t *testing.T, users ...domain.User) *testEnv {
	t.Helper()

	cfg := newTestConfig()
	userRepo := newStubUserRepo(users...)
	sessionRepo := newStubSessionRepo()
	twoFactorRepo := newStubTwoFactorRepo()
	notifier := &stubNotifier{}
	audit := &stubAudit{}
	events := &stubEvents{}
	log := zaptest.NewLogger(t)

	provider, err := security.NewEphemeralKeyProvider("test")
	if err != nil {
		t.Fatalf("NewEphemeralKeyProvider: %v", err)
	}
	signer := security.NewTokenSigner(provider, cfg.App.Name)

	tokens := NewTokenService(cfg, userRepo, sessionRepo, nil, signer, events, log)
	auth := NewAuthService(cfg, userRepo, stubHasher{}, nil, tokens, audit, events, log)

	return &testEnv{
		cfg:       cfg,
		users:     userRepo,
		sessions:  sessionRepo,
		twoFactor: twoFactorRepo,
		notifier:  notifier,
		audit:     audit,
		events:    events,
		signer:    signer,
		tokens:    tokens,
		auth:      auth,
	}
}

func activeUser(id string) domain.User {
	return domain.User{
		ID:                 id,
		Username:           "alice",
		Email:              "alice@example.com",
		PasswordHash:       "stub$correct-horse",
		Status:             domain.UserStatusActive,
		LockoutEnabled:     true,
		EmailConfirmed:     true,
		RegisteredAt:       time.Now().UTC().Add(-24 * time.Hour),
		LastPasswordChange: time.Now().UTC().Add(-24 * time.Hour),
	}
}
