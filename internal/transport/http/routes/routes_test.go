package routes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/arklim/access-platform-auth/internal/infra/config"
	"github.com/arklim/access-platform-auth/internal/infra/security"
	"github.com/arklim/access-platform-auth/internal/usecase"
)

type stubChecker struct {
	err error
}

func (s stubChecker) Ping(context.Context) error        { return s.err }
func (s stubChecker) HealthCheck(context.Context) error { return s.err }

func newTestDeps(t *testing.T, db, cache error) Dependencies {
	t.Helper()

	cfg := &config.AppConfig{
		App: config.AppSettings{Name: "access-platform-auth", Env: "test"},
		JWT: config.JWTSettings{
			AccessTokenTTL:  time.Hour,
			RefreshTokenTTL: 24 * time.Hour,
		},
	}
	log := zaptest.NewLogger(t)

	provider, err := security.NewEphemeralKeyProvider("test")
	if err != nil {
		t.Fatalf("NewEphemeralKeyProvider: %v", err)
	}
	signer := security.NewTokenSigner(provider, cfg.App.Name)
	tokens := usecase.NewTokenService(cfg, nil, nil, nil, signer, nil, log)

	return Dependencies{
		Config:      cfg,
		Logger:      log,
		Services:    ServiceSet{Tokens: tokens},
		KeyProvider: provider,
		Database:    stubChecker{err: db},
		Cache:       stubChecker{err: cache},
	}
}

func TestHealthEndpoints(t *testing.T) {
	router := Register(newTestDeps(t, nil, nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz: expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("readyz: expected 200, got %d", rec.Code)
	}
}

func TestReadinessDegradesOnDependencyFailure(t *testing.T) {
	router := Register(newTestDeps(t, errors.New("connection refused"), nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 with failing database, got %d", rec.Code)
	}
}

func TestJWKSEndpoint(t *testing.T) {
	router := Register(newTestDeps(t, nil, nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/.well-known/jwks.json", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var doc struct {
		Keys []map[string]any `json:"keys"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("unmarshal jwks: %v", err)
	}
	if len(doc.Keys) != 1 {
		t.Fatalf("expected one published key, got %d", len(doc.Keys))
	}
	if cc := rec.Header().Get("Cache-Control"); cc == "" {
		t.Fatal("expected Cache-Control header on JWKS")
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	router := Register(newTestDeps(t, nil, nil))

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/v1/auth/logout"},
		{http.MethodGet, "/api/v1/sessions"},
		{http.MethodPut, "/api/v1/password"},
		{http.MethodPost, "/api/v1/2fa/setup"},
	}
	for _, p := range paths {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(p.method, p.path, nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: expected 401 without token, got %d", p.method, p.path, rec.Code)
		}
	}

	// A syntactically broken bearer token is rejected, not crashed on.
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for malformed token, got %d", rec.Code)
	}
}
