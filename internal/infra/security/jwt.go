package security

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	uuid "github.com/google/uuid"
)

var (
	// ErrTokenInvalid indicates the token is malformed or its signature failed.
	ErrTokenInvalid = errors.New("jwt: invalid token")
	// ErrTokenExpired indicates an otherwise authentic token past its expiry.
	ErrTokenExpired = errors.New("jwt: token expired")
)

// AccessTokenClaims augments registered claims with the caller's access profile.
// The registered ID (jti) equals the session id, which is how revocation
// reaches tokens before their natural expiry.
type AccessTokenClaims struct {
	UserID      string   `json:"uid"`
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"perms,omitempty"`
	jwt.RegisteredClaims
}

// SessionID returns the session identifier carried in the jti claim.
func (c *AccessTokenClaims) SessionID() string {
	return c.RegisteredClaims.ID
}

// AccessTokenOptions configures creation of access token claims.
type AccessTokenOptions struct {
	UserID      string
	SessionID   string
	Roles       []string
	Permissions []string
	Issuer      string
	TTL         time.Duration
	IssuedAt    time.Time
}

// NewAccessTokenClaims constructs standardized access token claims.
func NewAccessTokenClaims(opts AccessTokenOptions) (*AccessTokenClaims, error) {
	userID := strings.TrimSpace(opts.UserID)
	if userID == "" {
		return nil, fmt.Errorf("jwt: user id is required")
	}
	issuer := strings.TrimSpace(opts.Issuer)
	if issuer == "" {
		return nil, fmt.Errorf("jwt: issuer is required")
	}
	if opts.TTL <= 0 {
		return nil, fmt.Errorf("jwt: ttl must be positive")
	}

	now := opts.IssuedAt
	if now.IsZero() {
		now = time.Now().UTC()
	} else {
		now = now.UTC()
	}

	jti := strings.TrimSpace(opts.SessionID)
	if jti == "" {
		jti = uuid.NewString()
	}

	return &AccessTokenClaims{
		UserID:      userID,
		Roles:       opts.Roles,
		Permissions: opts.Permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{issuer},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(opts.TTL)),
			ID:        jti,
		},
	}, nil
}

// TokenSigner signs and parses RS256 access tokens using a KeyProvider.
type TokenSigner struct {
	provider KeyProvider
	issuer   string
}

// NewTokenSigner constructs a TokenSigner bound to the supplied provider.
func NewTokenSigner(provider KeyProvider, issuer string) *TokenSigner {
	return &TokenSigner{provider: provider, issuer: issuer}
}

// Sign produces a signed compact JWT for the supplied claims.
func (s *TokenSigner) Sign(claims *AccessTokenClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = s.provider.SigningKID()

	signingKey, err := s.provider.GetSigningKey()
	if err != nil {
		return "", fmt.Errorf("get signing key: %w", err)
	}

	signed, err := token.SignedString(signingKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

// Parse verifies the token's signature, issuer, audience, and validity window.
func (s *TokenSigner) Parse(token string) (*AccessTokenClaims, error) {
	return s.parse(token, false)
}

// ParseAllowExpired verifies everything except the expiry claim. The refresh
// flow uses this to identify the session behind an expired access token; the
// signature must still verify.
func (s *TokenSigner) ParseAllowExpired(token string) (*AccessTokenClaims, error) {
	return s.parse(token, true)
}

func (s *TokenSigner) parse(token string, allowExpired bool) (*AccessTokenClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrTokenInvalid
	}

	options := []jwt.ParserOption{
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.issuer),
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
	}
	if allowExpired {
		options = append(options, jwt.WithoutClaimsValidation())
	}

	claims := &AccessTokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		kid, ok := t.Header["kid"].(string)
		if !ok {
			return nil, fmt.Errorf("kid header not found")
		}
		return s.provider.GetVerificationKey(kid)
	}, options...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	if parsed == nil || !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	if strings.TrimSpace(claims.UserID) == "" || strings.TrimSpace(claims.RegisteredClaims.ID) == "" {
		return nil, ErrTokenInvalid
	}
	if allowExpired {
		// WithoutClaimsValidation skipped everything; recheck issuer and
		// audience manually so only the expiry exemption remains.
		if claims.Issuer != s.issuer {
			return nil, ErrTokenInvalid
		}
		if !containsString(claims.Audience, s.issuer) {
			return nil, ErrTokenInvalid
		}
	}

	return claims, nil
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

// JWKS produces the JSON Web Key Set for the provider's verification keys.
func JWKS(provider KeyProvider) ([]byte, error) {
	enumerator, ok := provider.(interface {
		ListVerificationKeys() map[string]*rsa.PublicKey
	})
	if !ok {
		return json.Marshal(map[string]any{"keys": []any{}})
	}

	keys := make([]map[string]string, 0)
	for kid, key := range enumerator.ListVerificationKeys() {
		if key == nil {
			continue
		}
		keys = append(keys, map[string]string{
			"kty": "RSA",
			"use": "sig",
			"alg": "RS256",
			"kid": kid,
			"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		})
	}

	return json.Marshal(map[string]any{"keys": keys})
}
