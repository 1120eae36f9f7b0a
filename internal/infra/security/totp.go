package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const totpSecretBytes = 20

// TOTPConfig defines the RFC 6238 parameters for time-based codes.
type TOTPConfig struct {
	Issuer string
	// Period is the time-step size in seconds.
	Period int
	Digits int
	// Skew is how many adjacent time steps on each side are accepted,
	// tolerating client clock drift.
	Skew int
}

// DefaultTOTPConfig returns the standard 30-second, 6-digit, ±1 step setup.
func DefaultTOTPConfig(issuer string) TOTPConfig {
	return TOTPConfig{Issuer: issuer, Period: 30, Digits: 6, Skew: 1}
}

// TOTPEngine generates and validates time-based one-time passwords.
// All methods are pure and safe for concurrent use.
type TOTPEngine struct {
	cfg TOTPConfig
}

// NewTOTPEngine constructs an engine, filling in defaults for zero fields.
func NewTOTPEngine(cfg TOTPConfig) *TOTPEngine {
	if cfg.Period <= 0 {
		cfg.Period = 30
	}
	if cfg.Digits <= 0 {
		cfg.Digits = 6
	}
	if cfg.Skew < 0 {
		cfg.Skew = 1
	}
	return &TOTPEngine{cfg: cfg}
}

// GenerateSecret returns 20 random bytes and their unpadded base32 encoding
// suitable for storage and authenticator provisioning.
func (e *TOTPEngine) GenerateSecret() ([]byte, string, error) {
	raw := make([]byte, totpSecretBytes)
	if _, err := rand.Read(raw); err != nil {
		return nil, "", fmt.Errorf("totp: generate secret: %w", err)
	}

	enc := base32.StdEncoding.WithPadding(base32.NoPadding)
	return raw, enc.EncodeToString(raw), nil
}

// DecodeSecret reverses GenerateSecret's encoding.
func DecodeSecret(secretBase32 string) ([]byte, error) {
	normalized := strings.ToUpper(strings.TrimSpace(secretBase32))
	enc := base32.StdEncoding.WithPadding(base32.NoPadding)
	raw, err := enc.DecodeString(normalized)
	if err != nil {
		return nil, fmt.Errorf("totp: decode secret: %w", err)
	}
	return raw, nil
}

// ProvisionURI builds the otpauth:// URI consumed by authenticator apps.
func (e *TOTPEngine) ProvisionURI(secretBase32, account string) string {
	label := url.PathEscape(e.cfg.Issuer + ":" + account)

	v := url.Values{}
	v.Set("secret", secretBase32)
	v.Set("issuer", e.cfg.Issuer)
	v.Set("period", strconv.Itoa(e.cfg.Period))
	v.Set("digits", strconv.Itoa(e.cfg.Digits))
	v.Set("algorithm", "SHA1")

	return "otpauth://totp/" + label + "?" + v.Encode()
}

// GenerateCode produces the code for an explicit time-step counter.
func (e *TOTPEngine) GenerateCode(secret []byte, counter int64) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("totp: empty secret")
	}
	return hotpCode(secret, counter, e.cfg.Digits), nil
}

// Counter returns the time-step counter for the supplied moment.
func (e *TOTPEngine) Counter(at time.Time) int64 {
	return at.Unix() / int64(e.cfg.Period)
}

// ValidateCode checks the supplied code against the current counter and the
// configured skew window. Comparison is constant time.
func (e *TOTPEngine) ValidateCode(secret []byte, code string, now time.Time) (bool, error) {
	trimmed := strings.TrimSpace(code)
	if len(trimmed) != e.cfg.Digits || !isDigits(trimmed) {
		return false, nil
	}
	if len(secret) == 0 {
		return false, errors.New("totp: empty secret")
	}

	base := e.Counter(now)
	for step := -e.cfg.Skew; step <= e.cfg.Skew; step++ {
		counter := base + int64(step)
		if counter < 0 {
			continue
		}
		generated := hotpCode(secret, counter, e.cfg.Digits)
		if subtle.ConstantTimeCompare([]byte(generated), []byte(trimmed)) == 1 {
			return true, nil
		}
	}

	return false, nil
}

// hotpCode implements RFC 4226 dynamic truncation over HMAC-SHA1.
func hotpCode(secret []byte, counter int64, digits int) string {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(counter))

	mac := hmac.New(sha1.New, secret)
	_, _ = mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	bin := (int(sum[offset])&0x7f)<<24 |
		(int(sum[offset+1])&0xff)<<16 |
		(int(sum[offset+2])&0xff)<<8 |
		(int(sum[offset+3]) & 0xff)

	mod := 1
	for i := 0; i < digits; i++ {
		mod *= 10
	}

	return fmt.Sprintf("%0*d", digits, bin%mod)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
