package security

import (
	"fmt"
	"unicode"

	zxcvbn "github.com/nbutton23/zxcvbn-go"

	"github.com/arklim/access-platform-auth/internal/core/domain"
	"github.com/arklim/access-platform-auth/internal/core/port"
)

// PasswordRuleConfig captures the configurable strength requirements.
type PasswordRuleConfig struct {
	MinLength      int
	MaxLength      int
	RequireDigit   bool
	RequireLower   bool
	RequireUpper   bool
	RequireSymbol  bool
	MinZxcvbnScore int
}

// DefaultPasswordRules returns the service defaults: length 8..128, one of
// each character class, and a zxcvbn score of at least 2.
func DefaultPasswordRules() PasswordRuleConfig {
	return PasswordRuleConfig{
		MinLength:      8,
		MaxLength:      128,
		RequireDigit:   true,
		RequireLower:   true,
		RequireUpper:   true,
		RequireSymbol:  true,
		MinZxcvbnScore: 2,
	}
}

// PasswordValidator applies the configured rules and collects every violation,
// so callers can report the complete list rather than the first failure.
type PasswordValidator struct {
	cfg PasswordRuleConfig
}

// NewPasswordValidator constructs a validator with the provided rules.
func NewPasswordValidator(cfg PasswordRuleConfig) *PasswordValidator {
	if cfg.MinLength <= 0 {
		cfg.MinLength = 8
	}
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = 128
	}
	return &PasswordValidator{cfg: cfg}
}

// Validate returns the list of violated rules; empty means acceptable.
func (v *PasswordValidator) Validate(password string, ctx domain.PasswordContext) []string {
	violations := make([]string, 0, 4)

	length := len([]rune(password))
	if length < v.cfg.MinLength {
		violations = append(violations, fmt.Sprintf("password must be at least %d characters long", v.cfg.MinLength))
	}
	if length > v.cfg.MaxLength {
		violations = append(violations, fmt.Sprintf("password must be at most %d characters long", v.cfg.MaxLength))
	}

	var hasDigit, hasLower, hasUpper, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsSymbol(r) || unicode.IsPunct(r):
			hasSymbol = true
		}
	}

	if v.cfg.RequireDigit && !hasDigit {
		violations = append(violations, "password must include at least one digit")
	}
	if v.cfg.RequireLower && !hasLower {
		violations = append(violations, "password must include at least one lowercase letter")
	}
	if v.cfg.RequireUpper && !hasUpper {
		violations = append(violations, "password must include at least one uppercase letter")
	}
	if v.cfg.RequireSymbol && !hasSymbol {
		violations = append(violations, "password must include at least one symbol")
	}

	// Skip the strength estimate once structural rules already failed.
	if len(violations) == 0 && v.cfg.MinZxcvbnScore > 0 {
		inputs := make([]string, 0, 3)
		if ctx.Username != "" {
			inputs = append(inputs, ctx.Username)
		}
		if ctx.Email != "" {
			inputs = append(inputs, ctx.Email)
		}
		if ctx.Phone != nil && *ctx.Phone != "" {
			inputs = append(inputs, *ctx.Phone)
		}

		result := zxcvbn.PasswordStrength(password, inputs)
		if result.Score < minInt(v.cfg.MinZxcvbnScore, 4) {
			violations = append(violations, "password is too weak; choose a more complex value")
		}
	}

	return violations
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

var _ port.PasswordPolicyValidator = (*PasswordValidator)(nil)
