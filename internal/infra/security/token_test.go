package security

import (
	"testing"
)

func TestGenerateSecureToken(t *testing.T) {
	first, err := GenerateSecureToken(32)
	if err != nil {
		t.Fatalf("GenerateSecureToken: %v", err)
	}
	second, err := GenerateSecureToken(32)
	if err != nil {
		t.Fatalf("GenerateSecureToken: %v", err)
	}
	if first == second {
		t.Fatal("expected distinct tokens")
	}
	// 32 bytes encode to 43 unpadded base64url characters.
	if len(first) != 43 {
		t.Fatalf("expected 43 characters, got %d", len(first))
	}

	if _, err := GenerateSecureToken(0); err == nil {
		t.Fatal("expected error for zero length")
	}
}

func TestGenerateNumericCode(t *testing.T) {
	code, err := GenerateNumericCode(6)
	if err != nil {
		t.Fatalf("GenerateNumericCode: %v", err)
	}
	if len(code) != 6 {
		t.Fatalf("expected 6 digits, got %q", code)
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			t.Fatalf("non-digit %q in code %q", r, code)
		}
	}
}

func TestGenerateRecoveryCodes(t *testing.T) {
	codes, err := GenerateRecoveryCodes(8)
	if err != nil {
		t.Fatalf("GenerateRecoveryCodes: %v", err)
	}
	if len(codes) != 8 {
		t.Fatalf("expected 8 codes, got %d", len(codes))
	}
	seen := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		if len(code) != 20 {
			t.Fatalf("expected 20 hex characters, got %q", code)
		}
		if _, dup := seen[code]; dup {
			t.Fatalf("duplicate recovery code %q", code)
		}
		seen[code] = struct{}{}
	}

	if _, err := GenerateRecoveryCodes(0); err == nil {
		t.Fatal("expected error for zero count")
	}
}

func TestTokenHashing(t *testing.T) {
	hash := HashToken("refresh-token-value")
	if hash != HashToken("refresh-token-value") {
		t.Fatal("expected deterministic hashing")
	}
	if !VerifyTokenHash("refresh-token-value", hash) {
		t.Fatal("expected presented token to verify")
	}
	if VerifyTokenHash("different-token", hash) {
		t.Fatal("expected mismatch to fail verification")
	}
}
