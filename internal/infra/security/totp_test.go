package security

import (
	"strings"
	"testing"
	"time"
)

// rfc6238Secret is the ASCII seed from RFC 6238 appendix B.
var rfc6238Secret = []byte("12345678901234567890")

func TestGenerateCodeRFC6238Vectors(t *testing.T) {
	engine := NewTOTPEngine(TOTPConfig{Digits: 8, Period: 30})

	vectors := []struct {
		unix int64
		want string
	}{
		{59, "94287082"},
		{1111111109, "07081804"},
		{1111111111, "14050471"},
		{1234567890, "89005924"},
		{2000000000, "69279037"},
	}
	for _, v := range vectors {
		counter := engine.Counter(time.Unix(v.unix, 0).UTC())
		got, err := engine.GenerateCode(rfc6238Secret, counter)
		if err != nil {
			t.Fatalf("GenerateCode(t=%d): %v", v.unix, err)
		}
		if got != v.want {
			t.Errorf("t=%d: got %s, want %s", v.unix, got, v.want)
		}
	}
}

func TestValidateCodeSkewWindow(t *testing.T) {
	engine := NewTOTPEngine(TOTPConfig{Digits: 6, Period: 30, Skew: 1})
	now := time.Unix(1111111111, 0).UTC()
	base := engine.Counter(now)

	codeAt := func(offset int64) string {
		code, err := engine.GenerateCode(rfc6238Secret, base+offset)
		if err != nil {
			t.Fatalf("GenerateCode: %v", err)
		}
		return code
	}

	for _, offset := range []int64{-1, 0, 1} {
		ok, err := engine.ValidateCode(rfc6238Secret, codeAt(offset), now)
		if err != nil {
			t.Fatalf("ValidateCode(offset=%d): %v", offset, err)
		}
		if !ok {
			t.Errorf("offset %d: expected acceptance within skew window", offset)
		}
	}
	for _, offset := range []int64{-2, 2} {
		ok, err := engine.ValidateCode(rfc6238Secret, codeAt(offset), now)
		if err != nil {
			t.Fatalf("ValidateCode(offset=%d): %v", offset, err)
		}
		if ok {
			t.Errorf("offset %d: expected rejection outside skew window", offset)
		}
	}
}

func TestValidateCodeRejectsMalformedInput(t *testing.T) {
	engine := NewTOTPEngine(DefaultTOTPConfig("test"))
	now := time.Now().UTC()

	for _, code := range []string{"", "12345", "1234567", "12345a", "abcdef"} {
		ok, err := engine.ValidateCode(rfc6238Secret, code, now)
		if err != nil {
			t.Fatalf("ValidateCode(%q): %v", code, err)
		}
		if ok {
			t.Errorf("expected %q rejected", code)
		}
	}

	if _, err := engine.ValidateCode(nil, "123456", now); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestSecretRoundTrip(t *testing.T) {
	engine := NewTOTPEngine(DefaultTOTPConfig("test"))

	raw, encoded, err := engine.GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret: %v", err)
	}
	if len(raw) != 20 {
		t.Fatalf("expected 20 secret bytes, got %d", len(raw))
	}
	if strings.Contains(encoded, "=") {
		t.Fatalf("expected unpadded encoding, got %q", encoded)
	}

	decoded, err := DecodeSecret(encoded)
	if err != nil {
		t.Fatalf("DecodeSecret: %v", err)
	}
	if string(decoded) != string(raw) {
		t.Fatal("decoded secret does not match generated bytes")
	}

	// Lowercase and padded user input is tolerated.
	decoded, err = DecodeSecret("  " + strings.ToLower(encoded) + " ")
	if err != nil {
		t.Fatalf("DecodeSecret normalized: %v", err)
	}
	if string(decoded) != string(raw) {
		t.Fatal("normalized decode mismatch")
	}
}

func TestProvisionURI(t *testing.T) {
	engine := NewTOTPEngine(DefaultTOTPConfig("access-platform"))

	uri := engine.ProvisionURI("JBSWY3DPEHPK3PXP", "alice@example.com")
	if !strings.HasPrefix(uri, "otpauth://totp/access-platform:alice@example.com?") {
		t.Fatalf("unexpected label: %s", uri)
	}
	for _, fragment := range []string{"secret=JBSWY3DPEHPK3PXP", "issuer=access-platform", "period=30", "digits=6", "algorithm=SHA1"} {
		if !strings.Contains(uri, fragment) {
			t.Errorf("missing %q in %s", fragment, uri)
		}
	}
}
