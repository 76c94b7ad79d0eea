package security

import (
	"strings"
	"testing"
)

func TestValidateSecret_TooShort(t *testing.T) {
	if err := ValidateSecret("short"); err == nil {
		t.Error("Short secret should fail validation")
	}
}

func TestValidateSecret_Placeholder(t *testing.T) {
	placeholder := "replace-with-secret-padded-out-to-minimum-length-xx"
	if err := ValidateSecret(placeholder); err == nil {
		t.Error("Placeholder secret should fail validation")
	}
}

func TestValidateSecret_LowEntropy(t *testing.T) {
	if err := ValidateSecret(strings.Repeat("ab", 30)); err == nil {
		t.Error("Low-entropy secret should fail validation")
	}
}

func TestValidateSecret_Generated(t *testing.T) {
	secret, err := GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret failed: %v", err)
	}
	if len(secret) < MinSecretLength {
		t.Errorf("Generated secret too short: %d chars", len(secret))
	}
	if err := ValidateSecret(secret); err != nil {
		t.Errorf("Generated secret should validate: %v", err)
	}
}

func TestGenerateSecret_Unique(t *testing.T) {
	a, err := GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret failed: %v", err)
	}
	b, err := GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret failed: %v", err)
	}
	if a == b {
		t.Error("Two generated secrets should differ")
	}
}

func TestIsSecretKey(t *testing.T) {
	secretish := []string{"API_TOKEN", "github_token", "DB_PASSWORD", "secret", "AWS_SECRET_ACCESS_KEY", "AuthHeader"}
	for _, name := range secretish {
		if !IsSecretKey(name) {
			t.Errorf("IsSecretKey(%q) should be true", name)
		}
	}

	plain := []string{"PORT", "HOME", "LOG_LEVEL", "WORKDIR"}
	for _, name := range plain {
		if IsSecretKey(name) {
			t.Errorf("IsSecretKey(%q) should be false", name)
		}
	}
}

func TestRedactEnv(t *testing.T) {
	env := map[string]string{
		"API_TOKEN": "ghp_abc123",
		"PORT":      "8080",
	}

	redacted := RedactEnv(env)

	if redacted["API_TOKEN"] != RedactedValue {
		t.Errorf("Token value should be redacted, got %q", redacted["API_TOKEN"])
	}
	if redacted["PORT"] != "8080" {
		t.Errorf("Plain value should pass through, got %q", redacted["PORT"])
	}

	// Original must be untouched
	if env["API_TOKEN"] != "ghp_abc123" {
		t.Error("RedactEnv must not modify its input")
	}

	if RedactEnv(nil) != nil {
		t.Error("RedactEnv(nil) should be nil")
	}
}
