package validator

import (
	"testing"
)

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		email   string
		wantErr bool
	}{
		{"alice@example.com", false},
		{"Bob.Smith+pm@corp.example.org", false},
		{"", true},
		{"no-at-sign", true},
		{"two@@example.com", true},
		{"Alice <alice@example.com>", true},
		{"alice@localhost", true},
		{"alice@example.", true},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateEmail(%q) error = %v, wantErr %v", tt.email, err, tt.wantErr)
			}
		})
	}
}

func TestCheckDomain(t *testing.T) {
	blocked := []string{"mailinator.com", " Spam.Example "}

	if err := CheckDomain("dev@acme.io", blocked); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := CheckDomain("dev@MAILINATOR.com", blocked); err != ErrBlockedDomain {
		t.Errorf("expected ErrBlockedDomain, got %v", err)
	}
	if err := CheckDomain("dev@spam.example", blocked); err != ErrBlockedDomain {
		t.Errorf("expected ErrBlockedDomain, got %v", err)
	}
	if err := CheckDomain("broken", blocked); err != ErrInvalidEmail {
		t.Errorf("expected ErrInvalidEmail, got %v", err)
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Alice@Example.COM "); got != "alice@example.com" {
		t.Errorf("NormalizeEmail() = %q", got)
	}
}
