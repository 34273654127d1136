package webhooks

import (
	"testing"
)

func TestSign(t *testing.T) {
	secret := "secret"
	payload := []byte("payload")

	// echo -n "payload" | openssl dgst -sha256 -hmac "secret"
	expected := "b82fcb791acec57859b989b430a826488ce2e479fdf92326bd0a2e8375a42ba4"

	got := Sign(secret, payload)

	if got != expected {
		t.Errorf("Sign() = %v, want %v", got, expected)
	}
}

func TestVerify(t *testing.T) {
	sig := Sign("secret", []byte("payload"))

	tests := []struct {
		name      string
		secret    string
		payload   string
		signature string
		want      bool
	}{
		{"matching", "secret", "payload", sig, true},
		{"other secret", "other", "payload", sig, false},
		{"tampered body", "secret", "payload ", sig, false},
		{"not hex", "secret", "payload", "zz", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Verify(tt.secret, []byte(tt.payload), tt.signature); got != tt.want {
				t.Errorf("Verify() = %v, want %v", got, tt.want)
			}
		})
	}
}
