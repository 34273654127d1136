package validator

import (
	"errors"
	"net/mail"
	"strings"
)

var (
	ErrInvalidEmail  = errors.New("invalid email format")
	ErrBlockedDomain = errors.New("email domain not allowed")
)

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail accepts a bare address ("a@b.c"), not a display-name form.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return ErrInvalidEmail
	}
	domain := Domain(email)
	if !strings.Contains(domain, ".") || strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return ErrInvalidEmail
	}
	return nil
}

// Domain returns the lower-cased part after the last "@".
func Domain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return ""
	}
	return strings.ToLower(email[at+1:])
}

// CheckDomain validates the address and rejects any domain in blocked.
func CheckDomain(email string, blocked []string) error {
	if err := ValidateEmail(email); err != nil {
		return err
	}
	if DomainIn(email, blocked) {
		return ErrBlockedDomain
	}
	return nil
}

func DomainIn(email string, domains []string) bool {
	domain := Domain(email)
	for _, d := range domains {
		if strings.EqualFold(domain, strings.TrimSpace(d)) {
			return true
		}
	}
	return false
}
