package webhooks

import (
	"crypto/rand"
	"encoding/hex"
	"net/url"

	apperr "projecthub/internal/pkg/errors"
	"projecthub/internal/platform/models"
)

func ValidateURL(raw string) error {
	if raw == "" {
		return apperr.Validation("url is required")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return apperr.Validation("invalid url format")
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return apperr.Validation("url must start with http:// or https://")
	}
	if u.Host == "" {
		return apperr.Validation("url must include a host")
	}
	return nil
}

// ValidateEvents requires a non-empty set drawn from the event catalog and
// returns it without duplicates.
func ValidateEvents(events []string) ([]string, error) {
	if len(events) == 0 {
		return nil, apperr.Validation("at least one event is required")
	}
	seen := make(map[string]bool, len(events))
	out := make([]string, 0, len(events))
	for _, e := range events {
		if !models.KnownEvent(e) {
			return nil, apperr.Validation("unknown event type %q", e).WithDetails(map[string]interface{}{"allowed": models.EventCatalog})
		}
		if seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out, nil
}

func GenerateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "whsec_" + hex.EncodeToString(b), nil
}
