package orgs

import (
	"context"
	"crypto/rand"
	"math/big"
	"strings"

	apperr "projecthub/internal/pkg/errors"
)

const (
	slugSuffixChars = "abcdefghijklmnopqrstuvwxyz0123456789"
	slugSuffixLen   = 4
	slugMinLen      = 3
	slugMaxLen      = 48
)

var reservedSlugs = map[string]bool{
	"api": true, "admin": true, "app": true, "dashboard": true, "login": true, "signup": true,
	"health": true, "metrics": true, "settings": true, "invitations": true, "me": true, "www": true,
}

type SlugChecker interface {
	ExistsBySlug(ctx context.Context, slug string) (bool, error)
}

// GenerateSlug validates an explicit slug, or derives one from name and
// appends a random suffix until it is free.
func GenerateSlug(ctx context.Context, name, custom string, checker SlugChecker) (string, error) {
	if custom != "" {
		custom = strings.ToLower(strings.TrimSpace(custom))
		if !isValidSlug(custom) {
			return "", apperr.Validation("slug must be 3-48 lowercase letters, digits or hyphens and not reserved")
		}
		exists, err := checker.ExistsBySlug(ctx, custom)
		if err != nil {
			return "", err
		}
		if exists {
			return "", apperr.Conflict("slug %q is already taken", custom)
		}
		return custom, nil
	}

	base := Slugify(name)
	if len(base) < slugMinLen {
		base = strings.Trim(base+"-org", "-")
	}
	if len(base) > slugMaxLen-slugSuffixLen-1 {
		base = strings.Trim(base[:slugMaxLen-slugSuffixLen-1], "-")
	}

	candidate := base
	if reservedSlugs[candidate] {
		candidate = base + "-" + randomSuffix(slugSuffixLen)
	}

	maxRetries := 5
	for i := 0; i < maxRetries; i++ {
		exists, err := checker.ExistsBySlug(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		candidate = base + "-" + randomSuffix(slugSuffixLen)
	}

	// Collisions persist; one try with a longer suffix.
	candidate = base + "-" + randomSuffix(slugSuffixLen*2)
	exists, err := checker.ExistsBySlug(ctx, candidate)
	if err != nil {
		return "", err
	}
	if exists {
		return "", apperr.Conflict("failed to generate a unique slug")
	}
	return candidate, nil
}

// Slugify lower-cases name and joins its alphanumeric runs with hyphens.
func Slugify(name string) string {
	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(name) {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !isAlnum {
			pendingHyphen = b.Len() > 0
			continue
		}
		if pendingHyphen {
			b.WriteByte('-')
			pendingHyphen = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isValidSlug(slug string) bool {
	if len(slug) < slugMinLen || len(slug) > slugMaxLen {
		return false
	}
	if strings.HasPrefix(slug, "-") || strings.HasSuffix(slug, "-") || strings.Contains(slug, "--") {
		return false
	}
	for _, c := range slug {
		if c != '-' && !strings.ContainsRune(slugSuffixChars, c) {
			return false
		}
	}
	return !reservedSlugs[slug]
}

func randomSuffix(n int) string {
	b := make([]byte, n)
	max := big.NewInt(int64(len(slugSuffixChars)))
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			idx = big.NewInt(int64(i))
		}
		b[i] = slugSuffixChars[idx.Int64()]
	}
	return string(b)
}
