package orgs

import (
	"context"
	"errors"
	"strings"
	"testing"

	apperr "projecthub/internal/pkg/errors"
)

type mockChecker struct {
	slugs map[string]bool
}

func (m *mockChecker) ExistsBySlug(ctx context.Context, slug string) (bool, error) {
	if slug == "error" {
		return false, errors.New("db error")
	}
	return m.slugs[slug], nil
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Acme Corp", "acme-corp"},
		{"  Hello,   World!! ", "hello-world"},
		{"Ünïcode Ltd", "n-code-ltd"},
		{"42", "42"},
		{"!!!", ""},
	}
	for _, tt := range tests {
		if got := Slugify(tt.in); got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestGenerateSlug(t *testing.T) {
	ctx := context.Background()
	checker := &mockChecker{slugs: map[string]bool{"taken": true, "acme-corp": true}}

	slug, err := GenerateSlug(ctx, "Anything", "custom-slug", checker)
	if err != nil || slug != "custom-slug" {
		t.Fatalf("custom slug: got %q, %v", slug, err)
	}

	_, err = GenerateSlug(ctx, "Anything", "taken", checker)
	if !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("expected conflict for taken slug, got %v", err)
	}

	for _, bad := range []string{"ab", "api", "-lead", "bad_chars", "double--hyphen"} {
		if _, err := GenerateSlug(ctx, "Anything", bad, checker); !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("expected validation error for %q, got %v", bad, err)
		}
	}

	slug, err = GenerateSlug(ctx, "Fresh Team", "", checker)
	if err != nil || slug != "fresh-team" {
		t.Errorf("derived slug: got %q, %v", slug, err)
	}

	slug, err = GenerateSlug(ctx, "Acme Corp", "", checker)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(slug, "acme-corp-") || len(slug) != len("acme-corp-")+slugSuffixLen {
		t.Errorf("expected suffixed slug, got %q", slug)
	}

	slug, err = GenerateSlug(ctx, "API", "", checker)
	if err != nil || !strings.HasPrefix(slug, "api-") {
		t.Errorf("reserved name should be suffixed, got %q, %v", slug, err)
	}

	slug, err = GenerateSlug(ctx, "!", "", checker)
	if err != nil || slug != "org" {
		t.Errorf("empty name should fall back to org, got %q, %v", slug, err)
	}
}
