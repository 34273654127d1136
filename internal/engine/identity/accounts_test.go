package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperr "projecthub/internal/pkg/errors"
	"projecthub/internal/platform/database/dbtest"
)

func TestAccounts_SignUpAndLogin(t *testing.T) {
	accounts := NewAccounts(dbtest.New(t), Policy{AutoVerifyDomains: []string{"acme.com"}})
	ctx := context.Background()

	user, err := accounts.SignUp(ctx, SignUpInput{Email: " Ada@Acme.com", Password: "correct-horse", FullName: "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "ada@acme.com", user.Email)
	assert.True(t, user.EmailVerified)
	assert.NotEmpty(t, user.PasswordHash)

	got, err := accounts.Login(ctx, "ADA@acme.com", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = accounts.Login(ctx, "ada@acme.com", "wrong-password")
	assert.ErrorIs(t, err, apperr.ErrAuth)
	_, err = accounts.Login(ctx, "nobody@acme.com", "correct-horse")
	assert.ErrorIs(t, err, apperr.ErrAuth)

	_, err = accounts.SignUp(ctx, SignUpInput{Email: "ada@acme.com", Password: "another-pass", FullName: "Ada 2"})
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestAccounts_SignUpValidation(t *testing.T) {
	accounts := NewAccounts(dbtest.New(t), Policy{BlockedDomains: []string{"mailinator.com"}})
	ctx := context.Background()

	_, err := accounts.SignUp(ctx, SignUpInput{Email: "x@mailinator.com", Password: "long-enough", FullName: "X"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = accounts.SignUp(ctx, SignUpInput{Email: "x@example.com", Password: "short", FullName: "X"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
