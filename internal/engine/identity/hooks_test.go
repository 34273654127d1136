package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	apperr "projecthub/internal/pkg/errors"
	"projecthub/internal/platform/database/dbtest"
	"projecthub/internal/platform/repositories"
)

func signUpEvent(email, name string) Event {
	return Event{
		TriggerSource: TriggerPreSignUp,
		UserName:      "user-1",
		Request:       Request{UserAttributes: map[string]string{AttrEmail: email, AttrName: name}},
	}
}

func TestPreSignUp(t *testing.T) {
	policy := Policy{BlockedDomains: []string{"mailinator.com"}, AutoVerifyDomains: []string{"acme.com"}}

	tests := []struct {
		name       string
		event      Event
		wantErr    bool
		wantEmail  string
		wantVerify bool
	}{
		{"normalizes email", signUpEvent("  Ada@Example.COM ", "Ada"), false, "ada@example.com", false},
		{"auto verifies allowed domain", signUpEvent("bob@ACME.com", "Bob"), false, "bob@acme.com", true},
		{"blocked domain", signUpEvent("x@mailinator.com", "X"), true, "", false},
		{"malformed email", signUpEvent("not-an-email", "X"), true, "", false},
		{"missing name", signUpEvent("ada@example.com", "  "), true, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := tt.event.Request.UserAttributes[AttrEmail]
			got, err := PreSignUp(tt.event, policy)
			if tt.wantErr {
				assert.True(t, errors.Is(err, apperr.ErrValidation), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantEmail, got.Request.UserAttributes[AttrEmail])
			assert.Equal(t, tt.wantVerify, got.Response.AutoVerifyEmail)
			assert.False(t, got.Response.AutoConfirmUser)
			assert.Equal(t, original, tt.event.Request.UserAttributes[AttrEmail], "input is not mutated")
		})
	}
}

type mockProvisioner struct {
	mock.Mock
}

func (m *mockProvisioner) EnsureUser(ctx context.Context, p Profile) error {
	return m.Called(ctx, p).Error(0)
}

func TestPostConfirmation_UsesSubThenUserName(t *testing.T) {
	ctx := context.Background()
	prov := &mockProvisioner{}
	prov.On("EnsureUser", ctx, Profile{ID: "sub-1", Email: "ada@example.com", FullName: "Ada", Verified: true}).Return(nil).Once()
	prov.On("EnsureUser", ctx, Profile{ID: "user-1", Email: "ada@example.com", FullName: "Ada"}).Return(nil).Once()

	withSub := signUpEvent("ada@example.com", "Ada")
	withSub.Request.UserAttributes[AttrSub] = "sub-1"
	withSub.Request.UserAttributes["email_verified"] = "true"
	got, err := PostConfirmation(ctx, withSub, prov)
	require.NoError(t, err)
	assert.Equal(t, withSub, got)

	_, err = PostConfirmation(ctx, signUpEvent("ada@example.com", "Ada"), prov)
	require.NoError(t, err)
	prov.AssertExpectations(t)
}

func TestPostConfirmation_Invalid(t *testing.T) {
	prov := &mockProvisioner{}
	ev := signUpEvent("bad", "Ada")
	_, err := PostConfirmation(context.Background(), ev, prov)
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	ev = signUpEvent("ada@example.com", "Ada")
	ev.UserName = ""
	_, err = PostConfirmation(context.Background(), ev, prov)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	prov.AssertNotCalled(t, "EnsureUser", mock.Anything, mock.Anything)
}

func TestUserProvisioner_Idempotent(t *testing.T) {
	db := dbtest.New(t)
	prov := NewUserProvisioner(db)
	ctx := context.Background()

	ev := signUpEvent("ada@example.com", "Ada")
	ev.Request.UserAttributes[AttrSub] = "usr_ada"
	for i := 0; i < 2; i++ {
		_, err := PostConfirmation(ctx, ev, prov)
		require.NoError(t, err)
	}

	u, err := repositories.NewUserRepository(db).GetByID(ctx, "usr_ada")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "Ada", u.FullName)

	other := signUpEvent("ada@example.com", "Imposter")
	other.Request.UserAttributes[AttrSub] = "usr_other"
	_, err = PostConfirmation(ctx, other, prov)
	assert.True(t, errors.Is(err, apperr.ErrConflict))
}
