package identity

import (
	"context"
	"database/sql"
	"time"

	apperr "projecthub/internal/pkg/errors"
	"projecthub/internal/platform/models"
	"projecthub/internal/platform/repositories"
)

// UserProvisioner stores profiles in the users table.
type UserProvisioner struct {
	users *repositories.UserRepository
	now   func() time.Time
}

func NewUserProvisioner(db *sql.DB) *UserProvisioner {
	return &UserProvisioner{users: repositories.NewUserRepository(db), now: time.Now}
}

func (p *UserProvisioner) EnsureUser(ctx context.Context, profile Profile) error {
	existing, err := p.users.GetByID(ctx, profile.ID)
	if err != nil {
		return apperr.Internal(err, "load user")
	}
	if existing != nil {
		return nil
	}
	byEmail, err := p.users.GetByEmail(ctx, profile.Email)
	if err != nil {
		return apperr.Internal(err, "load user by email")
	}
	if byEmail != nil {
		return apperr.Conflict("email %s is already registered", profile.Email)
	}

	now := p.now().Unix()
	err = p.users.Create(ctx, &models.User{
		ID:            profile.ID,
		Email:         profile.Email,
		FullName:      profile.FullName,
		EmailVerified: profile.Verified,
		PasswordHash:  profile.PasswordHash,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return apperr.Internal(err, "create user")
	}
	return nil
}
