package identity

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	apperr "projecthub/internal/pkg/errors"
	"projecthub/internal/pkg/validator"
	"projecthub/internal/platform/auth"
	"projecthub/internal/platform/models"
	"projecthub/internal/platform/repositories"
)

// Accounts handles email and password accounts. Sign-up goes through the
// same PreSignUp and PostConfirmation hooks as the identity provider.
type Accounts struct {
	users       *repositories.UserRepository
	provisioner Provisioner
	policy      Policy
}

func NewAccounts(db *sql.DB, policy Policy) *Accounts {
	return &Accounts{
		users:       repositories.NewUserRepository(db),
		provisioner: NewUserProvisioner(db),
		policy:      policy,
	}
}

type SignUpInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

type withPassword struct {
	Provisioner
	hash string
}

func (p withPassword) EnsureUser(ctx context.Context, profile Profile) error {
	profile.PasswordHash = p.hash
	return p.Provisioner.EnsureUser(ctx, profile)
}

func (a *Accounts) SignUp(ctx context.Context, in SignUpInput) (*models.User, error) {
	id := "usr_" + uuid.New().String()
	event, err := PreSignUp(Event{
		TriggerSource: TriggerPreSignUp,
		UserName:      id,
		Request: Request{UserAttributes: map[string]string{
			AttrSub:   id,
			AttrEmail: in.Email,
			AttrName:  in.FullName,
		}},
	}, a.policy)
	if err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if errors.Is(err, auth.ErrWeakPassword) {
		return nil, apperr.Validation("%s", err.Error())
	}
	if err != nil {
		return nil, apperr.Internal(err, "hash password")
	}

	event.TriggerSource = TriggerPostConfirmation
	if _, err := PostConfirmation(ctx, event, withPassword{Provisioner: a.provisioner, hash: hash}); err != nil {
		return nil, err
	}

	user, err := a.users.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Internal(err, "load user")
	}
	if user == nil {
		return nil, apperr.Internal(errors.New("user missing after sign-up"), "load user")
	}
	return user, nil
}

// Login checks credentials. Unknown emails and wrong passwords look the same.
func (a *Accounts) Login(ctx context.Context, email, password string) (*models.User, error) {
	user, err := a.users.GetByEmail(ctx, validator.NormalizeEmail(email))
	if err != nil {
		return nil, apperr.Internal(err, "load user")
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, password) {
		return nil, apperr.Auth("invalid email or password")
	}
	return user, nil
}

func (a *Accounts) Get(ctx context.Context, userID string) (*models.User, error) {
	user, err := a.users.GetByID(ctx, userID)
	if err != nil {
		return nil, apperr.Internal(err, "load user")
	}
	if user == nil {
		return nil, apperr.NotFound("user not found")
	}
	return user, nil
}
