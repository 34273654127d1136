// Package identity holds the sign-up hooks run by the identity provider and
// by local sign-up.
package identity

import (
	"context"
	"errors"
	"strings"

	apperr "projecthub/internal/pkg/errors"
	"projecthub/internal/pkg/validator"
	"projecthub/internal/platform/config"
)

const (
	TriggerPreSignUp        = "PreSignUp_SignUp"
	TriggerPostConfirmation = "PostConfirmation_ConfirmSignUp"

	AttrSub   = "sub"
	AttrEmail = "email"
	AttrName  = "name"
)

type Request struct {
	UserAttributes map[string]string `json:"userAttributes"`
	ClientMetadata map[string]string `json:"clientMetadata,omitempty"`
}

type Response struct {
	AutoConfirmUser bool `json:"autoConfirmUser"`
	AutoVerifyEmail bool `json:"autoVerifyEmail"`
}

// Event is the payload exchanged with the identity provider.
type Event struct {
	TriggerSource string   `json:"triggerSource"`
	UserName      string   `json:"userName"`
	Request       Request  `json:"request"`
	Response      Response `json:"response"`
}

type Policy struct {
	BlockedDomains    []string
	AutoVerifyDomains []string
}

func PolicyFrom(cfg config.IdentityConfig) Policy {
	return Policy{BlockedDomains: cfg.BlockedDomains, AutoVerifyDomains: cfg.AutoVerifyDomains}
}

func (e Event) clone() Event {
	out := e
	out.Request.UserAttributes = make(map[string]string, len(e.Request.UserAttributes))
	for k, v := range e.Request.UserAttributes {
		out.Request.UserAttributes[k] = v
	}
	if e.Request.ClientMetadata != nil {
		out.Request.ClientMetadata = make(map[string]string, len(e.Request.ClientMetadata))
		for k, v := range e.Request.ClientMetadata {
			out.Request.ClientMetadata[k] = v
		}
	}
	return out
}

// PreSignUp validates a sign-up and returns a copy with the email
// normalized. AutoVerifyEmail is set only for allow-listed domains.
func PreSignUp(event Event, policy Policy) (Event, error) {
	out := event.clone()
	attrs := out.Request.UserAttributes

	email := validator.NormalizeEmail(attrs[AttrEmail])
	if err := validator.CheckDomain(email, policy.BlockedDomains); err != nil {
		if errors.Is(err, validator.ErrBlockedDomain) {
			return event, apperr.Validation("email domain %s is not allowed", validator.Domain(email))
		}
		return event, apperr.Validation("a valid email address is required")
	}
	if strings.TrimSpace(attrs[AttrName]) == "" {
		return event, apperr.Validation("name is required")
	}

	attrs[AttrEmail] = email
	attrs[AttrName] = strings.TrimSpace(attrs[AttrName])
	out.Response.AutoConfirmUser = false
	out.Response.AutoVerifyEmail = validator.DomainIn(email, policy.AutoVerifyDomains)
	return out, nil
}

// Profile is the user record PostConfirmation asks to exist.
type Profile struct {
	ID           string
	Email        string
	FullName     string
	Verified     bool
	PasswordHash string
}

// Provisioner creates a user profile if it is missing.
type Provisioner interface {
	EnsureUser(ctx context.Context, p Profile) error
}

// PostConfirmation makes sure a profile exists for the confirmed user and
// returns the event unchanged. Running it twice is harmless.
func PostConfirmation(ctx context.Context, event Event, provisioner Provisioner) (Event, error) {
	attrs := event.Request.UserAttributes
	id := attrs[AttrSub]
	if id == "" {
		id = event.UserName
	}
	if id == "" {
		return event, apperr.Validation("sub or userName is required")
	}
	email := validator.NormalizeEmail(attrs[AttrEmail])
	if err := validator.ValidateEmail(email); err != nil {
		return event, apperr.Validation("a valid email address is required")
	}

	err := provisioner.EnsureUser(ctx, Profile{
		ID:       id,
		Email:    email,
		FullName: strings.TrimSpace(attrs[AttrName]),
		Verified: attrs["email_verified"] == "true" || event.Response.AutoVerifyEmail,
	})
	if err != nil {
		return event, err
	}
	return event, nil
}
