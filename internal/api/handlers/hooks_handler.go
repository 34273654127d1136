package handlers

import (
	"crypto/subtle"
	"net/http"

	"projecthub/internal/engine/identity"
	apperr "projecthub/internal/pkg/errors"
)

// HookSecretHeader carries the secret shared with the identity provider.
const HookSecretHeader = "X-Hook-Secret"

// IdentityHookHandler exposes the sign-up hooks to the identity provider.
// The provider sends the event and expects it back, possibly modified.
type IdentityHookHandler struct {
	secret      string
	policy      identity.Policy
	provisioner identity.Provisioner
}

func NewIdentityHookHandler(secret string, policy identity.Policy, provisioner identity.Provisioner) *IdentityHookHandler {
	return &IdentityHookHandler{secret: secret, policy: policy, provisioner: provisioner}
}

func (h *IdentityHookHandler) authorized(r *http.Request) bool {
	got := r.Header.Get(HookSecretHeader)
	return h.secret != "" && subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) == 1
}

func (h *IdentityHookHandler) PreSignUp(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		apperr.WriteError(w, http.StatusUnauthorized, apperr.ErrCodeUnauthorized, "Invalid hook secret", nil)
		return
	}
	var event identity.Event
	if err := decode(r, &event); err != nil {
		apperr.WriteAppError(w, err)
		return
	}

	out, err := identity.PreSignUp(event, h.policy)
	if err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	respond(w, http.StatusOK, out)
}

func (h *IdentityHookHandler) PostConfirmation(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		apperr.WriteError(w, http.StatusUnauthorized, apperr.ErrCodeUnauthorized, "Invalid hook secret", nil)
		return
	}
	var event identity.Event
	if err := decode(r, &event); err != nil {
		apperr.WriteAppError(w, err)
		return
	}

	out, err := identity.PostConfirmation(r.Context(), event, h.provisioner)
	if err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	respond(w, http.StatusOK, out)
}
