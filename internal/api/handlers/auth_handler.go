package handlers

import (
	"net/http"

	"projecthub/internal/engine/identity"
	apperr "projecthub/internal/pkg/errors"
	"projecthub/internal/platform/auth"
	"projecthub/internal/platform/models"
)

type AuthHandler struct {
	accounts *identity.Accounts
	tokenSvc *auth.TokenService
}

func NewAuthHandler(accounts *identity.Accounts, tokenSvc *auth.TokenService) *AuthHandler {
	return &AuthHandler{accounts: accounts, tokenSvc: tokenSvc}
}

type AuthResponse struct {
	User *models.User `json:"user"`
	*auth.TokenPair
}

func (h *AuthHandler) issue(w http.ResponseWriter, status int, user *models.User) {
	pair, err := h.tokenSvc.IssuePair(user.ID, user.Email, user.EmailVerified)
	if err != nil {
		apperr.WriteError(w, http.StatusInternalServerError, apperr.ErrCodeInternal, "Failed to generate token", nil)
		return
	}
	respond(w, status, AuthResponse{User: user, TokenPair: pair})
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req identity.SignUpInput
	if err := decode(r, &req); err != nil {
		apperr.WriteAppError(w, err)
		return
	}

	user, err := h.accounts.SignUp(r.Context(), req)
	if err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	h.issue(w, http.StatusCreated, user)
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decode(r, &req); err != nil {
		apperr.WriteAppError(w, err)
		return
	}

	user, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		apperr.WriteAppError(w, err)
		return
	}
	h.issue(w, http.StatusOK, user)
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := decode(r, &req); err != nil {
		apperr.WriteAppError(w, err)
		return
	}

	userID, err := h.tokenSvc.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		apperr.WriteError(w, http.StatusUnauthorized, apperr.ErrCodeUnauthorized, "Invalid refresh token", nil)
		return
	}
	user, err := h.accounts.Get(r.Context(), userID)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			apperr.WriteError(w, http.StatusUnauthorized, apperr.ErrCodeUnauthorized, "Invalid refresh token", nil)
			return
		}
		apperr.WriteAppError(w, err)
		return
	}
	h.issue(w, http.StatusOK, user)
}
