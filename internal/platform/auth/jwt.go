package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"projecthub/internal/platform/config"
)

var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	UserID        string `json:"uid"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	jwt.RegisteredClaims
}

type TokenService struct {
	config config.JWTConfig
	now    func() time.Time
}

func NewTokenService(cfg config.JWTConfig) *TokenService {
	if cfg.Issuer == "" {
		cfg.Issuer = "projecthub"
	}
	return &TokenService{config: cfg, now: time.Now}
}

// TokenPair is returned by signup, login and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

func (s *TokenService) GenerateAccessToken(userID, email string, emailVerified bool) (string, error) {
	now := s.now()
	claims := Claims{
		UserID:        userID,
		Email:         email,
		EmailVerified: emailVerified,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.AccessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.config.Issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.Secret))
}

// GenerateRefreshToken carries only the subject; refresh re-reads the user.
func (s *TokenService) GenerateRefreshToken(userID string) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Audience:  jwt.ClaimStrings{"refresh"},
		ExpiresAt: jwt.NewNumericDate(now.Add(s.config.RefreshTokenTTL)),
		IssuedAt:  jwt.NewNumericDate(now),
		Issuer:    s.config.Issuer,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.Secret))
}

func (s *TokenService) IssuePair(userID, email string, emailVerified bool) (*TokenPair, error) {
	access, err := s.GenerateAccessToken(userID, email, emailVerified)
	if err != nil {
		return nil, err
	}
	refresh, err := s.GenerateRefreshToken(userID)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.config.AccessTokenTTL.Seconds()),
	}, nil
}

func (s *TokenService) keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, errors.New("unexpected signing method")
	}
	return []byte(s.config.Secret), nil
}

func (s *TokenService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, s.keyFunc,
		jwt.WithIssuer(s.config.Issuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ValidateRefreshToken returns the user id carried by a refresh token.
func (s *TokenService) ValidateRefreshToken(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, s.keyFunc,
		jwt.WithIssuer(s.config.Issuer), jwt.WithAudience("refresh"), jwt.WithTimeFunc(s.now))
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
