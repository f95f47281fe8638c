package middleware

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/upb/rag-gatekeeper/services"
)

// Authentication modes
const (
	AuthModeUsername = "username"
	AuthModeJWT      = "jwt"
)

// TokenValidator turns a bearer token into claims
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*Claims, error)
}

// NewTokenValidator returns the validator for the configured mode
func NewTokenValidator(mode, secret, issuer string) (TokenValidator, error) {
	switch mode {
	case AuthModeUsername, "":
		return UsernameValidator{}, nil
	case AuthModeJWT:
		if secret == "" {
			return nil, fmt.Errorf("jwt auth mode requires a secret")
		}
		return NewJWTValidator(secret, issuer), nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", mode)
	}
}

// UsernameValidator treats the token itself as the username.
// Development only.
type UsernameValidator struct{}

// ValidateToken implements TokenValidator
func (UsernameValidator) ValidateToken(_ context.Context, token string) (*Claims, error) {
	if token == "" {
		return nil, services.ErrMissingBearer
	}
	return &Claims{Sub: token}, nil
}

// JWTValidator validates HS256 tokens whose subject is the username
type JWTValidator struct {
	secret []byte
	issuer string
}

// NewJWTValidator creates a validator for tokens signed with secret.
// An empty issuer disables the issuer check.
func NewJWTValidator(secret, issuer string) *JWTValidator {
	return &JWTValidator{secret: []byte(secret), issuer: issuer}
}

// ValidateToken implements TokenValidator
func (v *JWTValidator) ValidateToken(_ context.Context, tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	registered := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, registered, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, services.Wrap(services.ErrTokenExpired, err)
		}
		return nil, services.Wrap(services.ErrInvalidToken, err)
	}
	if !token.Valid || registered.Subject == "" {
		return nil, services.ErrInvalidToken
	}

	claims := &Claims{Sub: registered.Subject, Issuer: registered.Issuer}
	if registered.ExpiresAt != nil {
		claims.Exp = registered.ExpiresAt.Unix()
	}
	return claims, nil
}
