package middleware

import (
	"context"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/upb/rag-gatekeeper/models"
)

// Context key type to avoid collisions
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"

	// ClaimsKey is the context key for validated token claims
	ClaimsKey contextKey = "claims"

	// UserKey is the context key for the resolved user
	UserKey contextKey = "user"
)

// Claims identifies the caller behind a bearer token
type Claims struct {
	Sub    string `json:"sub"` // username
	Issuer string `json:"iss,omitempty"`
	Exp    int64  `json:"exp,omitempty"`
}

// GetRequestIDFromContext retrieves the request ID from context.
// Falls back to the id assigned by chi's RequestID middleware.
func GetRequestIDFromContext(ctx context.Context) string {
	if val := ctx.Value(RequestIDKey); val != nil {
		if requestID, ok := val.(string); ok && requestID != "" {
			return requestID
		}
	}
	return chimw.GetReqID(ctx)
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetClaimsFromContext retrieves token claims from context
func GetClaimsFromContext(ctx context.Context) *Claims {
	if val := ctx.Value(ClaimsKey); val != nil {
		if claims, ok := val.(*Claims); ok {
			return claims
		}
	}
	return nil
}

// WithClaims adds token claims to the context
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, ClaimsKey, claims)
}

// GetUserFromContext retrieves the authenticated user from context
func GetUserFromContext(ctx context.Context) (models.UserContext, bool) {
	user, ok := ctx.Value(UserKey).(models.UserContext)
	return user, ok
}

// WithUser adds the authenticated user to the context
func WithUser(ctx context.Context, user models.UserContext) context.Context {
	return context.WithValue(ctx, UserKey, user)
}
