package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/upb/rag-gatekeeper/models"
	"github.com/upb/rag-gatekeeper/services"
	"github.com/upb/rag-gatekeeper/utils"
	"go.uber.org/zap"
)

// UserResolver loads the active user behind a token subject
type UserResolver interface {
	Resolve(ctx context.Context, username string) (models.UserContext, error)
}

// AuthMiddleware provides authentication middleware functionality
type AuthMiddleware struct {
	validator TokenValidator
	users     UserResolver
	logger    *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(validator TokenValidator, users UserResolver, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		validator: validator,
		users:     users,
		logger:    logger,
	}
}

// RequireAuth resolves the bearer token into an active user.
// Missing tokens and unknown users get 401, inactive users 403.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		token := extractBearerToken(r)
		if token == "" {
			m.logger.Warn("missing token",
				zap.String("request_id", requestID))
			_ = utils.WriteUnauthorized(w, "Missing or invalid authorization")
			return
		}

		claims, err := m.validator.ValidateToken(ctx, token)
		if err != nil {
			m.logger.Warn("token validation failed",
				zap.String("request_id", requestID),
				zap.Error(err))
			_ = utils.WriteUnauthorized(w, "Invalid or expired token")
			return
		}

		user, err := m.users.Resolve(ctx, claims.Sub)
		if err != nil {
			m.logger.Warn("user resolution failed",
				zap.String("request_id", requestID),
				zap.String("sub", claims.Sub),
				zap.Error(err))
			switch {
			case services.IsForbiddenError(err):
				_ = utils.WriteForbidden(w, "User is inactive")
			case services.IsUnauthorizedError(err):
				_ = utils.WriteUnauthorized(w, "Invalid user")
			default:
				_ = utils.WriteInternalServerError(w, "")
			}
			return
		}

		ctx = WithClaims(ctx, claims)
		ctx = WithUser(ctx, user)

		m.logger.Debug("authentication successful",
			zap.String("request_id", requestID),
			zap.String("username", user.Username),
			zap.String("department", user.Department))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole is a middleware that requires a specific role.
// Must run after RequireAuth.
func (m *AuthMiddleware) RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := GetRequestIDFromContext(ctx)

			user, ok := GetUserFromContext(ctx)
			if !ok {
				m.logger.Error("user not found in context",
					zap.String("request_id", requestID))
				_ = utils.WriteUnauthorized(w, "Authentication required")
				return
			}

			if user.Role != role {
				m.logger.Warn("insufficient permissions",
					zap.String("request_id", requestID),
					zap.String("required_role", role),
					zap.String("user_role", user.Role))
				_ = utils.WriteForbidden(w, "Insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// extractBearerToken extracts the Bearer token from the Authorization header
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
