// Package users resolves bearer identities into request user contexts.
package users

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/upb/rag-gatekeeper/models"
	"github.com/upb/rag-gatekeeper/repositories"
	"github.com/upb/rag-gatekeeper/services"
	"go.uber.org/zap"
)

// Service looks users up by username. Only active users are cached, so a
// deactivation takes effect once the cached row expires and a new user or a
// reactivation takes effect on the next request.
type Service struct {
	repo   repositories.UserRepository
	cache  *cache.Cache
	logger *zap.Logger
}

// NewService creates a user service. A ttl of zero disables caching.
func NewService(repo repositories.UserRepository, ttl time.Duration, logger *zap.Logger) *Service {
	s := &Service{repo: repo, logger: logger}
	if ttl > 0 {
		s.cache = cache.New(ttl, 2*ttl)
	}
	return s
}

// Resolve returns the context of an active user.
// Unknown users fail with ErrUnknownUser, inactive ones with ErrUserInactive.
func (s *Service) Resolve(ctx context.Context, username string) (models.UserContext, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return models.UserContext{}, services.ErrUnknownUser
	}

	user, err := s.lookup(ctx, username)
	if err != nil {
		return models.UserContext{}, err
	}

	if !user.IsActive {
		s.logger.Info("inactive user rejected", zap.String("username", username))
		return models.UserContext{}, services.ErrUserInactive
	}
	return user.Context(), nil
}

func (s *Service) lookup(ctx context.Context, username string) (*models.User, error) {
	if s.cache != nil {
		if x, found := s.cache.Get(username); found {
			return x.(*models.User), nil
		}
	}

	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrUnknownUser
		}
		s.logger.Error("user lookup failed", zap.String("username", username), zap.Error(err))
		return nil, services.Wrap(services.ErrDatabaseError, err)
	}

	if s.cache != nil && user.IsActive {
		s.cache.Set(username, user, cache.DefaultExpiration)
	}
	return user, nil
}
