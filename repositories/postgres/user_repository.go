package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/upb/rag-gatekeeper/models"
	"github.com/upb/rag-gatekeeper/repositories"
	"go.uber.org/zap"
)

// UserRepository implements the repositories.UserRepository interface
type UserRepository struct {
	db     Executor
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db Executor, logger *zap.Logger) repositories.UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

// GetByUsername retrieves a user by username
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `
		SELECT id, username, department, role, role_level, clearance_level, is_active, created_at, updated_at
		FROM users
		WHERE username = $1
	`

	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, username).Scan(
		&user.ID,
		&user.Username,
		&user.Department,
		&user.Role,
		&user.RoleLevel,
		&user.ClearanceLevel,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %q: %w", username, repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	r.logger.Debug("user loaded", zap.String("username", user.Username), zap.String("department", user.Department))
	return user, nil
}
