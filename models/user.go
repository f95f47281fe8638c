package models

import (
	"time"

	"github.com/google/uuid"
)

// UserRole represents the named role of a user
type UserRole string

const (
	RoleAdmin   UserRole = "admin"
	RoleManager UserRole = "manager"
	RoleMember  UserRole = "member"
	RoleViewer  UserRole = "viewer"
)

// SharedDepartment is the department whose documents are visible to every
// department, and whose members are not scoped by owner department.
const SharedDepartment = "shared"

// User represents a row of the users table
type User struct {
	ID             uuid.UUID `json:"id" db:"id"`
	Username       string    `json:"username" db:"username"`
	Department     string    `json:"department" db:"department"`
	Role           UserRole  `json:"role" db:"role"`
	RoleLevel      int       `json:"role_level" db:"role_level"`
	ClearanceLevel int       `json:"clearance_level" db:"clearance_level"`
	IsActive       bool      `json:"is_active" db:"is_active"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the User model
func (User) TableName() string {
	return "users"
}

// IsAdmin returns true if the user has admin role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Context returns the immutable per-request view of the user.
func (u *User) Context() UserContext {
	return UserContext{
		Username:       u.Username,
		Department:     u.Department,
		Role:           string(u.Role),
		RoleLevel:      u.RoleLevel,
		ClearanceLevel: u.ClearanceLevel,
		Active:         u.IsActive,
	}
}

// UserContext carries the security attributes of the caller for one request.
type UserContext struct {
	Username       string `json:"username" validate:"required"`
	Department     string `json:"department" validate:"required"`
	Role           string `json:"role"`
	RoleLevel      int    `json:"role_level" validate:"gte=0"`
	ClearanceLevel int    `json:"clearance_level" validate:"gte=0"`
	Active         bool   `json:"active"`
}

// IsShared reports whether the user belongs to the shared department.
func (u UserContext) IsShared() bool {
	return u.Department == SharedDepartment
}
