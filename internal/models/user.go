package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleUser  UserRole = "USER"
	RoleAdmin UserRole = "ADMIN"
)

// User represents an application user stored in the users table.
type User struct {
	ID                string     `db:"id" json:"id"`
	Username          string     `db:"username" json:"username"`
	Email             string     `db:"email" json:"email"`
	PasswordHash      string     `db:"password_hash" json:"-"`
	Role              UserRole   `db:"role" json:"role"`
	Active            bool       `db:"is_active" json:"is_active"`
	Verified          bool       `db:"is_verified" json:"is_verified"`
	FailedAttempts    int        `db:"failed_attempts" json:"-"`
	LockedUntil       *time.Time `db:"locked_until" json:"-"`
	LastLogin         *time.Time `db:"last_login" json:"last_login,omitempty"`
	VerifiedAt        *time.Time `db:"verified_at" json:"verified_at,omitempty"`
	PasswordChangedAt *time.Time `db:"password_changed_at" json:"-"`
	Version           int64      `db:"version" json:"-"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// Locked reports whether the account is under a temporary lockout at the
// given instant.
func (u *User) Locked(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}

// Info projects the user into the shape returned to API clients.
func (u *User) Info() UserInfo {
	return UserInfo{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Role:     u.Role,
		Verified: u.Verified,
	}
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
