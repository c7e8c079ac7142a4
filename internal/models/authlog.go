package models

import "time"

// Auth log actions recorded for the audit trail.
const (
	AuthActionLogin             = "LOGIN"
	AuthActionLoginFailed       = "LOGIN_FAILED"
	AuthActionLogout            = "LOGOUT"
	AuthActionRegistration      = "REGISTRATION"
	AuthActionEmailVerification = "EMAIL_VERIFICATION"
	AuthActionAccountLocked     = "ACCOUNT_LOCKED"
	AuthActionPasswordChanged   = "PASSWORD_CHANGED"
)

// AuthLog records a single authentication event for auditing.
type AuthLog struct {
	ID        string    `db:"id" json:"id"`
	UserID    *string   `db:"user_id" json:"user_id,omitempty"`
	Email     string    `db:"email" json:"email"`
	Action    string    `db:"action" json:"action"`
	Success   bool      `db:"success" json:"success"`
	IPAddress string    `db:"ip_address" json:"ip_address"`
	UserAgent string    `db:"user_agent" json:"user_agent"`
	Details   string    `db:"details" json:"details,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
