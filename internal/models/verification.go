package models

import "time"

// EmailVerification is a single-use 6 digit code bound to an email address.
type EmailVerification struct {
	ID        string     `db:"id" json:"id"`
	Email     string     `db:"email" json:"email"`
	Code      string     `db:"code" json:"-"`
	ExpiresAt time.Time  `db:"expires_at" json:"expires_at"`
	Used      bool       `db:"used" json:"used"`
	UsedAt    *time.Time `db:"used_at" json:"used_at,omitempty"`
	IPAddress string     `db:"ip_address" json:"-"`
	Version   int64      `db:"version" json:"-"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"-"`
}

// Usable reports whether the code can still be redeemed at the given instant.
func (v *EmailVerification) Usable(now time.Time) bool {
	return !v.Used && now.Before(v.ExpiresAt)
}
