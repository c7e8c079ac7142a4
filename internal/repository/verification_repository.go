package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/azhur-katering/katering-api/internal/models"
)

// VerificationRepository provides database access for email verification
// codes.
type VerificationRepository struct {
	db *sqlx.DB
}

// NewVerificationRepository creates a new instance of VerificationRepository.
func NewVerificationRepository(db *sqlx.DB) *VerificationRepository {
	return &VerificationRepository{db: db}
}

// Create stores a freshly issued verification code.
func (r *VerificationRepository) Create(ctx context.Context, v *models.EmailVerification) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if v.CreatedAt.IsZero() {
		v.CreatedAt = now
	}
	v.UpdatedAt = now
	const query = `INSERT INTO email_verifications (id, email, code, expires_at, used, ip_address, version, created_at, updated_at) VALUES (:id, :email, :code, :expires_at, :used, :ip_address, :version, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, v); err != nil {
		return fmt.Errorf("create verification: %w", err)
	}
	return nil
}

// FindValidByEmail returns the newest unused, unexpired code for an email.
func (r *VerificationRepository) FindValidByEmail(ctx context.Context, email string, now time.Time) (*models.EmailVerification, error) {
	const query = `SELECT id, email, code, expires_at, used, used_at, ip_address, version, created_at, updated_at FROM email_verifications WHERE email = $1 AND used = FALSE AND expires_at > $2 ORDER BY created_at DESC LIMIT 1`
	var v models.EmailVerification
	if err := r.db.GetContext(ctx, &v, query, email, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find verification: %w", err)
	}
	return &v, nil
}

// MarkUsed consumes a code. The conditional update keeps each code single
// use under concurrent verification attempts.
func (r *VerificationRepository) MarkUsed(ctx context.Context, id string) (bool, error) {
	const query = `UPDATE email_verifications SET used = TRUE, used_at = $2, version = version + 1, updated_at = $2 WHERE id = $1 AND used = FALSE`
	res, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("mark verification used: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark verification used rows: %w", err)
	}
	return rows > 0, nil
}

// SupersedeValid invalidates every outstanding code for an email before a
// new one is issued.
func (r *VerificationRepository) SupersedeValid(ctx context.Context, email string) error {
	const query = `UPDATE email_verifications SET used = TRUE, used_at = $2, version = version + 1, updated_at = $2 WHERE email = $1 AND used = FALSE`
	if _, err := r.db.ExecContext(ctx, query, email, time.Now().UTC()); err != nil {
		return fmt.Errorf("supersede verifications: %w", err)
	}
	return nil
}

// DeleteStale removes expired and consumed codes older than the cutoff.
// Used by the cleanup worker.
func (r *VerificationRepository) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM email_verifications WHERE expires_at < $1 OR (used = TRUE AND updated_at < $1)`
	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete stale verifications: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete stale verifications rows: %w", err)
	}
	return rows, nil
}
