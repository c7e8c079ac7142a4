package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/azhur-katering/katering-api/internal/models"
)

// AuthLogRepository persists the authentication audit trail.
type AuthLogRepository struct {
	db *sqlx.DB
}

// NewAuthLogRepository creates a new instance of AuthLogRepository.
func NewAuthLogRepository(db *sqlx.DB) *AuthLogRepository {
	return &AuthLogRepository{db: db}
}

// Create stores an audit entry.
func (r *AuthLogRepository) Create(ctx context.Context, log *models.AuthLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO auth_logs (id, user_id, email, action, success, ip_address, user_agent, details, created_at) VALUES (:id, :user_id, :email, :action, :success, :ip_address, :user_agent, :details, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("create auth log: %w", err)
	}
	return nil
}

// ListByEmail returns recent audit entries for an email address, newest
// first.
func (r *AuthLogRepository) ListByEmail(ctx context.Context, email string, limit int) ([]models.AuthLog, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	const query = `SELECT id, user_id, email, action, success, ip_address, user_agent, details, created_at FROM auth_logs WHERE email = $1 ORDER BY created_at DESC LIMIT $2`
	var logs []models.AuthLog
	if err := r.db.SelectContext(ctx, &logs, query, email, limit); err != nil {
		return nil, fmt.Errorf("list auth logs: %w", err)
	}
	return logs, nil
}

// DeleteOlderThan prunes audit entries past the retention cutoff. Used by
// the cleanup worker.
func (r *AuthLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM auth_logs WHERE created_at < $1`
	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old auth logs: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete old auth logs rows: %w", err)
	}
	return rows, nil
}
