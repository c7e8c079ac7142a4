package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	apperrors "github.com/azhur-katering/katering-api/pkg/errors"

	"github.com/azhur-katering/katering-api/internal/models"
)

const userColumns = `id, username, email, password_hash, role, is_active, is_verified, failed_attempts, locked_until, last_login, verified_at, password_changed_at, version, created_at, updated_at`

const refreshTokenColumns = `id, user_id, token, expires_at, revoked, revoked_at, ip_address, user_agent, version, created_at, updated_at`

const insertRefreshToken = `INSERT INTO refresh_tokens (id, user_id, token, expires_at, revoked, ip_address, user_agent, version, created_at, updated_at) VALUES (:id, :user_id, :token, :expires_at, :revoked, :ip_address, :user_agent, :version, :created_at, :updated_at)`

// UserRepository provides database access for accounts and refresh token
// sessions.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail returns a user by email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE email = $1 LIMIT 1`, userColumns)
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1 LIMIT 1`, userColumns)
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// ExistsByEmail reports whether an account with the given email exists.
func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, email); err != nil {
		return false, fmt.Errorf("check email exists: %w", err)
	}
	return exists, nil
}

// ExistsByUsername reports whether an account with the given username exists.
func (r *UserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, username); err != nil {
		return false, fmt.Errorf("check username exists: %w", err)
	}
	return exists, nil
}

// Create inserts a new user. Unique constraint violations are mapped onto
// the matching domain error so concurrent registrations stay safe.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	const query = `INSERT INTO users (id, username, email, password_hash, role, is_active, is_verified, failed_attempts, version, created_at, updated_at) VALUES (:id, :username, :email, :password_hash, :role, :is_active, :is_verified, :failed_attempts, :version, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pgerrcode.UniqueViolation {
			if strings.Contains(pqErr.Constraint, "username") {
				return apperrors.ErrUsernameExists
			}
			return apperrors.ErrEmailExists
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// RecordFailedLogin atomically increments the failure counter and applies
// the lockout once the threshold is reached. It returns the counter and
// lockout deadline after the update.
func (r *UserRepository) RecordFailedLogin(ctx context.Context, id string, maxAttempts int, lockUntil time.Time) (int, *time.Time, error) {
	const query = `
		UPDATE users
		SET failed_attempts = failed_attempts + 1,
		    locked_until = CASE WHEN failed_attempts + 1 >= $2 THEN $3 ELSE locked_until END,
		    updated_at = $4
		WHERE id = $1
		RETURNING failed_attempts, locked_until`
	var (
		attempts int
		locked   *time.Time
	)
	row := r.db.QueryRowxContext(ctx, query, id, maxAttempts, lockUntil, time.Now().UTC())
	if err := row.Scan(&attempts, &locked); err != nil {
		return 0, nil, fmt.Errorf("record failed login: %w", err)
	}
	return attempts, locked, nil
}

// ResetFailedAttempts clears the failure counter and lockout after a
// successful login and stamps last_login.
func (r *UserRepository) ResetFailedAttempts(ctx context.Context, id string, loginAt time.Time) error {
	const query = `UPDATE users SET failed_attempts = 0, locked_until = NULL, last_login = $2, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, loginAt); err != nil {
		return fmt.Errorf("reset failed attempts: %w", err)
	}
	return nil
}

// MarkVerified flips the verification flag using the version counter as an
// optimistic guard.
func (r *UserRepository) MarkVerified(ctx context.Context, id string, version int64, verifiedAt time.Time) error {
	const query = `UPDATE users SET is_verified = TRUE, verified_at = $2, version = version + 1, updated_at = $2 WHERE id = $1 AND version = $3`
	res, err := r.db.ExecContext(ctx, query, id, verifiedAt, version)
	if err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark verified rows: %w", err)
	}
	if rows == 0 {
		return apperrors.ErrConflict
	}
	return nil
}

// CreateRefreshToken persists a refresh token session.
func (r *UserRepository) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if token.CreatedAt.IsZero() {
		token.CreatedAt = now
	}
	token.UpdatedAt = now
	if _, err := r.db.NamedExecContext(ctx, insertRefreshToken, token); err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}
	return nil
}

// FindRefreshToken returns a refresh token by token string.
func (r *UserRepository) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	query := fmt.Sprintf(`SELECT %s FROM refresh_tokens WHERE token = $1 LIMIT 1`, refreshTokenColumns)
	var rt models.RefreshToken
	if err := r.db.GetContext(ctx, &rt, query, token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	return &rt, nil
}

// RotateRefreshToken revokes the old session and stores its replacement in
// one transaction. The conditional revoke makes every token single use:
// when two rotations race, exactly one sees an unrevoked row and wins.
func (r *UserRepository) RotateRefreshToken(ctx context.Context, oldID string, next *models.RefreshToken) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rotate tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	const revoke = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2, version = version + 1, updated_at = $2 WHERE id = $1 AND revoked = FALSE`
	res, err := tx.ExecContext(ctx, revoke, oldID, now)
	if err != nil {
		return fmt.Errorf("revoke rotated token: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoke rotated token rows: %w", err)
	}
	if rows == 0 {
		return apperrors.ErrTokenNotValid
	}

	if next.ID == "" {
		next.ID = uuid.NewString()
	}
	next.CreatedAt = now
	next.UpdatedAt = now
	if _, err := tx.NamedExecContext(ctx, insertRefreshToken, next); err != nil {
		return fmt.Errorf("insert rotated token: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rotate tx: %w", err)
	}
	return nil
}

// RevokeRefreshToken marks a single session as revoked.
func (r *UserRepository) RevokeRefreshToken(ctx context.Context, id string) error {
	const query = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2, version = version + 1, updated_at = $2 WHERE id = $1 AND revoked = FALSE`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// RevokeUserRefreshTokens revokes every open session for a user.
func (r *UserRepository) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	const query = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2, version = version + 1, updated_at = $2 WHERE user_id = $1 AND revoked = FALSE`
	if _, err := r.db.ExecContext(ctx, query, userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("revoke user refresh tokens: %w", err)
	}
	return nil
}

// ChangePassword updates the stored hash, revokes every session, and
// persists the replacement session for the requesting device in one
// transaction. No refresh token issued under the old password survives.
func (r *UserRepository) ChangePassword(ctx context.Context, userID, passwordHash string, changedAt time.Time, next *models.RefreshToken) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin change password tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const update = `UPDATE users SET password_hash = $2, password_changed_at = $3, version = version + 1, updated_at = $3 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, update, userID, passwordHash, changedAt); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	const revoke = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2, version = version + 1, updated_at = $2 WHERE user_id = $1 AND revoked = FALSE`
	if _, err := tx.ExecContext(ctx, revoke, userID, changedAt); err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}

	if next != nil {
		if next.ID == "" {
			next.ID = uuid.NewString()
		}
		next.CreatedAt = changedAt
		next.UpdatedAt = changedAt
		if _, err := tx.NamedExecContext(ctx, insertRefreshToken, next); err != nil {
			return fmt.Errorf("insert replacement token: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit change password tx: %w", err)
	}
	return nil
}

// DeleteExpiredRefreshTokens removes sessions that expired before the
// cutoff. Used by the cleanup worker.
func (r *UserRepository) DeleteExpiredRefreshTokens(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM refresh_tokens WHERE expires_at < $1`
	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired refresh tokens: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired refresh tokens rows: %w", err)
	}
	return rows, nil
}
