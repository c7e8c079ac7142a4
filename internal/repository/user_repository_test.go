package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/azhur-katering/katering-api/pkg/errors"

	"github.com/azhur-katering/katering-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

func userRows(now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "username", "email", "password_hash", "role", "is_active", "is_verified", "failed_attempts", "locked_until", "last_login", "verified_at", "password_changed_at", "version", "created_at", "updated_at"}).
		AddRow("u1", "ivan", "ivan@example.com", "hash", string(models.RoleUser), true, true, 0, nil, nil, now, nil, 0, now, now)
}

func TestFindByEmail(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM users WHERE email = \\$1 LIMIT 1").
		WithArgs("ivan@example.com").
		WillReturnRows(userRows(time.Now()))

	user, err := repo.FindByEmail(context.Background(), "ivan@example.com")
	require.NoError(t, err)
	assert.Equal(t, "ivan@example.com", user.Email)
	assert.Equal(t, models.RoleUser, user.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO users").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "users_email_key"})

	err := repo.Create(context.Background(), &models.User{Username: "ivan", Email: "ivan@example.com", PasswordHash: "hash", Role: models.RoleUser, Active: true})
	assert.True(t, apperrors.Is(err, apperrors.ErrEmailExists))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUserDuplicateUsername(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO users").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "users_username_key"})

	err := repo.Create(context.Background(), &models.User{Username: "ivan", Email: "ivan@example.com", PasswordHash: "hash", Role: models.RoleUser, Active: true})
	assert.True(t, apperrors.Is(err, apperrors.ErrUsernameExists))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordFailedLoginLocks(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	lockUntil := time.Now().Add(30 * time.Minute).UTC()
	rows := sqlmock.NewRows([]string{"failed_attempts", "locked_until"}).AddRow(5, lockUntil)
	mock.ExpectQuery("UPDATE users").WillReturnRows(rows)

	attempts, locked, err := repo.RecordFailedLogin(context.Background(), "u1", 5, lockUntil)
	require.NoError(t, err)
	assert.Equal(t, 5, attempts)
	require.NotNil(t, locked)
	assert.WithinDuration(t, lockUntil, *locked, time.Second)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRefreshTokenStoresClientInfo(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO refresh_tokens").
		WithArgs(sqlmock.AnyArg(), "u1", "tok", sqlmock.AnyArg(), false, "203.0.113.7", "curl/8.5", int64(0), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	session := &models.RefreshToken{
		UserID:    "u1",
		Token:     "tok",
		ExpiresAt: time.Now().UTC().Add(time.Hour),
		IPAddress: "203.0.113.7",
		UserAgent: "curl/8.5",
	}
	require.NoError(t, repo.CreateRefreshToken(context.Background(), session))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRevokeRefreshTokenStampsRevokedAt(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("UPDATE refresh_tokens SET revoked = TRUE, revoked_at = \\$2").
		WithArgs("rt1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.RevokeRefreshToken(context.Background(), "rt1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRotateRefreshToken(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE refresh_tokens SET revoked = TRUE").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO refresh_tokens").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	next := &models.RefreshToken{UserID: "u1", Token: "new-token", ExpiresAt: time.Now().Add(time.Hour)}
	err := repo.RotateRefreshToken(context.Background(), "rt1", next)
	require.NoError(t, err)
	assert.NotEmpty(t, next.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRotateRefreshTokenAlreadyRevoked(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE refresh_tokens SET revoked = TRUE").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	next := &models.RefreshToken{UserID: "u1", Token: "new-token", ExpiresAt: time.Now().Add(time.Hour)}
	err := repo.RotateRefreshToken(context.Background(), "rt1", next)
	assert.True(t, apperrors.Is(err, apperrors.ErrTokenNotValid))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChangePasswordRevokesSessions(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE users SET password_hash").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE refresh_tokens SET revoked = TRUE").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("INSERT INTO refresh_tokens").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	next := &models.RefreshToken{UserID: "u1", Token: "next-token", ExpiresAt: time.Now().UTC().Add(time.Hour)}
	err := repo.ChangePassword(context.Background(), "u1", "new-hash", time.Now().UTC(), next)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkVerifiedConflict(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("UPDATE users SET is_verified = TRUE").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkVerified(context.Background(), "u1", 2, time.Now().UTC())
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteExpiredRefreshTokens(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("DELETE FROM refresh_tokens WHERE expires_at").
		WillReturnResult(sqlmock.NewResult(0, 7))

	removed, err := repo.DeleteExpiredRefreshTokens(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, int64(7), removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}
