package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/azhur-katering/katering-api/pkg/errors"
	"github.com/azhur-katering/katering-api/pkg/hash"

	"github.com/azhur-katering/katering-api/internal/models"
)

type mockAuthRepo struct {
	userByEmail       *models.User
	userByID          *models.User
	emailTaken        bool
	usernameTaken     bool
	created           *models.User
	failedAttempts    int
	lockedUntil       *time.Time
	attemptsReset     bool
	refreshTokens     map[string]*models.RefreshToken
	rotated           bool
	passwordChangedTo string
	sessionsRevoked   bool
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.userByEmail == nil {
		return nil, sql.ErrNoRows
	}
	return m.userByEmail, nil
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.userByID != nil {
		return m.userByID, nil
	}
	if m.userByEmail != nil {
		return m.userByEmail, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return m.emailTaken, nil
}

func (m *mockAuthRepo) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return m.usernameTaken, nil
}

func (m *mockAuthRepo) Create(ctx context.Context, user *models.User) error {
	user.ID = "new-user"
	m.created = user
	return nil
}

func (m *mockAuthRepo) RecordFailedLogin(ctx context.Context, id string, maxAttempts int, lockUntil time.Time) (int, *time.Time, error) {
	m.failedAttempts++
	if m.failedAttempts >= maxAttempts {
		m.lockedUntil = &lockUntil
		if m.userByEmail != nil {
			m.userByEmail.LockedUntil = &lockUntil
		}
	}
	return m.failedAttempts, m.lockedUntil, nil
}

func (m *mockAuthRepo) ResetFailedAttempts(ctx context.Context, id string, loginAt time.Time) error {
	m.attemptsReset = true
	m.failedAttempts = 0
	return nil
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if m.refreshTokens == nil {
		m.refreshTokens = make(map[string]*models.RefreshToken)
	}
	token.ID = fmt.Sprintf("rt-%d", len(m.refreshTokens))
	m.refreshTokens[token.Token] = token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	rt, ok := m.refreshTokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rt, nil
}

func (m *mockAuthRepo) RotateRefreshToken(ctx context.Context, oldID string, next *models.RefreshToken) error {
	for _, rt := range m.refreshTokens {
		if rt.ID == oldID {
			if rt.Revoked {
				return appErrors.ErrTokenNotValid
			}
			rt.Revoked = true
			m.rotated = true
			next.ID = "rt-next"
			m.refreshTokens[next.Token] = next
			return nil
		}
	}
	return appErrors.ErrTokenNotValid
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string) error {
	for _, rt := range m.refreshTokens {
		if rt.ID == id {
			rt.Revoked = true
		}
	}
	return nil
}

func (m *mockAuthRepo) ChangePassword(ctx context.Context, userID, passwordHash string, changedAt time.Time, next *models.RefreshToken) error {
	m.passwordChangedTo = passwordHash
	m.sessionsRevoked = true
	for _, rt := range m.refreshTokens {
		rt.Revoked = true
	}
	if next != nil {
		next.ID = fmt.Sprintf("rt-%d", len(m.refreshTokens)+1)
		m.refreshTokens[next.Token] = next
	}
	return nil
}

type mockAuthLogs struct {
	entries []*models.AuthLog
}

func (m *mockAuthLogs) Create(ctx context.Context, log *models.AuthLog) error {
	m.entries = append(m.entries, log)
	return nil
}

func (m *mockAuthLogs) actions() []string {
	var out []string
	for _, e := range m.entries {
		out = append(out, e.Action)
	}
	return out
}

type mockVerifier struct {
	issuedFor []string
}

func (m *mockVerifier) IssueCode(ctx context.Context, email, ip string) error {
	m.issuedFor = append(m.issuedFor, email)
	return nil
}

func newTestAuthService(repo *mockAuthRepo, logs *mockAuthLogs, verifier *mockVerifier) *AuthService {
	tokens := newTokenService(time.Now().UTC())
	return NewAuthService(repo, logs, hash.NewBcryptHasher(4), tokens, verifier, validator.New(), zap.NewNop(), nil, LockoutConfig{
		MaxFailedAttempts: 5,
		LockDuration:      30 * time.Minute,
	})
}

func verifiedUser(t *testing.T, password string) *models.User {
	t.Helper()
	hashed, err := hash.NewBcryptHasher(4).Hash(password)
	require.NoError(t, err)
	u := testUser()
	u.PasswordHash = hashed
	return u
}

func TestLoginSuccess(t *testing.T) {
	repo := &mockAuthRepo{userByEmail: verifiedUser(t, "password123")}
	logs := &mockAuthLogs{}
	svc := newTestAuthService(repo, logs, &mockVerifier{})

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "ivan@example.com", Password: "password123"})
	require.NoError(t, err)
	require.NotNil(t, res.AccessToken)
	require.NotNil(t, res.RefreshToken)
	assert.False(t, res.RequiresVerification)
	assert.Equal(t, int64(900), res.ExpiresIn)
	assert.True(t, repo.attemptsReset)
	assert.Len(t, repo.refreshTokens, 1)
	assert.Contains(t, logs.actions(), models.AuthActionLogin)
}

func TestLoginWrongPassword(t *testing.T) {
	repo := &mockAuthRepo{userByEmail: verifiedUser(t, "password123")}
	logs := &mockAuthLogs{}
	svc := newTestAuthService(repo, logs, &mockVerifier{})

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "ivan@example.com", Password: "nope-nope"})
	assert.True(t, appErrors.Is(err, appErrors.ErrIncorrectPassword))
	assert.Equal(t, 1, repo.failedAttempts)
	assert.Contains(t, logs.actions(), models.AuthActionLoginFailed)
}

func TestLoginLocksAfterMaxFailures(t *testing.T) {
	repo := &mockAuthRepo{userByEmail: verifiedUser(t, "password123")}
	logs := &mockAuthLogs{}
	svc := newTestAuthService(repo, logs, &mockVerifier{})

	var err error
	for i := 0; i < 5; i++ {
		_, err = svc.Login(context.Background(), models.LoginRequest{Email: "ivan@example.com", Password: "nope-nope"})
		assert.True(t, appErrors.Is(err, appErrors.ErrIncorrectPassword), "attempt %d", i+1)
	}
	require.NotNil(t, repo.lockedUntil)
	assert.Contains(t, logs.actions(), models.AuthActionAccountLocked)

	// the lock gates the next attempt, not the one that tripped it
	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "ivan@example.com", Password: "nope-nope"})
	assert.True(t, appErrors.Is(err, appErrors.ErrAccountLocked))
	assert.Equal(t, 5, repo.failedAttempts)
}

func TestLoginRejectsLockedAccount(t *testing.T) {
	user := verifiedUser(t, "password123")
	until := time.Now().UTC().Add(10 * time.Minute)
	user.LockedUntil = &until
	repo := &mockAuthRepo{userByEmail: user}
	svc := newTestAuthService(repo, &mockAuthLogs{}, &mockVerifier{})

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "ivan@example.com", Password: "password123"})
	assert.True(t, appErrors.Is(err, appErrors.ErrAccountLocked))
}

func TestLoginExpiredLockAllowsEntry(t *testing.T) {
	user := verifiedUser(t, "password123")
	until := time.Now().UTC().Add(-time.Minute)
	user.LockedUntil = &until
	repo := &mockAuthRepo{userByEmail: user}
	svc := newTestAuthService(repo, &mockAuthLogs{}, &mockVerifier{})

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "ivan@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.NotNil(t, res.AccessToken)
}

func TestLoginUnverifiedGetsSoftResponse(t *testing.T) {
	user := verifiedUser(t, "password123")
	user.Verified = false
	repo := &mockAuthRepo{userByEmail: user}
	verifier := &mockVerifier{}
	svc := newTestAuthService(repo, &mockAuthLogs{}, verifier)

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "ivan@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.True(t, res.RequiresVerification)
	assert.Nil(t, res.AccessToken)
	assert.Nil(t, res.RefreshToken)
	assert.Equal(t, []string{"ivan@example.com"}, verifier.issuedFor)
	assert.Empty(t, repo.refreshTokens)
}

func TestLoginUnverifiedKeepsFailedCounter(t *testing.T) {
	user := verifiedUser(t, "password123")
	user.Verified = false
	repo := &mockAuthRepo{userByEmail: user, failedAttempts: 3}
	svc := newTestAuthService(repo, &mockAuthLogs{}, &mockVerifier{})

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "ivan@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.True(t, res.RequiresVerification)
	assert.False(t, repo.attemptsReset)
	assert.Equal(t, 3, repo.failedAttempts)
}

func TestLoginPersistsClientMetadata(t *testing.T) {
	repo := &mockAuthRepo{userByEmail: verifiedUser(t, "password123")}
	svc := newTestAuthService(repo, &mockAuthLogs{}, &mockVerifier{})

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "ivan@example.com", Password: "password123", IP: "203.0.113.7", UserAgent: "curl/8.5"})
	require.NoError(t, err)

	session := repo.refreshTokens[*res.RefreshToken]
	require.NotNil(t, session)
	assert.Equal(t, "203.0.113.7", session.IPAddress)
	assert.Equal(t, "curl/8.5", session.UserAgent)
}

func TestLoginUnknownEmail(t *testing.T) {
	svc := newTestAuthService(&mockAuthRepo{}, &mockAuthLogs{}, &mockVerifier{})

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "nobody@example.com", Password: "password123"})
	assert.True(t, appErrors.Is(err, appErrors.ErrUserNotFound))
}

func TestRegisterDuplicateEmail(t *testing.T) {
	repo := &mockAuthRepo{emailTaken: true}
	svc := newTestAuthService(repo, &mockAuthLogs{}, &mockVerifier{})

	_, err := svc.Register(context.Background(), models.RegisterRequest{Username: "ivan", Email: "ivan@example.com", Password: "password123"})
	assert.True(t, appErrors.Is(err, appErrors.ErrEmailExists))
}

func TestRegisterIssuesVerificationCode(t *testing.T) {
	repo := &mockAuthRepo{}
	verifier := &mockVerifier{}
	logs := &mockAuthLogs{}
	svc := newTestAuthService(repo, logs, verifier)

	res, err := svc.Register(context.Background(), models.RegisterRequest{Username: "ivan", Email: "ivan@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.True(t, res.RequiresVerification)
	assert.Nil(t, res.AccessToken)
	require.NotNil(t, repo.created)
	assert.Equal(t, models.RoleUser, repo.created.Role)
	assert.False(t, repo.created.Verified)
	assert.NotEqual(t, "password123", repo.created.PasswordHash)
	assert.Equal(t, []string{"ivan@example.com"}, verifier.issuedFor)
	assert.Contains(t, logs.actions(), models.AuthActionRegistration)
}

func TestRefreshRotatesSingleUse(t *testing.T) {
	repo := &mockAuthRepo{userByEmail: verifiedUser(t, "password123")}
	svc := newTestAuthService(repo, &mockAuthLogs{}, &mockVerifier{})

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: "ivan@example.com", Password: "password123"})
	require.NoError(t, err)

	first, err := svc.Refresh(context.Background(), *login.RefreshToken, "10.0.0.1", "test")
	require.NoError(t, err)
	assert.NotNil(t, first.AccessToken)
	assert.NotEqual(t, *login.RefreshToken, *first.RefreshToken)
	assert.True(t, repo.rotated)

	_, err = svc.Refresh(context.Background(), *login.RefreshToken, "10.0.0.1", "test")
	assert.True(t, appErrors.Is(err, appErrors.ErrTokenNotValid))
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	repo := &mockAuthRepo{userByEmail: verifiedUser(t, "password123")}
	svc := newTestAuthService(repo, &mockAuthLogs{}, &mockVerifier{})

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: "ivan@example.com", Password: "password123"})
	require.NoError(t, err)

	_, err = svc.Refresh(context.Background(), *login.AccessToken, "10.0.0.1", "test")
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidTokenType))
}

func TestRefreshUnknownToken(t *testing.T) {
	repo := &mockAuthRepo{userByEmail: verifiedUser(t, "password123")}
	svc := newTestAuthService(repo, &mockAuthLogs{}, &mockVerifier{})

	token, err := svc.tokens.MintRefreshToken(repo.userByEmail)
	require.NoError(t, err)

	_, err = svc.Refresh(context.Background(), token, "10.0.0.1", "test")
	assert.True(t, appErrors.Is(err, appErrors.ErrTokenNotFound))
}

func TestRefreshUserNoLongerExists(t *testing.T) {
	repo := &mockAuthRepo{userByEmail: verifiedUser(t, "password123")}
	svc := newTestAuthService(repo, &mockAuthLogs{}, &mockVerifier{})

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: "ivan@example.com", Password: "password123"})
	require.NoError(t, err)

	repo.userByEmail = nil
	_, err = svc.Refresh(context.Background(), *login.RefreshToken, "10.0.0.1", "test")
	assert.True(t, appErrors.Is(err, appErrors.ErrUserNotFound))
}

func TestLogoutIsIdempotent(t *testing.T) {
	repo := &mockAuthRepo{userByEmail: verifiedUser(t, "password123")}
	logs := &mockAuthLogs{}
	svc := newTestAuthService(repo, logs, &mockVerifier{})

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: "ivan@example.com", Password: "password123"})
	require.NoError(t, err)

	svc.Logout(context.Background(), *login.RefreshToken, "10.0.0.1", "test")
	assert.True(t, repo.refreshTokens[*login.RefreshToken].Revoked)
	assert.Contains(t, logs.actions(), models.AuthActionLogout)

	svc.Logout(context.Background(), *login.RefreshToken, "10.0.0.1", "test")
	svc.Logout(context.Background(), "", "10.0.0.1", "test")
	svc.Logout(context.Background(), "garbage", "10.0.0.1", "test")
}

func TestChangePasswordRevokesAllSessions(t *testing.T) {
	repo := &mockAuthRepo{userByEmail: verifiedUser(t, "password123")}
	logs := &mockAuthLogs{}
	svc := newTestAuthService(repo, logs, &mockVerifier{})

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: "ivan@example.com", Password: "password123"})
	require.NoError(t, err)

	res, err := svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{CurrentPassword: "password123", NewPassword: "brand-new-pass"})
	require.NoError(t, err)
	assert.True(t, repo.sessionsRevoked)
	assert.NotEmpty(t, repo.passwordChangedTo)
	assert.True(t, repo.refreshTokens[*login.RefreshToken].Revoked)
	assert.Contains(t, logs.actions(), models.AuthActionPasswordChanged)

	// the requesting session gets a fresh pair
	require.NotNil(t, res.RefreshToken)
	assert.NotEqual(t, *login.RefreshToken, *res.RefreshToken)
	assert.False(t, repo.refreshTokens[*res.RefreshToken].Revoked)
}

func TestChangePasswordWrongCurrent(t *testing.T) {
	repo := &mockAuthRepo{userByEmail: verifiedUser(t, "password123")}
	svc := newTestAuthService(repo, &mockAuthLogs{}, &mockVerifier{})

	_, err := svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{CurrentPassword: "wrong-pass", NewPassword: "brand-new-pass"})
	assert.True(t, appErrors.Is(err, appErrors.ErrIncorrectPassword))
	assert.False(t, repo.sessionsRevoked)
}
