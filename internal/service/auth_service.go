package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	appErrors "github.com/azhur-katering/katering-api/pkg/errors"

	"github.com/azhur-katering/katering-api/internal/models"
)

type authUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	Create(ctx context.Context, user *models.User) error
	RecordFailedLogin(ctx context.Context, id string, maxAttempts int, lockUntil time.Time) (int, *time.Time, error)
	ResetFailedAttempts(ctx context.Context, id string, loginAt time.Time) error
	CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error
	FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error)
	RotateRefreshToken(ctx context.Context, oldID string, next *models.RefreshToken) error
	RevokeRefreshToken(ctx context.Context, id string) error
	ChangePassword(ctx context.Context, userID, passwordHash string, changedAt time.Time, next *models.RefreshToken) error
}

type authLogRecorder interface {
	Create(ctx context.Context, log *models.AuthLog) error
}

type passwordHasher interface {
	Hash(password string) (string, error)
	Compare(hashed, password string) error
}

type verificationIssuer interface {
	IssueCode(ctx context.Context, email, ip string) error
}

// LockoutConfig controls the failed login lockout policy.
type LockoutConfig struct {
	MaxFailedAttempts int
	LockDuration      time.Duration
}

// AuthService provides the account lifecycle use cases.
type AuthService struct {
	repo      authUserRepository
	logs      authLogRecorder
	hasher    passwordHasher
	tokens    *TokenService
	verifier  verificationIssuer
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *Metrics
	lockout   LockoutConfig
	now       func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(repo authUserRepository, logs authLogRecorder, hasher passwordHasher, tokens *TokenService, verifier verificationIssuer, validate *validator.Validate, logger *zap.Logger, metrics *Metrics, lockout LockoutConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AuthService{
		repo:      repo,
		logs:      logs,
		hasher:    hasher,
		tokens:    tokens,
		verifier:  verifier,
		validator: validate,
		logger:    logger,
		metrics:   metrics,
		lockout:   lockout,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Register creates a new unverified account and mails a verification code.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}

	if exists, err := s.repo.ExistsByEmail(ctx, req.Email); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	} else if exists {
		return nil, appErrors.ErrEmailExists
	}
	if exists, err := s.repo.ExistsByUsername(ctx, req.Username); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check username")
	} else if exists {
		return nil, appErrors.ErrUsernameExists
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         models.RoleUser,
		Active:       true,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	if err := s.verifier.IssueCode(ctx, user.Email, req.IP); err != nil {
		s.logger.Warn("failed to issue verification code", zap.String("email", user.Email), zap.Error(err))
	}

	s.audit(ctx, &user.ID, user.Email, models.AuthActionRegistration, true, req.IP, req.UserAgent, "")
	s.metrics.RegistrationsInc()

	return &models.AuthResponse{
		User:                 user.Info(),
		RequiresVerification: true,
		IssuedAt:             s.now(),
	}, nil
}

// Login authenticates a user and returns issued tokens. Accounts that are
// still unverified get a soft response without tokens.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}
	s.metrics.LoginAttemptsInc()

	user, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.audit(ctx, nil, req.Email, models.AuthActionLoginFailed, false, req.IP, req.UserAgent, "unknown email")
			s.metrics.LoginFailuresInc()
			return nil, appErrors.ErrUserNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}

	now := s.now()
	if user.Locked(now) {
		s.audit(ctx, &user.ID, user.Email, models.AuthActionLoginFailed, false, req.IP, req.UserAgent, "account locked")
		s.metrics.LoginFailuresInc()
		return nil, appErrors.ErrAccountLocked
	}
	if !user.Active {
		s.audit(ctx, &user.ID, user.Email, models.AuthActionLoginFailed, false, req.IP, req.UserAgent, "account inactive")
		s.metrics.LoginFailuresInc()
		return nil, appErrors.ErrInactiveAccount
	}

	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		return nil, s.handleFailedPassword(ctx, user, req)
	}

	if !user.Verified {
		s.metrics.LoginFailuresInc()
		if err := s.verifier.IssueCode(ctx, user.Email, req.IP); err != nil {
			s.logger.Warn("failed to issue verification code", zap.String("email", user.Email), zap.Error(err))
		}
		s.audit(ctx, &user.ID, user.Email, models.AuthActionLogin, true, req.IP, req.UserAgent, "verification pending")
		return &models.AuthResponse{
			User:                 user.Info(),
			RequiresVerification: true,
			IssuedAt:             now,
		}, nil
	}

	if err := s.repo.ResetFailedAttempts(ctx, user.ID, now); err != nil {
		s.logger.Warn("failed to reset login counter", zap.String("user_id", user.ID), zap.Error(err))
	}

	resp, err := s.issueTokens(ctx, user, req.IP, req.UserAgent)
	if err != nil {
		return nil, err
	}

	s.audit(ctx, &user.ID, user.Email, models.AuthActionLogin, true, req.IP, req.UserAgent, "")
	return resp, nil
}

func (s *AuthService) handleFailedPassword(ctx context.Context, user *models.User, req models.LoginRequest) error {
	s.metrics.LoginFailuresInc()
	lockUntil := s.now().Add(s.lockout.LockDuration)
	attempts, locked, err := s.repo.RecordFailedLogin(ctx, user.ID, s.lockout.MaxFailedAttempts, lockUntil)
	if err != nil {
		s.logger.Error("failed to record login failure", zap.String("user_id", user.ID), zap.Error(err))
		return appErrors.ErrIncorrectPassword
	}

	s.audit(ctx, &user.ID, user.Email, models.AuthActionLoginFailed, false, req.IP, req.UserAgent, fmt.Sprintf("attempt %d", attempts))
	if locked != nil && attempts >= s.lockout.MaxFailedAttempts {
		s.audit(ctx, &user.ID, user.Email, models.AuthActionAccountLocked, false, req.IP, req.UserAgent, fmt.Sprintf("locked until %s", locked.Format(time.RFC3339)))
		s.metrics.LockoutsInc()
	}
	// the attempt that trips the lockout still reports a bad password;
	// the lock only rejects attempts that come after it
	return appErrors.ErrIncorrectPassword
}

func (s *AuthService) issueTokens(ctx context.Context, user *models.User, ip, userAgent string) (*models.AuthResponse, error) {
	accessToken, err := s.tokens.MintAccessToken(user)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}
	refreshToken, err := s.tokens.MintRefreshToken(user)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create refresh token")
	}

	now := s.now()
	session := &models.RefreshToken{
		UserID:    user.ID,
		Token:     refreshToken,
		ExpiresAt: now.Add(s.tokens.RefreshExpiry()),
		IPAddress: ip,
		UserAgent: userAgent,
	}
	if err := s.repo.CreateRefreshToken(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist refresh token")
	}

	return &models.AuthResponse{
		AccessToken:  &accessToken,
		RefreshToken: &refreshToken,
		ExpiresIn:    s.tokens.AccessExpirySeconds(),
		User:         user.Info(),
		IssuedAt:     now,
	}, nil
}

// Refresh exchanges a refresh token for a new token pair. The stored
// session is rotated so each refresh token works exactly once.
func (s *AuthService) Refresh(ctx context.Context, refreshToken, ip, userAgent string) (*models.AuthResponse, error) {
	if refreshToken == "" {
		return nil, appErrors.ErrTokenNotFound
	}

	claims, err := s.tokens.Validate(refreshToken, models.TokenTypeRefresh)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.FindByEmail(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrUserNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if !user.Active {
		return nil, appErrors.ErrInactiveAccount
	}
	if user.ID != claims.UserID {
		return nil, appErrors.ErrTokenNotValid
	}

	stored, err := s.repo.FindRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrTokenNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch refresh token")
	}

	now := s.now()
	if !stored.Usable(now) {
		if stored.Revoked {
			// a revoked token presented again is a reuse signal, possibly theft
			s.logger.Warn("revoked refresh token presented",
				zap.String("user_id", stored.UserID),
				zap.String("ip", ip))
			s.audit(ctx, &stored.UserID, claims.Subject, models.AuthActionLoginFailed, false, ip, userAgent, "revoked refresh token reuse")
		}
		return nil, appErrors.ErrTokenNotValid
	}
	if stored.UserID != user.ID {
		return nil, appErrors.ErrTokenNotValid
	}

	accessToken, err := s.tokens.MintAccessToken(user)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}
	nextRefresh, err := s.tokens.MintRefreshToken(user)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create refresh token")
	}

	next := &models.RefreshToken{
		UserID:    user.ID,
		Token:     nextRefresh,
		ExpiresAt: now.Add(s.tokens.RefreshExpiry()),
		IPAddress: ip,
		UserAgent: userAgent,
	}
	if err := s.repo.RotateRefreshToken(ctx, stored.ID, next); err != nil {
		if appErrors.Is(err, appErrors.ErrTokenNotValid) {
			return nil, err
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rotate refresh token")
	}

	return &models.AuthResponse{
		AccessToken:  &accessToken,
		RefreshToken: &nextRefresh,
		ExpiresIn:    s.tokens.AccessExpirySeconds(),
		User:         user.Info(),
		IssuedAt:     now,
	}, nil
}

// Logout revokes the presented refresh token. Missing, expired or foreign
// tokens are ignored so logout never fails for the client.
func (s *AuthService) Logout(ctx context.Context, refreshToken, ip, userAgent string) {
	if refreshToken == "" {
		return
	}

	claims, err := s.tokens.Validate(refreshToken, models.TokenTypeRefresh)
	if err != nil {
		return
	}

	stored, err := s.repo.FindRefreshToken(ctx, refreshToken)
	if err != nil {
		return
	}

	if err := s.repo.RevokeRefreshToken(ctx, stored.ID); err != nil {
		s.logger.Warn("failed to revoke refresh token on logout", zap.Error(err))
		return
	}

	s.audit(ctx, &stored.UserID, claims.Subject, models.AuthActionLogout, true, ip, userAgent, "")
}

// ChangePassword verifies the current password, swaps the hash, revokes
// every open session, and issues a fresh token pair for the requesting
// device. Sessions on other devices stay revoked.
func (s *AuthService) ChangePassword(ctx context.Context, userID string, req models.ChangePasswordRequest) (*models.AuthResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid change password payload")
	}

	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrUserNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	if err := s.hasher.Compare(user.PasswordHash, req.CurrentPassword); err != nil {
		s.audit(ctx, &user.ID, user.Email, models.AuthActionPasswordChanged, false, req.IP, req.UserAgent, "current password mismatch")
		return nil, appErrors.ErrIncorrectPassword
	}

	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	accessToken, err := s.tokens.MintAccessToken(user)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}
	refreshToken, err := s.tokens.MintRefreshToken(user)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create refresh token")
	}

	now := s.now()
	next := &models.RefreshToken{
		UserID:    user.ID,
		Token:     refreshToken,
		ExpiresAt: now.Add(s.tokens.RefreshExpiry()),
		IPAddress: req.IP,
		UserAgent: req.UserAgent,
	}
	if err := s.repo.ChangePassword(ctx, user.ID, hash, now, next); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to change password")
	}

	s.audit(ctx, &user.ID, user.Email, models.AuthActionPasswordChanged, true, req.IP, req.UserAgent, "")
	return &models.AuthResponse{
		AccessToken:  &accessToken,
		RefreshToken: &refreshToken,
		ExpiresIn:    s.tokens.AccessExpirySeconds(),
		User:         user.Info(),
		IssuedAt:     now,
	}, nil
}

// CurrentUser returns the profile for an authenticated user.
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*models.UserInfo, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrUserNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	info := user.Info()
	return &info, nil
}

func (s *AuthService) audit(ctx context.Context, userID *string, email, action string, success bool, ip, userAgent, details string) {
	if s.logs == nil {
		return
	}
	if err := s.logs.Create(ctx, &models.AuthLog{
		UserID:    userID,
		Email:     email,
		Action:    action,
		Success:   success,
		IPAddress: ip,
		UserAgent: userAgent,
		Details:   details,
	}); err != nil {
		s.logger.Warn("failed to record auth log", zap.String("action", action), zap.Error(err))
	}
}
