package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appErrors "github.com/azhur-katering/katering-api/pkg/errors"
	"github.com/azhur-katering/katering-api/pkg/jobs"
	"github.com/azhur-katering/katering-api/pkg/mailer"

	"github.com/azhur-katering/katering-api/internal/models"
)

const verificationJobType = "verification_email"

type verificationRepository interface {
	Create(ctx context.Context, v *models.EmailVerification) error
	FindValidByEmail(ctx context.Context, email string, now time.Time) (*models.EmailVerification, error)
	MarkUsed(ctx context.Context, id string) (bool, error)
	SupersedeValid(ctx context.Context, email string) error
}

type verificationUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	MarkVerified(ctx context.Context, id string, version int64, verifiedAt time.Time) error
}

// EmailConfig controls code issuance and the delivery worker pool.
type EmailConfig struct {
	CodeTTL     time.Duration
	Workers     int
	QueueBuffer int
}

type verificationPayload struct {
	Email string
	Code  string
}

// EmailService owns the email verification lifecycle: issuing 6 digit
// codes, delivering them through a worker pool and redeeming them.
type EmailService struct {
	verifications verificationRepository
	users         verificationUserRepository
	logs          authLogRecorder
	mail          mailer.Mailer
	queue         *jobs.Queue
	logger        *zap.Logger
	metrics       *Metrics
	config        EmailConfig
	now           func() time.Time
}

// NewEmailService constructs an EmailService and its delivery queue. Call
// Start before issuing codes and Stop on shutdown.
func NewEmailService(verifications verificationRepository, users verificationUserRepository, logs authLogRecorder, mail mailer.Mailer, logger *zap.Logger, metrics *Metrics, config EmailConfig) *EmailService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.CodeTTL <= 0 {
		config.CodeTTL = 15 * time.Minute
	}
	s := &EmailService{
		verifications: verifications,
		users:         users,
		logs:          logs,
		mail:          mail,
		logger:        logger,
		metrics:       metrics,
		config:        config,
		now:           func() time.Time { return time.Now().UTC() },
	}
	s.queue = jobs.NewQueue("verification-emails", s.deliver, jobs.QueueConfig{
		Workers:    config.Workers,
		BufferSize: config.QueueBuffer,
		Logger:     logger,
	})
	return s
}

// Start launches the delivery workers.
func (s *EmailService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the delivery workers.
func (s *EmailService) Stop() {
	s.queue.Stop()
}

// IssueCode invalidates any outstanding codes for the email and stores a
// fresh one. Delivery happens asynchronously on the worker pool.
func (s *EmailService) IssueCode(ctx context.Context, email, ip string) error {
	if err := s.verifications.SupersedeValid(ctx, email); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to supersede codes")
	}

	code, err := generateCode()
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate code")
	}

	v := &models.EmailVerification{
		Email:     email,
		Code:      code,
		ExpiresAt: s.now().Add(s.config.CodeTTL),
		IPAddress: ip,
	}
	if err := s.verifications.Create(ctx, v); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store code")
	}

	if err := s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    verificationJobType,
		Payload: verificationPayload{Email: email, Code: code},
	}); err != nil {
		s.logger.Warn("failed to enqueue verification email", zap.String("email", email), zap.Error(err))
	}
	return nil
}

// SendVerificationCode issues a fresh code for an existing, still
// unverified account.
func (s *EmailService) SendVerificationCode(ctx context.Context, email, ip string) error {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrUserNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if user.Verified {
		return appErrors.ErrAlreadyVerified
	}
	return s.IssueCode(ctx, email, ip)
}

// VerifyEmail redeems a code and marks the account verified. Codes are
// single use.
func (s *EmailService) VerifyEmail(ctx context.Context, req models.VerifyEmailRequest) error {
	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrUserNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if user.Verified {
		return appErrors.ErrAlreadyVerified
	}

	now := s.now()
	v, err := s.verifications.FindValidByEmail(ctx, req.Email, now)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrVerificationCode
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load code")
	}
	if v.Code != req.Code {
		s.audit(ctx, &user.ID, user.Email, false, req.IP, req.UserAgent, "code mismatch")
		return appErrors.ErrVerificationCode
	}

	consumed, err := s.verifications.MarkUsed(ctx, v.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to consume code")
	}
	if !consumed {
		return appErrors.ErrVerificationCode
	}

	if err := s.users.MarkVerified(ctx, user.ID, user.Version, now); err != nil {
		if appErrors.Is(err, appErrors.ErrConflict) {
			return err
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark verified")
	}

	s.audit(ctx, &user.ID, user.Email, true, req.IP, req.UserAgent, "")
	s.metrics.VerificationsInc()
	return nil
}

func (s *EmailService) deliver(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(verificationPayload)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", job.Payload)
	}

	subject := "Your verification code"
	body := fmt.Sprintf("Your verification code is %s. It expires in %d minutes.", payload.Code, int(s.config.CodeTTL.Minutes()))
	if err := s.mail.Send(ctx, payload.Email, subject, body); err != nil {
		s.metrics.EmailSent("error")
		return fmt.Errorf("send verification email: %w", err)
	}
	s.metrics.EmailSent("ok")
	return nil
}

func (s *EmailService) audit(ctx context.Context, userID *string, email string, success bool, ip, userAgent, details string) {
	if s.logs == nil {
		return
	}
	if err := s.logs.Create(ctx, &models.AuthLog{
		UserID:    userID,
		Email:     email,
		Action:    models.AuthActionEmailVerification,
		Success:   success,
		IPAddress: ip,
		UserAgent: userAgent,
		Details:   details,
	}); err != nil {
		s.logger.Warn("failed to record verification log", zap.Error(err))
	}
}

// generateCode draws a uniformly distributed 6 digit code from the system
// entropy source.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
