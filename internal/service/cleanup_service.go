package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type tokenJanitor interface {
	DeleteExpiredRefreshTokens(ctx context.Context, cutoff time.Time) (int64, error)
}

type verificationJanitor interface {
	DeleteStale(ctx context.Context, cutoff time.Time) (int64, error)
}

type authLogJanitor interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupConfig controls the background garbage collection cadence.
type CleanupConfig struct {
	Interval         time.Duration
	AuthLogRetention time.Duration
}

// CleanupService periodically removes expired refresh tokens, stale
// verification codes and old audit entries.
type CleanupService struct {
	tokens        tokenJanitor
	verifications verificationJanitor
	logs          authLogJanitor
	logger        *zap.Logger
	config        CleanupConfig

	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewCleanupService constructs a CleanupService.
func NewCleanupService(tokens tokenJanitor, verifications verificationJanitor, logs authLogJanitor, logger *zap.Logger, config CleanupConfig) *CleanupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Interval <= 0 {
		config.Interval = 24 * time.Hour
	}
	if config.AuthLogRetention <= 0 {
		config.AuthLogRetention = 90 * 24 * time.Hour
	}
	return &CleanupService{
		tokens:        tokens,
		verifications: verifications,
		logs:          logs,
		logger:        logger,
		config:        config,
	}
}

// Start launches the ticker loop. Safe to call once.
func (s *CleanupService) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.run(ctx)
}

// Stop cancels the loop and waits for the current pass to finish.
func (s *CleanupService) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
}

func (s *CleanupService) run(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep performs a single garbage collection pass.
func (s *CleanupService) Sweep(ctx context.Context) {
	now := time.Now().UTC()

	if tokens, err := s.tokens.DeleteExpiredRefreshTokens(ctx, now); err != nil {
		s.logger.Error("cleanup refresh tokens failed", zap.Error(err))
	} else if tokens > 0 {
		s.logger.Info("removed expired refresh tokens", zap.Int64("count", tokens))
	}

	if codes, err := s.verifications.DeleteStale(ctx, now); err != nil {
		s.logger.Error("cleanup verification codes failed", zap.Error(err))
	} else if codes > 0 {
		s.logger.Info("removed stale verification codes", zap.Int64("count", codes))
	}

	if logs, err := s.logs.DeleteOlderThan(ctx, now.Add(-s.config.AuthLogRetention)); err != nil {
		s.logger.Error("cleanup auth logs failed", zap.Error(err))
	} else if logs > 0 {
		s.logger.Info("removed old auth logs", zap.Int64("count", logs))
	}
}
