package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type mockJanitor struct {
	tokenCutoff time.Time
	codeCutoff  time.Time
	logCutoff   time.Time
}

func (m *mockJanitor) DeleteExpiredRefreshTokens(ctx context.Context, cutoff time.Time) (int64, error) {
	m.tokenCutoff = cutoff
	return 3, nil
}

func (m *mockJanitor) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	m.codeCutoff = cutoff
	return 2, nil
}

func (m *mockJanitor) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	m.logCutoff = cutoff
	return 1, nil
}

func TestSweepPrunesAllStores(t *testing.T) {
	janitor := &mockJanitor{}
	svc := NewCleanupService(janitor, janitor, janitor, zap.NewNop(), CleanupConfig{
		Interval:         time.Hour,
		AuthLogRetention: 30 * 24 * time.Hour,
	})

	before := time.Now().UTC()
	svc.Sweep(context.Background())

	assert.WithinDuration(t, before, janitor.tokenCutoff, time.Second)
	assert.WithinDuration(t, before, janitor.codeCutoff, time.Second)
	assert.WithinDuration(t, before.Add(-30*24*time.Hour), janitor.logCutoff, time.Second)
}

func TestCleanupStartStop(t *testing.T) {
	janitor := &mockJanitor{}
	svc := NewCleanupService(janitor, janitor, janitor, zap.NewNop(), CleanupConfig{Interval: time.Hour})

	svc.Start(context.Background())
	svc.Start(context.Background())
	svc.Stop()
	svc.Stop()
}
