package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/od-approval-api/pkg/errors"
)

type stubCacheRepo struct {
	getErr   error
	setTTL   time.Duration
	patterns []string
}

func (s *stubCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	return s.getErr
}

func (s *stubCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	s.setTTL = ttl
	return nil
}

func (s *stubCacheRepo) DeleteByPattern(ctx context.Context, pattern string) (int, error) {
	s.patterns = append(s.patterns, pattern)
	return 3, nil
}

func TestCacheServiceHitMissAndMetrics(t *testing.T) {
	repo := &stubCacheRepo{getErr: appErrors.ErrCacheMiss}
	metrics := NewMetricsService()
	svc := NewCacheService(repo, metrics, time.Minute, nil, true)

	var dest []string
	hit, err := svc.Get(context.Background(), "roster:x", &dest)
	require.NoError(t, err)
	require.False(t, hit)

	repo.getErr = nil
	hit, err = svc.Get(context.Background(), "roster:x", &dest)
	require.NoError(t, err)
	require.True(t, hit)

	repo.getErr = errors.New("timeout")
	_, err = svc.Get(context.Background(), "roster:x", &dest)
	require.Error(t, err)

	snapshot := metrics.Snapshot()
	require.EqualValues(t, 1, snapshot.CacheHits)
	require.EqualValues(t, 2, snapshot.CacheMisses)

	require.NoError(t, svc.Set(context.Background(), "roster:x", dest, 0))
	require.Equal(t, time.Minute, repo.setTTL)
	require.NoError(t, svc.Invalidate(context.Background(), "roster:*"))
	require.Equal(t, []string{"roster:*"}, repo.patterns)
}

func TestCacheServiceDisabled(t *testing.T) {
	repo := &stubCacheRepo{}
	svc := NewCacheService(repo, nil, 0, nil, false)
	hit, err := svc.Get(context.Background(), "k", &struct{}{})
	require.NoError(t, err)
	require.False(t, hit)
	require.NoError(t, svc.Invalidate(context.Background(), "roster:*"))
	require.Empty(t, repo.patterns)
}
