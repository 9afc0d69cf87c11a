package maintenance_test

import (
	"context"
	"testing"
	"time"

	"github.com/SergeiKhy/clicktrail/internal/maintenance"
	"github.com/SergeiKhy/clicktrail/internal/models"
	"github.com/SergeiKhy/clicktrail/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedSessions(t *testing.T, repo *repository.MemoryEventRepository) {
	t.Helper()
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, repo.UpsertSession(ctx, &models.SessionRecord{SessionID: "fresh", LastActive: now.Add(-time.Hour).UnixMilli()}))
	require.NoError(t, repo.UpsertSession(ctx, &models.SessionRecord{SessionID: "stale", LastActive: now.Add(-48 * time.Hour).UnixMilli()}))
}

func TestScheduler_PruneOnce(t *testing.T) {
	repo := repository.NewMemoryEventRepository()
	seedSessions(t, repo)
	s := maintenance.NewScheduler(nil, repo, "", 24*time.Hour)

	n, err := s.PruneOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	_, ok := repo.Session("fresh")
	assert.True(t, ok)
	_, ok = repo.Session("stale")
	assert.False(t, ok)
}

func TestScheduler_StartPrunesImmediately(t *testing.T) {
	repo := repository.NewMemoryEventRepository()
	seedSessions(t, repo)
	s := maintenance.NewScheduler(nil, repo, "@every 1h", 24*time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Start(ctx))
	defer s.Stop()

	assert.Eventually(t, func() bool {
		_, ok := repo.Session("stale")
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestScheduler_InvalidSchedule(t *testing.T) {
	s := maintenance.NewScheduler(nil, repository.NewMemoryEventRepository(), "every tuesday", time.Hour)

	err := s.Start(context.Background())

	assert.Error(t, err)
}
