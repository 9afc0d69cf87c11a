package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/SergeiKhy/clicktrail/internal/models"
	"github.com/SergeiKhy/clicktrail/internal/repository"
	"github.com/SergeiKhy/clicktrail/internal/service"
	"github.com/SergeiKhy/clicktrail/internal/service/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type observerCount int

func (c observerCount) Count() int { return int(c) }

func insertClick(t *testing.T, repo repository.EventRepository, domain string, age time.Duration) {
	t.Helper()
	err := repo.InsertClick(context.Background(), &models.ClickEvent{
		Slug:        "abc",
		RefDomain:   domain,
		Disposition: models.DispositionGood,
		IP:          "1.1.1.1",
		SessionID:   fmt.Sprintf("s-%s-%d", domain, age),
		Country:     "DE",
		DeviceType:  "Desktop",
		SourceType:  models.SourceOther,
		Timestamp:   time.Now().Add(-age).UnixMilli(),
	})
	require.NoError(t, err)
}

func TestStatsService_Windows(t *testing.T) {
	repo := repository.NewMemoryEventRepository()
	insertClick(t, repo, "a", 30*time.Minute)
	insertClick(t, repo, "a", 3*time.Hour)
	insertClick(t, repo, "a", 3*24*time.Hour)
	insertClick(t, repo, "a", 20*24*time.Hour)
	insertClick(t, repo, "a", 60*24*time.Hour)
	svc := service.NewStatsService(repo, nil, nil)

	tests := []struct {
		window string
		want   int64
	}{
		{"1h", 1},
		{"24h", 2},
		{"7d", 3},
		{"30d", 4},
		{"", 2},
		{"forever", 2},
	}

	for _, tt := range tests {
		t.Run(tt.window, func(t *testing.T) {
			rows, err := svc.Aggregate(context.Background(), tt.window, "", 0)
			require.NoError(t, err)
			require.Len(t, rows, 1)
			assert.Equal(t, tt.want, rows[0].TotalClicks)
		})
	}
}

func TestStatsService_DomainAndLimit(t *testing.T) {
	repo := repository.NewMemoryEventRepository()
	for i, domain := range []string{"a", "b", "b", "c", "c", "c"} {
		insertClick(t, repo, domain, time.Duration(i+1)*time.Minute)
	}
	svc := service.NewStatsService(repo, nil, nil)
	ctx := context.Background()

	rows, err := svc.Aggregate(ctx, "1h", "", 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "c", rows[0].RefDomain)
	assert.Equal(t, "b", rows[1].RefDomain)

	rows, err = svc.Aggregate(ctx, "1h", "a", 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1), rows[0].TotalClicks)
}

func TestStatsService_EmptyIsNotNil(t *testing.T) {
	svc := service.NewStatsService(repository.NewMemoryEventRepository(), nil, nil)

	rows, err := svc.Aggregate(context.Background(), "24h", "", 10)

	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestStatsService_StoreFailure(t *testing.T) {
	repo := mocks.NewFlakyEventRepository()
	repo.AggregateErr = mocks.ErrStoreDown
	svc := service.NewStatsService(repo, nil, nil)

	rows, err := svc.Aggregate(context.Background(), "24h", "", 10)

	assert.ErrorIs(t, err, mocks.ErrStoreDown)
	assert.Nil(t, rows)
}

func TestStatsService_LiveStats(t *testing.T) {
	repo := repository.NewMemoryEventRepository()
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, repo.UpsertSession(ctx, &models.SessionRecord{SessionID: "fresh", LastActive: now.Add(-time.Minute).UnixMilli()}))
	require.NoError(t, repo.UpsertSession(ctx, &models.SessionRecord{SessionID: "stale", LastActive: now.Add(-time.Hour).UnixMilli()}))
	svc := service.NewStatsService(repo, observerCount(2), nil)

	stats, err := svc.LiveStats(ctx, 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, models.LiveStats{ActiveSessions: 1, Observers: 2}, stats)

	stats, err = svc.LiveStats(ctx, 2*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.ActiveSessions)
}
