package service_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/SergeiKhy/clicktrail/internal/models"
	"github.com/SergeiKhy/clicktrail/internal/repository"
	"github.com/SergeiKhy/clicktrail/internal/service"
	"github.com/SergeiKhy/clicktrail/internal/service/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLinkService() (service.LinkService, *repository.MemoryLinkRepository, *mocks.MockCacheRepository) {
	linkRepo := repository.NewMemoryLinkRepository()
	cacheRepo := mocks.NewMockCacheRepository()
	return service.NewLinkService(linkRepo, cacheRepo, time.Hour, zap.NewNop()), linkRepo, cacheRepo
}

func strPtr(s string) *string { return &s }

func TestLinkService_CreateLink_Success(t *testing.T) {
	svc, _, _ := setupLinkService()

	link, err := svc.CreateLink(context.Background(), &models.CreateLinkInput{
		DestinationURL: "https://example.com/landing",
	})

	require.NoError(t, err)
	assert.Len(t, link.Slug, 7)
	assert.Equal(t, "https://example.com/landing", link.DestinationURL)
	assert.Nil(t, link.ExpiresAt)
	assert.False(t, link.CreatedAt.IsZero())
}

func TestLinkService_CreateLink_CustomSlug(t *testing.T) {
	svc, _, _ := setupLinkService()
	ctx := context.Background()

	link, err := svc.CreateLink(ctx, &models.CreateLinkInput{
		DestinationURL: "https://example.com",
		Slug:           strPtr("launch-2026"),
	})
	require.NoError(t, err)
	assert.Equal(t, "launch-2026", link.Slug)

	_, err = svc.CreateLink(ctx, &models.CreateLinkInput{
		DestinationURL: "https://example.org",
		Slug:           strPtr("launch-2026"),
	})
	assert.ErrorIs(t, err, service.ErrSlugTaken)
}

func TestLinkService_CreateLink_InvalidSlug(t *testing.T) {
	svc, _, _ := setupLinkService()

	for _, slug := range []string{"ab", "has space", "bad@slug", "stats", "live", "api"} {
		link, err := svc.CreateLink(context.Background(), &models.CreateLinkInput{
			DestinationURL: "https://example.com",
			Slug:           strPtr(slug),
		})
		assert.ErrorIs(t, err, service.ErrInvalidSlug, "slug %q", slug)
		assert.Nil(t, link)
	}
}

func TestLinkService_CreateLink_ValidatesURL(t *testing.T) {
	valid := []string{
		"https://example.com",
		"http://example.com/path",
		"https://sub.example.com/path?query=value",
	}
	invalid := []string{
		"not-a-url",
		"ftp://example.com",
		"",
		"example.com",
		"https://",
	}

	for _, u := range valid {
		svc, _, _ := setupLinkService()
		link, err := svc.CreateLink(context.Background(), &models.CreateLinkInput{DestinationURL: u})
		assert.NoError(t, err, "url %q should be accepted", u)
		assert.NotNil(t, link)
	}
	for _, u := range invalid {
		svc, _, _ := setupLinkService()
		link, err := svc.CreateLink(context.Background(), &models.CreateLinkInput{DestinationURL: u})
		assert.ErrorIs(t, err, service.ErrInvalidURL, "url %q should be rejected", u)
		assert.Nil(t, link)
	}
}

func TestLinkService_CreateLink_ExpiryBoundsCacheTTL(t *testing.T) {
	svc, _, cacheRepo := setupLinkService()

	expiresIn := 10
	link, err := svc.CreateLink(context.Background(), &models.CreateLinkInput{
		DestinationURL: "https://example.com",
		ExpiresIn:      &expiresIn,
	})
	require.NoError(t, err)
	require.NotNil(t, link.ExpiresAt)
	assert.True(t, link.ExpiresAt.After(time.Now()))

	ttl, ok := cacheRepo.TTL(link.Slug)
	require.True(t, ok)
	assert.LessOrEqual(t, ttl, 10*time.Minute)
	assert.Greater(t, ttl, 9*time.Minute)
}

func TestLinkService_GetLink_FillsCache(t *testing.T) {
	svc, linkRepo, cacheRepo := setupLinkService()
	ctx := context.Background()

	require.NoError(t, linkRepo.Create(ctx, &models.Link{Slug: "abc", DestinationURL: "https://example.com"}))

	link, err := svc.GetLink(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", link.DestinationURL)

	ttl, ok := cacheRepo.TTL("abc")
	require.True(t, ok)
	assert.Equal(t, time.Hour, ttl)

	// после удаления из хранилища отдаётся из кэша
	require.NoError(t, linkRepo.Delete(ctx, "abc"))
	link, err = svc.GetLink(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", link.Slug)
}

func TestLinkService_GetLink_NotFound(t *testing.T) {
	svc, _, _ := setupLinkService()

	link, err := svc.GetLink(context.Background(), "nonexistent")

	assert.ErrorIs(t, err, service.ErrNotFound)
	assert.NotErrorIs(t, err, service.ErrLookupFailed)
	assert.Nil(t, link)
}

func TestLinkService_GetLink_StoreFailureIsNotFound(t *testing.T) {
	svc := service.NewLinkService(
		mocks.FailingLinkRepository{Err: mocks.ErrStoreDown},
		mocks.NewMockCacheRepository(),
		time.Hour,
		nil,
	)

	_, err := svc.GetLink(context.Background(), "abc")

	assert.ErrorIs(t, err, service.ErrNotFound)
	assert.ErrorIs(t, err, service.ErrLookupFailed)
	assert.ErrorIs(t, err, mocks.ErrStoreDown)
}

func TestLinkService_GetLink_CacheFailureFallsBackToStore(t *testing.T) {
	linkRepo := repository.NewMemoryLinkRepository()
	cacheRepo := mocks.NewMockCacheRepository()
	cacheRepo.Err = mocks.ErrStoreDown
	svc := service.NewLinkService(linkRepo, cacheRepo, time.Hour, nil)
	ctx := context.Background()

	require.NoError(t, linkRepo.Create(ctx, &models.Link{Slug: "abc", DestinationURL: "https://example.com"}))

	link, err := svc.GetLink(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", link.DestinationURL)
}

func TestLinkService_DeleteLink(t *testing.T) {
	svc, linkRepo, cacheRepo := setupLinkService()
	ctx := context.Background()

	created, err := svc.CreateLink(ctx, &models.CreateLinkInput{DestinationURL: "https://example.com"})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteLink(ctx, created.Slug))

	_, err = cacheRepo.Get(ctx, created.Slug)
	assert.Error(t, err)
	_, err = linkRepo.GetBySlug(ctx, created.Slug)
	assert.ErrorIs(t, err, repository.ErrLinkNotFound)

	assert.ErrorIs(t, svc.DeleteLink(ctx, created.Slug), service.ErrNotFound)
}

func TestLinkService_GeneratedSlugsAreUnique(t *testing.T) {
	svc, _, _ := setupLinkService()

	slugs := make(map[string]bool)
	for i := 0; i < 200; i++ {
		link, err := svc.CreateLink(context.Background(), &models.CreateLinkInput{
			DestinationURL: fmt.Sprintf("https://example.com/%d", i),
		})
		require.NoError(t, err)
		assert.NotContains(t, slugs, link.Slug)
		slugs[link.Slug] = true
	}
}

func TestLinkService_ConcurrentCreate(t *testing.T) {
	svc, _, _ := setupLinkService()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			link, err := svc.CreateLink(context.Background(), &models.CreateLinkInput{
				DestinationURL: fmt.Sprintf("https://example.com/%d", id),
			})
			assert.NoError(t, err)
			assert.NotNil(t, link)
		}(i)
	}
	wg.Wait()
}
