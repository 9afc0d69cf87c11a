package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"regexp"
	"time"

	"github.com/SergeiKhy/clicktrail/internal/models"
	"github.com/SergeiKhy/clicktrail/internal/repository"
	"go.uber.org/zap"
)

var (
	ErrNotFound    = errors.New("shortlink not found")
	ErrInvalidURL  = errors.New("invalid destination url")
	ErrInvalidSlug = errors.New("invalid slug")
	ErrSlugTaken   = errors.New("slug already taken")
)

// ErrLookupFailed сопровождает ErrNotFound, когда хранилище ссылок недоступно
var ErrLookupFailed = errors.New("link lookup failed")

const (
	maxExpiry       = 365 * 24 * time.Hour
	slugLength      = 7
	slugAttempts    = 5
	slugAlphabet    = "abcdefghijkmnopqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	defaultCacheTTL = time.Hour
)

var slugPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,32}$`)

// Slug'и, совпадающие с фиксированными маршрутами
var reservedSlugs = map[string]bool{
	"api":   true,
	"live":  true,
	"stats": true,
}

// LinkService находит ссылки для редиректа и управляет ими
type LinkService interface {
	CreateLink(ctx context.Context, input *models.CreateLinkInput) (*models.Link, error)
	GetLink(ctx context.Context, slug string) (*models.Link, error)
	DeleteLink(ctx context.Context, slug string) error
}

type linkService struct {
	linkRepo  repository.LinkRepository
	cacheRepo repository.CacheRepository
	cacheTTL  time.Duration
	logger    *zap.Logger
}

// NewLinkService создаёт сервис ссылок. Записи кэша живут не дольше cacheTTL,
// этим ограничена устарелость редиректа.
func NewLinkService(linkRepo repository.LinkRepository, cacheRepo repository.CacheRepository, cacheTTL time.Duration, logger *zap.Logger) LinkService {
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &linkService{
		linkRepo:  linkRepo,
		cacheRepo: cacheRepo,
		cacheTTL:  cacheTTL,
		logger:    logger,
	}
}

func (s *linkService) CreateLink(ctx context.Context, input *models.CreateLinkInput) (*models.Link, error) {
	if err := validateDestination(input.DestinationURL); err != nil {
		return nil, err
	}

	custom := input.Slug != nil && *input.Slug != ""
	if custom && !validSlug(*input.Slug) {
		return nil, ErrInvalidSlug
	}

	var expiresAt *time.Time
	if input.ExpiresIn != nil && *input.ExpiresIn > 0 {
		ttl := time.Duration(*input.ExpiresIn) * time.Minute
		if ttl > maxExpiry {
			ttl = maxExpiry
		}
		t := time.Now().Add(ttl)
		expiresAt = &t
	}

	for attempt := 0; attempt < slugAttempts; attempt++ {
		slug := ""
		if custom {
			slug = *input.Slug
		} else {
			generated, err := generateSlug()
			if err != nil {
				return nil, fmt.Errorf("failed to generate slug: %w", err)
			}
			slug = generated
		}

		link := &models.Link{
			Slug:           slug,
			DestinationURL: input.DestinationURL,
			ExpiresAt:      expiresAt,
			CreatedAt:      time.Now(),
		}

		err := s.linkRepo.Create(ctx, link)
		if errors.Is(err, repository.ErrSlugExists) {
			if custom {
				return nil, ErrSlugTaken
			}
			continue
		}
		if err != nil {
			return nil, err
		}

		s.cache(ctx, link)
		return link, nil
	}

	return nil, ErrSlugTaken
}

// GetLink проверяет кэш, затем хранилище. Любой сбой для вызывающего это
// ErrNotFound, сбой хранилища дополнительно помечен ErrLookupFailed.
func (s *linkService) GetLink(ctx context.Context, slug string) (*models.Link, error) {
	if link, err := s.cacheRepo.Get(ctx, slug); err == nil && !link.Expired(time.Now()) {
		return link, nil
	}

	link, err := s.linkRepo.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %w: %w", ErrNotFound, ErrLookupFailed, err)
	}

	s.cache(ctx, link)
	return link, nil
}

func (s *linkService) DeleteLink(ctx context.Context, slug string) error {
	if err := s.cacheRepo.Delete(ctx, slug); err != nil {
		s.logger.Warn("Failed to evict cached link", zap.String("slug", slug), zap.Error(err))
	}

	if err := s.linkRepo.Delete(ctx, slug); err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (s *linkService) cache(ctx context.Context, link *models.Link) {
	ttl := s.cacheTTL
	if link.ExpiresAt != nil {
		if until := time.Until(*link.ExpiresAt); until < ttl {
			ttl = until
		}
	}
	if ttl <= 0 {
		return
	}
	if err := s.cacheRepo.Set(ctx, link.Slug, link, ttl); err != nil {
		s.logger.Warn("Failed to cache link", zap.String("slug", link.Slug), zap.Error(err))
	}
}

func validateDestination(raw string) error {
	u, err := url.ParseRequestURI(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidURL
	}
	return nil
}

func validSlug(slug string) bool {
	return slugPattern.MatchString(slug) && !reservedSlugs[slug]
}

func generateSlug() (string, error) {
	result := make([]byte, slugLength)
	max := big.NewInt(int64(len(slugAlphabet)))
	for i := range result {
		num, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		result[i] = slugAlphabet[num.Int64()]
	}
	return string(result), nil
}
