package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/SergeiKhy/clicktrail/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrLinkNotFound = errors.New("link not found")
	ErrSlugExists   = errors.New("slug already exists")
)

const uniqueViolation = "23505"

// LinkRepository постоянное хранилище соответствия slug -> адрес
type LinkRepository interface {
	Create(ctx context.Context, link *models.Link) error
	GetBySlug(ctx context.Context, slug string) (*models.Link, error)
	Delete(ctx context.Context, slug string) error
}

type linkRepository struct {
	db *PostgresDB
}

func NewLinkRepository(db *PostgresDB) LinkRepository {
	return &linkRepository{db: db}
}

func (r *linkRepository) Create(ctx context.Context, link *models.Link) error {
	query := `
		INSERT INTO links (slug, destination_url, expires_at, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		link.Slug,
		link.DestinationURL,
		link.ExpiresAt,
		link.CreatedAt,
	).Scan(&link.ID, &link.CreatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrSlugExists
		}
		return fmt.Errorf("failed to create link: %w", err)
	}

	return nil
}

// GetBySlug пропускает истёкшие ссылки, они считаются ненайденными
func (r *linkRepository) GetBySlug(ctx context.Context, slug string) (*models.Link, error) {
	query := `
		SELECT id, slug, destination_url, expires_at, created_at
		FROM links
		WHERE slug = $1 AND (expires_at IS NULL OR expires_at > NOW())
	`

	link := &models.Link{}
	err := r.db.Pool.QueryRow(ctx, query, slug).Scan(
		&link.ID,
		&link.Slug,
		&link.DestinationURL,
		&link.ExpiresAt,
		&link.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to get link: %w", err)
	}

	return link, nil
}

func (r *linkRepository) Delete(ctx context.Context, slug string) error {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM links WHERE slug = $1`, slug)
	if err != nil {
		return fmt.Errorf("failed to delete link: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrLinkNotFound
	}

	return nil
}
