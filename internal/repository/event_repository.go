package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/SergeiKhy/clicktrail/internal/analytics"
	"github.com/SergeiKhy/clicktrail/internal/models"
)

// EventRepository хранилище кликов (только добавление) и таблица живых сессий
type EventRepository interface {
	InsertClick(ctx context.Context, event *models.ClickEvent) error
	// UpsertSession оставляет самую свежую запись для сессии
	UpsertSession(ctx context.Context, session *models.SessionRecord) error
	Aggregate(ctx context.Context, q analytics.Query) ([]models.AggregateRow, error)
	CountActiveSessions(ctx context.Context, since time.Time) (int64, error)
	PruneSessions(ctx context.Context, before time.Time) (int64, error)
}

type eventRepository struct {
	db *PostgresDB
}

func NewEventRepository(db *PostgresDB) EventRepository {
	return &eventRepository{db: db}
}

func (r *eventRepository) InsertClick(ctx context.Context, e *models.ClickEvent) error {
	query := `
		INSERT INTO click_events (
			slug, original_url, referrer, ref_domain, ip, country, city, click_type,
			user_agent, device_type, browser, os, query_params, session_id, source_type,
			timestamp_ms, response_time, rate_limit_count
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		e.Slug,
		e.DestinationURL,
		e.Referrer,
		e.RefDomain,
		e.IP,
		e.Country,
		e.City,
		string(e.Disposition),
		e.UserAgent,
		e.DeviceType,
		e.Browser,
		e.OS,
		e.QueryParams,
		e.SessionID,
		string(e.SourceType),
		e.Timestamp,
		e.ResponseTime,
		e.RateLimitCount,
	)
	if err != nil {
		return fmt.Errorf("failed to insert click event: %w", err)
	}

	return nil
}

func (r *eventRepository) UpsertSession(ctx context.Context, s *models.SessionRecord) error {
	query := `
		INSERT INTO live_sessions (session_id, ip, slug, last_active)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id) DO UPDATE
		SET ip = EXCLUDED.ip, slug = EXCLUDED.slug, last_active = EXCLUDED.last_active
		WHERE live_sessions.last_active <= EXCLUDED.last_active
	`

	if _, err := r.db.Pool.Exec(ctx, query, s.SessionID, s.IP, s.Slug, s.LastActive); err != nil {
		return fmt.Errorf("failed to upsert session: %w", err)
	}

	return nil
}

// Aggregate повторяет analytics.Summarize на SQL. При равном числе кликов
// порядок задаёт побайтовое сравнение домена, как и в Summarize.
func (r *eventRepository) Aggregate(ctx context.Context, q analytics.Query) ([]models.AggregateRow, error) {
	query := `
		SELECT
			ref_domain,
			COUNT(*) AS total_clicks,
			COUNT(*) FILTER (WHERE click_type = 'good') AS good_clicks,
			COUNT(*) FILTER (WHERE click_type = 'bad') AS bad_clicks,
			COUNT(*) FILTER (WHERE click_type = 'suspicious') AS suspicious_clicks,
			AVG(response_time)::float8 AS avg_response_time,
			COUNT(DISTINCT ip) AS unique_visitors,
			COUNT(DISTINCT session_id) AS unique_sessions,
			ARRAY_REMOVE(ARRAY_AGG(DISTINCT country COLLATE "C" ORDER BY country COLLATE "C"), '') AS countries,
			ARRAY_REMOVE(ARRAY_AGG(DISTINCT device_type COLLATE "C" ORDER BY device_type COLLATE "C"), '') AS devices,
			ARRAY_REMOVE(ARRAY_AGG(DISTINCT source_type COLLATE "C" ORDER BY source_type COLLATE "C"), '') AS sources
		FROM click_events
		WHERE timestamp_ms >= $1
			AND ($2::text = '' OR ref_domain = $2::text)
		GROUP BY ref_domain
		ORDER BY total_clicks DESC, ref_domain COLLATE "C" ASC
		LIMIT $3
	`

	limit := q.Limit
	if limit <= 0 {
		limit = analytics.DefaultLimit
	}

	rows, err := r.db.Pool.Query(ctx, query, q.Since.UnixMilli(), q.Domain, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate clicks: %w", err)
	}
	defer rows.Close()

	result := []models.AggregateRow{}
	for rows.Next() {
		var row models.AggregateRow
		if err := rows.Scan(
			&row.RefDomain,
			&row.TotalClicks,
			&row.GoodClicks,
			&row.BadClicks,
			&row.SuspiciousClicks,
			&row.AvgResponseTime,
			&row.UniqueVisitors,
			&row.UniqueSessions,
			&row.Countries,
			&row.Devices,
			&row.Sources,
		); err != nil {
			return nil, fmt.Errorf("failed to scan aggregate row: %w", err)
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating aggregate rows: %w", err)
	}

	return result, nil
}

func (r *eventRepository) CountActiveSessions(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := r.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM live_sessions WHERE last_active >= $1`,
		since.UnixMilli(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count active sessions: %w", err)
	}
	return n, nil
}

func (r *eventRepository) PruneSessions(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM live_sessions WHERE last_active < $1`, before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to prune sessions: %w", err)
	}
	return result.RowsAffected(), nil
}
