package store

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/serroba/shortlink/internal/analytics"
)

// ClickPostgresStore is a PostgreSQL implementation of analytics.Store.
type ClickPostgresStore struct {
	pool *pgxpool.Pool
	qb   sq.StatementBuilderType
}

// NewClickPostgresStore creates a click store on pool.
func NewClickPostgresStore(pool *pgxpool.Pool) *ClickPostgresStore {
	return &ClickPostgresStore{
		pool: pool,
		qb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (s *ClickPostgresStore) SaveClick(ctx context.Context, click *analytics.Click) error {
	query, args, err := s.qb.Insert("clicks").
		Columns("id", "short_url_id", "ip_address", "user_agent", "referer",
			"country", "device", "platform", "browser", "created_at").
		Values(
			click.ID,
			click.ShortURLID,
			nullableString(click.IPAddress),
			nullableString(click.UserAgent),
			nullableString(click.Referer),
			nullableString(click.Country),
			nullableString(click.Device),
			nullableString(click.Platform),
			nullableString(click.Browser),
			click.CreatedAt,
		).
		ToSql()
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, query, args...)

	return err
}

func (s *ClickPostgresStore) ListClicks(ctx context.Context, shortURLID string) ([]*analytics.Click, error) {
	query, args, err := s.qb.Select("id::text", "short_url_id::text", "ip_address", "user_agent", "referer",
		"country", "device", "platform", "browser", "created_at").
		From("clicks").
		Where(sq.Eq{"short_url_id": shortURLID}).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clicks []*analytics.Click

	for rows.Next() {
		var (
			c                                analytics.Click
			ip, ua, referer, country, device *string
			platform, browser                *string
		)

		if err := rows.Scan(&c.ID, &c.ShortURLID, &ip, &ua, &referer,
			&country, &device, &platform, &browser, &c.CreatedAt); err != nil {
			return nil, err
		}

		c.IPAddress = derefString(ip)
		c.UserAgent = derefString(ua)
		c.Referer = derefString(referer)
		c.Country = derefString(country)
		c.Device = derefString(device)
		c.Platform = derefString(platform)
		c.Browser = derefString(browser)

		clicks = append(clicks, &c)
	}

	return clicks, rows.Err()
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}

// Compile-time check.
var _ analytics.Store = (*ClickPostgresStore)(nil)
