package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/serroba/shortlink/internal/shortener"
)

const uniqueViolationCode = "23505"

const shortURLColumns = `id::text, code, original_url, is_custom, click_count, expires_at, created_at`

// PostgresStore is a PostgreSQL implementation of shortener.Repository.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed URL store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (p *PostgresStore) Insert(ctx context.Context, shortURL *shortener.ShortURL) error {
	query := `
		INSERT INTO short_urls (id, code, original_url, url_hash, is_custom, click_count, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := p.pool.Exec(ctx, query,
		shortURL.ID,
		string(shortURL.Code),
		shortURL.OriginalURL,
		string(shortener.HashURL(shortURL.OriginalURL)),
		shortURL.IsCustom,
		shortURL.ClickCount,
		shortURL.ExpiresAt,
		shortURL.CreatedAt,
	)
	if isUniqueViolation(err) {
		return shortener.ErrUniqueViolation
	}

	return err
}

func (p *PostgresStore) GetByCode(ctx context.Context, code shortener.Code) (*shortener.ShortURL, error) {
	query := `SELECT ` + shortURLColumns + ` FROM short_urls WHERE code = $1`

	return scanShortURL(p.pool.QueryRow(ctx, query, string(code)))
}

// GetActiveByOriginalURL looks entries up by URL hash and compares the full
// URL to rule out hash collisions.
func (p *PostgresStore) GetActiveByOriginalURL(
	ctx context.Context, originalURL string, now time.Time,
) (*shortener.ShortURL, error) {
	query := `SELECT ` + shortURLColumns + `
		FROM short_urls
		WHERE url_hash = $1
		  AND original_url = $2
		  AND (expires_at IS NULL OR expires_at > $3)
		ORDER BY created_at DESC
		LIMIT 1
	`

	return scanShortURL(p.pool.QueryRow(ctx, query,
		string(shortener.HashURL(originalURL)), originalURL, now))
}

func (p *PostgresStore) ExistsByCode(ctx context.Context, code shortener.Code) (bool, error) {
	var exists bool

	err := p.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM short_urls WHERE code = $1)`, string(code),
	).Scan(&exists)

	return exists, err
}

func (p *PostgresStore) IncrementClickCount(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE short_urls SET click_count = click_count + 1 WHERE id = $1`, id)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return shortener.ErrNotFound
	}

	return nil
}

func (p *PostgresStore) ClickCount(ctx context.Context, id string) (int64, error) {
	var count int64

	err := p.pool.QueryRow(ctx, `SELECT click_count FROM short_urls WHERE id = $1`, id).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, shortener.ErrNotFound
	}

	return count, err
}

func scanShortURL(row pgx.Row) (*shortener.ShortURL, error) {
	var (
		url  shortener.ShortURL
		code string
	)

	err := row.Scan(
		&url.ID,
		&code,
		&url.OriginalURL,
		&url.IsCustom,
		&url.ClickCount,
		&url.ExpiresAt,
		&url.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shortener.ErrNotFound
		}

		return nil, err
	}

	url.Code = shortener.Code(code)

	return &url, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError

	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

// Compile-time check.
var _ shortener.Repository = (*PostgresStore)(nil)
