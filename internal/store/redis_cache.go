package store

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/serroba/shortlink/internal/shortener"
)

const (
	cacheCodePrefix = "url:"

	fieldID          = "id"
	fieldCode        = "code"
	fieldOriginalURL = "original_url"
	fieldIsCustom    = "is_custom"
	fieldExpiresAt   = "expires_at"
	fieldCreatedAt   = "created_at"
)

// RedisCacheRepository is a read-through cache over a shortener.Repository.
// Entries live in a hash per code. Click counts are never cached: cached
// entries report zero and ClickCount always reads the store. Writes always
// reach the underlying store first, and cache failures are never reported
// to callers.
type RedisCacheRepository struct {
	store  shortener.Repository
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisCacheRepository caches store lookups in client for at most ttl.
func NewRedisCacheRepository(
	store shortener.Repository, client *redis.Client, ttl time.Duration,
) *RedisCacheRepository {
	return &RedisCacheRepository{
		store:  store,
		client: client,
		ttl:    ttl,
		now:    time.Now,
	}
}

func (r *RedisCacheRepository) Insert(ctx context.Context, shortURL *shortener.ShortURL) error {
	if err := r.store.Insert(ctx, shortURL); err != nil {
		return err
	}

	r.put(ctx, shortURL)

	return nil
}

func (r *RedisCacheRepository) GetByCode(ctx context.Context, code shortener.Code) (*shortener.ShortURL, error) {
	fields, err := r.client.HGetAll(ctx, cacheCodePrefix+string(code)).Result()
	if err == nil {
		if cached, ok := decodeShortURL(fields); ok {
			return cached, nil
		}
	}

	shortURL, err := r.store.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	r.put(ctx, shortURL)

	return shortURL, nil
}

// GetActiveByOriginalURL always hits the store; dedup must see every entry.
func (r *RedisCacheRepository) GetActiveByOriginalURL(
	ctx context.Context, originalURL string, now time.Time,
) (*shortener.ShortURL, error) {
	return r.store.GetActiveByOriginalURL(ctx, originalURL, now)
}

// ExistsByCode trusts a cache hit, since codes are never released.
func (r *RedisCacheRepository) ExistsByCode(ctx context.Context, code shortener.Code) (bool, error) {
	n, err := r.client.Exists(ctx, cacheCodePrefix+string(code)).Result()
	if err == nil && n > 0 {
		return true, nil
	}

	return r.store.ExistsByCode(ctx, code)
}

func (r *RedisCacheRepository) IncrementClickCount(ctx context.Context, id string) error {
	return r.store.IncrementClickCount(ctx, id)
}

func (r *RedisCacheRepository) ClickCount(ctx context.Context, id string) (int64, error) {
	return r.store.ClickCount(ctx, id)
}

func (r *RedisCacheRepository) put(ctx context.Context, shortURL *shortener.ShortURL) {
	ttl := r.ttlFor(shortURL)
	if ttl <= 0 {
		return
	}

	key := cacheCodePrefix + string(shortURL.Code)

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, encodeShortURL(shortURL))
	pipe.Expire(ctx, key, ttl)

	_, _ = pipe.Exec(ctx)
}

// ttlFor caps the configured TTL at the link's remaining lifetime so that
// an expired link is served by the store, which reports it as expired.
func (r *RedisCacheRepository) ttlFor(shortURL *shortener.ShortURL) time.Duration {
	ttl := r.ttl
	if shortURL.ExpiresAt == nil {
		return ttl
	}

	if left := shortURL.ExpiresAt.Sub(r.now()); left < ttl {
		return left
	}

	return ttl
}

func encodeShortURL(u *shortener.ShortURL) map[string]any {
	expiresAt := ""
	if u.ExpiresAt != nil {
		expiresAt = strconv.FormatInt(u.ExpiresAt.UnixNano(), 10)
	}

	return map[string]any{
		fieldID:          u.ID,
		fieldCode:        string(u.Code),
		fieldOriginalURL: u.OriginalURL,
		fieldIsCustom:    strconv.FormatBool(u.IsCustom),
		fieldExpiresAt:   expiresAt,
		fieldCreatedAt:   u.CreatedAt.UnixNano(),
	}
}

// decodeShortURL reports false for a missing or partial hash.
func decodeShortURL(fields map[string]string) (*shortener.ShortURL, bool) {
	if fields[fieldCode] == "" || fields[fieldID] == "" {
		return nil, false
	}

	created, err := strconv.ParseInt(fields[fieldCreatedAt], 10, 64)
	if err != nil {
		return nil, false
	}

	isCustom, _ := strconv.ParseBool(fields[fieldIsCustom])

	u := &shortener.ShortURL{
		ID:          fields[fieldID],
		Code:        shortener.Code(fields[fieldCode]),
		OriginalURL: fields[fieldOriginalURL],
		IsCustom:    isCustom,
		CreatedAt:   time.Unix(0, created).UTC(),
	}

	if raw := fields[fieldExpiresAt]; raw != "" {
		nanos, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, false
		}

		at := time.Unix(0, nanos).UTC()
		u.ExpiresAt = &at
	}

	return u, true
}

var _ shortener.Repository = (*RedisCacheRepository)(nil)
