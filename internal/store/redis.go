package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/serroba/shortlink/internal/analytics"
	"github.com/serroba/shortlink/internal/shortener"
)

const fieldClickCount = "click_count"

// insertIfAbsent writes the entry hash, its id index and its original URL
// index only when the code is free. It returns 0 when the code is taken.
var insertIfAbsent = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
	return 0
end
redis.call("HSET", KEYS[1], unpack(ARGV, 3))
redis.call("SET", KEYS[2], ARGV[2])
redis.call("ZADD", KEYS[3], ARGV[1], ARGV[2])
return 1
`)

// RedisStore is a Redis implementation of shortener.Repository and
// analytics.Store for deployments that keep everything in Redis.
type RedisStore struct {
	client     *redis.Client
	prefix     string // "link:" for code -> entry hash
	idPrefix   string // "link:id:" for id -> code
	hashPrefix string // "link_hashes:" for url hash -> codes by creation time
	clicks     string // "link:clicks:" for id -> click list
}

// NewRedisStore creates a new Redis-backed store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client:     client,
		prefix:     "link:",
		idPrefix:   "link:id:",
		hashPrefix: "link_hashes:",
		clicks:     "link:clicks:",
	}
}

func (r *RedisStore) Insert(ctx context.Context, shortURL *shortener.ShortURL) error {
	args := []any{strconv.FormatInt(shortURL.CreatedAt.UnixMicro(), 10), string(shortURL.Code)}
	for field, value := range encodeShortURL(shortURL) {
		args = append(args, field, value)
	}

	args = append(args, fieldClickCount, shortURL.ClickCount)

	keys := []string{
		r.prefix + string(shortURL.Code),
		r.idPrefix + shortURL.ID,
		r.hashPrefix + string(shortener.HashURL(shortURL.OriginalURL)),
	}

	inserted, err := insertIfAbsent.Run(ctx, r.client, keys, args...).Int()
	if err != nil {
		return err
	}

	if inserted == 0 {
		return shortener.ErrUniqueViolation
	}

	return nil
}

func (r *RedisStore) GetByCode(ctx context.Context, code shortener.Code) (*shortener.ShortURL, error) {
	fields, err := r.client.HGetAll(ctx, r.prefix+string(code)).Result()
	if err != nil {
		return nil, err
	}

	return decodeStoredShortURL(fields)
}

// GetActiveByOriginalURL walks the entries for originalURL newest first.
func (r *RedisStore) GetActiveByOriginalURL(
	ctx context.Context, originalURL string, now time.Time,
) (*shortener.ShortURL, error) {
	codes, err := r.client.ZRevRange(ctx, r.hashPrefix+string(shortener.HashURL(originalURL)), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	for _, code := range codes {
		u, err := r.GetByCode(ctx, shortener.Code(code))
		if errors.Is(err, shortener.ErrNotFound) {
			continue
		}

		if err != nil {
			return nil, err
		}

		if u.OriginalURL == originalURL && u.ActiveAt(now) {
			return u, nil
		}
	}

	return nil, shortener.ErrNotFound
}

func (r *RedisStore) ExistsByCode(ctx context.Context, code shortener.Code) (bool, error) {
	n, err := r.client.Exists(ctx, r.prefix+string(code)).Result()
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

func (r *RedisStore) IncrementClickCount(ctx context.Context, id string) error {
	code, err := r.codeOf(ctx, id)
	if err != nil {
		return err
	}

	return r.client.HIncrBy(ctx, r.prefix+code, fieldClickCount, 1).Err()
}

func (r *RedisStore) ClickCount(ctx context.Context, id string) (int64, error) {
	code, err := r.codeOf(ctx, id)
	if err != nil {
		return 0, err
	}

	count, err := r.client.HGet(ctx, r.prefix+code, fieldClickCount).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, shortener.ErrNotFound
	}

	return count, err
}

func (r *RedisStore) SaveClick(ctx context.Context, click *analytics.Click) error {
	n, err := r.client.Exists(ctx, r.idPrefix+click.ShortURLID).Result()
	if err != nil {
		return err
	}

	if n == 0 {
		return shortener.ErrNotFound
	}

	payload, err := json.Marshal(clickRecord(*click))
	if err != nil {
		return fmt.Errorf("encode click: %w", err)
	}

	return r.client.RPush(ctx, r.clicks+click.ShortURLID, payload).Err()
}

// ListClicks returns the clicks of a short URL oldest first.
func (r *RedisStore) ListClicks(ctx context.Context, shortURLID string) ([]*analytics.Click, error) {
	raw, err := r.client.LRange(ctx, r.clicks+shortURLID, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	out := make([]*analytics.Click, 0, len(raw))

	for _, item := range raw {
		var rec clickRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("decode click: %w", err)
		}

		c := analytics.Click(rec)
		out = append(out, &c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	return out, nil
}

func (r *RedisStore) codeOf(ctx context.Context, id string) (string, error) {
	code, err := r.client.Get(ctx, r.idPrefix+id).Result()
	if errors.Is(err, redis.Nil) {
		return "", shortener.ErrNotFound
	}

	return code, err
}

// clickRecord is the stored form of a click.
type clickRecord struct {
	ID         string    `json:"id"`
	ShortURLID string    `json:"short_url_id"`
	IPAddress  string    `json:"ip_address,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	Referer    string    `json:"referer,omitempty"`
	Device     string    `json:"device"`
	Platform   string    `json:"platform"`
	Browser    string    `json:"browser"`
	Country    string    `json:"country,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func decodeStoredShortURL(fields map[string]string) (*shortener.ShortURL, error) {
	if len(fields) == 0 {
		return nil, shortener.ErrNotFound
	}

	u, ok := decodeShortURL(fields)
	if !ok {
		return nil, fmt.Errorf("corrupt entry %q", fields[fieldCode])
	}

	count, err := strconv.ParseInt(fields[fieldClickCount], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt click count of %q: %w", u.Code, err)
	}

	u.ClickCount = count

	return u, nil
}

// Compile-time checks.
var (
	_ shortener.Repository = (*RedisStore)(nil)
	_ analytics.Store      = (*RedisStore)(nil)
)
