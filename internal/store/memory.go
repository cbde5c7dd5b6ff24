package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/serroba/shortlink/internal/analytics"
	"github.com/serroba/shortlink/internal/shortener"
)

// MemoryStore is an in-memory implementation of shortener.Repository and
// analytics.Store. Entries are copied in and out so callers never share state.
type MemoryStore struct {
	mu     sync.RWMutex
	byID   map[string]*shortener.ShortURL
	byCode map[shortener.Code]string // code -> id
	clicks map[string][]*analytics.Click
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:   make(map[string]*shortener.ShortURL),
		byCode: make(map[shortener.Code]string),
		clicks: make(map[string][]*analytics.Click),
	}
}

func (m *MemoryStore) GetByCode(_ context.Context, code shortener.Code) (*shortener.ShortURL, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byCode[code]
	if !ok {
		return nil, shortener.ErrNotFound
	}

	return copyShortURL(m.byID[id]), nil
}

// GetActiveByOriginalURL returns the newest active entry for originalURL.
func (m *MemoryStore) GetActiveByOriginalURL(
	_ context.Context, originalURL string, now time.Time,
) (*shortener.ShortURL, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var found *shortener.ShortURL

	for _, u := range m.byID {
		if u.OriginalURL != originalURL || !u.ActiveAt(now) {
			continue
		}

		if found == nil || u.CreatedAt.After(found.CreatedAt) {
			found = u
		}
	}

	if found == nil {
		return nil, shortener.ErrNotFound
	}

	return copyShortURL(found), nil
}

func (m *MemoryStore) ExistsByCode(_ context.Context, code shortener.Code) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.byCode[code]

	return ok, nil
}

func (m *MemoryStore) Insert(_ context.Context, shortURL *shortener.ShortURL) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byCode[shortURL.Code]; ok {
		return shortener.ErrUniqueViolation
	}

	m.byID[shortURL.ID] = copyShortURL(shortURL)
	m.byCode[shortURL.Code] = shortURL.ID

	return nil
}

func (m *MemoryStore) IncrementClickCount(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.byID[id]
	if !ok {
		return shortener.ErrNotFound
	}

	u.ClickCount++

	return nil
}

func (m *MemoryStore) ClickCount(_ context.Context, id string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.byID[id]
	if !ok {
		return 0, shortener.ErrNotFound
	}

	return u.ClickCount, nil
}

func (m *MemoryStore) SaveClick(_ context.Context, click *analytics.Click) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byID[click.ShortURLID]; !ok {
		return shortener.ErrNotFound
	}

	c := *click
	m.clicks[click.ShortURLID] = append(m.clicks[click.ShortURLID], &c)

	return nil
}

// ListClicks returns the clicks of a short URL oldest first.
func (m *MemoryStore) ListClicks(_ context.Context, shortURLID string) ([]*analytics.Click, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored := m.clicks[shortURLID]
	out := make([]*analytics.Click, 0, len(stored))

	for _, c := range stored {
		cp := *c
		out = append(out, &cp)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	return out, nil
}

// Shutdown is a no-op for MemoryStore.
func (m *MemoryStore) Shutdown() error {
	return nil
}

func copyShortURL(u *shortener.ShortURL) *shortener.ShortURL {
	cp := *u
	if u.ExpiresAt != nil {
		at := *u.ExpiresAt
		cp.ExpiresAt = &at
	}

	return &cp
}

// Compile-time checks.
var (
	_ shortener.Repository = (*MemoryStore)(nil)
	_ analytics.Store      = (*MemoryStore)(nil)
)
