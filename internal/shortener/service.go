package shortener

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// GeneratedCodeLength is the length of codes drawn by the service.
	GeneratedCodeLength = 6
	// MaxGenerationAttempts bounds the draws made for a single insert.
	MaxGenerationAttempts = 10

	MinExpiresInDays = 1
	MaxExpiresInDays = 365
)

// Request describes a shortening request. Zero values mean "not provided".
type Request struct {
	OriginalURL   string
	CustomCode    Code
	ExpiresInDays *int
	ExpiresAt     *time.Time
}

// Result is the outcome of Shorten. Created is false when an active entry
// for the same URL already existed and was returned instead.
type Result struct {
	URL     *ShortURL
	Created bool
}

// Availability reports whether a code can be claimed.
type Availability struct {
	Code      Code
	Available bool
	Reason    Reason
}

// Service allocates short codes and resolves them back to entries.
type Service struct {
	store        Repository
	validator    *CodeValidator
	generateCode CodeGenerator
	newID        func() string
	now          func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithIDGenerator overrides how entry IDs are produced.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		s.newID = newID
	}
}

// NewService creates a shortening service.
func NewService(
	store Repository,
	registry *ReservationRegistry,
	generator CodeGenerator,
	opts ...Option,
) *Service {
	s := &Service{
		store:        store,
		validator:    NewDefaultCodeValidator(registry, store),
		generateCode: generator,
		newID:        uuid.NewString,
		now:          time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Shorten creates an entry for req.OriginalURL, or returns the active one
// that already exists for it.
func (s *Service) Shorten(ctx context.Context, req Request) (*Result, error) {
	if err := ValidateURL(req.OriginalURL); err != nil {
		return nil, err
	}

	if req.CustomCode != "" {
		if err := s.checkCustomCode(ctx, req.CustomCode); err != nil {
			return nil, err
		}
	}

	now := s.now()

	expiresAt, err := ResolveExpiration(now, req.ExpiresInDays, req.ExpiresAt)
	if err != nil {
		return nil, err
	}

	existing, err := s.store.GetActiveByOriginalURL(ctx, req.OriginalURL, now)
	if err == nil {
		return &Result{URL: existing, Created: false}, nil
	}

	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	shortURL := &ShortURL{
		ID:          s.newID(),
		OriginalURL: req.OriginalURL,
		IsCustom:    req.CustomCode != "",
		ExpiresAt:   expiresAt,
		CreatedAt:   now,
	}

	if shortURL.IsCustom {
		err = s.insertCustom(ctx, shortURL, req.CustomCode)
	} else {
		err = s.insertGenerated(ctx, shortURL)
	}

	if err != nil {
		return nil, err
	}

	return &Result{URL: shortURL, Created: true}, nil
}

// Lookup returns the entry for code, expired or not, with its current
// click count.
func (s *Service) Lookup(ctx context.Context, code Code) (*ShortURL, error) {
	shortURL, err := s.store.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	count, err := s.store.ClickCount(ctx, shortURL.ID)
	if err != nil {
		return nil, fmt.Errorf("read click count: %w", err)
	}

	shortURL.ClickCount = count

	return shortURL, nil
}

// Resolve returns the entry for code if it can be redirected to.
// An existing but expired entry yields ErrExpired rather than ErrNotFound.
func (s *Service) Resolve(ctx context.Context, code Code) (*ShortURL, error) {
	shortURL, err := s.store.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if shortURL.ExpiredAt(s.now()) {
		return nil, ErrExpired
	}

	return shortURL, nil
}

// CheckAvailability runs the custom code rules without reserving anything.
func (s *Service) CheckAvailability(ctx context.Context, code Code) (*Availability, error) {
	reason, err := s.validator.Validate(ctx, code)
	if err != nil {
		return nil, err
	}

	return &Availability{
		Code:      code,
		Available: reason == "",
		Reason:    reason,
	}, nil
}

func (s *Service) checkCustomCode(ctx context.Context, code Code) error {
	reason, err := s.validator.Validate(ctx, code)
	if err != nil {
		return err
	}

	if reason != "" {
		return &CodeError{Code: code, Reason: reason}
	}

	return nil
}

func (s *Service) insertCustom(ctx context.Context, shortURL *ShortURL, code Code) error {
	shortURL.Code = code

	err := s.store.Insert(ctx, shortURL)
	if errors.Is(err, ErrUniqueViolation) {
		// Claimed by a concurrent request after the pre-check.
		return &CodeError{Code: code, Reason: ReasonTaken}
	}

	return err
}

// insertGenerated draws a free code and inserts the entry. A unique
// violation at insert time triggers exactly one more draw.
func (s *Service) insertGenerated(ctx context.Context, shortURL *ShortURL) error {
	for range 2 {
		code, err := s.nextFreeCode(ctx)
		if err != nil {
			return err
		}

		shortURL.Code = code

		err = s.store.Insert(ctx, shortURL)
		if err == nil {
			return nil
		}

		if !errors.Is(err, ErrUniqueViolation) {
			return err
		}
	}

	return ErrCodeGenerationExhausted
}

func (s *Service) nextFreeCode(ctx context.Context) (Code, error) {
	for range MaxGenerationAttempts {
		code := Code(s.generateCode())

		exists, err := s.store.ExistsByCode(ctx, code)
		if err != nil {
			return "", err
		}

		if !exists {
			return code, nil
		}
	}

	return "", ErrCodeGenerationExhausted
}

// ValidateURL accepts only absolute http and https URLs with a host.
func ValidateURL(rawURL string) error {
	if strings.TrimSpace(rawURL) != rawURL || rawURL == "" {
		return ErrInvalidURL
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return fmt.Errorf("%w: scheme must be http or https", ErrInvalidURL)
	}

	if u.Host == "" || u.Hostname() == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidURL)
	}

	return nil
}

// ResolveExpiration turns the request's expiration options into an instant.
// An explicit expiresAt takes precedence over expiresInDays.
func ResolveExpiration(now time.Time, expiresInDays *int, expiresAt *time.Time) (*time.Time, error) {
	if expiresAt != nil {
		if !expiresAt.After(now) {
			return nil, fmt.Errorf("%w: expiration date must be in the future", ErrInvalidExpiration)
		}

		at := expiresAt.UTC()

		return &at, nil
	}

	if expiresInDays != nil {
		days := *expiresInDays
		if days < MinExpiresInDays || days > MaxExpiresInDays {
			return nil, fmt.Errorf("%w: expiration must be between %d and %d days",
				ErrInvalidExpiration, MinExpiresInDays, MaxExpiresInDays)
		}

		at := now.AddDate(0, 0, days).UTC()

		return &at, nil
	}

	return nil, nil
}
