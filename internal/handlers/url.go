package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/shortlink/internal/analytics"
	"github.com/serroba/shortlink/internal/safety"
	"github.com/serroba/shortlink/internal/shortener"
	"go.uber.org/zap"
)

// URLHandler handles URL shortening, redirection and statistics.
type URLHandler struct {
	shortener  *shortener.Service
	recorder   *analytics.Recorder
	stats      *analytics.StatsService
	safety     safety.Checker
	publishers *analytics.Publishers
	baseURL    string
	logger     *zap.Logger
}

// NewURLHandler creates a new URL handler.
func NewURLHandler(
	service *shortener.Service,
	recorder *analytics.Recorder,
	stats *analytics.StatsService,
	checker safety.Checker,
	publishers *analytics.Publishers,
	baseURL string,
	logger *zap.Logger,
) *URLHandler {
	return &URLHandler{
		shortener:  service,
		recorder:   recorder,
		stats:      stats,
		safety:     checker,
		publishers: publishers,
		baseURL:    baseURL,
		logger:     logger,
	}
}

func (h *URLHandler) CreateShortURL(ctx context.Context, req *CreateShortURLRequest) (*CreateShortURLResponse, error) {
	if !h.isSafe(ctx, req.Body.URL) {
		return nil, huma.Error422UnprocessableEntity("url is flagged as potentially malicious",
			&huma.ErrorDetail{Location: "body.url", Value: req.Body.URL})
	}

	result, err := h.shortener.Shorten(ctx, shortener.Request{
		OriginalURL:   req.Body.URL,
		CustomCode:    shortener.Code(req.Body.CustomCode),
		ExpiresInDays: req.Body.ExpiresIn,
		ExpiresAt:     req.Body.ExpiresAt,
	})
	if err != nil {
		return nil, h.toHTTPError(ctx, err, zap.String("url", req.Body.URL))
	}

	shortURL := result.URL

	resp := &CreateShortURLResponse{}
	resp.Body.ShortURLBody = h.shortURLBody(shortURL)
	resp.Location = resp.Body.ShortURL

	if !result.Created {
		resp.Status = http.StatusOK
		resp.Body.Message = "URL already shortened"

		return resp, nil
	}

	resp.Status = http.StatusCreated
	resp.Body.Message = "URL shortened"

	meta := RequestMetaFromContext(ctx)
	event := &analytics.URLCreatedEvent{
		Code:        string(shortURL.Code),
		OriginalURL: shortURL.OriginalURL,
		IsCustom:    shortURL.IsCustom,
		ExpiresAt:   shortURL.ExpiresAt,
		CreatedAt:   shortURL.CreatedAt,
		ClientIP:    meta.ClientIP,
		UserAgent:   meta.UserAgent,
	}

	if err := h.publishers.URLCreated(ctx, event); err != nil {
		h.log(ctx).Error("failed to publish analytics event",
			zap.String("code", event.Code),
			zap.Error(err),
		)
	}

	return resp, nil
}

func (h *URLHandler) RedirectToURL(ctx context.Context, req *RedirectRequest) (*RedirectResponse, error) {
	shortURL, err := h.shortener.Resolve(ctx, shortener.Code(req.Code))
	if err != nil {
		return nil, h.toHTTPError(ctx, err, zap.String("code", req.Code))
	}

	meta := RequestMetaFromContext(ctx)

	click, err := h.recorder.RegisterClick(ctx, shortURL, analytics.Visit{
		IPAddress: meta.ClientIP,
		UserAgent: meta.UserAgent,
		Referer:   meta.Referrer,
	})
	if err != nil {
		h.log(ctx).Error("failed to record click",
			zap.String("code", req.Code),
			zap.Error(err),
		)
	}

	if click != nil {
		if err := h.publishers.URLClicked(ctx, analytics.NewURLClickedEvent(req.Code, click)); err != nil {
			h.log(ctx).Error("failed to publish click event",
				zap.String("code", req.Code),
				zap.Error(err),
			)
		}
	}

	return &RedirectResponse{
		Status:   http.StatusFound,
		Location: shortURL.OriginalURL,
	}, nil
}

func (h *URLHandler) CheckCode(ctx context.Context, req *CheckCodeRequest) (*CheckCodeResponse, error) {
	availability, err := h.shortener.CheckAvailability(ctx, shortener.Code(req.Code))
	if err != nil {
		return nil, h.toHTTPError(ctx, err, zap.String("code", req.Code))
	}

	resp := &CheckCodeResponse{}
	resp.Body.Code = req.Code
	resp.Body.Available = availability.Available
	resp.Body.Reason = string(availability.Reason)

	if availability.Available {
		resp.Body.Message = "This code is available."
	} else {
		resp.Body.Message = availability.Reason.Message()
	}

	return resp, nil
}

func (h *URLHandler) GetStats(ctx context.Context, req *StatsRequest) (*StatsResponse, error) {
	report, err := h.stats.Stats(ctx, shortener.Code(req.Code))
	if err != nil {
		return nil, h.toHTTPError(ctx, err, zap.String("code", req.Code))
	}

	return &StatsResponse{Body: statsBody(report)}, nil
}

// isSafe treats checker failures as safe; the check is best effort.
func (h *URLHandler) isSafe(ctx context.Context, rawURL string) bool {
	if h.safety == nil {
		return true
	}

	safe, err := h.safety.IsSafe(ctx, rawURL)
	if err != nil {
		h.log(ctx).Warn("url safety check failed",
			zap.String("url", rawURL),
			zap.Error(err),
		)

		return true
	}

	if !safe {
		h.log(ctx).Info("rejected unsafe url", zap.String("url", rawURL))
	}

	return safe
}

func (h *URLHandler) shortURLBody(u *shortener.ShortURL) ShortURLBody {
	return ShortURLBody{
		ShortURL:    fmt.Sprintf("%s/%s", h.baseURL, u.Code),
		OriginalURL: u.OriginalURL,
		ShortCode:   string(u.Code),
		IsCustom:    u.IsCustom,
		ExpiresAt:   u.ExpiresAt,
		CreatedAt:   u.CreatedAt,
	}
}

func statsBody(r *analytics.Report) StatsBody {
	body := StatsBody{
		OriginalURL:   r.OriginalURL,
		ShortCode:     string(r.Code),
		ClickCount:    r.ClickCount,
		IsCustom:      r.IsCustom,
		IsExpired:     r.IsExpired,
		ExpiresAt:     r.ExpiresAt,
		DaysRemaining: r.DaysRemaining,
		CreatedAt:     r.CreatedAt,
	}

	a := r.Activity
	if a == nil {
		return body
	}

	activity := &ActivityBody{
		ClicksByDay:  make([]DayCountBody, 0, len(a.ClicksByDay)),
		Browsers:     make([]BrowserCountBody, 0, len(a.Browsers)),
		Platforms:    make([]PlatformCountBody, 0, len(a.Platforms)),
		TopReferrers: make([]ReferrerCountBody, 0, len(a.TopReferrers)),
		FirstClick:   a.FirstClick,
		LastClick:    a.LastClick,
	}

	for _, d := range a.ClicksByDay {
		activity.ClicksByDay = append(activity.ClicksByDay, DayCountBody{Date: d.Date, Count: d.Count})
	}

	for _, b := range a.Browsers {
		activity.Browsers = append(activity.Browsers, BrowserCountBody{Browser: b.Category, Count: b.Count})
	}

	for _, p := range a.Platforms {
		activity.Platforms = append(activity.Platforms, PlatformCountBody{Platform: p.Category, Count: p.Count})
	}

	for _, ref := range a.TopReferrers {
		activity.TopReferrers = append(activity.TopReferrers, ReferrerCountBody{Referer: ref.Referer, Count: ref.Count})
	}

	body.ActivityBody = activity

	return body
}
