package handlers

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/shortlink/internal/shortener"
	"go.uber.org/zap"
)

// toHTTPError maps service errors onto HTTP status codes. Unexpected errors
// are logged and hidden behind a generic 500.
func (h *URLHandler) toHTTPError(ctx context.Context, err error, fields ...zap.Field) error {
	var codeErr *shortener.CodeError

	switch {
	case errors.As(err, &codeErr):
		return huma.Error422UnprocessableEntity(codeErr.Reason.Message(), &huma.ErrorDetail{
			Location: "body.custom_code",
			Message:  string(codeErr.Reason),
			Value:    string(codeErr.Code),
		})
	case errors.Is(err, shortener.ErrInvalidURL):
		return huma.Error422UnprocessableEntity(err.Error(), &huma.ErrorDetail{Location: "body.url"})
	case errors.Is(err, shortener.ErrInvalidExpiration):
		return huma.Error422UnprocessableEntity(err.Error())
	case errors.Is(err, shortener.ErrNotFound):
		return huma.Error404NotFound("short url not found")
	case errors.Is(err, shortener.ErrExpired):
		return huma.Error410Gone("short url has expired")
	case errors.Is(err, shortener.ErrCodeGenerationExhausted):
		h.log(ctx).Error("code generation exhausted", append(fields, zap.Error(err))...)

		return huma.Error500InternalServerError("could not allocate a short code, try again")
	default:
		h.log(ctx).Error("request failed", append(fields, zap.Error(err))...)

		return huma.Error500InternalServerError("internal server error")
	}
}
