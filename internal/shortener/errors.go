package shortener

import "errors"

var (
	// ErrInvalidURL is returned when the original URL is not an absolute http(s) URL.
	ErrInvalidURL = errors.New("invalid url")
	// ErrInvalidCustomCode is returned when a custom code is malformed, reserved or taken.
	ErrInvalidCustomCode = errors.New("invalid custom code")
	// ErrInvalidExpiration is returned when the requested expiration is out of range or in the past.
	ErrInvalidExpiration = errors.New("invalid expiration")
	// ErrCodeGenerationExhausted is returned when no free code was found within the attempt bound.
	ErrCodeGenerationExhausted = errors.New("unable to generate a unique short code")
	// ErrNotFound is returned when no entry exists for a code.
	ErrNotFound = errors.New("short url not found")
	// ErrExpired is returned when the entry exists but has expired.
	ErrExpired = errors.New("short url expired")
	// ErrUniqueViolation is returned by repositories when a code is already stored.
	// It never leaves the shortener package.
	ErrUniqueViolation = errors.New("short code already exists")
)

// CodeError describes why a custom code was rejected.
type CodeError struct {
	Code   Code
	Reason Reason
}

func (e *CodeError) Error() string {
	return "invalid custom code " + string(e.Code) + ": " + e.Reason.Message()
}

// Unwrap allows errors.Is(err, ErrInvalidCustomCode).
func (e *CodeError) Unwrap() error {
	return ErrInvalidCustomCode
}
