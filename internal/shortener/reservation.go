package shortener

import "strings"

// DefaultReservedCodes are route names and brand-sensitive words that can never be used as codes.
var DefaultReservedCodes = []string{
	"admin", "api", "dashboard", "login", "logout", "register", "password",
	"settings", "profile", "help", "support", "contact", "about", "privacy",
	"terms", "blog", "news", "docs", "documentation", "status", "assets",
	"images", "img", "css", "js", "static", "media", "files", "download",
	"shorten", "url", "link", "go", "r", "s", "u", "t", "i", "l",
	"health", "check", "stats", "openapi", "schemas",
}

// ReservationRegistry holds codes that cannot be claimed. It is immutable after construction.
type ReservationRegistry struct {
	codes map[string]struct{}
}

// NewReservationRegistry builds a registry from the given tokens, matched case-insensitively.
func NewReservationRegistry(codes []string) *ReservationRegistry {
	set := make(map[string]struct{}, len(codes))

	for _, c := range codes {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}

		set[strings.ToLower(c)] = struct{}{}
	}

	return &ReservationRegistry{codes: set}
}

// IsReserved reports whether the code matches a reserved token, ignoring case.
func (r *ReservationRegistry) IsReserved(code Code) bool {
	_, ok := r.codes[strings.ToLower(string(code))]

	return ok
}

// Len returns the number of reserved tokens.
func (r *ReservationRegistry) Len() int {
	return len(r.codes)
}
