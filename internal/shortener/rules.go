package shortener

import (
	"context"
	"regexp"
)

const (
	MinCodeLength = 3
	MaxCodeLength = 20
)

var codePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Reason is a typed cause for rejecting a short code.
type Reason string

const (
	ReasonRequired  Reason = "required"
	ReasonTooShort  Reason = "too_short"
	ReasonTooLong   Reason = "too_long"
	ReasonMalformed Reason = "malformed"
	ReasonReserved  Reason = "reserved"
	ReasonTaken     Reason = "taken"
)

// Message returns a human readable description of the reason.
func (r Reason) Message() string {
	switch r {
	case ReasonRequired:
		return "a code is required"
	case ReasonTooShort:
		return "the code must be at least 3 characters"
	case ReasonTooLong:
		return "the code must be at most 20 characters"
	case ReasonMalformed:
		return "the code may only contain letters, digits, dashes and underscores"
	case ReasonReserved:
		return "this code is reserved"
	case ReasonTaken:
		return "this code is already in use"
	default:
		return string(r)
	}
}

// Rule checks a candidate code and returns the reason it fails, or "" when it passes.
type Rule func(ctx context.Context, code Code) (Reason, error)

// RequiredRule rejects empty codes.
func RequiredRule() Rule {
	return func(_ context.Context, code Code) (Reason, error) {
		if code == "" {
			return ReasonRequired, nil
		}

		return "", nil
	}
}

// LengthRule rejects codes outside [minLen, maxLen].
func LengthRule(minLen, maxLen int) Rule {
	return func(_ context.Context, code Code) (Reason, error) {
		switch n := len(code); {
		case n < minLen:
			return ReasonTooShort, nil
		case n > maxLen:
			return ReasonTooLong, nil
		}

		return "", nil
	}
}

// CharsetRule rejects codes with characters outside [A-Za-z0-9_-].
func CharsetRule() Rule {
	return func(_ context.Context, code Code) (Reason, error) {
		if !codePattern.MatchString(string(code)) {
			return ReasonMalformed, nil
		}

		return "", nil
	}
}

// ReservedRule rejects codes held by the registry.
func ReservedRule(registry *ReservationRegistry) Rule {
	return func(_ context.Context, code Code) (Reason, error) {
		if registry.IsReserved(code) {
			return ReasonReserved, nil
		}

		return "", nil
	}
}

// AvailableRule rejects codes already present in the repository.
func AvailableRule(store Repository) Rule {
	return func(ctx context.Context, code Code) (Reason, error) {
		exists, err := store.ExistsByCode(ctx, code)
		if err != nil {
			return "", err
		}

		if exists {
			return ReasonTaken, nil
		}

		return "", nil
	}
}

// CodeValidator evaluates rules in order and stops at the first failure.
type CodeValidator struct {
	rules []Rule
}

// NewCodeValidator creates a validator from an ordered list of rules.
func NewCodeValidator(rules ...Rule) *CodeValidator {
	return &CodeValidator{rules: rules}
}

// NewDefaultCodeValidator orders the cheap shape rules before the
// reservation lookup and the store-backed uniqueness check.
func NewDefaultCodeValidator(registry *ReservationRegistry, store Repository) *CodeValidator {
	return NewCodeValidator(
		RequiredRule(),
		LengthRule(MinCodeLength, MaxCodeLength),
		CharsetRule(),
		ReservedRule(registry),
		AvailableRule(store),
	)
}

// Validate returns the first failing reason, or "" when every rule passes.
func (v *CodeValidator) Validate(ctx context.Context, code Code) (Reason, error) {
	for _, rule := range v.rules {
		reason, err := rule(ctx, code)
		if err != nil {
			return "", err
		}

		if reason != "" {
			return reason, nil
		}
	}

	return "", nil
}
