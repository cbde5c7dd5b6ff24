package shortener

import (
	"fmt"

	"github.com/jaevor/go-nanoid"
)

const alphanumeric = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// CodeGenerator produces random short codes. It gives no uniqueness guarantee.
type CodeGenerator func() string

// NewCodeGenerator returns a generator of alphanumeric codes with the given length.
// The returned function is safe for concurrent use.
func NewCodeGenerator(length int) (CodeGenerator, error) {
	gen, err := nanoid.CustomASCII(alphanumeric, length)
	if err != nil {
		return nil, fmt.Errorf("code generator: %w", err)
	}

	return CodeGenerator(gen), nil
}
