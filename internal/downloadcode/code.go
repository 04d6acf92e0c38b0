// Package downloadcode issues and normalises the buyer-facing redemption
// tokens. Codes are drawn from an alphabet without visually ambiguous
// characters (no 0/O, 1/I) so buyers can retype them from an email.
package downloadcode

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	// Alphabet holds the 32 characters a code may contain.
	Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	// Length is the number of characters in a generated code.
	Length = 12

	// DefaultMaxAttempts bounds regeneration when a code collides.
	DefaultMaxAttempts = 8
)

// ErrExhausted is returned when no free code was found within the attempt budget.
var ErrExhausted = errors.New("no unique download code available")

// Generator produces random download codes.
type Generator struct {
	random io.Reader
}

// NewGenerator returns a generator backed by crypto/rand.
func NewGenerator() *Generator {
	return &Generator{random: rand.Reader}
}

// NewGeneratorFrom returns a generator reading entropy from r.
func NewGeneratorFrom(r io.Reader) *Generator {
	return &Generator{random: r}
}

// Generate returns a new code of Length characters.
func (g *Generator) Generate() (string, error) {
	buf := make([]byte, Length)
	if _, err := io.ReadFull(g.random, buf); err != nil {
		return "", fmt.Errorf("failed to read entropy: %w", err)
	}

	// 256 is a multiple of len(Alphabet), so the modulo keeps the draw uniform.
	var sb strings.Builder
	sb.Grow(Length)
	for _, b := range buf {
		sb.WriteByte(Alphabet[int(b)%len(Alphabet)])
	}
	return sb.String(), nil
}

// GenerateUnique draws codes until taken reports the candidate as free.
// It gives up after maxAttempts draws and returns ErrExhausted.
func (g *Generator) GenerateUnique(taken func(code string) bool, maxAttempts int) (string, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		code, err := g.Generate()
		if err != nil {
			return "", err
		}
		if !taken(code) {
			return code, nil
		}
	}
	return "", ErrExhausted
}

// Normalize trims whitespace and uppercases a code for lookup.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Valid reports whether code has the generated shape after normalisation.
// Legacy codes in older stores may not; lookups must not rely on this.
func Valid(code string) bool {
	code = Normalize(code)
	if len(code) != Length {
		return false
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(Alphabet, code[i]) < 0 {
			return false
		}
	}
	return true
}
