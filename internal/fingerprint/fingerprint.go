// Package fingerprint canonicalizes raw device identifiers so that the
// same physical device always maps to the same stored value, regardless of
// how the client formats it (case, whitespace, separators).
package fingerprint

import (
	"strings"

	"license-authority/internal/domain"
)

// Validation failures. Aliased from the domain sentinels so callers can
// match with errors.Is at either level.
var (
	ErrEmpty    = domain.ErrFingerprintEmpty
	ErrTooShort = domain.ErrFingerprintTooShort
)

const (
	// MinLength is the minimum canonical length; anything shorter cannot
	// plausibly identify a device.
	MinLength = 8
	// MaxLength caps what we store; longer inputs are truncated, not rejected.
	MaxLength = 128
)

// Normalize maps a raw device identifier to its canonical form: surrounding
// whitespace trimmed, lowercased, every character outside [a-z0-9_-]
// stripped. Pure and deterministic. ErrEmpty is reserved for an empty input;
// an input that merely strips down below MinLength fails with ErrTooShort.
func Normalize(raw string) (string, error) {
	if raw == "" {
		return "", ErrEmpty
	}
	trimmed := strings.TrimSpace(raw)
	var b strings.Builder
	b.Grow(len(trimmed))
	for _, r := range strings.ToLower(trimmed) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	out := b.String()
	if len(out) < MinLength {
		return "", ErrTooShort
	}
	if len(out) > MaxLength {
		out = out[:MaxLength]
	}
	return out, nil
}
