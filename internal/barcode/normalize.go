// Package barcode validates and canonicalizes raw decoded symbols so the
// session controller never has to reason about format rules.
package barcode

import (
	"strings"
	"unicode"

	"github.com/rotisserie/eris"

	"github.com/safeplate/safescan/internal/model"
)

// ErrInvalidFormat is returned when a stripped symbol does not match the
// expected pattern for its symbology. Callers must not forward invalid
// symbols to catalog lookup.
var ErrInvalidFormat = eris.New("barcode: invalid format")

const (
	minNumericLength = 8
	maxNumericLength = 14
)

// Normalize strips whitespace and validates the symbol against its
// symbology. UPC/EAN family symbols must be digit-only with a length of
// 8 to 14; other symbologies pass through unvalidated beyond being
// non-empty. Pure and deterministic.
func Normalize(symbol string, sym model.Symbology) (string, error) {
	stripped := stripWhitespace(symbol)
	if stripped == "" {
		return "", eris.Wrapf(ErrInvalidFormat, "empty symbol for %s", sym.DisplayName())
	}

	if !sym.Numeric() {
		return stripped, nil
	}

	if len(stripped) < minNumericLength || len(stripped) > maxNumericLength {
		return "", eris.Wrapf(ErrInvalidFormat, "%s symbol has length %d, want %d-%d",
			sym.DisplayName(), len(stripped), minNumericLength, maxNumericLength)
	}
	for _, r := range stripped {
		if r < '0' || r > '9' {
			return "", eris.Wrapf(ErrInvalidFormat, "%s symbol contains non-digit %q", sym.DisplayName(), r)
		}
	}
	return stripped, nil
}

func stripWhitespace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
