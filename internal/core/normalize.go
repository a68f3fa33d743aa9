package core

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripDiacritics removes combining marks: "Descripción" -> "Descripcion".
func stripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// NormalizeEnum upper-cases s, strips diacritics and collapses every run of
// non-alphanumeric characters into a single underscore.
func NormalizeEnum(s string) string {
	s = strings.ToUpper(stripDiacritics(strings.TrimSpace(s)))

	var b strings.Builder
	b.Grow(len(s))
	pending := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pending && b.Len() > 0 {
				b.WriteByte('_')
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		pending = true
	}
	return b.String()
}

// NormalizeHeader lower-cases s, strips diacritics and drops whitespace and
// underscores: "Precio_Unitario" and "Precio Unitario" both become "preciounitario".
func NormalizeHeader(s string) string {
	s = strings.ToLower(stripDiacritics(strings.TrimSpace(s)))
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '_' {
			return -1
		}
		return r
	}, s)
}
