package sanitizer

import (
	"regexp"
	"strings"
)

type Strategy func(string) string

type Pipeline []Strategy

func (p Pipeline) Apply(s string) string {
	for _, fn := range p {
		s = fn(s)
	}
	return s
}

var (
	reWhitespace = regexp.MustCompile(`\s+`)
	reHexOnly    = regexp.MustCompile(`[^0-9a-f]`)
)

func trimAndUpper(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func stripWhitespace(s string) string {
	return reWhitespace.ReplaceAllString(s, "")
}

// NormalizeToken prepares a scanned QR string for lookup. Terminals tend to
// append CR/LF and some scanners emit lowercase.
func NormalizeToken(token string) string {
	p := Pipeline{
		stripWhitespace,
		trimAndUpper,
	}
	return p.Apply(token)
}

func NormalizeCardNumber(card string) string {
	p := Pipeline{
		stripWhitespace,
		trimAndUpper,
	}
	return p.Apply(card)
}

// NormalizeMAC reduces any common MAC notation to lowercase hex without
// separators. Returns "" when the result is not 12 hex digits.
func NormalizeMAC(mac string) string {
	s := strings.ToLower(strings.TrimSpace(mac))
	s = reHexOnly.ReplaceAllString(s, "")
	if len(s) != 12 {
		return ""
	}
	return s
}
