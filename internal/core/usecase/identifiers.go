package usecase

import (
	"regexp"
	"sort"
	"strings"
)

var (
	// "Figure III.5", "Fig. 3-2", "fig 4 1", "Table 1". The token ends at the first
	// non-digit, so "Figure III.5a" yields iii.5.
	markedIdentifierPattern = regexp.MustCompile(
		`(?i)\b(?:fig(?:ure)?|tbl|table)\.?\s*((?:[ivxlc]+|[0-9]+)(?:\s*[.\-]\s*[0-9]+|\s+[0-9]+)*)(?:[^0-9]|$)`,
	)
	// "III.5", "3.2.1" without a marker word.
	bareIdentifierPattern = regexp.MustCompile(`(?i)\b((?:[ivxlc]+|[0-9]+)(?:\.[0-9]+)+)\b`)

	romanNumeralPattern = regexp.MustCompile(`^m{0,3}(?:cm|cd|d?c{0,3})(?:xc|xl|l?x{0,3})(?:ix|iv|v?i{0,3})$`)
)

// plausibleIdentifier rejects tokens led by something that is not a roman numeral,
// and lone single-letter numerals such as the "I" in "the table I saw".
func plausibleIdentifier(token string) bool {
	letters := strings.IndexFunc(token, func(r rune) bool { return r < 'a' || r > 'z' })
	if letters < 0 {
		letters = len(token)
	}
	if letters == 0 {
		return true
	}
	if !romanNumeralPattern.MatchString(token[:letters]) {
		return false
	}
	return letters > 1 || letters < len(token)
}

// NormalizeIdentifier drops everything outside [A-Za-z0-9._-] and lowercases the rest.
func NormalizeIdentifier(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			return r
		default:
			return -1
		}
	}, s)
}

// ExtractIdentifiers returns the sorted set of normalized figure/table tokens in text.
func ExtractIdentifiers(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	found := make(map[string]struct{})
	collect := func(pattern *regexp.Regexp) {
		for _, m := range pattern.FindAllStringSubmatch(text, -1) {
			if token := NormalizeIdentifier(m[1]); token != "" && plausibleIdentifier(token) {
				found[token] = struct{}{}
			}
		}
	}
	collect(markedIdentifierPattern)
	collect(bareIdentifierPattern)

	if len(found) == 0 {
		return nil
	}
	out := make([]string, 0, len(found))
	for token := range found {
		out = append(out, token)
	}
	sort.Strings(out)
	return out
}
