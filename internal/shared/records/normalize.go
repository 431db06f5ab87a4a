package records

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

var foldCaser = cases.Fold()

// Normalization rule names accepted by the policy file.
const (
	NormalizeNone  = ""
	NormalizeFold  = "fold"
	NormalizeUpper = "upper"
)

// NormalizeValue canonicalizes a raw attribute value before comparison and
// storage: trim, collapse internal whitespace, then apply the per-field rule.
// "fold" lowercases via Unicode case folding and strips diacritics so that
// "José " and "jose" compare equal; "upper" uppercases code-style fields.
func NormalizeValue(raw string, rule string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	s = whitespaceRe.ReplaceAllString(s, " ")

	switch rule {
	case NormalizeFold:
		s = stripDiacritics(foldCaser.String(s))
	case NormalizeUpper:
		s = strings.ToUpper(s)
	}
	return s
}

// stripDiacritics decomposes to NFD and drops combining marks.
func stripDiacritics(s string) string {
	decomposed := norm.NFD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
