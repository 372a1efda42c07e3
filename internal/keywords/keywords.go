package keywords

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Matcher finds critical keywords inside candidate text. Matching is a case-insensitive substring test.
type Matcher struct {
	terms    []string
	original []string
}

// NewMatcher creates a matcher for the given keywords. Blank keywords are dropped.
func NewMatcher(terms []string) *Matcher {
	m := &Matcher{}
	for _, term := range terms {
		folded := fold(term)
		if folded == "" {
			continue
		}
		m.terms = append(m.terms, folded)
		m.original = append(m.original, strings.TrimSpace(term))
	}
	return m
}

// Match returns the first configured keyword contained in text
func (m *Matcher) Match(text string) (string, bool) {
	if len(m.terms) == 0 || text == "" {
		return "", false
	}

	haystack := fold(text)
	for i, term := range m.terms {
		if strings.Contains(haystack, term) {
			return m.original[i], true
		}
	}
	return "", false
}

// Contains reports whether any keyword occurs in text
func Contains(text string, terms []string) (string, bool) {
	return NewMatcher(terms).Match(text)
}

func fold(s string) string {
	s = norm.NFKC.String(strings.ToValidUTF8(s, ""))
	s = cases.Fold().String(s)
	return strings.Join(strings.Fields(s), " ")
}
