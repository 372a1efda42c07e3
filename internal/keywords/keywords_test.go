package keywords

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatcher_CaseInsensitiveSubstring(t *testing.T) {
	m := NewMatcher([]string{"  Ransomware ", "data breach"})

	kw, ok := m.Match("Hospital network hit by RANSOMWARE gang")
	assert.True(t, ok)
	assert.Equal(t, "Ransomware", kw)

	kw, ok = m.Match("Retailer confirms\tDATA   Breach affecting customers")
	assert.True(t, ok)
	assert.Equal(t, "data breach", kw)
}

func TestMatcher_NoMatch(t *testing.T) {
	m := NewMatcher([]string{"fraud"})

	_, ok := m.Match("Quarterly earnings beat expectations")
	assert.False(t, ok)

	_, ok = m.Match("")
	assert.False(t, ok)
}

func TestMatcher_BlankTermsIgnored(t *testing.T) {
	m := NewMatcher([]string{"", "   "})

	_, ok := m.Match("anything at all")
	assert.False(t, ok)
}

func TestContains_FirstConfiguredKeywordWins(t *testing.T) {
	kw, ok := Contains("sanction and fraud allegations", []string{"fraud", "sanction"})
	assert.True(t, ok)
	assert.Equal(t, "fraud", kw)
}
