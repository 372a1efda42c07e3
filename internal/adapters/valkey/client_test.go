package valkey

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClient_Key(t *testing.T) {
	c := &Client{keyPrefix: normalizePrefix("costopt")}

	assert.Equal(t, "costopt:cache:intel:abc", c.Key("cache", "intel", "abc"))
	assert.Equal(t, "costopt", c.Key())

	bare := &Client{keyPrefix: normalizePrefix("")}
	assert.Equal(t, "cache:intel", bare.Key("cache", "intel"))
}

func TestNormalizePrefix(t *testing.T) {
	assert.Equal(t, "a:", normalizePrefix("a"))
	assert.Equal(t, "a:", normalizePrefix("a:"))
	assert.Equal(t, "", normalizePrefix(""))
}
