package id

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerate(t *testing.T) {
	t.Run("has render prefix", func(t *testing.T) {
		assert.True(t, strings.HasPrefix(Generate(), "render-"))
	})

	t.Run("successive IDs are unique", func(t *testing.T) {
		seen := make(map[string]bool)
		for i := 0; i < 100; i++ {
			id := Generate()
			assert.False(t, seen[id], "duplicate ID %s", id)
			seen[id] = true
		}
	})
}
