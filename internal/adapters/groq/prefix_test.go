package groq

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestPrefixTruncatesOnRuneBoundaries(t *testing.T) {
	assert.Equal(t, "short", prefix("short", 10))
	assert.Equal(t, "exact", prefix("exact", 5))
	assert.Equal(t, "lon...", prefix("longer", 3))

	// Multi-byte characters must survive the cut intact.
	got := prefix("📚📚📚📚📚", 3)
	assert.Equal(t, "📚📚📚...", got)
	assert.True(t, utf8.ValidString(got))
}
