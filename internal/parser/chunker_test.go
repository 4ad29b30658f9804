package parser

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunk(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "two paragraphs",
			text: "Cats are mammals.\n\nDogs are mammals too.",
			want: []string{"Cats are mammals.", "Dogs are mammals too."},
		},
		{
			name: "empty",
			text: "",
			want: nil,
		},
		{
			name: "whitespace only",
			text: "   \n\n  ",
			want: nil,
		},
		{
			name: "no blank line",
			text: "  line one\nline two  ",
			want: []string{"line one\nline two"},
		},
		{
			name: "extra blank lines are dropped",
			text: "\n\nfirst\n\n\n\n\nsecond\n\n \n\nthird\n\n",
			want: []string{"first", "second", "third"},
		},
		{
			name: "single newlines do not split",
			text: "a\nb\n\nc",
			want: []string{"a\nb", "c"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Chunk(tt.text))
		})
	}
}

func TestChunk_PreservesOrderAndNeverEmpty(t *testing.T) {
	segments := []string{"alpha", "beta gamma", "delta", "epsilon zeta eta"}
	got := Chunk(strings.Join(segments, "\n\n"))

	assert.Equal(t, segments, got)
	for _, c := range got {
		assert.NotEmpty(t, strings.TrimSpace(c))
	}
}

func TestSplitOversized(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		in := []string{strings.Repeat("x", 500)}
		assert.Equal(t, in, SplitOversized(in, 0, 0))
	})

	t.Run("short chunks untouched", func(t *testing.T) {
		in := []string{"short", "also short"}
		assert.Equal(t, in, SplitOversized(in, 100, 10))
	})

	t.Run("long chunk split with overlap", func(t *testing.T) {
		long := strings.Repeat("word ", 60) // 300 bytes
		got := SplitOversized([]string{long, "tail"}, 100, 20)

		assert.Greater(t, len(got), 3)
		assert.Equal(t, "tail", got[len(got)-1])
		for _, c := range got {
			assert.LessOrEqual(t, len(c), 100)
			assert.NotEmpty(t, c)
		}
	})

	t.Run("multi-byte text split on characters", func(t *testing.T) {
		long := strings.Repeat("日本語のテキストを長く書きます", 4)
		got := SplitOversized([]string{long}, 10, 2)

		require.Greater(t, len(got), 1)
		for i, c := range got {
			assert.True(t, utf8.ValidString(c), "chunk %d: %q", i, c)
			assert.LessOrEqual(t, utf8.RuneCountInString(c), 10)
		}
		assert.Equal(t, "日本語のテキストを長", got[0])
		assert.Equal(t, "を長く書きます日本語", got[1])
	})
}

func TestChunkContent_EdgeCases(t *testing.T) {
	assert.Nil(t, chunkContent("abc", 0, 0))
	assert.Nil(t, chunkContent("   ", 10, 0))
	assert.Equal(t, []string{"abc"}, chunkContent(" abc ", 10, 50))
}
