package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitShortText(t *testing.T) {
	chunks := Split("hello world", DefaultOptions())
	require.Len(t, chunks, 1)
	assert.Equal(t, "hello world", chunks[0])
}

func TestSplitEmptyText(t *testing.T) {
	assert.Empty(t, Split("", DefaultOptions()))
	assert.Empty(t, Split("   \n\n  ", DefaultOptions()))
}

func TestSplitRecursivePrefersParagraphs(t *testing.T) {
	para1 := strings.Repeat("alpha ", 10)
	para2 := strings.Repeat("beta ", 10)
	text := strings.TrimSpace(para1) + "\n\n" + strings.TrimSpace(para2)

	chunks := Split(text, Options{ChunkSize: 70, Strategy: "recursive"})
	require.Len(t, chunks, 2)
	assert.Contains(t, chunks[0], "alpha")
	assert.NotContains(t, chunks[0], "beta")
	assert.Contains(t, chunks[1], "beta")
}

func TestSplitPreservesOrder(t *testing.T) {
	var sb strings.Builder
	words := []string{"one", "two", "three", "four", "five", "six", "seven", "eight"}
	for _, w := range words {
		sb.WriteString(strings.Repeat(w+" ", 8))
		sb.WriteString("\n\n")
	}

	chunks := Split(sb.String(), Options{ChunkSize: 60, Strategy: "recursive"})
	require.NotEmpty(t, chunks)

	// each word must appear no earlier than the previous one
	joined := strings.Join(chunks, " ")
	last := -1
	for _, w := range words {
		pos := strings.Index(joined, w)
		require.Greater(t, pos, last, "word %q out of order", w)
		last = pos
	}
}

func TestSplitRespectsChunkSize(t *testing.T) {
	text := strings.Repeat("word ", 500)
	for _, strategy := range []string{"fixed", "recursive"} {
		t.Run(strategy, func(t *testing.T) {
			chunks := Split(text, Options{ChunkSize: 100, Strategy: strategy})
			require.NotEmpty(t, chunks)
			for i, c := range chunks {
				assert.LessOrEqual(t, utf8.RuneCountInString(c), 100, "chunk %d too large", i)
			}
		})
	}
}

func TestSplitFixedOverlap(t *testing.T) {
	text := strings.Repeat("x", 250)
	chunks := Split(text, Options{ChunkSize: 100, ChunkOverlap: 20, Strategy: "fixed"})
	// step 80: [0,100) [80,180) [160,250)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 100)
	assert.Len(t, chunks[1], 100)
	assert.Len(t, chunks[2], 90)
}

func TestSplitZeroOptionsFallBack(t *testing.T) {
	chunks := Split(strings.Repeat("a ", 600), Options{})
	assert.NotEmpty(t, chunks)
}
