package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medbot/internal/domain"
)

func TestChunkAssignsIDsAndSource(t *testing.T) {
	c := NewRecursiveChunker(20, 0)
	chunks, err := c.Chunk(domain.Document{ID: "doc", Source: "data/book.pdf", Content: "Fever is common.\n\nRest helps a lot."})
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, domain.Chunk{DocumentID: "doc", ChunkID: "doc:0", Source: "data/book.pdf", Text: "Fever is common.", Index: 0}, chunks[0])
	assert.Equal(t, "doc:1", chunks[1].ChunkID)
	assert.Equal(t, "Rest helps a lot.", chunks[1].Text)
}

func TestSmallParagraphsAreMerged(t *testing.T) {
	c := NewRecursiveChunker(100, 0)
	got := c.Split("one\n\ntwo\n\nthree")
	assert.Equal(t, []string{"one\n\ntwo\n\nthree"}, got)
}

func TestWordsOverlap(t *testing.T) {
	c := NewRecursiveChunker(10, 4)
	got := c.Split("aaa bbb ccc ddd")
	assert.Equal(t, []string{"aaa bbb", "bbb ccc", "ccc ddd"}, got)
}

func TestLongWordFallsBackToCharacters(t *testing.T) {
	c := NewRecursiveChunker(4, 0)
	got := c.Split("abcdefghij")
	assert.Equal(t, []string{"abcd", "efgh", "ij"}, got)
}

func TestChunksRespectSize(t *testing.T) {
	text := strings.Repeat("Fever is a temporary increase in body temperature. ", 40) +
		"\n\n" + strings.Repeat("Paracetamol lowers fever. ", 30)
	c := NewRecursiveChunker(500, 20)
	got := c.Split(text)
	require.NotEmpty(t, got)
	for _, s := range got {
		assert.LessOrEqual(t, utf8.RuneCountInString(s), 500)
		assert.NotEmpty(t, strings.TrimSpace(s))
	}
}

func TestEmptyDocument(t *testing.T) {
	chunks, err := NewRecursiveChunker(500, 20).Chunk(domain.Document{ID: "x", Content: "  \n "})
	require.NoError(t, err)
	assert.Empty(t, chunks)
}
