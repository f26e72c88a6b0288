package knowledge

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngestAndSearch(t *testing.T) {
	b := NewBase(nil)

	_, err := b.Ingest("notes.txt", []byte("The gateway listens on port 8080. Rotate the signing key monthly."))
	require.NoError(t, err)
	_, err = b.Ingest("other.md", []byte("Lunch menu: soup, salad, bread."))
	require.NoError(t, err)

	results := b.Search("signing key", 3)
	require.NotEmpty(t, results)
	assert.Equal(t, "notes.txt", results[0].Filename)
	assert.Contains(t, results[0].Text, "signing key")
}

func TestIngestDeduplicatesByContent(t *testing.T) {
	b := NewBase(nil)

	first, err := b.Ingest("a.txt", []byte("same content"))
	require.NoError(t, err)
	second, err := b.Ingest("b.txt", []byte("same content"))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, b.Documents(), 1)
}

func TestIngestRejectsEmpty(t *testing.T) {
	b := NewBase(nil)

	_, err := b.Ingest("empty.txt", []byte("   \n\t  "))
	assert.ErrorContains(t, err, "no extractable text")
}

func TestChunkingOverlap(t *testing.T) {
	// 2500 runes should produce windows of 1000 stepping by 800.
	text := strings.Repeat("a", 2500)
	chunks := chunkText(text)

	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 1000)
	assert.Len(t, chunks[1], 1000)
	assert.Len(t, chunks[2], 2500-1600)
}

func TestChunkingShortTextSingleChunk(t *testing.T) {
	chunks := chunkText("short")
	require.Len(t, chunks, 1)
	assert.Equal(t, "short", chunks[0])
}

func TestSearchRanksByTermFrequency(t *testing.T) {
	b := NewBase(nil)

	_, err := b.Ingest("dense.txt", []byte("cache cache cache layer"))
	require.NoError(t, err)
	_, err = b.Ingest("sparse.txt", []byte("a cache somewhere"))
	require.NoError(t, err)

	results := b.Search("cache", 5)
	require.Len(t, results, 2)
	assert.Equal(t, "dense.txt", results[0].Filename)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestSearchTopNAndNoMatch(t *testing.T) {
	b := NewBase(nil)

	for _, name := range []string{"1.txt", "2.txt", "3.txt", "4.txt"} {
		_, err := b.Ingest(name, []byte("topic "+name))
		require.NoError(t, err)
	}

	assert.Len(t, b.Search("topic", 2), 2)
	assert.Empty(t, b.Search("absent", 3))
	assert.Empty(t, b.Search("   ", 3))
}

func TestDelete(t *testing.T) {
	b := NewBase(nil)

	doc, err := b.Ingest("gone.txt", []byte("ephemeral data"))
	require.NoError(t, err)

	require.NoError(t, b.Delete(doc.ID))
	assert.Empty(t, b.Search("ephemeral", 3))
	assert.Empty(t, b.Documents())

	assert.Error(t, b.Delete(doc.ID))
}
