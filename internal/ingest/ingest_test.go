package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medbot/internal/chunker"
	"medbot/internal/domain"
	"medbot/internal/embedding/tfidf"
	"medbot/internal/resilience"
	"medbot/internal/vectorstore/memory"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDirReadsTextFiles(t *testing.T) {
	dir := t.TempDir()
	fever := writeFile(t, dir, "fever.txt", "Fever is a rise in body temperature.")
	writeFile(t, dir, "nested/diabetes.TXT", "Diabetes affects blood sugar.")
	writeFile(t, dir, "notes.md", "ignored")
	writeFile(t, dir, "blank.txt", "   ")

	docs, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, fever, docs[0].Source)
	assert.Equal(t, hashString(fever), docs[0].ID)
	assert.Len(t, docs[0].ID, 16)
	assert.True(t, strings.HasSuffix(docs[1].Source, "diabetes.TXT"))
}

func TestLoadDirEmpty(t *testing.T) {
	_, err := LoadDir(t.TempDir())
	assert.ErrorContains(t, err, "no .pdf or .txt documents")
}

func TestLoadDirBadPDF(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.pdf", "not a pdf")
	_, err := LoadDir(dir)
	assert.ErrorContains(t, err, "broken.pdf")
}

func TestIndexerFillsMemoryStore(t *testing.T) {
	docs := []domain.Document{
		{ID: "a", Source: "a.txt", Content: "Fever is a rise in body temperature.\n\nParacetamol lowers fever."},
		{ID: "b", Source: "b.txt", Content: "Diabetes affects blood sugar."},
	}
	store := memory.NewStorage()
	emb := tfidf.NewEmbedder()
	policy := resilience.Policy{Attempts: 1, MinBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
	ix := NewIndexer(chunker.NewRecursiveChunker(40, 0), emb, store, policy, 2, nil)

	stats, err := ix.Run(context.Background(), docs)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Documents)
	assert.Equal(t, 3, stats.Chunks)
	assert.Equal(t, emb.Dimension(), stats.Dimension)
	assert.Equal(t, 3, store.Len())

	vec, err := emb.Embed(context.Background(), "fever")
	require.NoError(t, err)
	res, err := store.Search(context.Background(), vec, 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Contains(t, res[0].Text, "ever")
	assert.Equal(t, "a.txt", res[0].Source)
}

func TestIndexerNoChunks(t *testing.T) {
	ix := NewIndexer(chunker.NewRecursiveChunker(40, 0), tfidf.NewEmbedder(), memory.NewStorage(), resilience.Policy{}, 0, nil)
	_, err := ix.Run(context.Background(), []domain.Document{{ID: "x", Content: " "}})
	assert.Error(t, err)
}
