package discovery

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"weft/internal/core/span"
	"weft/internal/host/tsfacts"
)

func TestFactsDBRoundTrip(t *testing.T) {
	db, err := OpenFactsDB(filepath.Join(t.TempDir(), "facts.db"), "proj")
	require.NoError(t, err)
	defer db.Close()

	facts := &tsfacts.FileFacts{
		Path:    "src/a.ts",
		Classes: []tsfacts.ClassFact{{Name: "AlphaCustomElement", Exported: true}},
	}
	require.NoError(t, db.Put("src/a.ts", "hash-1", facts))

	loaded, ok, err := db.Get("src/a.ts", "hash-1")
	require.NoError(t, err)
	require.True(t, ok)
	_, found := loaded.Class("AlphaCustomElement")
	require.True(t, found)

	// A different content hash is a miss, never stale data.
	_, ok, err = db.Get("src/a.ts", "hash-2")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFactsDBSeedAndPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facts.db")
	content := []byte(`export class AlphaCustomElement {}`)
	files := map[span.FileId][]byte{"src/a.ts": content}

	db, err := OpenFactsDB(path, "proj")
	require.NoError(t, err)

	cache := NewFactsCache(tsfacts.NewExtractor())
	_, stats := cache.Refresh(files, nil)
	require.Len(t, stats.Extracted, 1)
	require.NoError(t, db.Persist(cache))
	require.NoError(t, db.Close())

	// A cold process seeds its cache from the store and skips extraction.
	db, err = OpenFactsDB(path, "proj")
	require.NoError(t, err)
	defer db.Close()

	fresh := NewFactsCache(tsfacts.NewExtractor())
	require.NoError(t, db.SeedCache(fresh, files))
	_, stats = fresh.Refresh(files, nil)
	require.Len(t, stats.Reused, 1)
	require.Empty(t, stats.Extracted)
}

func TestFactsDBPrune(t *testing.T) {
	db, err := OpenFactsDB(filepath.Join(t.TempDir(), "facts.db"), "proj")
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Put("src/a.ts", "h1", &tsfacts.FileFacts{Path: "src/a.ts"}))
	require.NoError(t, db.Put("src/b.ts", "h2", &tsfacts.FileFacts{Path: "src/b.ts"}))

	require.NoError(t, db.Prune(map[span.FileId][]byte{"src/a.ts": nil}))

	_, ok, err := db.Get("src/a.ts", "h1")
	require.NoError(t, err)
	require.True(t, ok)
	_, ok, err = db.Get("src/b.ts", "h2")
	require.NoError(t, err)
	require.False(t, ok)
}
