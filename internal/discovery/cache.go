package discovery

import (
	"weft/internal/core/diag"
	"weft/internal/core/errors"
	"weft/internal/core/span"
	"weft/internal/host/tsfacts"
	"weft/internal/shared/observability"
)

// FactsCache keeps per-file extraction results keyed by content hash.
// Extraction is a pure function of file content, so a matching hash means
// the cached facts are exact; everything downstream re-runs regardless.
type FactsCache struct {
	extractor *tsfacts.Extractor
	entries   map[span.FileId]cacheEntry
}

type cacheEntry struct {
	hash  string
	facts *tsfacts.FileFacts
}

// RefreshStats reports what the cache did on one refresh.
type RefreshStats struct {
	Reused    []span.FileId `json:"reused,omitempty"`
	Extracted []span.FileId `json:"extracted,omitempty"`
	Evicted   []span.FileId `json:"evicted,omitempty"`
}

func NewFactsCache(extractor *tsfacts.Extractor) *FactsCache {
	return &FactsCache{
		extractor: extractor,
		entries:   make(map[span.FileId]cacheEntry),
	}
}

// Refresh brings the cache in line with the given file set and returns the
// merged facts map. Unchanged files reuse cached facts, changed or new
// files re-extract, files absent from the set are evicted. A file that
// fails to parse degrades to empty facts plus a diagnostic; it never aborts
// the refresh.
func (c *FactsCache) Refresh(files map[span.FileId][]byte, sink diag.Sink) (map[span.FileId]*tsfacts.FileFacts, RefreshStats) {
	if sink == nil {
		sink = diag.Discard{}
	}
	var stats RefreshStats
	out := make(map[span.FileId]*tsfacts.FileFacts, len(files))

	for file, content := range files {
		hash := span.ContentHash(content)
		if entry, ok := c.entries[file]; ok && entry.hash == hash {
			out[file] = entry.facts
			stats.Reused = append(stats.Reused, file)
			observability.ExtractCacheTotal.WithLabelValues("reused").Inc()
			continue
		}

		facts, err := c.extractor.Extract(file, content)
		if err != nil {
			facts = &tsfacts.FileFacts{Path: file}
			sink.Report(diag.Diagnostic{
				Code:     string(errors.CodeParseFailure),
				Message:  err.Error(),
				Span:     span.New(file, 0, 0),
				Severity: diag.SeverityError,
				Stage:    diag.StageExtract,
			})
		}
		c.entries[file] = cacheEntry{hash: hash, facts: facts}
		out[file] = facts
		stats.Extracted = append(stats.Extracted, file)
		observability.ExtractCacheTotal.WithLabelValues("extracted").Inc()
	}

	for file := range c.entries {
		if _, ok := files[file]; !ok {
			delete(c.entries, file)
			stats.Evicted = append(stats.Evicted, file)
			observability.ExtractCacheTotal.WithLabelValues("evicted").Inc()
		}
	}
	return out, stats
}

// Len reports how many files are cached.
func (c *FactsCache) Len() int {
	return len(c.entries)
}
