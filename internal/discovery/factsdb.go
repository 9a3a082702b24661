package discovery

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"weft/internal/core/span"
	"weft/internal/host/tsfacts"
)

const sqliteDriverName = "sqlite"

// FactsDB persists extraction results between processes so a cold start
// skips re-parsing unchanged files. Rows are keyed by path and content
// hash; loading seeds the in-memory FactsCache, which stays authoritative
// for the rest of the run.
type FactsDB struct {
	db         *sql.DB
	projectKey string
}

type factsPayload struct {
	Version int               `json:"version"`
	Facts   tsfacts.FileFacts `json:"facts"`
}

func OpenFactsDB(path string, projectKey string) (*FactsDB, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("facts db path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("facts db path %q is a directory", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create facts db directory %q: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cleanPath)
	db, err := sql.Open(sqliteDriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open facts db %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping facts db %q: %w", cleanPath, err)
	}
	if err := migrateFactsSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	key := strings.TrimSpace(projectKey)
	if key == "" {
		key = "default"
	}
	return &FactsDB{db: db, projectKey: key}, nil
}

func migrateFactsSchema(db *sql.DB) error {
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS file_facts (
	project_key TEXT NOT NULL,
	file_path TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	payload BLOB NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (project_key, file_path)
)
`)
	if err != nil {
		return fmt.Errorf("migrate facts schema: %w", err)
	}
	return nil
}

// Put stores one file's facts under its content hash.
func (f *FactsDB) Put(file span.FileId, contentHash string, facts *tsfacts.FileFacts) error {
	if f == nil || f.db == nil {
		return fmt.Errorf("facts db not initialized")
	}
	raw, err := json.Marshal(factsPayload{Version: 1, Facts: *facts})
	if err != nil {
		return fmt.Errorf("marshal facts payload: %w", err)
	}
	now := time.Now().UTC().UnixMilli()
	_, err = f.db.Exec(`
INSERT INTO file_facts (project_key, file_path, content_hash, payload, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (project_key, file_path) DO UPDATE SET
	content_hash = excluded.content_hash,
	payload = excluded.payload,
	updated_at = excluded.updated_at
`, f.projectKey, string(file), contentHash, raw, now)
	if err != nil {
		return fmt.Errorf("store facts for %s: %w", file, err)
	}
	return nil
}

// Get loads one file's facts if the stored content hash matches.
func (f *FactsDB) Get(file span.FileId, contentHash string) (*tsfacts.FileFacts, bool, error) {
	if f == nil || f.db == nil {
		return nil, false, fmt.Errorf("facts db not initialized")
	}
	var raw []byte
	err := f.db.QueryRow(`
SELECT payload FROM file_facts
WHERE project_key = ? AND file_path = ? AND content_hash = ?
`, f.projectKey, string(file), contentHash).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load facts for %s: %w", file, err)
	}
	var payload factsPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		// A corrupt row is treated as a miss, not a failure.
		return nil, false, nil
	}
	return &payload.Facts, true, nil
}

// Prune drops rows for files no longer in the project.
func (f *FactsDB) Prune(keep map[span.FileId][]byte) error {
	if f == nil || f.db == nil {
		return fmt.Errorf("facts db not initialized")
	}
	rows, err := f.db.Query(`SELECT file_path FROM file_facts WHERE project_key = ?`, f.projectKey)
	if err != nil {
		return fmt.Errorf("list facts rows: %w", err)
	}
	var stale []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			_ = rows.Close()
			return fmt.Errorf("scan facts row: %w", err)
		}
		if _, ok := keep[span.FileId(path)]; !ok {
			stale = append(stale, path)
		}
	}
	if err := rows.Close(); err != nil {
		return fmt.Errorf("close facts rows: %w", err)
	}
	for _, path := range stale {
		if _, err := f.db.Exec(`DELETE FROM file_facts WHERE project_key = ? AND file_path = ?`, f.projectKey, path); err != nil {
			return fmt.Errorf("prune facts for %s: %w", path, err)
		}
	}
	return nil
}

func (f *FactsDB) Close() error {
	if f == nil || f.db == nil {
		return nil
	}
	return f.db.Close()
}

// SeedCache loads matching rows for the given files into a fresh cache so
// the first Refresh reuses them instead of re-extracting.
func (f *FactsDB) SeedCache(cache *FactsCache, files map[span.FileId][]byte) error {
	for file, content := range files {
		hash := span.ContentHash(content)
		facts, ok, err := f.Get(file, hash)
		if err != nil {
			return err
		}
		if ok {
			cache.entries[file] = cacheEntry{hash: hash, facts: facts}
		}
	}
	return nil
}

// Persist writes the cache's current entries back out.
func (f *FactsDB) Persist(cache *FactsCache) error {
	for file, entry := range cache.entries {
		if err := f.Put(file, entry.hash, entry.facts); err != nil {
			return err
		}
	}
	return nil
}
