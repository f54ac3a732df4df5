package scan

import (
	"database/sql"
	"encoding/hex"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/blake2b"
)

// Hash returns a stable hex-encoded blake2b-256 digest of a script's
// bytecode, used for duplicate detection (spec.md §4.2.1 "compute a stable
// hash of the bytecode").
func Hash(code []byte) string {
	sum := blake2b.Sum256(code)
	return hex.EncodeToString(sum[:])
}

// Cache persists previously computed script hashes in an embedded SQLite
// database, so repeated scans of an unchanged catalogue (the common case:
// CLEO re-scans on every relaunch) skip re-hashing scripts whose file
// hasn't changed since the last scan.
type Cache struct {
	db *sql.DB
}

// OpenCache opens (creating if necessary) the scan-result cache at path.
func OpenCache(path string) (*Cache, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("scan: open cache %s: %w", path, err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS script_hash (
			name      TEXT PRIMARY KEY,
			mod_time  INTEGER NOT NULL,
			size      INTEGER NOT NULL,
			hash      TEXT NOT NULL,
			issue     INTEGER NOT NULL
		)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("scan: create cache schema: %w", err)
	}
	return &Cache{db: db}, nil
}

// Entry is one cached scan result, keyed by script name.
type Entry struct {
	Hash  string
	Issue Issue
}

// Lookup returns the cached entry for name if its file metadata
// (modification time and size) still matches what was cached.
func (c *Cache) Lookup(name string, modTime int64, size int64) (Entry, bool) {
	row := c.db.QueryRow(`SELECT hash, issue FROM script_hash WHERE name = ? AND mod_time = ? AND size = ?`, name, modTime, size)
	var e Entry
	var issue int
	if err := row.Scan(&e.Hash, &issue); err != nil {
		return Entry{}, false
	}
	e.Issue = Issue(issue)
	return e, true
}

// Store records a scan result for name, keyed by its current file
// metadata so a later Lookup invalidates automatically if the file
// changes.
func (c *Cache) Store(name string, modTime, size int64, e Entry) error {
	_, err := c.db.Exec(`
		INSERT INTO script_hash (name, mod_time, size, hash, issue)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET mod_time=excluded.mod_time, size=excluded.size, hash=excluded.hash, issue=excluded.issue
	`, name, modTime, size, e.Hash, int(e.Issue))
	return err
}

// Close releases the underlying database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}
