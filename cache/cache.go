// Package cache stores compiled program images in SQLite, keyed by a hash
// of the source text.
package cache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/chazu/sloth/vm"
)

var log = commonlog.GetLogger("sloth.cache")

const schema = `
CREATE TABLE IF NOT EXISTS images (
	key        TEXT PRIMARY KEY,
	image      BLOB NOT NULL,
	size       INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);
`

// Store is a compiled image cache backed by one SQLite database file.
type Store struct {
	db *sql.DB
}

// Open opens or creates the cache database at path, creating parent
// directories as needed. Use ":memory:" for a private in-memory cache.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("cache: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("cache: open %s: %w", path, err)
	}
	// A single connection keeps ":memory:" databases coherent.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: create schema: %w", err)
	}
	log.Debugf("opened %s", path)
	return &Store{db: db}, nil
}

// Key returns the cache key of source: the hex SHA-256 of the text,
// qualified by the image format version.
func Key(source string) string {
	sum := sha256.Sum256([]byte(source))
	return "v" + strconv.Itoa(vm.ImageVersion) + ":" + hex.EncodeToString(sum[:])
}

// Get returns the image cached for source.
func (s *Store) Get(source string) ([]byte, bool, error) {
	key := Key(source)
	var image []byte
	err := s.db.QueryRow(`SELECT image FROM images WHERE key = ?`, key).Scan(&image)
	if errors.Is(err, sql.ErrNoRows) {
		log.Debugf("miss %s", key)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: get: %w", err)
	}
	log.Debugf("hit %s (%d bytes)", key, len(image))
	return image, true, nil
}

// Put stores image for source, replacing any earlier entry.
func (s *Store) Put(source string, image []byte) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO images (key, image, size, created_at) VALUES (?, ?, ?, ?)`,
		Key(source), image, len(image), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("cache: put: %w", err)
	}
	return nil
}

// Len returns the number of cached images.
func (s *Store) Len() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM images`).Scan(&n); err != nil {
		return 0, fmt.Errorf("cache: count: %w", err)
	}
	return n, nil
}

// Clear removes every cached image.
func (s *Store) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM images`); err != nil {
		return fmt.Errorf("cache: clear: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
