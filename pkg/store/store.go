// Package store persists retained message records in a Pebble database with
// secondary indexes by channel, status, and id-derived timestamp.
//
// Key layout:
//
//	msg:<id>                      -> record JSON
//	idx:channel:<channel>:<id>    -> status
//	idx:status:<status>:<id>      -> (empty)
//	idx:ts:<padded ms>:<id>       -> (empty)
//	attachment:<attachment_id>    -> attachment metadata JSON
//	settings:policy               -> policy settings JSON
//
// A record and its index entries are always written or removed in a single
// batch, so per-record mutations are all-or-nothing.
package store

import (
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"

	"msgvault/pkg/logger"
)

// StorageError wraps any failure of the underlying persistence layer. The
// store never silently drops a write; callers decide whether a failed
// retention is fatal.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

// ErrNotFound is returned by Get when no record exists for an id.
var ErrNotFound = errors.New("record not found")

// IsNotFound reports whether err means the looked-up key does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Store is a handle to an open record database. It is safe for concurrent
// use; lifetime matches the process (opened at startup, closed at exit).
type Store struct {
	db   *pebble.DB
	path string
}

// Open opens (or creates) a Pebble database at the given path.
func Open(path string) (*Store, error) {
	logger.Info("opening_record_store", "path", path)
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("record_store_open_failed", "path", path, "error", err)
		return nil, storageErr("open", err)
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return storageErr("close", err)
	}
	s.db = nil
	logger.Info("record_store_closed")
	return nil
}

// Path returns the filesystem path the store was opened at.
func (s *Store) Path() string { return s.path }

func (s *Store) get(key []byte) ([]byte, error) {
	v, closer, err := s.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, storageErr("get", err)
	}
	out := append([]byte(nil), v...)
	if closer != nil {
		_ = closer.Close()
	}
	return out, nil
}
