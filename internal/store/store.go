package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/roach88/reprove/internal/witness"
)

// Store is the in-memory counterexample cache backed by a single file.
//
// Thread-safety: all operations are safe for concurrent use. Writers are
// serialized behind an internal mutex so concurrent property evaluations
// cannot interleave Put/Remove for the same identity.
type Store struct {
	mu      sync.Mutex
	entries File
	dirty   bool
}

// New creates an empty store.
func New() *Store {
	return &Store{entries: make(File)}
}

// Load reads the counterexample file at path.
//
// An absent file yields an empty store with no error. A corrupt file yields
// an empty store AND a CorruptStoreError: the caller logs the warning and
// continues, it must never abort the run over it.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return New(), nil
	}
	if err != nil {
		return New(), fmt.Errorf("read counterexample file: %w", err)
	}

	f, err := Decode(data)
	if err != nil {
		var ce *CorruptStoreError
		if errors.As(err, &ce) {
			ce.Path = path
		}
		return New(), err
	}

	return &Store{entries: f}, nil
}

// Lookup returns the stored entry for the given identity, if any.
func (s *Store) Lookup(id witness.ID) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id.String()]
	return e, ok
}

// Put inserts or replaces the entry for id and marks the store dirty.
func (s *Store) Put(id witness.ID, e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[id.String()] = e
	s.dirty = true
}

// Remove deletes the entry for id if present. The store is marked dirty
// only when a removal actually occurred.
func (s *Store) Remove(id witness.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := id.String()
	if _, ok := s.entries[key]; !ok {
		return false
	}
	delete(s.entries, key)
	s.dirty = true
	return true
}

// Len returns the number of stored counterexamples.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Snapshot returns a copy of the current mapping. Entries share witness
// values with the store; witnesses are treated as immutable once stored.
func (s *Store) Snapshot() File {
	s.mu.Lock()
	defer s.mu.Unlock()

	f := make(File, len(s.entries))
	for k, v := range s.entries {
		f[k] = v
	}
	return f
}

// Flush atomically persists the mapping to path if the store is dirty.
//
// The write goes to a temp file in the same directory followed by a rename,
// so a crash mid-write leaves the previous file intact. Flush holds the
// store lock for the duration: within-process writers are fully serialized
// against the target path.
func (s *Store) Flush(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty {
		return nil
	}

	data, err := Encode(s.entries)
	if err != nil {
		return fmt.Errorf("flush counterexamples: %w", err)
	}

	if err := writeFileAtomic(path, data); err != nil {
		return fmt.Errorf("flush counterexamples: %w", err)
	}

	s.dirty = false
	return nil
}

// Clean deletes all entries and removes the file at path. Used by the
// explicit "forget all counterexamples" operation.
func (s *Store) Clean(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(File)
	s.dirty = false

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clean counterexamples: %w", err)
	}
	return nil
}

// writeFileAtomic writes data to a temp file in path's directory and renames
// it over path.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
