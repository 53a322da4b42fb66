package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/reprove/internal/witness"
)

// formatVersion is the counterexample file format version. Bump only with a
// migration path for existing files.
const formatVersion = 1

// Entry is one persisted counterexample: the argument list that falsified
// the property, plus the generator seed of the run that found it (0 when
// unknown). The seed is informational; replay feeds Args directly.
type Entry struct {
	Args []witness.Value
	Seed int64
}

// File is the decoded form of the counterexample file: an ordered mapping
// from property identity key ("Module.name") to its stored entry.
type File map[string]Entry

// CorruptStoreError reports a persisted counterexample file that could not
// be decoded. Callers must treat the store as empty and surface a warning;
// per-entry salvage is deliberately not attempted, so the file is either
// fully well-formed or ignored as a whole.
type CorruptStoreError struct {
	Path    string // file path, empty when decoding raw bytes
	Message string
	Err     error
}

func (e *CorruptStoreError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("corrupt counterexample file %s: %s", e.Path, e.Message)
	}
	return fmt.Sprintf("corrupt counterexample data: %s", e.Message)
}

func (e *CorruptStoreError) Unwrap() error {
	return e.Err
}

// IsCorruptStore reports whether err is (or wraps) a CorruptStoreError.
func IsCorruptStore(err error) bool {
	var ce *CorruptStoreError
	return errors.As(err, &ce)
}

// envelope is the on-disk shape. Entries are keyed by identity string and
// written canonically, so structurally equal files encode byte-identically.
type envelope struct {
	Version int                    `json:"version"`
	Entries map[string]entryRecord `json:"entries"`
}

type entryRecord struct {
	Args []json.RawMessage `json:"args"`
	Seed int64             `json:"seed,omitempty"`
}

// Encode serializes a File to canonical JSON bytes.
// Decode(Encode(f)) yields a mapping with the same key set and witnesses.
func Encode(f File) ([]byte, error) {
	entries := make(witness.Object, len(f))
	for key, entry := range f {
		args := make(witness.Array, len(entry.Args))
		copy(args, entry.Args)
		rec := witness.Object{"args": args}
		if entry.Seed != 0 {
			rec["seed"] = witness.Int(entry.Seed)
		}
		entries[key] = rec
	}

	doc := witness.Object{
		"version": witness.Int(formatVersion),
		"entries": entries,
	}

	data, err := witness.MarshalCanonical(doc)
	if err != nil {
		return nil, fmt.Errorf("encode counterexample file: %w", err)
	}
	// Trailing newline keeps the file friendly to line-oriented tooling.
	return append(data, '\n'), nil
}

// Decode parses counterexample file bytes. Malformed input of any kind
// yields a CorruptStoreError, never a raw json error.
func Decode(data []byte) (File, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &CorruptStoreError{Message: "malformed JSON", Err: err}
	}
	if env.Version != formatVersion {
		return nil, &CorruptStoreError{
			Message: fmt.Sprintf("unsupported format version %d (want %d)", env.Version, formatVersion),
		}
	}

	f := make(File, len(env.Entries))
	for key, rec := range env.Entries {
		if _, err := witness.ParseID(key); err != nil {
			return nil, &CorruptStoreError{Message: err.Error(), Err: err}
		}
		args := make([]witness.Value, len(rec.Args))
		for i, raw := range rec.Args {
			v, err := witness.UnmarshalValue(raw)
			if err != nil {
				return nil, &CorruptStoreError{
					Message: fmt.Sprintf("entry %q arg %d: %v", key, i, err),
					Err:     err,
				}
			}
			args[i] = v
		}
		f[key] = Entry{Args: args, Seed: rec.Seed}
	}
	return f, nil
}
