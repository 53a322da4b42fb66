// Package store persists counterexamples between test runs.
//
// The store is an in-memory map from property identity to the minimal witness
// that last falsified the property, backed by a single canonical-JSON file.
// Before any random exploration, the replay controller consults this store so
// regressions are caught immediately; once a stored witness passes again it
// is purged.
//
// Durability rules:
//   - An absent file is an empty store, not an error.
//   - A corrupt file degrades to an empty store with a CorruptStoreError the
//     caller is expected to log; it never aborts a run and is never silently
//     repaired entry-by-entry.
//   - Flush writes to a temp file and renames, so a crash mid-write cannot
//     truncate the previous file.
//
// The store is a single shared resource: all mutating operations are
// serialized behind an internal mutex.
package store
