// Package sheetdb provides a concurrent-safe, spreadsheet-backed table store.
//
// # Overview
//
// The package centers around [Store], which owns a single workbook file and a
// single-slot cache of its parsed [Table]. The cache is keyed on the file's
// modification time: a [Store.Load] whose stat matches the cached entry is
// served from memory, anything else triggers a re-read. Callers always receive
// a deep copy and never alias cached state.
//
// # Concurrency
//
// Cache population and file writes are serialized by one mutex per Store.
// Cache hits do not take the mutex. [Store.Modify] holds the mutex for the
// entire load-modify-save sequence so concurrent edits cannot interleave.
//
// # Normalization
//
// Every table crossing the store boundary goes through [Normalize]: cells are
// cleaned with [CleanValue], numeric-named columns are coerced, required
// columns are filled in and, when enabled, a 1-based "no" sequence column is
// maintained.
//
// # File Format
//
// Only the first sheet of the workbook is read. Row 1 is the header; blank
// rows are skipped.
package sheetdb
