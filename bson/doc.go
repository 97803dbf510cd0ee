// Package bson reads and builds BSON documents without unmarshaling them into
// Go values. It includes:
//   - Reader/Element: a validated, zero-copy, forward-only view over bytes
//   - Writer: an incremental builder that backpatches length prefixes
//   - FindDescendant: dotted-path lookup mixing keys and array indexes
//   - Scalar helpers for Decimal128, UTC date-times, ObjectIDs and hex output
//
// A Reader never copies or mutates the buffer it was opened on; documents and
// arrays reached through it are sub-slices of that buffer.
package bson
