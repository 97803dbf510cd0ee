package bson

import "github.com/cespare/xxhash/v2"

// Fingerprint hashes the raw document bytes with xxHash64. Equality is
// positional: documents holding the same fields in a different order have
// different bytes and, almost always, different fingerprints.
func Fingerprint(raw []byte) uint64 { return xxhash.Sum64(raw) }
