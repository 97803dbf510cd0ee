package bson

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// HexStyle selects how binary payloads are rendered as text.
type HexStyle int

const (
	// HexBare renders lowercase digit pairs only, for embedding in a blob
	// literal such as X'...'.
	HexBare HexStyle = iota
	// HexEscaped prefixes the digit pairs with a literal \x.
	HexEscaped
)

const hexEscapePrefix = `\x`

// FormatHex renders b as 2*len(b) lowercase hex digits, plus the two
// character prefix for HexEscaped.
func FormatHex(b []byte, style HexStyle) string {
	if style == HexEscaped {
		out := make([]byte, len(hexEscapePrefix)+hex.EncodedLen(len(b)))
		copy(out, hexEscapePrefix)
		hex.Encode(out[len(hexEscapePrefix):], b)
		return string(out)
	}
	return hex.EncodeToString(b)
}

// ParseHex decodes either rendering produced by FormatHex.
func ParseHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, hexEscapePrefix)
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("bson: invalid hex %q: %w", s, err)
	}
	return b, nil
}
