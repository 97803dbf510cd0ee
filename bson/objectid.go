package bson

import (
	"encoding/hex"
	"fmt"
)

// ObjectID is the 12-byte BSON object identifier.
type ObjectID [12]byte

// Hex returns the 24-character lowercase hex form.
func (id ObjectID) Hex() string { return hex.EncodeToString(id[:]) }

// ParseObjectID parses the 24-character hex form.
func ParseObjectID(s string) (ObjectID, error) {
	var id ObjectID
	if len(s) != 2*len(id) {
		return id, fmt.Errorf("bson: objectId %q must be %d hex characters", s, 2*len(id))
	}
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return id, fmt.Errorf("bson: invalid objectId %q: %w", s, err)
	}
	return id, nil
}
