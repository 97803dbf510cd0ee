package bson

import (
	"errors"
	"fmt"
)

// ErrInvalidFormat is matched by every structural validation failure.
var ErrInvalidFormat = errors.New("bson: invalid format")

// FormatError describes why a buffer failed validation and where.
type FormatError struct {
	// Offset is the byte position in the outermost buffer.
	Offset int
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("bson: invalid format at offset %d: %s", e.Offset, e.Reason)
}

// Is makes errors.Is(err, ErrInvalidFormat) true for every FormatError.
func (e *FormatError) Is(target error) bool { return target == ErrInvalidFormat }

func formatErr(offset int, format string, args ...any) error {
	return &FormatError{Offset: offset, Reason: fmt.Sprintf(format, args...)}
}

// WriterError reports misuse of a Writer; the first one sticks until Finish.
type WriterError struct {
	Key    string
	Reason string
}

func (e *WriterError) Error() string {
	if e.Key == "" {
		return "bson: writer: " + e.Reason
	}
	return fmt.Sprintf("bson: writer: key %q: %s", e.Key, e.Reason)
}
