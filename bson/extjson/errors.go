package extjson

import (
	"errors"
	"fmt"
)

// ErrParse is matched by every FromText failure.
var ErrParse = errors.New("extjson: parse error")

// ParseError reports why text could not be converted. Path is the dotted
// location of the offending value, empty for the document itself.
type ParseError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	msg := "extjson: parse error"
	if e.Path != "" {
		msg += " at " + e.Path
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrParse) true for every ParseError.
func (e *ParseError) Is(target error) bool { return target == ErrParse }

func parseErr(path string, cause error, format string, args ...any) error {
	return &ParseError{Path: path, Reason: fmt.Sprintf(format, args...), Err: cause}
}
