package changelog

import (
	"time"

	"github.com/viant/sqlite-bson/bson/extjson"
)

// Change operations recorded in the log.
const (
	OpInsert = "insert"
	OpUpdate = "update"
	OpDelete = "delete"
)

// LogEntry mirrors a single row of the change-log table.
type LogEntry struct {
	Seq         int64
	SourceTable string
	Op          string
	DocumentID  string
	// Payload is the document after the change (before it, for deletes) as
	// relaxed Extended JSON.
	Payload     string
	Fingerprint int64
	CreatedAt   time.Time
}

// Document rebuilds the BSON bytes from the logged payload.
func (e *LogEntry) Document() ([]byte, error) {
	return extjson.FromText(e.Payload)
}
