package store

import (
	"database/sql"
)

const docsSchema = `
CREATE TABLE IF NOT EXISTS docs (
    id TEXT PRIMARY KEY,
    bdata BLOB NOT NULL,
    fingerprint INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS docs_fingerprint ON docs(fingerprint);
`

// EnsureSchema creates the documents table and its fingerprint index in the
// provided database if they do not already exist.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(docsSchema)
	return err
}
