package changelog

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// validIdentifier reports whether name is a plain, optionally
// schema-qualified, SQL identifier.
func validIdentifier(name string) bool { return identifierPattern.MatchString(name) }

// DefaultLogTable is the change-log table populated by the triggers.
const DefaultLogTable = "bson_change_log"

// LogTableDDL returns the DDL for the change-log table.
func LogTableDDL(logTable string) string {
	if logTable == "" {
		logTable = DefaultLogTable
	}
	return `CREATE TABLE IF NOT EXISTS ` + logTable + ` (
    seq          INTEGER PRIMARY KEY AUTOINCREMENT,
    source_table TEXT NOT NULL,
    op           TEXT NOT NULL,
    document_id  TEXT NOT NULL,
    payload      TEXT,
    fingerprint  INTEGER,
    created_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);`
}

// SQLiteTriggers returns the trigger DDL statements required to capture
// inserts, updates, and deletes against a document table (id TEXT, bdata BLOB)
// into logTable. The payload is rendered with bson_to_json, so the engine's
// document functions must be registered on every connection that writes to
// table. Names are not validated here; Install rejects anything that is not a
// plain identifier.
func SQLiteTriggers(table, logTable string) []string {
	if logTable == "" {
		logTable = DefaultLogTable
	}
	base := sanitizeIdentifier(table)
	trigger := func(suffix, event, op, alias string) string {
		return fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS %[1]s_%[2]s AFTER %[3]s ON %[4]s
BEGIN
    INSERT INTO %[5]s(source_table, op, document_id, payload, fingerprint)
    VALUES (
        '%[8]s',
        '%[6]s',
        %[7]s.id,
        bson_to_json(%[7]s.bdata),
        bson_hash(%[7]s.bdata)
    );
END;`, base, suffix, event, table, logTable, op, alias, strings.ReplaceAll(table, "'", "''"))
	}
	return []string{
		trigger("ai", "INSERT", OpInsert, "NEW"),
		trigger("au", "UPDATE", OpUpdate, "NEW"),
		trigger("ad", "DELETE", OpDelete, "OLD"),
	}
}

// Install creates the log table and the triggers for table.
func Install(ctx context.Context, db *sql.DB, table, logTable string) error {
	if table == "" {
		return fmt.Errorf("changelog: table is required")
	}
	if !validIdentifier(table) {
		return fmt.Errorf("changelog: invalid table name %q", table)
	}
	if logTable != "" && !validIdentifier(logTable) {
		return fmt.Errorf("changelog: invalid log table name %q", logTable)
	}
	stmts := append([]string{LogTableDDL(logTable)}, SQLiteTriggers(table, logTable)...)
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("changelog: install on %s: %w", table, err)
		}
	}
	return nil
}

// ReadEntries returns log entries with seq greater than afterSeq in seq
// order; limit <= 0 means no limit.
func ReadEntries(ctx context.Context, db *sql.DB, logTable string, afterSeq int64, limit int) ([]LogEntry, error) {
	if logTable == "" {
		logTable = DefaultLogTable
	}
	if !validIdentifier(logTable) {
		return nil, fmt.Errorf("changelog: invalid log table name %q", logTable)
	}
	if limit <= 0 {
		limit = -1
	}
	q := fmt.Sprintf(`SELECT seq, source_table, op, document_id, coalesce(payload, ''), coalesce(fingerprint, 0), created_at
FROM %s WHERE seq > ? ORDER BY seq LIMIT ?`, logTable)
	rows, err := db.QueryContext(ctx, q, afterSeq, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LogEntry
	for rows.Next() {
		var e LogEntry
		var created any
		if err := rows.Scan(&e.Seq, &e.SourceTable, &e.Op, &e.DocumentID, &e.Payload, &e.Fingerprint, &created); err != nil {
			return nil, err
		}
		if e.CreatedAt, err = parseTimestamp(created); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func parseTimestamp(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		return parseTimestampText(t)
	case []byte:
		return parseTimestampText(string(t))
	case nil:
		return time.Time{}, nil
	}
	return time.Time{}, fmt.Errorf("changelog: unsupported created_at type %T", v)
}

func parseTimestampText(s string) (time.Time, error) {
	for _, layout := range []string{time.DateTime, time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("changelog: invalid created_at %q", s)
}

func sanitizeIdentifier(name string) string {
	if name == "" {
		return ""
	}
	replacer := strings.NewReplacer(".", "_", "-", "_")
	return replacer.Replace(name)
}
