package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/viant/sqlite-bson/bson"
	"github.com/viant/sqlite-bson/bson/extjson"
)

// SQLiteStore implements Store on a SQLite database. FindByPath evaluates
// bson_get inside SQLite, so the database must be opened after
// engine.RegisterDocumentFunctions (engine.OpenConfig does this).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed Store. It ensures the docs
// schema exists in the provided database.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("store: db is nil")
	}
	if err := EnsureSchema(db); err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// AddDocuments validates and inserts documents in a single transaction; a
// malformed document or duplicate id aborts the whole batch.
func (s *SQLiteStore) AddDocuments(ctx context.Context, docs []Document) ([]string, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO docs(id, bdata, fingerprint) VALUES(?, ?, ?)`)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	ids := make([]string, 0, len(docs))
	for i, d := range docs {
		r, err := d.Reader()
		if err != nil {
			return nil, fmt.Errorf("store: document %d: %w", i, err)
		}
		id := d.ID
		if id == "" {
			if id, err = idFromDocument(r); err != nil {
				return nil, fmt.Errorf("store: document %d: %w", i, err)
			}
		}
		if _, err := stmt.ExecContext(ctx, id, d.Data, int64(bson.Fingerprint(d.Data))); err != nil {
			return nil, fmt.Errorf("store: insert %q: %w", id, err)
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ids, nil
}

// AddJSON parses Extended JSON text and stores it under id.
func (s *SQLiteStore) AddJSON(ctx context.Context, id, text string) (string, error) {
	raw, err := extjson.FromText(text)
	if err != nil {
		return "", err
	}
	ids, err := s.AddDocuments(ctx, []Document{{ID: id, Data: raw}})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

// Get returns the document with the given id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Document, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	d := &Document{ID: id}
	err := s.db.QueryRowContext(ctx, `SELECT bdata FROM docs WHERE id = ?`, id).Scan(&d.Data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// FindByPath returns documents, in insertion order, whose value at path
// equals value.
func (s *SQLiteStore) FindByPath(ctx context.Context, path string, value any) ([]Document, error) {
	if path == "" {
		return nil, fmt.Errorf("store: FindByPath called with empty path")
	}
	return s.query(ctx, `SELECT id, bdata FROM docs WHERE bson_get(bdata, ?) = ? ORDER BY rowid`, path, value)
}

// FindIdentical returns documents whose bytes equal raw. Key order matters:
// {"A":1,"B":4} and {"B":4,"A":1} are different documents.
func (s *SQLiteStore) FindIdentical(ctx context.Context, raw []byte) ([]Document, error) {
	if _, err := bson.Open(raw); err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	return s.query(ctx, `SELECT id, bdata FROM docs WHERE fingerprint = ? AND bdata = ? ORDER BY rowid`,
		int64(bson.Fingerprint(raw)), raw)
}

func (s *SQLiteStore) query(ctx context.Context, query string, args ...any) ([]Document, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.Data); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Remove deletes a document by ID from the docs table.
func (s *SQLiteStore) Remove(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("store: Remove called with empty id")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	_, err := s.db.ExecContext(ctx, `DELETE FROM docs WHERE id = ?`, id)
	return err
}

// idFromDocument derives an id from a top-level "_id" string, ObjectId or
// integer.
func idFromDocument(r bson.Reader) (string, error) {
	e, ok := r.Lookup("_id")
	if !ok {
		return "", fmt.Errorf("store: Document.ID is empty and document has no _id")
	}
	v := e.Value()
	switch v.Type {
	case bson.TypeString:
		if s := v.StringValue(); s != "" {
			return s, nil
		}
		return "", fmt.Errorf("store: _id is empty")
	case bson.TypeObjectID:
		return v.ObjectID().Hex(), nil
	case bson.TypeInt32:
		return strconv.FormatInt(int64(v.Int32()), 10), nil
	case bson.TypeInt64:
		return strconv.FormatInt(v.Int64(), 10), nil
	}
	return "", fmt.Errorf("store: unsupported _id type %v", v.Type)
}

// Ensure SQLiteStore satisfies the Store interface.
var _ Store = (*SQLiteStore)(nil)
