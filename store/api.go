package store

import (
	"context"
	"errors"

	"github.com/viant/sqlite-bson/bson"
	"github.com/viant/sqlite-bson/bson/extjson"
)

// ErrNotFound is returned by Get when no document has the requested id.
var ErrNotFound = errors.New("store: document not found")

// Document is one stored BSON document.
type Document struct {
	// ID is the logical identifier of the document. When empty on insert, the
	// store takes it from the document's top-level "_id" field.
	ID string

	// Data holds the raw BSON bytes.
	Data []byte
}

// Reader opens (and validates) the document bytes.
func (d Document) Reader() (bson.Reader, error) { return bson.Open(d.Data) }

// JSON renders the document as relaxed Extended JSON.
func (d Document) JSON() (string, error) {
	r, err := d.Reader()
	if err != nil {
		return "", err
	}
	return extjson.ToText(r, extjson.Relaxed), nil
}

// Store defines the application-level document store API.
type Store interface {
	// AddDocuments validates and inserts documents and returns their IDs.
	AddDocuments(ctx context.Context, docs []Document) ([]string, error)

	// Get returns the document with the given ID or ErrNotFound.
	Get(ctx context.Context, id string) (*Document, error)

	// FindByPath returns documents whose value at the dotted path equals
	// value, compared the way bson_get renders it.
	FindByPath(ctx context.Context, path string, value any) ([]Document, error)

	// FindIdentical returns documents byte-for-byte equal to raw.
	FindIdentical(ctx context.Context, raw []byte) ([]Document, error)

	// Remove deletes the document with the given ID.
	Remove(ctx context.Context, id string) error
}
