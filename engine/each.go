package engine

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/viant/sqlite-bson/bson"
	"modernc.org/sqlite/vtab"
)

// EachModuleName is the virtual table module registered by RegisterEach.
const EachModuleName = "bson_each"

// EachModule lists the direct children of a document, or of the container
// found at a dotted path inside it.
// Usage:
//
//	CREATE VIRTUAL TABLE bson_each USING bson_each;
//	SELECT key, type, value, fullkey FROM bson_each WHERE doc = ?;
//	SELECT key, value FROM bson_each WHERE doc = ? AND root = 'A.B';
//
// value is rendered like bson_get; raw holds the BLOB of nested documents
// and arrays. The doc constraint is required.
type EachModule struct{}

type eachTable struct{}

type eachRow struct {
	key     string
	typ     string
	value   driver.Value
	raw     []byte
	fullKey string
}

type eachCursor struct {
	rows []eachRow
	pos  int
}

const (
	eachColKey = iota
	eachColType
	eachColValue
	eachColRaw
	eachColFullKey
	eachColDoc
	eachColRoot
)

const (
	idxEachDoc = iota + 1
	idxEachDocRoot
)

// RegisterEach registers the bson_each module on db.
func RegisterEach(db *sql.DB) error {
	if err := vtab.RegisterModule(db, EachModuleName, &EachModule{}); err != nil {
		if !strings.Contains(err.Error(), "already registered") {
			return fmt.Errorf("engine: register %s: %w", EachModuleName, err)
		}
	}
	return nil
}

func (m *EachModule) declare(ctx vtab.Context, args []string) (vtab.Table, error) {
	if len(args) < 3 {
		return nil, fmt.Errorf("bson_each: expects at least 3 args, got %d", len(args))
	}
	if err := ctx.EnableConstraintSupport(); err != nil {
		return nil, fmt.Errorf("bson_each: EnableConstraintSupport failed: %w", err)
	}
	if err := ctx.Declare(fmt.Sprintf("CREATE TABLE %s(key TEXT, type TEXT, value, raw BLOB, fullkey TEXT, doc BLOB HIDDEN, root TEXT HIDDEN)", args[2])); err != nil {
		return nil, err
	}
	return &eachTable{}, nil
}

// Create declares the table schema.
func (m *EachModule) Create(ctx vtab.Context, args []string) (vtab.Table, error) {
	return m.declare(ctx, args)
}

// Connect re-declares the schema for an existing table.
func (m *EachModule) Connect(ctx vtab.Context, args []string) (vtab.Table, error) {
	return m.declare(ctx, args)
}

// BestIndex pushes down equality on the hidden doc and root columns.
func (t *eachTable) BestIndex(info *vtab.IndexInfo) error {
	var doc, root *vtab.Constraint
	for i := range info.Constraints {
		c := &info.Constraints[i]
		if !c.Usable || c.Op != vtab.OpEQ {
			continue
		}
		switch c.Column {
		case eachColDoc:
			doc = c
		case eachColRoot:
			root = c
		}
	}
	if doc == nil {
		return fmt.Errorf("bson_each: doc constraint required")
	}
	doc.ArgIndex = 0
	doc.Omit = true
	info.IdxNum = idxEachDoc
	if root != nil {
		root.ArgIndex = 1
		root.Omit = true
		info.IdxNum = idxEachDocRoot
	}
	return nil
}

func (t *eachTable) Open() (vtab.Cursor, error) { return &eachCursor{}, nil }
func (t *eachTable) Disconnect() error { return nil }
func (t *eachTable) Destroy() error { return nil }

// Filter materialises the children of the requested container.
func (c *eachCursor) Filter(idxNum int, _ string, vals []vtab.Value) error {
	c.rows = nil
	c.pos = 0
	if len(vals) == 0 {
		return fmt.Errorf("bson_each: doc argument is required")
	}
	b, ok := vals[0].([]byte)
	if !ok {
		return nil
	}
	// the driver may reuse argument memory once Filter returns
	b = append([]byte(nil), b...)
	doc, err := bson.Open(b)
	if err != nil {
		return fmt.Errorf("bson_each: %w", err)
	}
	var root string
	if idxNum == idxEachDocRoot && len(vals) > 1 {
		root, ok = pathArg(vals[1])
		if !ok {
			return nil
		}
	}
	container := doc
	if root != "" {
		e, found := bson.FindDescendant(doc, root)
		if !found || !e.Type().IsContainer() {
			return nil
		}
		if e.Type() == bson.TypeArray {
			container = e.Value().Array()
		} else {
			container = e.Value().Document()
		}
	}
	for e := range container.All() {
		v := e.Value()
		row := eachRow{
			key:     e.Key(),
			typ:     e.Type().String(),
			value:   sqlValue(v, bson.HexBare),
			fullKey: e.Key(),
		}
		if root != "" {
			row.fullKey = root + "." + e.Key()
		}
		if v.Type.IsContainer() {
			row.raw = v.Data
		}
		c.rows = append(c.rows, row)
	}
	return nil
}

func (c *eachCursor) Next() error {
	if c.pos < len(c.rows) {
		c.pos++
	}
	return nil
}

func (c *eachCursor) Eof() bool { return c.pos >= len(c.rows) }

func (c *eachCursor) Column(col int) (vtab.Value, error) {
	if c.pos >= len(c.rows) {
		return nil, fmt.Errorf("bson_each: Column out of range")
	}
	row := c.rows[c.pos]
	switch col {
	case eachColKey:
		return row.key, nil
	case eachColType:
		return row.typ, nil
	case eachColValue:
		return row.value, nil
	case eachColRaw:
		if row.raw == nil {
			return nil, nil
		}
		return row.raw, nil
	case eachColFullKey:
		return row.fullKey, nil
	}
	return nil, nil
}

func (c *eachCursor) Rowid() (int64, error) { return int64(c.pos + 1), nil }

func (c *eachCursor) Close() error {
	c.rows = nil
	c.pos = 0
	return nil
}
