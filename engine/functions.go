package engine

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strconv"
	"sync"

	"github.com/viant/sqlite-bson/bson"
	"github.com/viant/sqlite-bson/bson/extjson"
	sqlite "modernc.org/sqlite"
)

var (
	registerOnce sync.Once
	registerErr  error
)

type scalarFunction struct {
	name  string
	nArgs int32
	impl  func(*sqlite.FunctionContext, []driver.Value) (driver.Value, error)
}

var documentFunctions = []scalarFunction{
	{"bson_get", 2, bsonGetImpl},
	{"bson_get_bson", 2, bsonGetBSONImpl},
	{"bson_get_text", 2, bsonGetTextImpl},
	{"bson_to_json", 1, bsonToJSONImpl},
	{"bson_to_canonical_json", 1, bsonToCanonicalJSONImpl},
	{"bson_from_json", 1, bsonFromJSONImpl},
	{"bson_type", 2, bsonTypeImpl},
	{"bson_valid", 1, bsonValidImpl},
	{"bson_hash", 1, bsonHashImpl},
}

// RegisterDocumentFunctions registers the bson_* scalar functions with the
// driver so they are available on new connections opened after this call.
// Note: existing open connections will not see new functions.
func RegisterDocumentFunctions(_ *sql.DB) error {
	registerOnce.Do(func() {
		for _, fn := range documentFunctions {
			if err := sqlite.RegisterDeterministicScalarFunction(fn.name, fn.nArgs, fn.impl); err != nil {
				registerErr = fmt.Errorf("engine: register %s: %w", fn.name, err)
				return
			}
		}
	})
	return registerErr
}

// documentArg opens a BLOB argument. Non-BLOB values (NULL, numbers, text)
// report ok=false so callers return NULL; a BLOB that is not a well-formed
// document is an error.
func documentArg(name string, arg driver.Value) (bson.Reader, bool, error) {
	b, isBlob := arg.([]byte)
	if !isBlob {
		return bson.Reader{}, false, nil
	}
	doc, err := bson.Open(b)
	if err != nil {
		return bson.Reader{}, false, fmt.Errorf("%s: %w", name, err)
	}
	return doc, true, nil
}

func pathArg(arg driver.Value) (string, bool) {
	switch v := arg.(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	}
	return "", false
}

// resolve returns the value at path, treating the empty path as the whole
// document.
func resolve(name string, args []driver.Value) (bson.Value, bool, error) {
	if len(args) != 2 {
		return bson.Value{}, false, fmt.Errorf("%s: expected 2 arguments, got %d", name, len(args))
	}
	doc, ok, err := documentArg(name, args[0])
	if !ok || err != nil {
		return bson.Value{}, false, err
	}
	path, ok := pathArg(args[1])
	if !ok {
		return bson.Value{}, false, nil
	}
	if path == "" {
		return bson.Value{Type: bson.TypeDocument, Data: doc.Bytes()}, true, nil
	}
	e, ok := bson.FindDescendant(doc, path)
	if !ok {
		return bson.Value{}, false, nil
	}
	return e.Value(), true, nil
}

func bsonGetImpl(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	v, ok, err := resolve("bson_get", args)
	if !ok || err != nil {
		return nil, err
	}
	return sqlValue(v, bson.HexBare), nil
}

func bsonGetTextImpl(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	v, ok, err := resolve("bson_get_text", args)
	if !ok || err != nil {
		return nil, err
	}
	return textValue(v), nil
}

func bsonGetBSONImpl(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	v, ok, err := resolve("bson_get_bson", args)
	if !ok || err != nil {
		return nil, err
	}
	if !v.Type.IsContainer() {
		return nil, nil
	}
	// sub-slice of the argument; the driver copies it into the result
	return v.Data, nil
}

func bsonTypeImpl(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	v, ok, err := resolve("bson_type", args)
	if !ok || err != nil {
		return nil, err
	}
	return v.Type.String(), nil
}

func bsonToJSONImpl(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	return toJSON("bson_to_json", args, extjson.Relaxed)
}

func bsonToCanonicalJSONImpl(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	return toJSON("bson_to_canonical_json", args, extjson.Canonical)
}

func toJSON(name string, args []driver.Value, mode extjson.Mode) (driver.Value, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("%s: expected 1 argument, got %d", name, len(args))
	}
	doc, ok, err := documentArg(name, args[0])
	if !ok || err != nil {
		return nil, err
	}
	return extjson.ToText(doc, mode), nil
}

func bsonFromJSONImpl(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("bson_from_json: expected 1 argument, got %d", len(args))
	}
	var text []byte
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		text = []byte(v)
	case []byte:
		text = v
	default:
		return nil, fmt.Errorf("bson_from_json: unsupported argument type %T; want TEXT", v)
	}
	raw, err := extjson.FromBytes(text)
	if err != nil {
		return nil, fmt.Errorf("bson_from_json: %w", err)
	}
	return raw, nil
}

func bsonValidImpl(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("bson_valid: expected 1 argument, got %d", len(args))
	}
	b, ok := args[0].([]byte)
	if !ok {
		return int64(0), nil
	}
	if _, err := bson.Open(b); err != nil {
		return int64(0), nil
	}
	return int64(1), nil
}

func bsonHashImpl(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("bson_hash: expected 1 argument, got %d", len(args))
	}
	doc, ok, err := documentArg("bson_hash", args[0])
	if !ok || err != nil {
		return nil, err
	}
	return int64(bson.Fingerprint(doc.Bytes())), nil
}
