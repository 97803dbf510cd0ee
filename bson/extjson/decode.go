package extjson

import (
	"bytes"
	"errors"
	"io"
	"strconv"

	gojson "github.com/goccy/go-json"
	"github.com/viant/sqlite-bson/bson"
)

type nodeKind int

const (
	nodeObject nodeKind = iota
	nodeArray
	nodeString
	nodeNumber
	nodeBool
	nodeNull
)

func (k nodeKind) String() string {
	switch k {
	case nodeObject:
		return "object"
	case nodeArray:
		return "array"
	case nodeString:
		return "string"
	case nodeNumber:
		return "number"
	case nodeBool:
		return "boolean"
	}
	return "null"
}

// node is one parsed JSON value; objects keep members in source order,
// duplicates included.
type node struct {
	kind    nodeKind
	text    string // string value or number literal
	boolean bool
	members []member
	items   []*node
}

type member struct {
	key   string
	value *node
}

// FromText parses an Extended JSON object into BSON bytes.
func FromText(text string) ([]byte, error) {
	return FromBytes([]byte(text))
}

// FromBytes parses an Extended JSON object into BSON bytes. Wrapper objects
// ({"$numberLong":"7"}, {"$date":...}, ...) produce their BSON type; a
// recognised wrapper with a malformed payload is an error. Plain integers
// become int32 when they fit, int64 otherwise; numbers with a fraction or
// exponent become doubles.
func FromBytes(data []byte) ([]byte, error) {
	if !gojson.Valid(data) {
		var probe any
		if err := gojson.Unmarshal(data, &probe); err != nil {
			return nil, parseErr("", err, "malformed JSON")
		}
		return nil, parseErr("", nil, "malformed JSON")
	}
	root, err := parse(data)
	if err != nil {
		return nil, err
	}
	if root.kind != nodeObject {
		return nil, parseErr("", nil, "top-level value must be an object, got %v", root.kind)
	}
	w := bson.NewWriter()
	if err := writeMembers(w, root, ""); err != nil {
		return nil, err
	}
	raw, err := w.Finish()
	if err != nil {
		var we *bson.WriterError
		if errors.As(err, &we) {
			return nil, parseErr(we.Key, err, "invalid document")
		}
		return nil, parseErr("", err, "invalid document")
	}
	return raw, nil
}

func parse(data []byte) (*node, error) {
	p := &parser{dec: gojson.NewDecoder(bytes.NewReader(data))}
	p.dec.UseNumber()
	tok, err := p.dec.Token()
	if err != nil {
		return nil, parseErr("", err, "empty input")
	}
	root, err := p.value(tok, "", 0)
	if err != nil {
		return nil, err
	}
	if _, err := p.dec.Token(); err != io.EOF {
		return nil, parseErr("", err, "unexpected data after top-level value")
	}
	return root, nil
}

type parser struct {
	dec *gojson.Decoder
}

func (p *parser) value(tok gojson.Token, path string, depth int) (*node, error) {
	switch v := tok.(type) {
	case gojson.Delim:
		if depth >= bson.MaxDepth {
			return nil, parseErr(path, nil, "nesting exceeds %d levels", bson.MaxDepth)
		}
		switch v {
		case '{':
			return p.object(path, depth+1)
		case '[':
			return p.array(path, depth+1)
		}
		return nil, parseErr(path, nil, "unexpected %q", rune(v))
	case string:
		return &node{kind: nodeString, text: v}, nil
	case gojson.Number:
		return &node{kind: nodeNumber, text: string(v)}, nil
	case float64:
		return &node{kind: nodeNumber, text: strconv.FormatFloat(v, 'g', -1, 64)}, nil
	case bool:
		return &node{kind: nodeBool, boolean: v}, nil
	case nil:
		return &node{kind: nodeNull}, nil
	}
	return nil, parseErr(path, nil, "unexpected token %T", tok)
}

func (p *parser) object(path string, depth int) (*node, error) {
	n := &node{kind: nodeObject}
	for {
		tok, err := p.dec.Token()
		if err != nil {
			return nil, parseErr(path, err, "unterminated object")
		}
		if d, ok := tok.(gojson.Delim); ok && d == '}' {
			return n, nil
		}
		key, ok := tok.(string)
		if !ok {
			return nil, parseErr(path, nil, "expected object key, got %v", tok)
		}
		childPath := joinPath(path, key)
		if tok, err = p.dec.Token(); err != nil {
			return nil, parseErr(childPath, err, "missing value")
		}
		child, err := p.value(tok, childPath, depth)
		if err != nil {
			return nil, err
		}
		n.members = append(n.members, member{key: key, value: child})
	}
}

func (p *parser) array(path string, depth int) (*node, error) {
	n := &node{kind: nodeArray}
	for {
		tok, err := p.dec.Token()
		if err != nil {
			return nil, parseErr(path, err, "unterminated array")
		}
		if d, ok := tok.(gojson.Delim); ok && d == ']' {
			return n, nil
		}
		child, err := p.value(tok, joinPath(path, strconv.Itoa(len(n.items))), depth)
		if err != nil {
			return nil, err
		}
		n.items = append(n.items, child)
	}
}

func joinPath(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}
