package bson

import (
	"bytes"
	"encoding/binary"
	"iter"
	"unicode/utf8"
)

// MaxDepth bounds document nesting accepted by Open.
const MaxDepth = 200

const minDocumentSize = 5

// Reader is a read-only view over a validated BSON document. It borrows the
// buffer it was opened on and is valid for as long as that buffer is not
// mutated. Readers are safe for concurrent use.
type Reader struct {
	data []byte
}

// Open validates b and returns a Reader over it. Validation is complete and
// recursive: once Open succeeds, iterating and navigating never reads outside
// b. Failures match ErrInvalidFormat.
func Open(b []byte) (Reader, error) {
	if err := validateDocument(b, 0, 0); err != nil {
		return Reader{}, err
	}
	return Reader{data: b}, nil
}

// Bytes returns the underlying document bytes (not a copy).
func (r Reader) Bytes() []byte { return r.data }

// Len returns the document size in bytes.
func (r Reader) Len() int { return len(r.data) }

// First returns the first element, or false for an empty document.
func (r Reader) First() (Element, bool) { return r.elementAt(4) }

// Next returns the element following e.
func (r Reader) Next(e Element) (Element, bool) {
	if e.data == nil {
		return Element{}, false
	}
	return r.elementAt(e.end)
}

// All iterates elements in stored order.
func (r Reader) All() iter.Seq[Element] {
	return func(yield func(Element) bool) {
		for e, ok := r.First(); ok; e, ok = r.Next(e) {
			if !yield(e) {
				return
			}
		}
	}
}

// Lookup returns the first element whose key equals key. Later duplicates
// are never visible through Lookup.
func (r Reader) Lookup(key string) (Element, bool) {
	for e, ok := r.First(); ok; e, ok = r.Next(e) {
		if e.keyEquals(key) {
			return e, true
		}
	}
	return Element{}, false
}

// Index returns the element at position i, ignoring keys.
func (r Reader) Index(i int) (Element, bool) {
	if i < 0 {
		return Element{}, false
	}
	n := 0
	for e, ok := r.First(); ok; e, ok = r.Next(e) {
		if n == i {
			return e, true
		}
		n++
	}
	return Element{}, false
}

func (r Reader) elementAt(pos int) (Element, bool) {
	if len(r.data) < minDocumentSize || pos < 4 || pos >= len(r.data)-1 {
		return Element{}, false
	}
	keyEnd := bytes.IndexByte(r.data[pos+1:], 0)
	if keyEnd < 0 {
		return Element{}, false
	}
	keyEnd += pos + 1
	size := sizeOf(Type(r.data[pos]), r.data[keyEnd+1:])
	return Element{data: r.data, start: pos, keyEnd: keyEnd, end: keyEnd + 1 + size}, true
}

// Element is a handle to one (key, value) entry of a Reader.
type Element struct {
	data   []byte
	start  int
	keyEnd int
	end    int
}

// Key returns the element key.
func (e Element) Key() string { return string(e.data[e.start+1 : e.keyEnd]) }

func (e Element) keyEquals(key string) bool {
	return string(e.data[e.start+1:e.keyEnd]) == key
}

// Type returns the element type tag.
func (e Element) Type() Type { return Type(e.data[e.start]) }

// Value returns the typed value view of the element.
func (e Element) Value() Value {
	return Value{Type: e.Type(), Data: e.data[e.keyEnd+1 : e.end]}
}

// Raw returns the whole encoded element: tag, key and value.
func (e Element) Raw() []byte { return e.data[e.start:e.end] }

func readInt32(b []byte) int { return int(int32(binary.LittleEndian.Uint32(b))) }

// sizeOf returns the value size of an already validated element.
func sizeOf(t Type, b []byte) int {
	switch t {
	case TypeDouble, TypeDateTime, TypeInt64, TypeTimestamp:
		return 8
	case TypeInt32:
		return 4
	case TypeDecimal128:
		return 16
	case TypeObjectID:
		return 12
	case TypeBoolean:
		return 1
	case TypeNull, TypeUndefined, TypeMinKey, TypeMaxKey:
		return 0
	case TypeString, TypeJavaScript, TypeSymbol:
		return 4 + readInt32(b)
	case TypeDocument, TypeArray, TypeCodeWithScope:
		return readInt32(b)
	case TypeBinary:
		return 5 + readInt32(b)
	case TypeRegex:
		i := bytes.IndexByte(b, 0)
		j := bytes.IndexByte(b[i+1:], 0)
		return i + 1 + j + 1
	case TypeDBPointer:
		return 4 + readInt32(b) + 12
	}
	return len(b)
}

func validateDocument(b []byte, base, depth int) error {
	if depth > MaxDepth {
		return formatErr(base, "nesting deeper than %d levels", MaxDepth)
	}
	if len(b) < minDocumentSize {
		return formatErr(base, "%d bytes is shorter than the minimum document size %d", len(b), minDocumentSize)
	}
	if n := readInt32(b); n != len(b) {
		return formatErr(base, "length header %d does not match buffer length %d", n, len(b))
	}
	last := len(b) - 1
	if b[last] != 0 {
		return formatErr(base+last, "missing document terminator")
	}
	pos := 4
	for pos < last {
		t := Type(b[pos])
		if t == 0 {
			return formatErr(base+pos, "terminator before end of document")
		}
		if !t.Valid() {
			return formatErr(base+pos, "unknown element type 0x%02x", byte(t))
		}
		keyLen := bytes.IndexByte(b[pos+1:last], 0)
		if keyLen < 0 {
			return formatErr(base+pos+1, "unterminated key")
		}
		if !utf8.Valid(b[pos+1 : pos+1+keyLen]) {
			return formatErr(base+pos+1, "key is not valid UTF-8")
		}
		valOff := pos + 1 + keyLen + 1
		size, err := validateValue(t, b[valOff:last], base+valOff, depth)
		if err != nil {
			return err
		}
		pos = valOff + size
	}
	return nil
}

// validateValue checks the value of type t at the start of b, where b ends at
// the enclosing document's terminator, and returns its size.
func validateValue(t Type, b []byte, offset, depth int) (int, error) {
	switch t {
	case TypeDouble, TypeDateTime, TypeInt64, TypeTimestamp:
		return fixedSize(t, b, 8, offset)
	case TypeInt32:
		return fixedSize(t, b, 4, offset)
	case TypeDecimal128:
		return fixedSize(t, b, 16, offset)
	case TypeObjectID:
		return fixedSize(t, b, 12, offset)
	case TypeBoolean:
		if _, err := fixedSize(t, b, 1, offset); err != nil {
			return 0, err
		}
		if b[0] > 1 {
			return 0, formatErr(offset, "invalid boolean byte 0x%02x", b[0])
		}
		return 1, nil
	case TypeNull, TypeUndefined, TypeMinKey, TypeMaxKey:
		return 0, nil
	case TypeString, TypeJavaScript, TypeSymbol:
		return stringSize(b, offset)
	case TypeDocument, TypeArray:
		if len(b) < 4 {
			return 0, formatErr(offset, "truncated %s length", t)
		}
		n := readInt32(b)
		if n < minDocumentSize || n > len(b) {
			return 0, formatErr(offset, "%s length %d out of range", t, n)
		}
		if err := validateDocument(b[:n], offset, depth+1); err != nil {
			return 0, err
		}
		return n, nil
	case TypeBinary:
		if len(b) < 5 {
			return 0, formatErr(offset, "truncated binary header")
		}
		n := readInt32(b)
		if n < 0 || 5+n > len(b) {
			return 0, formatErr(offset, "binary length %d out of range", n)
		}
		return 5 + n, nil
	case TypeRegex:
		i := bytes.IndexByte(b, 0)
		if i < 0 {
			return 0, formatErr(offset, "unterminated regex pattern")
		}
		j := bytes.IndexByte(b[i+1:], 0)
		if j < 0 {
			return 0, formatErr(offset+i+1, "unterminated regex options")
		}
		if !utf8.Valid(b[:i]) || !utf8.Valid(b[i+1:i+1+j]) {
			return 0, formatErr(offset, "regex is not valid UTF-8")
		}
		return i + 1 + j + 1, nil
	case TypeDBPointer:
		n, err := stringSize(b, offset)
		if err != nil {
			return 0, err
		}
		if n+12 > len(b) {
			return 0, formatErr(offset+n, "truncated dbPointer id")
		}
		return n + 12, nil
	case TypeCodeWithScope:
		if len(b) < 4 {
			return 0, formatErr(offset, "truncated code with scope length")
		}
		total := readInt32(b)
		if total < 4+5+minDocumentSize || total > len(b) {
			return 0, formatErr(offset, "code with scope length %d out of range", total)
		}
		n, err := stringSize(b[4:total], offset+4)
		if err != nil {
			return 0, err
		}
		if err := validateDocument(b[4+n:total], offset+4+n, depth+1); err != nil {
			return 0, err
		}
		return total, nil
	}
	return 0, formatErr(offset, "unknown element type 0x%02x", byte(t))
}

func fixedSize(t Type, b []byte, n, offset int) (int, error) {
	if len(b) < n {
		return 0, formatErr(offset, "truncated %s: need %d bytes, have %d", t, n, len(b))
	}
	return n, nil
}

func stringSize(b []byte, offset int) (int, error) {
	if len(b) < 4 {
		return 0, formatErr(offset, "truncated string length")
	}
	n := readInt32(b)
	if n < 1 || 4+n > len(b) {
		return 0, formatErr(offset, "string length %d out of range", n)
	}
	if b[4+n-1] != 0 {
		return 0, formatErr(offset+4+n-1, "string is not NUL-terminated")
	}
	if !utf8.Valid(b[4 : 4+n-1]) {
		return 0, formatErr(offset+4, "string is not valid UTF-8")
	}
	return 4 + n, nil
}
