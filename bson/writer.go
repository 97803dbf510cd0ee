package bson

import (
	"encoding/binary"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Writer builds one BSON document. Open scopes (the root plus any documents
// or arrays started with BeginDocument/BeginArray) are kept on a stack; each
// scope reserves its length prefix when opened and patches it when closed.
//
// Inside an array scope the key argument is ignored and replaced by the next
// index. The first misuse (a key containing NUL, End without a matching
// Begin, writing after Finish) is kept and returned by Finish, and later
// calls become no-ops. A Writer is not safe for concurrent use.
type Writer struct {
	buf    []byte
	scopes []scope
	err    error
	done   bool
}

type scope struct {
	start int
	array bool
	next  int
}

// NewWriter returns a Writer with the root document open.
func NewWriter() *Writer {
	w := &Writer{buf: make([]byte, 0, 256)}
	w.open(false)
	return w
}

func (w *Writer) open(array bool) {
	w.scopes = append(w.scopes, scope{start: len(w.buf), array: array})
	w.buf = append(w.buf, 0, 0, 0, 0)
}

func (w *Writer) fail(key, reason string) {
	if w.err == nil {
		w.err = &WriterError{Key: key, Reason: reason}
	}
}

// header appends the type tag and key of the next element.
func (w *Writer) header(t Type, key string) bool {
	if w.err != nil {
		return false
	}
	if w.done {
		w.fail(key, "write after Finish")
		return false
	}
	top := &w.scopes[len(w.scopes)-1]
	if top.array {
		key = strconv.Itoa(top.next)
	} else if strings.IndexByte(key, 0) >= 0 {
		w.fail(key, "key contains NUL byte")
		return false
	} else if !utf8.ValidString(key) {
		w.fail(key, "key is not valid UTF-8")
		return false
	}
	top.next++
	w.buf = append(w.buf, byte(t))
	w.buf = append(w.buf, key...)
	w.buf = append(w.buf, 0)
	return true
}

func (w *Writer) appendString(key, s string) bool {
	if !utf8.ValidString(s) {
		w.fail(key, "value is not valid UTF-8")
		return false
	}
	w.buf = binary.LittleEndian.AppendUint32(w.buf, uint32(len(s)+1))
	w.buf = append(w.buf, s...)
	w.buf = append(w.buf, 0)
	return true
}

func (w *Writer) appendCString(key, s string) bool {
	if strings.IndexByte(s, 0) >= 0 {
		w.fail(key, "value contains NUL byte")
		return false
	}
	if !utf8.ValidString(s) {
		w.fail(key, "value is not valid UTF-8")
		return false
	}
	w.buf = append(w.buf, s...)
	w.buf = append(w.buf, 0)
	return true
}

// AppendDouble appends a double.
func (w *Writer) AppendDouble(key string, v float64) {
	if w.header(TypeDouble, key) {
		w.buf = binary.LittleEndian.AppendUint64(w.buf, math.Float64bits(v))
	}
}

// AppendString appends a UTF-8 string.
func (w *Writer) AppendString(key, v string) {
	if w.header(TypeString, key) {
		w.appendString(key, v)
	}
}

// AppendInt32 appends a 32-bit integer.
func (w *Writer) AppendInt32(key string, v int32) {
	if w.header(TypeInt32, key) {
		w.buf = binary.LittleEndian.AppendUint32(w.buf, uint32(v))
	}
}

// AppendInt64 appends a 64-bit integer.
func (w *Writer) AppendInt64(key string, v int64) {
	if w.header(TypeInt64, key) {
		w.buf = binary.LittleEndian.AppendUint64(w.buf, uint64(v))
	}
}

// AppendBoolean appends a boolean.
func (w *Writer) AppendBoolean(key string, v bool) {
	if w.header(TypeBoolean, key) {
		var b byte
		if v {
			b = 1
		}
		w.buf = append(w.buf, b)
	}
}

// AppendNull appends a null.
func (w *Writer) AppendNull(key string) { w.header(TypeNull, key) }

// AppendUndefined appends the deprecated undefined value.
func (w *Writer) AppendUndefined(key string) { w.header(TypeUndefined, key) }

// AppendMinKey appends a min key.
func (w *Writer) AppendMinKey(key string) { w.header(TypeMinKey, key) }

// AppendMaxKey appends a max key.
func (w *Writer) AppendMaxKey(key string) { w.header(TypeMaxKey, key) }

// AppendDateTime appends a UTC date-time given in milliseconds since the epoch.
func (w *Writer) AppendDateTime(key string, ms int64) {
	if w.header(TypeDateTime, key) {
		w.buf = binary.LittleEndian.AppendUint64(w.buf, uint64(ms))
	}
}

// AppendDecimal128 appends a 128-bit decimal.
func (w *Writer) AppendDecimal128(key string, d Decimal128) {
	if w.header(TypeDecimal128, key) {
		w.buf = binary.LittleEndian.AppendUint64(w.buf, d.Low)
		w.buf = binary.LittleEndian.AppendUint64(w.buf, d.High)
	}
}

// AppendBinary appends a binary payload with the given subtype.
func (w *Writer) AppendBinary(key string, subtype byte, data []byte) {
	if w.header(TypeBinary, key) {
		w.buf = binary.LittleEndian.AppendUint32(w.buf, uint32(len(data)))
		w.buf = append(w.buf, subtype)
		w.buf = append(w.buf, data...)
	}
}

// AppendObjectID appends an ObjectID.
func (w *Writer) AppendObjectID(key string, id ObjectID) {
	if w.header(TypeObjectID, key) {
		w.buf = append(w.buf, id[:]...)
	}
}

// AppendTimestamp appends an internal replication timestamp.
func (w *Writer) AppendTimestamp(key string, t, i uint32) {
	if w.header(TypeTimestamp, key) {
		w.buf = binary.LittleEndian.AppendUint32(w.buf, i)
		w.buf = binary.LittleEndian.AppendUint32(w.buf, t)
	}
}

// AppendRegex appends a regular expression. Neither part may contain NUL.
func (w *Writer) AppendRegex(key, pattern, options string) {
	if w.header(TypeRegex, key) && w.appendCString(key, pattern) {
		w.appendCString(key, options)
	}
}

// AppendDBPointer appends a deprecated DBPointer.
func (w *Writer) AppendDBPointer(key, ns string, id ObjectID) {
	if w.header(TypeDBPointer, key) {
		if w.appendString(key, ns) {
			w.buf = append(w.buf, id[:]...)
		}
	}
}

// AppendJavaScript appends JavaScript code.
func (w *Writer) AppendJavaScript(key, code string) {
	if w.header(TypeJavaScript, key) {
		w.appendString(key, code)
	}
}

// AppendSymbol appends a deprecated symbol.
func (w *Writer) AppendSymbol(key, symbol string) {
	if w.header(TypeSymbol, key) {
		w.appendString(key, symbol)
	}
}

// AppendCodeWithScope appends JavaScript code with its scope document.
func (w *Writer) AppendCodeWithScope(key, code string, scope Reader) {
	if w.checkDocument(key, scope) && w.header(TypeCodeWithScope, key) {
		total := 4 + 4 + len(code) + 1 + scope.Len()
		w.buf = binary.LittleEndian.AppendUint32(w.buf, uint32(total))
		if w.appendString(key, code) {
			w.buf = append(w.buf, scope.Bytes()...)
		}
	}
}

// checkDocument rejects the zero Reader, which has no bytes to embed.
func (w *Writer) checkDocument(key string, r Reader) bool {
	if r.Len() < minDocumentSize {
		w.fail(key, "embedded document is empty")
		return false
	}
	return true
}

// AppendDocument copies an existing document in as an embedded document.
func (w *Writer) AppendDocument(key string, doc Reader) {
	if w.checkDocument(key, doc) && w.header(TypeDocument, key) {
		w.buf = append(w.buf, doc.Bytes()...)
	}
}

// AppendArray copies an existing array in as an embedded array.
func (w *Writer) AppendArray(key string, arr Reader) {
	if w.checkDocument(key, arr) && w.header(TypeArray, key) {
		w.buf = append(w.buf, arr.Bytes()...)
	}
}

// AppendValue copies a value read from another document.
func (w *Writer) AppendValue(key string, v Value) {
	if !v.Type.Valid() {
		w.fail(key, "unknown value type "+v.Type.String())
		return
	}
	if w.header(v.Type, key) {
		w.buf = append(w.buf, v.Data...)
	}
}

// BeginDocument opens an embedded document; close it with End.
func (w *Writer) BeginDocument(key string) {
	if w.header(TypeDocument, key) {
		w.open(false)
	}
}

// BeginArray opens an embedded array; close it with End.
func (w *Writer) BeginArray(key string) {
	if w.header(TypeArray, key) {
		w.open(true)
	}
}

// End closes the innermost document or array opened with Begin*.
func (w *Writer) End() {
	if w.err != nil {
		return
	}
	if w.done || len(w.scopes) < 2 {
		w.fail("", "End without matching Begin")
		return
	}
	w.close()
}

func (w *Writer) close() {
	top := w.scopes[len(w.scopes)-1]
	w.scopes = w.scopes[:len(w.scopes)-1]
	w.buf = append(w.buf, 0)
	size := len(w.buf) - top.start
	if size > math.MaxInt32 {
		w.fail("", "document exceeds 2GiB")
		return
	}
	binary.LittleEndian.PutUint32(w.buf[top.start:], uint32(size))
}

// Depth returns the number of open scopes, counting the root.
func (w *Writer) Depth() int { return len(w.scopes) }

// Finish closes the root document and hands the buffer to the caller. It
// fails if a nested scope is still open or any earlier call failed; on
// failure no bytes are returned.
func (w *Writer) Finish() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	if w.done {
		return nil, &WriterError{Reason: "Finish called twice"}
	}
	if len(w.scopes) != 1 {
		return nil, &WriterError{Reason: strconv.Itoa(len(w.scopes)-1) + " unclosed scope(s)"}
	}
	w.close()
	if w.err != nil {
		return nil, w.err
	}
	w.done = true
	out := w.buf
	w.buf = nil
	return out, nil
}
