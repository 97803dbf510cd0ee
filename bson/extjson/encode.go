package extjson

import (
	"encoding/base64"
	"math"
	"strconv"

	gojson "github.com/goccy/go-json"
	"github.com/viant/sqlite-bson/bson"
)

// Mode selects the Extended JSON flavour.
type Mode int

const (
	// Relaxed renders numbers as plain JSON numbers and dates as ISO-8601
	// strings where that loses no information.
	Relaxed Mode = iota
	// Canonical wraps every number and date so the exact BSON type is kept.
	Canonical
)

func (m Mode) String() string {
	if m == Canonical {
		return "canonical"
	}
	return "relaxed"
}

// maxRelaxedDate is 9999-12-31T23:59:59.999Z; later or pre-epoch dates use
// the canonical form even in relaxed mode.
const maxRelaxedDate = 253402300799999

// ToText renders doc as Extended JSON.
func ToText(doc bson.Reader, mode Mode) string {
	return string(Append(nil, doc, mode))
}

// Append renders doc as Extended JSON and appends it to dst.
func Append(dst []byte, doc bson.Reader, mode Mode) []byte {
	return appendDocument(dst, doc, mode, false)
}

// AppendValue renders a single value and appends it to dst.
func AppendValue(dst []byte, v bson.Value, mode Mode) []byte {
	switch v.Type {
	case bson.TypeDouble:
		return appendDouble(dst, v.Double(), mode)
	case bson.TypeString:
		return appendString(dst, v.StringValue())
	case bson.TypeDocument:
		return appendDocument(dst, v.Document(), mode, false)
	case bson.TypeArray:
		return appendDocument(dst, v.Array(), mode, true)
	case bson.TypeBinary:
		subtype, data := v.Binary()
		dst = append(dst, `{"$binary":{"base64":"`...)
		dst = base64.StdEncoding.AppendEncode(dst, data)
		dst = append(dst, `","subType":"`...)
		dst = appendHexByte(dst, subtype)
		return append(dst, `"}}`...)
	case bson.TypeUndefined:
		return append(dst, `{"$undefined":true}`...)
	case bson.TypeObjectID:
		dst = append(dst, `{"$oid":"`...)
		dst = append(dst, v.ObjectID().Hex()...)
		return append(dst, `"}`...)
	case bson.TypeBoolean:
		return strconv.AppendBool(dst, v.Boolean())
	case bson.TypeDateTime:
		ms := v.DateTime()
		if mode == Relaxed && ms >= 0 && ms <= maxRelaxedDate {
			dst = append(dst, `{"$date":"`...)
			dst = append(dst, bson.FormatDateTime(ms)...)
			return append(dst, `"}`...)
		}
		dst = append(dst, `{"$date":{"$numberLong":"`...)
		dst = strconv.AppendInt(dst, ms, 10)
		return append(dst, `"}}`...)
	case bson.TypeNull:
		return append(dst, "null"...)
	case bson.TypeRegex:
		pattern, options := v.Regex()
		dst = append(dst, `{"$regularExpression":{"pattern":`...)
		dst = appendString(dst, pattern)
		dst = append(dst, `,"options":`...)
		dst = appendString(dst, options)
		return append(dst, "}}"...)
	case bson.TypeDBPointer:
		ns, id := v.DBPointer()
		dst = append(dst, `{"$dbPointer":{"$ref":`...)
		dst = appendString(dst, ns)
		dst = append(dst, `,"$id":{"$oid":"`...)
		dst = append(dst, id.Hex()...)
		return append(dst, `"}}}`...)
	case bson.TypeJavaScript:
		dst = append(dst, `{"$code":`...)
		dst = appendString(dst, v.StringValue())
		return append(dst, '}')
	case bson.TypeSymbol:
		dst = append(dst, `{"$symbol":`...)
		dst = appendString(dst, v.StringValue())
		return append(dst, '}')
	case bson.TypeCodeWithScope:
		code, scope := v.CodeWithScope()
		dst = append(dst, `{"$code":`...)
		dst = appendString(dst, code)
		dst = append(dst, `,"$scope":`...)
		dst = appendDocument(dst, scope, mode, false)
		return append(dst, '}')
	case bson.TypeInt32:
		if mode == Canonical {
			dst = append(dst, `{"$numberInt":"`...)
			dst = strconv.AppendInt(dst, int64(v.Int32()), 10)
			return append(dst, `"}`...)
		}
		return strconv.AppendInt(dst, int64(v.Int32()), 10)
	case bson.TypeTimestamp:
		t, i := v.Timestamp()
		dst = append(dst, `{"$timestamp":{"t":`...)
		dst = strconv.AppendUint(dst, uint64(t), 10)
		dst = append(dst, `,"i":`...)
		dst = strconv.AppendUint(dst, uint64(i), 10)
		return append(dst, "}}"...)
	case bson.TypeInt64:
		if mode == Canonical {
			dst = append(dst, `{"$numberLong":"`...)
			dst = strconv.AppendInt(dst, v.Int64(), 10)
			return append(dst, `"}`...)
		}
		return strconv.AppendInt(dst, v.Int64(), 10)
	case bson.TypeDecimal128:
		dst = append(dst, `{"$numberDecimal":"`...)
		dst = append(dst, v.Decimal128().String()...)
		return append(dst, `"}`...)
	case bson.TypeMinKey:
		return append(dst, `{"$minKey":1}`...)
	case bson.TypeMaxKey:
		return append(dst, `{"$maxKey":1}`...)
	}
	return append(dst, "null"...)
}

func appendDocument(dst []byte, doc bson.Reader, mode Mode, array bool) []byte {
	open, closing := byte('{'), byte('}')
	if array {
		open, closing = '[', ']'
	}
	dst = append(dst, open)
	first := true
	for e := range doc.All() {
		if !first {
			dst = append(dst, ',')
		}
		first = false
		if !array {
			dst = appendString(dst, e.Key())
			dst = append(dst, ':')
		}
		dst = AppendValue(dst, e.Value(), mode)
	}
	return append(dst, closing)
}

func appendString(dst []byte, s string) []byte {
	// marshaling a string cannot fail
	b, _ := gojson.MarshalNoEscape(s)
	return append(dst, b...)
}

func appendDouble(dst []byte, f float64, mode Mode) []byte {
	switch {
	case math.IsNaN(f):
		return append(dst, `{"$numberDouble":"NaN"}`...)
	case math.IsInf(f, 1):
		return append(dst, `{"$numberDouble":"Infinity"}`...)
	case math.IsInf(f, -1):
		return append(dst, `{"$numberDouble":"-Infinity"}`...)
	}
	if mode == Canonical {
		dst = append(dst, `{"$numberDouble":"`...)
		dst = appendFloat(dst, f)
		return append(dst, `"}`...)
	}
	return appendFloat(dst, f)
}

// appendFloat writes the shortest representation that still reads back as a
// double: it always contains a decimal point or an exponent.
func appendFloat(dst []byte, f float64) []byte {
	format := byte('f')
	if abs := math.Abs(f); abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		format = 'e'
	}
	start := len(dst)
	dst = strconv.AppendFloat(dst, f, format, -1, 64)
	for _, c := range dst[start:] {
		if c == '.' || c == 'e' {
			return dst
		}
	}
	return append(dst, ".0"...)
}

func appendHexByte(dst []byte, b byte) []byte {
	const digits = "0123456789abcdef"
	return append(dst, digits[b>>4], digits[b&0x0f])
}
