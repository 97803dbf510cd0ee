package bson

import (
	"bytes"
	"encoding/binary"
	"math"
)

// Value is the encoded payload of one element together with its type tag.
// Data is a sub-slice of the document buffer.
//
// Accessors assume the matching Type: calling Int32 on a string value, for
// example, returns garbage or panics. Check Type before calling them.
type Value struct {
	Type Type
	Data []byte
}

// Double returns a TypeDouble value.
func (v Value) Double() float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(v.Data))
}

// Int32 returns a TypeInt32 value.
func (v Value) Int32() int32 { return int32(binary.LittleEndian.Uint32(v.Data)) }

// Int64 returns a TypeInt64 value.
func (v Value) Int64() int64 { return int64(binary.LittleEndian.Uint64(v.Data)) }

// Boolean returns a TypeBoolean value.
func (v Value) Boolean() bool { return v.Data[0] == 1 }

// DateTime returns a TypeDateTime value as milliseconds since the Unix epoch, UTC.
func (v Value) DateTime() int64 { return int64(binary.LittleEndian.Uint64(v.Data)) }

// StringValue returns a TypeString, TypeJavaScript or TypeSymbol value.
func (v Value) StringValue() string {
	n := readInt32(v.Data)
	return string(v.Data[4 : 4+n-1])
}

// Document returns a TypeDocument value as a Reader sharing the parent buffer.
func (v Value) Document() Reader { return Reader{data: v.Data} }

// Array returns a TypeArray value as a Reader sharing the parent buffer.
func (v Value) Array() Reader { return Reader{data: v.Data} }

// Binary returns the subtype and payload of a TypeBinary value.
func (v Value) Binary() (subtype byte, data []byte) {
	n := readInt32(v.Data)
	return v.Data[4], v.Data[5 : 5+n]
}

// Decimal128 returns a TypeDecimal128 value.
func (v Value) Decimal128() Decimal128 {
	return Decimal128{
		Low:  binary.LittleEndian.Uint64(v.Data[0:8]),
		High: binary.LittleEndian.Uint64(v.Data[8:16]),
	}
}

// ObjectID returns a TypeObjectID value.
func (v Value) ObjectID() ObjectID {
	var id ObjectID
	copy(id[:], v.Data)
	return id
}

// Timestamp returns the seconds and increment of a TypeTimestamp value.
func (v Value) Timestamp() (t, i uint32) {
	return binary.LittleEndian.Uint32(v.Data[4:8]), binary.LittleEndian.Uint32(v.Data[0:4])
}

// Regex returns the pattern and options of a TypeRegex value.
func (v Value) Regex() (pattern, options string) {
	i := bytes.IndexByte(v.Data, 0)
	j := bytes.IndexByte(v.Data[i+1:], 0)
	return string(v.Data[:i]), string(v.Data[i+1 : i+1+j])
}

// DBPointer returns the namespace and id of a TypeDBPointer value.
func (v Value) DBPointer() (ns string, id ObjectID) {
	n := readInt32(v.Data)
	copy(id[:], v.Data[4+n:])
	return string(v.Data[4 : 4+n-1]), id
}

// CodeWithScope returns the code and scope document of a TypeCodeWithScope value.
func (v Value) CodeWithScope() (code string, scope Reader) {
	n := readInt32(v.Data[4:])
	return string(v.Data[8 : 8+n-1]), Reader{data: v.Data[8+n:]}
}
