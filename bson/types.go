package bson

import "fmt"

// Type is the element type tag stored in front of every BSON element.
type Type byte

const (
	TypeDouble        Type = 0x01
	TypeString        Type = 0x02
	TypeDocument      Type = 0x03
	TypeArray         Type = 0x04
	TypeBinary        Type = 0x05
	TypeUndefined     Type = 0x06
	TypeObjectID      Type = 0x07
	TypeBoolean       Type = 0x08
	TypeDateTime      Type = 0x09
	TypeNull          Type = 0x0A
	TypeRegex         Type = 0x0B
	TypeDBPointer     Type = 0x0C
	TypeJavaScript    Type = 0x0D
	TypeSymbol        Type = 0x0E
	TypeCodeWithScope Type = 0x0F
	TypeInt32         Type = 0x10
	TypeTimestamp     Type = 0x11
	TypeInt64         Type = 0x12
	TypeDecimal128    Type = 0x13
	TypeMinKey        Type = 0xFF
	TypeMaxKey        Type = 0x7F
)

// Binary subtypes with a defined meaning.
const (
	BinaryGeneric     byte = 0x00
	BinaryFunction    byte = 0x01
	BinaryBinaryOld   byte = 0x02
	BinaryUUIDOld     byte = 0x03
	BinaryUUID        byte = 0x04
	BinaryMD5         byte = 0x05
	BinaryEncrypted   byte = 0x06
	BinaryUserDefined byte = 0x80
)

// IsContainer reports whether values of t are themselves documents.
func (t Type) IsContainer() bool {
	return t == TypeDocument || t == TypeArray
}

// Valid reports whether t is a tag this package can read.
func (t Type) Valid() bool {
	switch t {
	case TypeDouble, TypeString, TypeDocument, TypeArray, TypeBinary, TypeUndefined,
		TypeObjectID, TypeBoolean, TypeDateTime, TypeNull, TypeRegex, TypeDBPointer,
		TypeJavaScript, TypeSymbol, TypeCodeWithScope, TypeInt32, TypeTimestamp,
		TypeInt64, TypeDecimal128, TypeMinKey, TypeMaxKey:
		return true
	}
	return false
}

// String returns the type name used by bson_type and error messages.
func (t Type) String() string {
	switch t {
	case TypeDouble:
		return "double"
	case TypeString:
		return "string"
	case TypeDocument:
		return "document"
	case TypeArray:
		return "array"
	case TypeBinary:
		return "binary"
	case TypeUndefined:
		return "undefined"
	case TypeObjectID:
		return "objectId"
	case TypeBoolean:
		return "bool"
	case TypeDateTime:
		return "date"
	case TypeNull:
		return "null"
	case TypeRegex:
		return "regex"
	case TypeDBPointer:
		return "dbPointer"
	case TypeJavaScript:
		return "javascript"
	case TypeSymbol:
		return "symbol"
	case TypeCodeWithScope:
		return "javascriptWithScope"
	case TypeInt32:
		return "int32"
	case TypeTimestamp:
		return "timestamp"
	case TypeInt64:
		return "int64"
	case TypeDecimal128:
		return "decimal"
	case TypeMinKey:
		return "minKey"
	case TypeMaxKey:
		return "maxKey"
	default:
		return fmt.Sprintf("unknown(0x%02x)", byte(t))
	}
}
