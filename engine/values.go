package engine

import (
	"database/sql/driver"
	"strconv"

	"github.com/viant/sqlite-bson/bson"
	"github.com/viant/sqlite-bson/bson/extjson"
)

// sqlValue maps a document value to the closest SQLite storage class.
// Decimals, dates, binaries and object ids have no SQLite equivalent and
// come back as TEXT; containers and the remaining types come back as relaxed
// Extended JSON.
func sqlValue(v bson.Value, hex bson.HexStyle) driver.Value {
	switch v.Type {
	case bson.TypeNull:
		return nil
	case bson.TypeInt32:
		return int64(v.Int32())
	case bson.TypeInt64:
		return v.Int64()
	case bson.TypeBoolean:
		if v.Boolean() {
			return int64(1)
		}
		return int64(0)
	case bson.TypeDouble:
		return v.Double()
	case bson.TypeString:
		return v.StringValue()
	case bson.TypeDecimal128:
		return v.Decimal128().String()
	case bson.TypeDateTime:
		return bson.FormatDateTime(v.DateTime())
	case bson.TypeBinary:
		_, data := v.Binary()
		return bson.FormatHex(data, hex)
	case bson.TypeObjectID:
		return v.ObjectID().Hex()
	}
	return string(extjson.AppendValue(nil, v, extjson.Relaxed))
}

// textValue is sqlValue with every non-NULL result as TEXT and binaries in
// the escaped \x form.
func textValue(v bson.Value) driver.Value {
	switch x := sqlValue(v, bson.HexEscaped).(type) {
	case int64:
		if v.Type == bson.TypeBoolean {
			return strconv.FormatBool(x == 1)
		}
		return strconv.FormatInt(x, 10)
	case float64:
		return string(extjson.AppendValue(nil, v, extjson.Relaxed))
	default:
		return x
	}
}
