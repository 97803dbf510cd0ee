package extjson

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/sqlite-bson/bson"
	mbson "go.mongodb.org/mongo-driver/bson"
)

func open(t *testing.T, raw []byte) bson.Reader {
	t.Helper()
	doc, err := bson.Open(raw)
	require.NoError(t, err)
	return doc
}

func fromText(t *testing.T, text string) bson.Reader {
	t.Helper()
	raw, err := FromText(text)
	require.NoError(t, err, text)
	return open(t, raw)
}

// extendedDocument carries one value of every type except code with scope.
func extendedDocument(t *testing.T) []byte {
	t.Helper()
	dec, err := bson.ParseDecimal128("10.09")
	require.NoError(t, err)
	id, err := bson.ParseObjectID("5f1a2b3c4d5e6f7081920a1b")
	require.NoError(t, err)

	w := bson.NewWriter()
	w.AppendDouble("double", 2.5)
	w.AppendDouble("whole", 3)
	w.AppendString("string", "tab\there \"quoted\" é")
	w.BeginDocument("doc")
	w.AppendBoolean("t", true)
	w.AppendNull("n")
	w.End()
	w.BeginArray("arr")
	w.AppendInt32("", 1)
	w.AppendString("", "two")
	w.End()
	w.AppendBinary("bin", bson.BinaryGeneric, []byte{0x01, 0x02, 0xff})
	w.AppendUndefined("undef")
	w.AppendObjectID("oid", id)
	w.AppendDateTime("date", 1673529255678)
	w.AppendRegex("re", "^a.*b$", "i")
	w.AppendDBPointer("ptr", "db.coll", id)
	w.AppendJavaScript("js", "function() { return 1; }")
	w.AppendSymbol("sym", "S")
	w.AppendInt32("i32", -7)
	w.AppendTimestamp("ts", 1700000000, 3)
	w.AppendInt64("i64", 3000000000)
	w.AppendDecimal128("dec", dec)
	w.AppendMinKey("min")
	w.AppendMaxKey("max")
	raw, err := w.Finish()
	require.NoError(t, err)
	return raw
}

func TestToText_Relaxed(t *testing.T) {
	doc := fromText(t, `{"a":1,"b":"x","c":[1,2.5],"d":{"e":true,"f":null}}`)
	assert.Equal(t, `{"a":1,"b":"x","c":[1,2.5],"d":{"e":true,"f":null}}`, ToText(doc, Relaxed))
	assert.Equal(t,
		`{"a":{"$numberInt":"1"},"b":"x","c":[{"$numberInt":"1"},{"$numberDouble":"2.5"}],"d":{"e":true,"f":null}}`,
		ToText(doc, Canonical))
}

func TestToText_ExtendedTypes(t *testing.T) {
	doc := open(t, extendedDocument(t))
	want := `{"double":2.5,"whole":3.0,"string":"tab\there \"quoted\" é",` +
		`"doc":{"t":true,"n":null},"arr":[1,"two"],` +
		`"bin":{"$binary":{"base64":"AQL/","subType":"00"}},` +
		`"undef":{"$undefined":true},` +
		`"oid":{"$oid":"5f1a2b3c4d5e6f7081920a1b"},` +
		`"date":{"$date":"2023-01-12T13:14:15.678Z"},` +
		`"re":{"$regularExpression":{"pattern":"^a.*b$","options":"i"}},` +
		`"ptr":{"$dbPointer":{"$ref":"db.coll","$id":{"$oid":"5f1a2b3c4d5e6f7081920a1b"}}},` +
		`"js":{"$code":"function() { return 1; }"},` +
		`"sym":{"$symbol":"S"},` +
		`"i32":-7,` +
		`"ts":{"$timestamp":{"t":1700000000,"i":3}},` +
		`"i64":3000000000,` +
		`"dec":{"$numberDecimal":"10.09"},` +
		`"min":{"$minKey":1},"max":{"$maxKey":1}}`
	assert.Equal(t, want, ToText(doc, Relaxed))
}

func TestRoundTrip_BytesPreserved(t *testing.T) {
	raw := extendedDocument(t)
	doc := open(t, raw)
	for _, mode := range []Mode{Relaxed, Canonical} {
		back, err := FromText(ToText(doc, mode))
		require.NoError(t, err, mode.String())
		assert.Equal(t, raw, back, mode.String())
	}
}

func TestCanonical_MatchesMongoDriver(t *testing.T) {
	raw := extendedDocument(t)
	text := ToText(open(t, raw), Canonical)

	var d mbson.D
	require.NoError(t, mbson.UnmarshalExtJSON([]byte(text), true, &d))
	expected, err := mbson.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, expected, raw)
}

func TestFromText_Decimal(t *testing.T) {
	doc := fromText(t, `{"amt":{"$numberDecimal":"10.09"}}`)
	e, ok := doc.Lookup("amt")
	require.True(t, ok)
	require.Equal(t, bson.TypeDecimal128, e.Type())
	assert.Equal(t, "10.09", e.Value().Decimal128().String())
	assert.Equal(t, `{"amt":{"$numberDecimal":"10.09"}}`, ToText(doc, Relaxed))
}

func TestFromText_Dates(t *testing.T) {
	tests := []struct {
		in        string
		ms        int64
		relaxed   string
		canonical string
	}{
		{
			in:        `{"d":{"$date":"2023-01-12T13:14:15.678Z"}}`,
			ms:        1673529255678,
			relaxed:   `{"d":{"$date":"2023-01-12T13:14:15.678Z"}}`,
			canonical: `{"d":{"$date":{"$numberLong":"1673529255678"}}}`,
		},
		{
			in:        `{"d":{"$date":{"$numberLong":"-1000"}}}`,
			ms:        -1000,
			relaxed:   `{"d":{"$date":{"$numberLong":"-1000"}}}`,
			canonical: `{"d":{"$date":{"$numberLong":"-1000"}}}`,
		},
		{
			in:        `{"d":{"$date":1000}}`,
			ms:        1000,
			relaxed:   `{"d":{"$date":"1970-01-01T00:00:01.000Z"}}`,
			canonical: `{"d":{"$date":{"$numberLong":"1000"}}}`,
		},
	}
	for _, tt := range tests {
		doc := fromText(t, tt.in)
		e, ok := doc.Lookup("d")
		require.True(t, ok)
		require.Equal(t, bson.TypeDateTime, e.Type())
		assert.Equal(t, tt.ms, e.Value().DateTime())
		assert.Equal(t, tt.relaxed, ToText(doc, Relaxed))
		assert.Equal(t, tt.canonical, ToText(doc, Canonical))
	}
}

func TestFromText_Numbers(t *testing.T) {
	doc := fromText(t, `{"a":1,"b":3000000000,"c":1.0,"d":1e3,"e":-2147483648,"f":9223372036854775808}`)
	want := []bson.Type{bson.TypeInt32, bson.TypeInt64, bson.TypeDouble, bson.TypeDouble, bson.TypeInt32, bson.TypeDouble}
	var got []bson.Type
	for e := range doc.All() {
		got = append(got, e.Type())
	}
	assert.Equal(t, want, got)
	assert.Equal(t, `{"a":1,"b":3000000000,"c":1.0,"d":1000.0,"e":-2147483648,"f":9223372036854776000.0}`, ToText(doc, Relaxed))
}

func TestFromText_NonFiniteDoubles(t *testing.T) {
	text := `{"n":{"$numberDouble":"NaN"},"p":{"$numberDouble":"Infinity"},"m":{"$numberDouble":"-Infinity"}}`
	doc := fromText(t, text)
	e, _ := doc.Lookup("n")
	assert.True(t, math.IsNaN(e.Value().Double()))
	e, _ = doc.Lookup("m")
	assert.True(t, math.IsInf(e.Value().Double(), -1))
	assert.Equal(t, text, ToText(doc, Relaxed))
}

func TestFromText_LegacyBinary(t *testing.T) {
	doc := fromText(t, `{"b":{"$binary":"AQI=","$type":"80"}}`)
	e, ok := doc.Lookup("b")
	require.True(t, ok)
	subtype, data := e.Value().Binary()
	assert.Equal(t, byte(0x80), subtype)
	assert.Equal(t, []byte{1, 2}, data)
	assert.Equal(t, `{"b":{"$binary":{"base64":"AQI=","subType":"80"}}}`, ToText(doc, Relaxed))
}

func TestFromText_CodeWithScope(t *testing.T) {
	text := `{"f":{"$code":"return x;","$scope":{"x":1}}}`
	doc := fromText(t, text)
	e, ok := doc.Lookup("f")
	require.True(t, ok)
	require.Equal(t, bson.TypeCodeWithScope, e.Type())
	code, scope := e.Value().CodeWithScope()
	assert.Equal(t, "return x;", code)
	x, ok := scope.Lookup("x")
	require.True(t, ok)
	assert.Equal(t, int32(1), x.Value().Int32())
	assert.Equal(t, text, ToText(doc, Relaxed))
}

func TestFromText_UnknownDollarKeyIsField(t *testing.T) {
	doc := fromText(t, `{"q":{"$gt":5,"$lt":9}}`)
	e, ok := bson.FindDescendant(doc, "q.$gt")
	require.True(t, ok)
	assert.Equal(t, int32(5), e.Value().Int32())
	assert.Equal(t, `{"q":{"$gt":5,"$lt":9}}`, ToText(doc, Relaxed))
}

func TestFromText_KeyOrderPreserved(t *testing.T) {
	ab, err := FromText(`{"A":1,"B":4}`)
	require.NoError(t, err)
	ba, err := FromText(`{"B":4,"A":1}`)
	require.NoError(t, err)
	assert.NotEqual(t, ab, ba)
	assert.Equal(t, `{"B":4,"A":1}`, ToText(open(t, ba), Relaxed))
}

func TestFromText_DuplicateKeysKept(t *testing.T) {
	doc := fromText(t, `{"k":1,"k":2}`)
	e, ok := doc.Lookup("k")
	require.True(t, ok)
	assert.Equal(t, int32(1), e.Value().Int32())
	assert.Equal(t, `{"k":1,"k":2}`, ToText(doc, Relaxed))
}

func TestFromText_EmptyDocument(t *testing.T) {
	raw, err := FromText(` { } `)
	require.NoError(t, err)
	assert.Equal(t, []byte{5, 0, 0, 0, 0}, raw)
}

func TestFromText_Errors(t *testing.T) {
	for _, text := range []string{
		``,
		`{"a":`,
		`{"a":"\q"}`,
		`{"a" 1}`,
		`[1,2]`,
		`"str"`,
		`42`,
		`{"a":1} {"b":2}`,
		`{"a":{"$numberLong":7}}`,
		`{"a":{"$numberInt":"abc"}}`,
		`{"a":{"$numberInt":"3000000000"}}`,
		`{"a":{"$numberLong":"1","x":2}}`,
		`{"a":{"$numberDecimal":"ten"}}`,
		`{"a":{"$oid":"xyz"}}`,
		`{"a":{"$date":true}}`,
		`{"a":{"$date":"yesterday"}}`,
		`{"a":{"$binary":{"base64":"!!","subType":"00"}}}`,
		`{"a":{"$binary":{"base64":"AQI="}}}`,
		`{"a":{"$timestamp":{"t":-1,"i":0}}}`,
		`{"a":{"$minKey":2}}`,
		`{"a":{"$undefined":false}}`,
		`{"a":{"$code":"x","$scope":5}}`,
		`{"a\u0000b":1}`,
		strings.Repeat(`{"a":`, 250) + "1" + strings.Repeat("}", 250),
	} {
		_, err := FromText(text)
		require.Error(t, err, text)
		assert.ErrorIs(t, err, ErrParse, text)
	}
}

func TestFromText_ErrorPath(t *testing.T) {
	_, err := FromText(`{"a":{"b":[1,{"$numberInt":"x"}]}}`)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "a.b.1", pe.Path)
}

func TestText_Idempotent(t *testing.T) {
	for _, text := range []string{
		`{"a":1,"b":[true,null,{"c":"d"}],"e":2.0}`,
		`{"d":{"$date":"2023-01-12T13:14:15.678Z"},"n":{"$numberLong":"5"}}`,
		`{"x":0.000001,"y":1e21,"z":-0.0}`,
	} {
		first := ToText(fromText(t, text), Relaxed)
		second := ToText(fromText(t, first), Relaxed)
		assert.Equal(t, first, second, text)
	}
}
