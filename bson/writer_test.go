package bson

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	mbson "go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestWriter_MatchesMongoDriver(t *testing.T) {
	dec, err := primitive.ParseDecimal128("10.09")
	require.NoError(t, err)
	expected, err := mbson.Marshal(mbson.D{
		{Key: "hdr", Value: mbson.D{
			{Key: "id", Value: "A0"},
			{Key: "ts", Value: primitive.DateTime(1673529255678)},
			{Key: "bigint", Value: int64(743859238573)},
		}},
		{Key: "amt", Value: dec},
		{Key: "A", Value: mbson.D{
			{Key: "B", Value: mbson.A{
				int32(7),
				mbson.D{{Key: "X", Value: "QQ"}, {Key: "Y", Value: mbson.A{"ee", "ff"}}},
				3.14159,
			}},
		}},
		{Key: "thumbnail", Value: primitive.Binary{Subtype: 0, Data: []byte("Pretend this is a JPEG")}},
		{Key: "flag", Value: false},
		{Key: "nothing", Value: nil},
	})
	require.NoError(t, err)

	amt, err := ParseDecimal128("10.09")
	require.NoError(t, err)
	w := NewWriter()
	w.BeginDocument("hdr")
	w.AppendString("id", "A0")
	w.AppendDateTime("ts", 1673529255678)
	w.AppendInt64("bigint", 743859238573)
	w.End()
	w.AppendDecimal128("amt", amt)
	w.BeginDocument("A")
	w.BeginArray("B")
	w.AppendInt32("ignored", 7)
	w.BeginDocument("")
	w.AppendString("X", "QQ")
	w.BeginArray("Y")
	w.AppendString("", "ee")
	w.AppendString("", "ff")
	w.End()
	w.End()
	w.AppendDouble("", 3.14159)
	w.End()
	w.End()
	w.AppendBinary("thumbnail", BinaryGeneric, []byte("Pretend this is a JPEG"))
	w.AppendBoolean("flag", false)
	w.AppendNull("nothing")
	actual, err := w.Finish()
	require.NoError(t, err)

	assert.Equal(t, expected, actual)
}

func TestWriter_ExtendedTypesReadableByMongoDriver(t *testing.T) {
	id, err := ParseObjectID("5f1a2b3c4d5e6f7081920a1b")
	require.NoError(t, err)
	w := NewWriter()
	w.AppendObjectID("_id", id)
	w.AppendTimestamp("ts", 100, 2)
	w.AppendRegex("re", "^a", "i")
	w.AppendMinKey("min")
	raw, err := w.Finish()
	require.NoError(t, err)

	require.NoError(t, mbson.Raw(raw).Validate())
	var out mbson.D
	require.NoError(t, mbson.Unmarshal(raw, &out))
	require.Len(t, out, 4)
	assert.Equal(t, primitive.ObjectID(id), out[0].Value)
	assert.Equal(t, primitive.Timestamp{T: 100, I: 2}, out[1].Value)
	assert.Equal(t, primitive.Regex{Pattern: "^a", Options: "i"}, out[2].Value)
	assert.Equal(t, primitive.MinKey{}, out[3].Value)
}

func TestWriter_EmptyDocument(t *testing.T) {
	raw, err := NewWriter().Finish()
	require.NoError(t, err)
	assert.Equal(t, []byte{5, 0, 0, 0, 0}, raw)
}

func TestWriter_ArrayKeys(t *testing.T) {
	w := NewWriter()
	w.BeginArray("list")
	for i := 0; i < 12; i++ {
		w.AppendInt32("x", int32(i))
	}
	w.End()
	raw, err := w.Finish()
	require.NoError(t, err)
	r, err := Open(raw)
	require.NoError(t, err)
	list, ok := r.Lookup("list")
	require.True(t, ok)
	var keys []string
	for e := range list.Value().Array().All() {
		keys = append(keys, e.Key())
	}
	assert.Equal(t, []string{"0", "1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11"}, keys)
}

func TestWriter_AppendCopies(t *testing.T) {
	src := sampleDocument(t)
	a, ok := src.Lookup("A")
	require.True(t, ok)

	w := NewWriter()
	w.AppendDocument("copy", a.Value().Document())
	w.AppendValue("again", a.Value())
	raw, err := w.Finish()
	require.NoError(t, err)
	r, err := Open(raw)
	require.NoError(t, err)
	e, ok := FindDescendant(r, "again.B.1.Y.1")
	require.True(t, ok)
	assert.Equal(t, "ff", e.Value().StringValue())
}

func TestWriter_Errors(t *testing.T) {
	t.Run("NUL in key", func(t *testing.T) {
		w := NewWriter()
		w.AppendInt32("a\x00b", 1)
		w.AppendInt32("ok", 2)
		raw, err := w.Finish()
		assert.Nil(t, raw)
		var we *WriterError
		require.ErrorAs(t, err, &we)
		assert.Equal(t, "a\x00b", we.Key)
	})
	t.Run("invalid UTF-8", func(t *testing.T) {
		for _, build := range []func(w *Writer){
			func(w *Writer) { w.AppendString("bad", "\xff\xfe") },
			func(w *Writer) { w.AppendSymbol("bad", "\xc3") },
			func(w *Writer) { w.AppendRegex("bad", "a", "\xff") },
			func(w *Writer) { w.AppendNull("\xffbad") },
		} {
			w := NewWriter()
			build(w)
			w.AppendInt32("ok", 1)
			raw, err := w.Finish()
			assert.Nil(t, raw)
			var we *WriterError
			require.ErrorAs(t, err, &we)
			assert.Contains(t, we.Reason, "UTF-8")
		}
	})
	t.Run("NUL in regex", func(t *testing.T) {
		w := NewWriter()
		w.AppendRegex("re", "a\x00", "")
		_, err := w.Finish()
		require.Error(t, err)
	})
	t.Run("unbalanced End", func(t *testing.T) {
		w := NewWriter()
		w.End()
		_, err := w.Finish()
		require.Error(t, err)
	})
	t.Run("unclosed scope", func(t *testing.T) {
		w := NewWriter()
		w.BeginArray("a")
		assert.Equal(t, 2, w.Depth())
		_, err := w.Finish()
		require.Error(t, err)
	})
	t.Run("finish twice", func(t *testing.T) {
		w := NewWriter()
		_, err := w.Finish()
		require.NoError(t, err)
		_, err = w.Finish()
		require.Error(t, err)
	})
	t.Run("empty embedded document", func(t *testing.T) {
		w := NewWriter()
		w.AppendDocument("d", Reader{})
		_, err := w.Finish()
		require.Error(t, err)
	})
}
