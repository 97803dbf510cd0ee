package extjson

import (
	"encoding/base64"
	"encoding/hex"
	"math"
	"strconv"
	"strings"

	"github.com/viant/sqlite-bson/bson"
)

func writeMembers(w *bson.Writer, n *node, path string) error {
	for _, m := range n.members {
		if err := writeValue(w, m.key, m.value, joinPath(path, m.key)); err != nil {
			return err
		}
	}
	return nil
}

func writeValue(w *bson.Writer, key string, n *node, path string) error {
	switch n.kind {
	case nodeObject:
		if ok, err := writeWrapper(w, key, n, path); ok || err != nil {
			return err
		}
		w.BeginDocument(key)
		if err := writeMembers(w, n, path); err != nil {
			return err
		}
		w.End()
	case nodeArray:
		w.BeginArray(key)
		for i, item := range n.items {
			if err := writeValue(w, "", item, joinPath(path, strconv.Itoa(i))); err != nil {
				return err
			}
		}
		w.End()
	case nodeString:
		w.AppendString(key, n.text)
	case nodeNumber:
		return writeNumber(w, key, n.text, path)
	case nodeBool:
		w.AppendBoolean(key, n.boolean)
	case nodeNull:
		w.AppendNull(key)
	}
	return nil
}

func writeNumber(w *bson.Writer, key, literal, path string) error {
	if !strings.ContainsAny(literal, ".eE") {
		if i, err := strconv.ParseInt(literal, 10, 64); err == nil {
			if i >= math.MinInt32 && i <= math.MaxInt32 {
				w.AppendInt32(key, int32(i))
			} else {
				w.AppendInt64(key, i)
			}
			return nil
		}
	}
	f, err := strconv.ParseFloat(literal, 64)
	if err != nil {
		return parseErr(path, err, "number %s out of range", literal)
	}
	w.AppendDouble(key, f)
	return nil
}

// writeWrapper handles objects whose first key names an Extended JSON type.
// Objects starting with any other key, including unknown $-keys, are plain
// documents.
func writeWrapper(w *bson.Writer, key string, n *node, path string) (bool, error) {
	if len(n.members) == 0 || !strings.HasPrefix(n.members[0].key, "$") {
		return false, nil
	}
	name := n.members[0].key
	payload := n.members[0].value
	switch name {
	case "$numberInt", "$numberLong", "$numberDouble", "$numberDecimal",
		"$oid", "$symbol", "$timestamp", "$regularExpression", "$dbPointer",
		"$minKey", "$maxKey", "$undefined", "$date":
		if len(n.members) != 1 {
			return true, parseErr(path, nil, "%s wrapper takes exactly one key", name)
		}
	case "$binary", "$code":
	default:
		return false, nil
	}
	switch name {
	case "$numberInt":
		s, err := stringPayload(name, payload, path)
		if err != nil {
			return true, err
		}
		v, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return true, parseErr(path, err, "invalid $numberInt %q", s)
		}
		w.AppendInt32(key, int32(v))
	case "$numberLong":
		s, err := stringPayload(name, payload, path)
		if err != nil {
			return true, err
		}
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return true, parseErr(path, err, "invalid $numberLong %q", s)
		}
		w.AppendInt64(key, v)
	case "$numberDouble":
		s, err := stringPayload(name, payload, path)
		if err != nil {
			return true, err
		}
		v, err := parseDouble(s)
		if err != nil {
			return true, parseErr(path, err, "invalid $numberDouble %q", s)
		}
		w.AppendDouble(key, v)
	case "$numberDecimal":
		s, err := stringPayload(name, payload, path)
		if err != nil {
			return true, err
		}
		d, err := bson.ParseDecimal128(s)
		if err != nil {
			return true, parseErr(path, err, "invalid $numberDecimal %q", s)
		}
		w.AppendDecimal128(key, d)
	case "$date":
		ms, err := datePayload(payload, path)
		if err != nil {
			return true, err
		}
		w.AppendDateTime(key, ms)
	case "$binary":
		return true, writeBinary(w, key, n, path)
	case "$oid":
		s, err := stringPayload(name, payload, path)
		if err != nil {
			return true, err
		}
		id, err := bson.ParseObjectID(s)
		if err != nil {
			return true, parseErr(path, err, "invalid $oid %q", s)
		}
		w.AppendObjectID(key, id)
	case "$symbol":
		s, err := stringPayload(name, payload, path)
		if err != nil {
			return true, err
		}
		w.AppendSymbol(key, s)
	case "$timestamp":
		fields, err := objectPayload(name, payload, path, "t", "i")
		if err != nil {
			return true, err
		}
		t, err := uint32Field(fields["t"], path, "t")
		if err != nil {
			return true, err
		}
		i, err := uint32Field(fields["i"], path, "i")
		if err != nil {
			return true, err
		}
		w.AppendTimestamp(key, t, i)
	case "$regularExpression":
		fields, err := objectPayload(name, payload, path, "pattern", "options")
		if err != nil {
			return true, err
		}
		pattern, err := stringPayload("pattern", fields["pattern"], path)
		if err != nil {
			return true, err
		}
		options, err := stringPayload("options", fields["options"], path)
		if err != nil {
			return true, err
		}
		w.AppendRegex(key, pattern, options)
	case "$dbPointer":
		fields, err := objectPayload(name, payload, path, "$ref", "$id")
		if err != nil {
			return true, err
		}
		ns, err := stringPayload("$ref", fields["$ref"], path)
		if err != nil {
			return true, err
		}
		idFields, err := objectPayload("$id", fields["$id"], path, "$oid")
		if err != nil {
			return true, err
		}
		s, err := stringPayload("$oid", idFields["$oid"], path)
		if err != nil {
			return true, err
		}
		id, err := bson.ParseObjectID(s)
		if err != nil {
			return true, parseErr(path, err, "invalid $dbPointer id %q", s)
		}
		w.AppendDBPointer(key, ns, id)
	case "$minKey", "$maxKey":
		if payload.kind != nodeNumber || payload.text != "1" {
			return true, parseErr(path, nil, "%s payload must be 1", name)
		}
		if name == "$minKey" {
			w.AppendMinKey(key)
		} else {
			w.AppendMaxKey(key)
		}
	case "$undefined":
		if payload.kind != nodeBool || !payload.boolean {
			return true, parseErr(path, nil, "$undefined payload must be true")
		}
		w.AppendUndefined(key)
	case "$code":
		return true, writeCode(w, key, n, path)
	}
	return true, nil
}

func stringPayload(name string, n *node, path string) (string, error) {
	if n == nil || n.kind != nodeString {
		return "", parseErr(path, nil, "%s payload must be a string", name)
	}
	return n.text, nil
}

// objectPayload requires n to be an object holding exactly the named keys,
// in any order.
func objectPayload(name string, n *node, path string, keys ...string) (map[string]*node, error) {
	if n == nil || n.kind != nodeObject {
		return nil, parseErr(path, nil, "%s payload must be an object", name)
	}
	if len(n.members) != len(keys) {
		return nil, parseErr(path, nil, "%s payload must have keys %s", name, strings.Join(keys, ", "))
	}
	fields := make(map[string]*node, len(keys))
	for _, m := range n.members {
		fields[m.key] = m.value
	}
	for _, k := range keys {
		if _, ok := fields[k]; !ok {
			return nil, parseErr(path, nil, "%s payload is missing %q", name, k)
		}
	}
	return fields, nil
}

func uint32Field(n *node, path, name string) (uint32, error) {
	if n.kind != nodeNumber {
		return 0, parseErr(path, nil, "$timestamp %s must be a number", name)
	}
	v, err := strconv.ParseUint(n.text, 10, 32)
	if err != nil {
		return 0, parseErr(path, err, "invalid $timestamp %s %q", name, n.text)
	}
	return uint32(v), nil
}

func parseDouble(s string) (float64, error) {
	switch s {
	case "Infinity":
		return math.Inf(1), nil
	case "-Infinity":
		return math.Inf(-1), nil
	case "NaN":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

// datePayload accepts {"$date":"<ISO-8601>"}, {"$date":{"$numberLong":"<ms>"}}
// and the legacy {"$date":<ms>}.
func datePayload(n *node, path string) (int64, error) {
	switch n.kind {
	case nodeString:
		ms, err := bson.ParseDateTime(n.text)
		if err != nil {
			return 0, parseErr(path, err, "invalid $date %q", n.text)
		}
		return ms, nil
	case nodeObject:
		fields, err := objectPayload("$date", n, path, "$numberLong")
		if err != nil {
			return 0, err
		}
		s, err := stringPayload("$numberLong", fields["$numberLong"], path)
		if err != nil {
			return 0, err
		}
		ms, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, parseErr(path, err, "invalid $date $numberLong %q", s)
		}
		return ms, nil
	case nodeNumber:
		ms, err := strconv.ParseInt(n.text, 10, 64)
		if err != nil {
			return 0, parseErr(path, err, "invalid $date %s", n.text)
		}
		return ms, nil
	}
	return 0, parseErr(path, nil, "$date payload must be a string, number or $numberLong object")
}

// writeBinary accepts {"$binary":{"base64":..,"subType":..}} and the legacy
// {"$binary":"<base64>","$type":"<hex>"}.
func writeBinary(w *bson.Writer, key string, n *node, path string) error {
	var encoded, subtype string
	payload := n.members[0].value
	switch {
	case payload.kind == nodeObject && len(n.members) == 1:
		fields, err := objectPayload("$binary", payload, path, "base64", "subType")
		if err != nil {
			return err
		}
		if encoded, err = stringPayload("base64", fields["base64"], path); err != nil {
			return err
		}
		if subtype, err = stringPayload("subType", fields["subType"], path); err != nil {
			return err
		}
	case payload.kind == nodeString && len(n.members) == 2 && n.members[1].key == "$type":
		encoded = payload.text
		var err error
		if subtype, err = stringPayload("$type", n.members[1].value, path); err != nil {
			return err
		}
	default:
		return parseErr(path, nil, "malformed $binary wrapper")
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return parseErr(path, err, "invalid $binary base64")
	}
	if len(subtype) == 1 {
		subtype = "0" + subtype
	}
	st, err := hex.DecodeString(subtype)
	if err != nil || len(st) != 1 {
		return parseErr(path, err, "invalid $binary subType %q", subtype)
	}
	w.AppendBinary(key, st[0], data)
	return nil
}

// writeCode handles {"$code":..} and {"$code":..,"$scope":{..}}.
func writeCode(w *bson.Writer, key string, n *node, path string) error {
	code, err := stringPayload("$code", n.members[0].value, path)
	if err != nil {
		return err
	}
	switch {
	case len(n.members) == 1:
		w.AppendJavaScript(key, code)
		return nil
	case len(n.members) == 2 && n.members[1].key == "$scope":
		scope := n.members[1].value
		if scope.kind != nodeObject {
			return parseErr(path, nil, "$scope payload must be an object")
		}
		sw := bson.NewWriter()
		if err := writeMembers(sw, scope, joinPath(path, "$scope")); err != nil {
			return err
		}
		raw, err := sw.Finish()
		if err != nil {
			return parseErr(joinPath(path, "$scope"), err, "invalid scope")
		}
		doc, err := bson.Open(raw)
		if err != nil {
			return parseErr(joinPath(path, "$scope"), err, "invalid scope")
		}
		w.AppendCodeWithScope(key, code, doc)
		return nil
	}
	return parseErr(path, nil, "malformed $code wrapper")
}
