package bson

import "strings"

// FindDescendant resolves a dotted path such as "A.B.1.X" below doc.
//
// Segments are applied left to right. Inside an array, an all-digit segment
// selects the element at that position; every other segment is an exact key
// match and the first matching element wins. Reaching a scalar with segments
// left, or missing any segment, returns false. An empty segment (from "a..b"
// or a leading/trailing dot) looks up the empty key. Resolving the document
// itself for an empty path is the caller's concern.
func FindDescendant(doc Reader, path string) (Element, bool) {
	current := doc
	inArray := false
	for {
		segment, rest, more := strings.Cut(path, ".")
		var (
			elem  Element
			found bool
		)
		if idx, ok := arrayIndex(segment); inArray && ok {
			elem, found = current.Index(idx)
		} else {
			elem, found = current.Lookup(segment)
		}
		if !found {
			return Element{}, false
		}
		if !more {
			return elem, true
		}
		switch elem.Type() {
		case TypeDocument:
			current, inArray = elem.Value().Document(), false
		case TypeArray:
			current, inArray = elem.Value().Array(), true
		default:
			return Element{}, false
		}
		path = rest
	}
}

// arrayIndex parses a non-negative base-10 index with no sign or other
// characters. Values too large for int are rejected.
func arrayIndex(s string) (int, bool) {
	if s == "" || len(s) > 18 {
		return 0, false
	}
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}
