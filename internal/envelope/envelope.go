// Package envelope extracts values from raw JSON response bodies without
// decoding the whole document. Paths are dotted property names such as
// "__metadata.etag".
package envelope

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/buger/jsonparser"
)

// ErrNotArray is returned by Items when the path holds something other than an array.
var ErrNotArray = errors.New("envelope: value is not an array")

// Unwrap returns the payload stored under key. The original body is returned
// when key is empty, the body is not an object or the key is absent. A payload
// that is a JSON-encoded string holding a document is decoded once more.
func Unwrap(body []byte, key string) []byte {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil
	}
	if key == "" {
		return append([]byte(nil), trimmed...)
	}

	value, typ, _, err := jsonparser.Get(trimmed, key)
	if err != nil || typ == jsonparser.NotExist {
		return append([]byte(nil), trimmed...)
	}
	if typ == jsonparser.String {
		if inner, ok := decodeEmbedded(value); ok {
			return inner
		}
		return quote(value)
	}
	return append([]byte(nil), value...)
}

func decodeEmbedded(raw []byte) ([]byte, bool) {
	s, err := jsonparser.ParseString(raw)
	if err != nil {
		return nil, false
	}
	for i := 0; i < 4; i++ {
		unquoted, err := strconv.Unquote(s)
		if err != nil {
			break
		}
		s = unquoted
	}
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") && !strings.HasPrefix(s, "[") {
		return nil, false
	}
	var inner json.RawMessage
	if err := json.Unmarshal([]byte(s), &inner); err != nil {
		return nil, false
	}
	return inner, true
}

// LookupString returns the string at path. Non-string values are rendered as
// their raw JSON text.
func LookupString(body []byte, path string) (string, bool) {
	value, typ, _, err := jsonparser.Get(body, splitPath(path)...)
	if err != nil || typ == jsonparser.NotExist || typ == jsonparser.Null {
		return "", false
	}
	if typ == jsonparser.String {
		s, err := jsonparser.ParseString(value)
		if err != nil {
			return "", false
		}
		return s, true
	}
	return string(value), true
}

// Items returns the elements of the array stored at path.
func Items(body []byte, path string) ([]json.RawMessage, error) {
	keys := splitPath(path)
	_, typ, _, err := jsonparser.Get(body, keys...)
	if err != nil {
		return nil, err
	}
	if typ != jsonparser.Array {
		return nil, ErrNotArray
	}

	items := make([]json.RawMessage, 0)
	var itemErr error
	_, err = jsonparser.ArrayEach(body, func(value []byte, dataType jsonparser.ValueType, _ int, err error) {
		if err != nil {
			itemErr = err
			return
		}
		if dataType == jsonparser.String {
			items = append(items, quote(value))
			return
		}
		items = append(items, append(json.RawMessage(nil), value...))
	}, keys...)
	if err != nil {
		return nil, err
	}
	if itemErr != nil {
		return nil, itemErr
	}
	return items, nil
}

// Total returns the integer stored at path, or -1 when it is missing or not
// an integer. Numeric strings are accepted.
func Total(body []byte, path string) int {
	s, ok := LookupString(body, path)
	if !ok {
		return -1
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return -1
	}
	return n
}

func splitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

func quote(raw []byte) []byte {
	out := make([]byte, 0, len(raw)+2)
	out = append(out, '"')
	out = append(out, raw...)
	return append(out, '"')
}
