package envelope_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ratio1/odata_sdk_go/internal/envelope"
)

func TestUnwrap(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		key      string
		expected string
	}{
		{name: "object under d", body: `{"d":{"id":"1"}}`, key: "d", expected: `{"id":"1"}`},
		{name: "feed under d", body: `{"d":{"results":[],"__count":"0"}}`, key: "d", expected: `{"results":[],"__count":"0"}`},
		{name: "missing key falls back", body: `{"id":"1"}`, key: "d", expected: `{"id":"1"}`},
		{name: "no envelope", body: `{"$resources":[]}`, key: "", expected: `{"$resources":[]}`},
		{name: "double-encoded object", body: `{"d":"{\"count\":1}"}`, key: "d", expected: `{"count":1}`},
		{name: "plain string", body: `{"d":"hello"}`, key: "d", expected: `"hello"`},
		{name: "array body", body: `[1,2]`, key: "d", expected: `[1,2]`},
		{name: "empty body", body: ``, key: "d", expected: ``},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got := envelope.Unwrap([]byte(tc.body), tc.key)
			if string(got) != tc.expected {
				t.Fatalf("Unwrap mismatch: expected %q, got %q", tc.expected, string(got))
			}
		})
	}
}

func TestLookup(t *testing.T) {
	body := []byte(`{"id":"A1","__metadata":{"etag":"W/\"1\"","type":"Account"},"n":3}`)

	s, ok := envelope.LookupString(body, "__metadata.etag")
	require.True(t, ok)
	assert.Equal(t, `W/"1"`, s)

	s, ok = envelope.LookupString(body, "n")
	require.True(t, ok)
	assert.Equal(t, "3", s)

	s, ok = envelope.LookupString(body, "id")
	require.True(t, ok)
	assert.Equal(t, "A1", s)

	_, ok = envelope.LookupString(body, "__metadata.missing")
	assert.False(t, ok)
}

func TestItems(t *testing.T) {
	body := []byte(`{"results":[{"id":"1"},{"id":"2"}],"names":["a","b"],"x":1}`)

	items, err := envelope.Items(body, "results")
	require.NoError(t, err)
	require.Len(t, items, 2)
	var first map[string]any
	require.NoError(t, json.Unmarshal(items[0], &first))
	assert.Equal(t, "1", first["id"])

	names, err := envelope.Items(body, "names")
	require.NoError(t, err)
	assert.Equal(t, []json.RawMessage{json.RawMessage(`"a"`), json.RawMessage(`"b"`)}, names)

	_, err = envelope.Items(body, "x")
	assert.ErrorIs(t, err, envelope.ErrNotArray)

	_, err = envelope.Items(body, "missing")
	assert.Error(t, err)
}

func TestTotal(t *testing.T) {
	assert.Equal(t, 5, envelope.Total([]byte(`{"__count":5}`), "__count"))
	assert.Equal(t, 7, envelope.Total([]byte(`{"__count":"7"}`), "__count"))
	assert.Equal(t, -1, envelope.Total([]byte(`{"__count":"many"}`), "__count"))
	assert.Equal(t, -1, envelope.Total([]byte(`{}`), "$totalResults"))
}
