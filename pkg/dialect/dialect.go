// Package dialect captures the vocabulary that differs between the OData and
// SData resource protocols: query option names, envelope and feed field names,
// how an instance selector is written and which properties carry identity,
// entity name and version. Connections and stores depend on the Dialect
// interface only.
package dialect

import (
	"regexp"

	"github.com/Ratio1/odata_sdk_go/pkg/uri"
)

// QueryKeys names the query options a dialect uses.
type QueryKeys struct {
	Select  string
	Include string
	OrderBy string
	Where   string
	Count   string
	Start   string

	// InlineCount and InlineCountValue request a total with each feed page.
	// Both are empty when the service always reports totals.
	InlineCount      string
	InlineCountValue string
}

// Fields names the payload properties a dialect uses. Nested properties are
// written as dotted paths.
type Fields struct {
	Envelope string
	Items    string
	Total    string
	Identity string
	Entity   string
	Version  string
	// ETag lists the properties consulted, in order, for the concurrency token.
	ETag []string
}

// Dialect is one resource protocol flavour.
type Dialect interface {
	Name() string
	Keys() QueryKeys
	Fields() Fields
	// StartIndex renders a zero-based offset as the wire paging value.
	StartIndex(start int) string
	// Selector renders id as an instance predicate.
	Selector(id string) string
	// Stamp writes identity, entity name and version markers onto an outgoing entry.
	Stamp(entry map[string]any, id, entity, version string)
	// NewAddress parses raw into the address type of this dialect.
	NewAddress(raw string) uri.Address
}

var whitespace = regexp.MustCompile(`\s`)

// IsRawPredicate reports whether id is already a predicate expression and must
// not be wrapped.
func IsRawPredicate(id string) bool {
	return whitespace.MatchString(id)
}

// ByName returns the dialect registered under name ("odata" or "sdata").
func ByName(name string) (Dialect, bool) {
	switch name {
	case "", "odata":
		return OData{}, true
	case "sdata":
		return SData{}, true
	default:
		return nil, false
	}
}
