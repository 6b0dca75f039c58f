package dialect

import (
	"strconv"

	"github.com/Ratio1/odata_sdk_go/pkg/uri"
)

// SData is the predicate-resource dialect. Feeds carry $resources and
// $totalResults at the top level and paging is one-based.
type SData struct{}

var _ Dialect = SData{}

func (SData) Name() string { return "sdata" }

func (SData) Keys() QueryKeys {
	return QueryKeys{
		Select:  "select",
		Include: "include",
		OrderBy: "orderBy",
		Where:   "where",
		Count:   "count",
		Start:   "startIndex",
	}
}

func (SData) Fields() Fields {
	return Fields{
		Items:    "$resources",
		Total:    "$totalResults",
		Identity: "$key",
		Entity:   "$name",
		Version:  "$etag",
		ETag:     []string{"$etag"},
	}
}

func (SData) StartIndex(start int) string { return strconv.Itoa(start + 1) }

// Selector renders '<id>' unless id is already an expression.
func (SData) Selector(id string) string {
	if id == "" || IsRawPredicate(id) {
		return id
	}
	return "'" + id + "'"
}

func (d SData) Stamp(entry map[string]any, id, entity, version string) {
	f := d.Fields()
	if id != "" {
		entry[f.Identity] = id
	}
	if entity != "" {
		entry[f.Entity] = entity
	}
	if version != "" {
		entry[f.Version] = version
	}
}

func (SData) NewAddress(raw string) uri.Address { return uri.ParseSData(raw) }
