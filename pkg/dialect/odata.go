package dialect

import (
	"strconv"

	"github.com/Ratio1/odata_sdk_go/pkg/uri"
)

// OData is the $-prefixed query dialect with a "d" response envelope.
type OData struct{}

var _ Dialect = OData{}

func (OData) Name() string { return "odata" }

func (OData) Keys() QueryKeys {
	return QueryKeys{
		Select:           "$select",
		Include:          "$expand",
		OrderBy:          "$orderby",
		Where:            "$filter",
		Count:            "$top",
		Start:            "$skip",
		InlineCount:      "$inlinecount",
		InlineCountValue: "allpages",
	}
}

func (OData) Fields() Fields {
	return Fields{
		Envelope: "d",
		Items:    "results",
		Total:    "__count",
		Identity: "id",
		Entity:   "__metadata.type",
		Version:  "__metadata.etag",
		ETag:     []string{"etag", "__metadata.etag"},
	}
}

func (OData) StartIndex(start int) string { return strconv.Itoa(start) }

// Selector renders id=<id> unless id is already an expression.
func (OData) Selector(id string) string {
	if id == "" || IsRawPredicate(id) {
		return id
	}
	return "id=" + id
}

func (d OData) Stamp(entry map[string]any, id, entity, version string) {
	f := d.Fields()
	if id != "" {
		SetPath(entry, f.Identity, id)
	}
	if entity != "" {
		SetPath(entry, f.Entity, entity)
	}
	if version != "" {
		SetPath(entry, f.Version, version)
	}
}

func (OData) NewAddress(raw string) uri.Address { return uri.Parse(raw) }
