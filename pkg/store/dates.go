package store

import (
	"time"

	"github.com/Ratio1/odata_sdk_go/pkg/convert"
)

// HandleDateConversion replaces wire date strings on entry with time.Time
// values. Only top-level properties are scanned.
func (s *Store) HandleDateConversion(entry Entry) Entry {
	for k, v := range entry {
		str, ok := v.(string)
		if !ok || !convert.IsDateString(str) {
			continue
		}
		if t, err := convert.ToDateFromString(str); err == nil {
			entry[k] = t
		}
	}
	return entry
}

// HandleDateSerialization replaces time.Time values on entry with their wire
// form: /Date(ms)/ for JSON connections, ISO-8601 otherwise.
func (s *Store) HandleDateSerialization(entry Entry) Entry {
	asJSON := s.cfg.Connection.JSON()
	for k, v := range entry {
		var t time.Time
		switch d := v.(type) {
		case time.Time:
			t = d
		case *time.Time:
			if d == nil {
				continue
			}
			t = *d
		default:
			continue
		}
		if asJSON {
			entry[k] = convert.ToJSONStringFromDate(t)
		} else {
			entry[k] = convert.ToISOStringFromDate(t)
		}
	}
	return entry
}
