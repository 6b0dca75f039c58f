// Package convert translates the date encodings found on OData and SData
// wires. JSON payloads carry dates as /Date(milliseconds[+-hhmm])/ and Atom or
// SData payloads use ISO-8601 strings.
package convert

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/go-openapi/strfmt"
)

var (
	jsonDatePattern = regexp.MustCompile(`^/Date\((-?\d+)([+-]\d{4})?\)/$`)
	offsetPattern   = regexp.MustCompile(`^[+-]\d{4}$`)
)

// IsDateString reports whether s holds a wire date in either encoding.
func IsDateString(s string) bool {
	return jsonDatePattern.MatchString(s) || strfmt.IsDateTime(s)
}

// ToDateFromString parses a wire date. The /Date()/ form yields a time in the
// encoded offset, or UTC when none is present.
func ToDateFromString(s string) (time.Time, error) {
	if m := jsonDatePattern.FindStringSubmatch(s); m != nil {
		ms, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("convert: parse %q: %w", s, err)
		}
		t := time.UnixMilli(ms).UTC()
		if m[2] != "" {
			t = t.In(offsetZone(m[2]))
		}
		return t, nil
	}
	dt, err := strfmt.ParseDateTime(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("convert: parse %q: %w", s, err)
	}
	return time.Time(dt), nil
}

// ToJSONStringFromDate renders t as /Date(milliseconds)/. A time read from a
// /Date(ms+hhmm)/ value keeps its offset suffix.
func ToJSONStringFromDate(t time.Time) string {
	suffix := ""
	if name := t.Location().String(); offsetPattern.MatchString(name) {
		suffix = name
	}
	return "/Date(" + strconv.FormatInt(t.UnixMilli(), 10) + suffix + ")/"
}

// ToISOStringFromDate renders t in UTC as RFC 3339 with only the fractional
// digits that are needed.
func ToISOStringFromDate(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func offsetZone(s string) *time.Location {
	hours, _ := strconv.Atoi(s[1:3])
	minutes, _ := strconv.Atoi(s[3:5])
	secs := hours*3600 + minutes*60
	if s[0] == '-' {
		secs = -secs
	}
	return time.FixedZone(s, secs)
}
