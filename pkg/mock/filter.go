package mock

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Ratio1/odata_sdk_go/pkg/dialect"
)

// ErrUnsupportedFilter is returned for where clauses the mock cannot evaluate.
var ErrUnsupportedFilter = errors.New("mock: unsupported filter")

var (
	andSplit = regexp.MustCompile(`(?i)\s+and\s+`)
	clauseRE = regexp.MustCompile(`(?i)^([\w.$]+)\s*(eq|ne|gt|ge|lt|le|like|!=|=)\s*(.+)$`)
)

type clause struct {
	field string
	op    string
	value any
}

// condition is a conjunction of clauses. The empty condition matches everything.
type condition []clause

// parseWhere understands conjunctions of "field op value" clauses, where op
// is one of eq ne gt ge lt le like = != and value is a quoted string, a
// number, true, false or null. Parentheses around clauses are ignored.
func parseWhere(where string) (condition, error) {
	where = strings.TrimSpace(where)
	if where == "" {
		return nil, nil
	}
	var cond condition
	for _, part := range andSplit.Split(where, -1) {
		part = strings.TrimSpace(strings.Trim(strings.TrimSpace(part), "()"))
		if part == "" {
			continue
		}
		m := clauseRE.FindStringSubmatch(part)
		if m == nil {
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedFilter, part)
		}
		cond = append(cond, clause{field: m[1], op: strings.ToLower(m[2]), value: parseLiteral(m[3])})
	}
	return cond, nil
}

func parseLiteral(raw string) any {
	raw = strings.TrimSpace(raw)
	if len(raw) >= 2 && (raw[0] == '\'' || raw[0] == '"') && raw[len(raw)-1] == raw[0] {
		return strings.ReplaceAll(raw[1:len(raw)-1], "''", "'")
	}
	switch strings.ToLower(raw) {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	}
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return n
	}
	return raw
}

func (c condition) match(r Resource) bool {
	for _, cl := range c {
		if !cl.match(r) {
			return false
		}
	}
	return true
}

func (c clause) match(r Resource) bool {
	v, _ := dialect.GetPath(r, c.field)
	switch c.op {
	case "eq", "=":
		return compareValues(v, c.value) == 0
	case "ne", "!=":
		return compareValues(v, c.value) != 0
	case "gt":
		return v != nil && compareValues(v, c.value) > 0
	case "ge":
		return v != nil && compareValues(v, c.value) >= 0
	case "lt":
		return v != nil && compareValues(v, c.value) < 0
	case "le":
		return v != nil && compareValues(v, c.value) <= 0
	case "like":
		s, ok := v.(string)
		pattern, pok := c.value.(string)
		return ok && pok && likeRegexp(pattern).MatchString(s)
	}
	return false
}

func likeRegexp(pattern string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString("(?is)^")
	for _, part := range strings.Split(pattern, "%") {
		b.WriteString(regexp.QuoteMeta(part))
		b.WriteString(".*")
	}
	expr := strings.TrimSuffix(b.String(), ".*") + "$"
	return regexp.MustCompile(expr)
}

type sortKey struct {
	field string
	desc  bool
}

type ordering []sortKey

func parseOrderBy(fields []string) (ordering, error) {
	var out ordering
	for _, f := range fields {
		parts := strings.Fields(f)
		switch len(parts) {
		case 0:
			continue
		case 1:
			out = append(out, sortKey{field: parts[0]})
		case 2:
			dir := strings.ToLower(parts[1])
			if dir != "asc" && dir != "desc" {
				return nil, fmt.Errorf("mock: invalid sort direction %q", parts[1])
			}
			out = append(out, sortKey{field: parts[0], desc: dir == "desc"})
		default:
			return nil, fmt.Errorf("mock: invalid sort %q", f)
		}
	}
	return out, nil
}

func (o ordering) compare(a, b Resource) int {
	for _, k := range o {
		va, _ := dialect.GetPath(a, k.field)
		vb, _ := dialect.GetPath(b, k.field)
		c := compareValues(va, vb)
		if k.desc {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return 0
}

// compareValues orders nil first, then numbers numerically, then everything
// else by its string form. Numeric strings compare equal to the number they spell.
func compareValues(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			default:
				return 0
			}
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
