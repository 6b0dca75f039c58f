package dialect

import "strings"

// GetPath reads a dotted property path from a decoded entry.
func GetPath(entry map[string]any, path string) (any, bool) {
	if entry == nil || path == "" {
		return nil, false
	}
	parts := strings.Split(path, ".")
	var cur any = entry
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// GetPathString reads a dotted path and returns it when it holds a non-empty string.
func GetPathString(entry map[string]any, path string) string {
	v, ok := GetPath(entry, path)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// SetPath writes value at a dotted path, creating intermediate objects.
func SetPath(entry map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	cur := entry
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[p] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = value
}

// ETag returns the first non-empty concurrency token found on entry.
func ETag(d Dialect, entry map[string]any) string {
	for _, p := range d.Fields().ETag {
		if s := GetPathString(entry, p); s != "" {
			return s
		}
	}
	return ""
}
