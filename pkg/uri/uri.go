package uri

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
)

const (
	// DefaultScheme is used when an address is built without parsing a URL.
	DefaultScheme = "https"
	// DefaultAPI is the first directory segment of an OData service root.
	DefaultAPI = "api"
	// ResourceKindIndex is the path segment reserved for the resource kind.
	ResourceKindIndex = 0
)

// Address is the capability shared by every resource address dialect.
type Address interface {
	ParseURL(raw string)
	Root() string
	Build(excludeQuery bool) string

	SetQueryOption(key, value string)
	SetQueryOptions(values map[string]string, replace bool)
	QueryOption(key string) (string, bool)
	QueryOptions() map[string]string
	RemoveQueryOption(key string)

	SetPathSegment(i int, seg PathSegment)
	SetPathSegmentText(i int, text, predicate string)
	SetPathSegments(segs []PathSegment)
	AppendPathSegment(segs ...PathSegment)
	RemovePathSegment(i int)
	PathSegment(i int) (PathSegment, bool)
	PathSegments() []PathSegment

	SetResourceKind(kind string)
	SetResourceSelector(predicate string)

	Clone() Address
}

// Uri is the OData service address: scheme://host[:port]/api[/version][/document].
type Uri struct {
	Scheme   string
	Host     string
	Port     int
	API      string
	Version  string
	Document string

	segments []PathSegment
	query    map[string]string
}

var _ Address = (*Uri)(nil)

// New returns an empty address with the default scheme and api segment.
func New() *Uri {
	return &Uri{
		Scheme: DefaultScheme,
		API:    DefaultAPI,
		query:  make(map[string]string),
	}
}

// Parse returns a new address populated from raw. Parsing is best-effort and
// never fails; unrecognised parts keep their defaults.
func Parse(raw string) *Uri {
	u := New()
	u.ParseURL(raw)
	return u
}

// ParseURL overlays the scheme, host, port, api, version and document found in
// raw. The first directory becomes the api segment and the second the version.
// A directory that looks like a file name (name.ext) becomes the document.
func (u *Uri) ParseURL(raw string) {
	parsed, ok := parseLoose(raw)
	if !ok {
		return
	}
	u.applyAuthority(parsed)

	for i, dir := range splitPath(parsed.Path) {
		switch {
		case looksLikeFile(dir):
			u.Document = dir
			return
		case i == 0:
			u.API = dir
		case i == 1:
			u.Version = dir
		default:
			return
		}
	}
}

func (u *Uri) applyAuthority(parsed *url.URL) {
	if parsed.Scheme != "" {
		u.Scheme = parsed.Scheme
	}
	if host := parsed.Hostname(); host != "" {
		u.Host = host
	}
	if p := parsed.Port(); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			u.Port = n
		}
	}
}

// Root renders the service root without a trailing slash.
func (u *Uri) Root() string {
	return joinRoot(u.Scheme, u.Host, u.Port, u.API, u.Version, u.Document)
}

// Build renders the full address. The query suffix is omitted when
// excludeQuery is set or no query options exist.
func (u *Uri) Build(excludeQuery bool) string {
	return u.buildFrom(u.Root(), excludeQuery)
}

func (u *Uri) buildFrom(root string, excludeQuery bool) string {
	var b strings.Builder
	b.WriteString(root)
	b.WriteByte('/')
	b.WriteString(u.buildPathSegments())
	if excludeQuery {
		return b.String()
	}
	if q := u.buildQuery(); q != "" {
		b.WriteByte('?')
		b.WriteString(q)
	}
	return b.String()
}

func (u *Uri) buildPathSegments() string {
	parts := make([]string, 0, len(u.segments))
	for _, seg := range u.segments {
		if seg.Text == "" {
			continue
		}
		parts = append(parts, EncodeComponent(seg.String()))
	}
	return strings.Join(parts, "/")
}

func (u *Uri) buildQuery() string {
	if len(u.query) == 0 {
		return ""
	}
	keys := make([]string, 0, len(u.query))
	for k := range u.query {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, EncodeComponent(k)+"="+EncodeComponent(u.query[k]))
	}
	return strings.Join(pairs, "&")
}

// SetQueryOption sets a single query option, keeping all others.
func (u *Uri) SetQueryOption(key, value string) {
	if u.query == nil {
		u.query = make(map[string]string)
	}
	u.query[key] = value
}

// SetQueryOptions merges values into the existing options, or replaces the
// whole set when replace is true.
func (u *Uri) SetQueryOptions(values map[string]string, replace bool) {
	if replace || u.query == nil {
		u.query = make(map[string]string, len(values))
	}
	for k, v := range values {
		u.query[k] = v
	}
}

// QueryOption returns the value stored under key.
func (u *Uri) QueryOption(key string) (string, bool) {
	v, ok := u.query[key]
	return v, ok
}

// QueryOptions returns a copy of the query options.
func (u *Uri) QueryOptions() map[string]string {
	out := make(map[string]string, len(u.query))
	for k, v := range u.query {
		out[k] = v
	}
	return out
}

// RemoveQueryOption deletes key if present.
func (u *Uri) RemoveQueryOption(key string) {
	delete(u.query, key)
}

// SetPathSegment merges seg into the segment at index i. Empty fields of seg
// leave the existing values untouched. Negative indexes are ignored.
func (u *Uri) SetPathSegment(i int, seg PathSegment) {
	if i < 0 {
		return
	}
	for len(u.segments) <= i {
		u.segments = append(u.segments, PathSegment{})
	}
	u.segments[i] = u.segments[i].merge(seg)
}

// SetPathSegmentText is SetPathSegment for a bare text and optional predicate.
func (u *Uri) SetPathSegmentText(i int, text, predicate string) {
	u.SetPathSegment(i, PathSegment{Text: text, Predicate: predicate})
}

// SetPathSegments replaces every path segment.
func (u *Uri) SetPathSegments(segs []PathSegment) {
	u.segments = append([]PathSegment(nil), segs...)
}

// AppendPathSegment adds segments after the last one.
func (u *Uri) AppendPathSegment(segs ...PathSegment) {
	u.segments = append(u.segments, segs...)
}

// RemovePathSegment splices out the segment at index i. Out of range indexes
// are a no-op.
func (u *Uri) RemovePathSegment(i int) {
	if i < 0 || i >= len(u.segments) {
		return
	}
	u.segments = append(u.segments[:i], u.segments[i+1:]...)
}

// PathSegment returns the segment at index i.
func (u *Uri) PathSegment(i int) (PathSegment, bool) {
	if i < 0 || i >= len(u.segments) {
		return PathSegment{}, false
	}
	return u.segments[i], true
}

// PathSegments returns a copy of the path segments.
func (u *Uri) PathSegments() []PathSegment {
	return append([]PathSegment(nil), u.segments...)
}

// SetResourceKind sets the text of the reserved resource kind segment.
func (u *Uri) SetResourceKind(kind string) {
	u.SetPathSegment(ResourceKindIndex, PathSegment{Text: kind})
}

// SetResourceSelector sets the predicate of the reserved resource kind
// segment. A kind set earlier is kept.
func (u *Uri) SetResourceSelector(predicate string) {
	u.SetPathSegment(ResourceKindIndex, PathSegment{Predicate: predicate})
}

// Clone returns a deep copy.
func (u *Uri) Clone() Address {
	return u.clone()
}

func (u *Uri) clone() *Uri {
	cp := *u
	cp.segments = u.PathSegments()
	cp.query = u.QueryOptions()
	return &cp
}

func parseLoose(raw string) (*url.URL, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}
	if !strings.Contains(raw, "://") && !strings.HasPrefix(raw, "/") {
		raw = "//" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return splitURL(raw), true
	}
	return parsed, true
}

// splitURL extracts scheme, authority and path from a URL that url.Parse
// rejects. Path parts that cannot be unescaped are kept as written.
func splitURL(raw string) *url.URL {
	u := &url.URL{}
	rest := raw
	if i := strings.IndexAny(rest, "?#"); i >= 0 {
		rest = rest[:i]
	}
	hasAuthority := false
	if i := strings.Index(rest, "://"); i >= 0 {
		u.Scheme = strings.ToLower(rest[:i])
		rest = rest[i+3:]
		hasAuthority = true
	} else if strings.HasPrefix(rest, "//") {
		rest = rest[2:]
		hasAuthority = true
	}
	if hasAuthority {
		authority := rest
		rest = ""
		if i := strings.IndexByte(authority, '/'); i >= 0 {
			authority, rest = authority[:i], authority[i:]
		}
		if at := strings.LastIndexByte(authority, '@'); at >= 0 {
			authority = authority[at+1:]
		}
		if strings.ContainsAny(authority, "[]") && !validBracketHost(authority) {
			authority = ""
		}
		u.Host = authority
	}

	dirs := strings.Split(rest, "/")
	for i, dir := range dirs {
		if unescaped, err := url.PathUnescape(dir); err == nil {
			dirs[i] = unescaped
		}
	}
	u.Path = strings.Join(dirs, "/")
	return u
}

func validBracketHost(authority string) bool {
	end := strings.IndexByte(authority, ']')
	return strings.HasPrefix(authority, "[") && end > 1 && strings.Count(authority, "[") == 1 && strings.Count(authority, "]") == 1
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// looksLikeFile reports whether s has the shape name.ext with an alphabetic
// extension, e.g. "service.svc" but not "v1.0".
func looksLikeFile(s string) bool {
	dot := strings.LastIndexByte(s, '.')
	if dot <= 0 || dot == len(s)-1 {
		return false
	}
	for _, r := range s[dot+1:] {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return false
		}
	}
	return true
}

func joinRoot(scheme, host string, port int, dirs ...string) string {
	var b strings.Builder
	b.WriteString(scheme)
	b.WriteString("://")
	b.WriteString(host)
	if port > 0 {
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(port))
	}
	for _, d := range dirs {
		if d == "" {
			continue
		}
		b.WriteByte('/')
		b.WriteString(d)
	}
	return b.String()
}
