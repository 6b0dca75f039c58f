package uri

// DefaultSDataAPI is the first directory segment of an SData service root.
const DefaultSDataAPI = "sdata"

// SDataUri is the SData service address:
// scheme://host[:port]/sdata/application/contract/dataset. Path segments and
// query options behave exactly as on Uri.
type SDataUri struct {
	*Uri
	Application string
	Contract    string
	Dataset     string
}

var _ Address = (*SDataUri)(nil)

// NewSData returns an empty SData address.
func NewSData() *SDataUri {
	u := New()
	u.API = DefaultSDataAPI
	return &SDataUri{Uri: u}
}

// ParseSData returns a new SData address populated from raw.
func ParseSData(raw string) *SDataUri {
	s := NewSData()
	s.ParseURL(raw)
	return s
}

// ParseURL maps the first four directories to api, application, contract
// and dataset. Anything after them is ignored.
func (s *SDataUri) ParseURL(raw string) {
	parsed, ok := parseLoose(raw)
	if !ok {
		return
	}
	s.applyAuthority(parsed)

	dirs := splitPath(parsed.Path)
	fields := []*string{&s.API, &s.Application, &s.Contract, &s.Dataset}
	for i, dir := range dirs {
		if i >= len(fields) {
			break
		}
		*fields[i] = dir
	}
}

// Root renders the service root without a trailing slash.
func (s *SDataUri) Root() string {
	return joinRoot(s.Scheme, s.Host, s.Port, s.API, s.Application, s.Contract, s.Dataset)
}

// Build renders the full address.
func (s *SDataUri) Build(excludeQuery bool) string {
	return s.buildFrom(s.Root(), excludeQuery)
}

// Clone returns a deep copy.
func (s *SDataUri) Clone() Address {
	cp := *s
	cp.Uri = s.Uri.clone()
	return &cp
}
