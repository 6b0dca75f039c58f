package uri

// PathSegment is one element of a resource path. It renders as Text, or as
// Text(Predicate) when a predicate is present.
type PathSegment struct {
	Text      string
	Predicate string
}

// String renders the segment without percent-encoding.
func (s PathSegment) String() string {
	if s.Predicate == "" {
		return s.Text
	}
	return s.Text + "(" + s.Predicate + ")"
}

// merge overlays the non-empty fields of next on top of s.
func (s PathSegment) merge(next PathSegment) PathSegment {
	if next.Text != "" {
		s.Text = next.Text
	}
	if next.Predicate != "" {
		s.Predicate = next.Predicate
	}
	return s
}
