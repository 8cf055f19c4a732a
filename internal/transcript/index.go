package transcript

// Segment is one timed piece of transcribed speech. Start is expected to be
// <= End but this is not enforced, and segments may overlap.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Contains reports whether t falls inside the segment, bounds inclusive.
func (s Segment) Contains(t float64) bool {
	return s.Start <= t && t <= s.End
}

// Index is an ordered, immutable collection of segments.
type Index struct {
	segments []Segment
}

// NewIndex copies segments into a new index, preserving their order.
func NewIndex(segments []Segment) *Index {
	return &Index{segments: append([]Segment(nil), segments...)}
}

// Lookup returns the text of the first segment, in insertion order, whose
// time range contains t. It returns "" when no segment matches.
func (i *Index) Lookup(t float64) string {
	if i == nil {
		return ""
	}
	for _, seg := range i.segments {
		if seg.Contains(t) {
			return seg.Text
		}
	}
	return ""
}

// Segments returns a copy of the indexed segments.
func (i *Index) Segments() []Segment {
	if i == nil {
		return nil
	}
	return append([]Segment(nil), i.segments...)
}

// Len returns the number of segments.
func (i *Index) Len() int {
	if i == nil {
		return 0
	}
	return len(i.segments)
}
