package metadata

// Pair is an unordered pair of user IDs in canonical order (Low < High).
//
// Friendships and message threads are keyed by Pair so that "A and B" and
// "B and A" always resolve to the same record.
type Pair struct {
	Low  string `json:"low"`
	High string `json:"high"`
}

// NewPair returns the canonical pair for a and b.
func NewPair(a, b string) Pair {
	if b < a {
		a, b = b, a
	}
	return Pair{Low: a, High: b}
}

// Contains reports whether id is one side of the pair.
func (p Pair) Contains(id string) bool {
	return p.Low == id || p.High == id
}

// Other returns the side of the pair that is not id.
func (p Pair) Other(id string) string {
	if p.Low == id {
		return p.High
	}
	return p.Low
}

// Key returns a stable string form usable as a map or database key.
func (p Pair) Key() string {
	return p.Low + ":" + p.High
}
