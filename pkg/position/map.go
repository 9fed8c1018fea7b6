package position

// SeenSet records matched positions by Key.
type SeenSet struct {
	keys map[string]struct{}
}

func NewSeenSet() *SeenSet {
	return &SeenSet{
		keys: make(map[string]struct{}),
	}
}

// Add reports whether pos was not seen before.
func (me *SeenSet) Add(pos MatchedPosition) bool {
	k := pos.Key()
	if _, ok := me.keys[k]; ok {
		return false
	}
	me.keys[k] = struct{}{}
	return true
}

func (me *SeenSet) Has(pos MatchedPosition) bool {
	_, ok := me.keys[pos.Key()]
	return ok
}

func (me *SeenSet) Len() int {
	return len(me.keys)
}

// Dedup drops repeated positions, keeping the first occurrence.
func Dedup(positions []MatchedPosition) []MatchedPosition {
	seen := NewSeenSet()
	out := make([]MatchedPosition, 0, len(positions))
	for _, pos := range positions {
		if seen.Add(pos) {
			out = append(out, pos)
		}
	}
	return out
}
