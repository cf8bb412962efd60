package gpio

// lineSet is the ordered list of offsets held by one line request. The
// order is the request order, which is also the order SetValues expects.
type lineSet []Pin

// union returns s with every pin of pins not already in it appended, and
// whether anything was added. s itself is never modified.
func (s lineSet) union(pins []Pin) (lineSet, bool) {
	held := MaskOf(s...)
	out := append(lineSet(nil), s...)
	for _, p := range pins {
		if !held.Has(p) {
			held |= MaskOf(p)
			out = append(out, p)
		}
	}
	return out, len(out) != len(s)
}

func (s lineSet) mask() Mask {
	return MaskOf(s...)
}

// values maps levels onto s: 1 where the pin is high, 0 otherwise.
func (s lineSet) values(levels Mask) []int {
	values := make([]int, len(s))
	for i, p := range s {
		if levels.Has(p) {
			values[i] = 1
		}
	}
	return values
}

func (s lineSet) offsets() []int {
	ints := make([]int, len(s))
	for i, p := range s {
		ints[i] = int(p)
	}
	return ints
}
