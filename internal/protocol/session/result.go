package session

// Slot is one result position; Set is false until a frame fills it.
type Slot struct {
	Value uint16
	Set   bool
}

// Result collects addressed result frames. Vector results are addressed by y
// alone; matrix results by (x, y) and read back as [y][x].
type Result struct {
	n      int
	mode   Mode
	slots  []Slot
	filled int
}

func NewResult(n int, mode Mode) *Result {
	size := n
	if mode == ModeMatrix {
		size = n * n
	}
	return &Result{n: n, mode: mode, slots: make([]Slot, size)}
}

func (r *Result) index(x, y int) (int, bool) {
	if y < 0 || y >= r.n {
		return 0, false
	}
	if r.mode == ModeVector {
		return y, true
	}
	if x < 0 || x >= r.n {
		return 0, false
	}
	return y*r.n + x, true
}

// Set stores v at (x, y), overwriting any earlier value. It reports false for
// addresses outside the result.
func (r *Result) Set(x, y int, v uint16) bool {
	i, ok := r.index(x, y)
	if !ok {
		return false
	}
	if !r.slots[i].Set {
		r.filled++
	}
	r.slots[i] = Slot{Value: v, Set: true}
	return true
}

func (r *Result) Get(x, y int) (uint16, bool) {
	i, ok := r.index(x, y)
	if !ok || !r.slots[i].Set {
		return 0, false
	}
	return r.slots[i].Value, true
}

func (r *Result) Dimension() int { return r.n }

func (r *Result) Mode() Mode { return r.mode }

// Complete reports whether no unset slot remains.
func (r *Result) Complete() bool { return r.filled == len(r.slots) }

func (r *Result) Missing() int { return len(r.slots) - r.filled }

func (r *Result) Slots() []Slot {
	return append([]Slot(nil), r.slots...)
}

// Vector returns the values of a vector result; unset slots read as 0.
func (r *Result) Vector() []uint16 {
	if r.mode != ModeVector {
		return nil
	}
	out := make([]uint16, r.n)
	for i, s := range r.slots {
		out[i] = s.Value
	}
	return out
}

// Matrix returns the values of a matrix result as [y][x]; unset slots read as 0.
func (r *Result) Matrix() [][]uint16 {
	if r.mode != ModeMatrix {
		return nil
	}
	out := make([][]uint16, r.n)
	for y := range out {
		out[y] = make([]uint16, r.n)
		for x := range out[y] {
			out[y][x] = r.slots[y*r.n+x].Value
		}
	}
	return out
}
