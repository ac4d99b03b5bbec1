package systolic

import "fmt"

// Array is a weight-stationary N×N grid. Activations enter the top of each
// column and move down one row per cycle; partial sums move right one column
// per cycle. Cell (y, x) fires on cycle y+x, so a full pass takes 2N-1 cycles
// and row y's result lands in the rightmost latch of that row.
type Array struct {
	n       int
	weights [][]uint16
	acts    []uint16
	down    [][]uint16
	right   [][]uint16
	counter int
}

func NewArray(weights [][]uint16) (*Array, error) {
	n, err := Square(weights)
	if err != nil {
		return nil, err
	}
	a := &Array{
		n:       n,
		weights: make([][]uint16, n),
		acts:    make([]uint16, n),
		down:    make([][]uint16, n),
		right:   make([][]uint16, n),
	}
	for y := 0; y < n; y++ {
		a.weights[y] = append([]uint16(nil), weights[y]...)
		a.down[y] = make([]uint16, n)
		a.right[y] = make([]uint16, n)
	}
	return a, nil
}

func (a *Array) Size() int { return a.n }

func (a *Array) Cycles() int { return a.counter }

// Load resets the grid and stages one activation vector.
func (a *Array) Load(acts []uint16) error {
	if len(acts) != a.n {
		return fmt.Errorf("%w: %d activations for %d columns", ErrDimension, len(acts), a.n)
	}
	copy(a.acts, acts)
	for y := 0; y < a.n; y++ {
		clear(a.down[y])
		clear(a.right[y])
	}
	a.counter = 0
	return nil
}

// Done reports whether the staged vector has fully propagated.
func (a *Array) Done() bool {
	return a.counter >= 2*a.n-1
}

// Clock advances one cycle.
func (a *Array) Clock() {
	type latch struct {
		y, x        int
		down, right uint16
	}
	fired := make([]latch, 0, a.n)
	for y := 0; y < a.n; y++ {
		x := a.counter - y
		if x < 0 || x >= a.n {
			continue
		}
		in := a.acts[x]
		if y > 0 {
			in = a.down[y-1][x]
		}
		var cin uint16
		if x > 0 {
			cin = a.right[y][x-1]
		}
		fired = append(fired, latch{y: y, x: x, down: in, right: cin + in*a.weights[y][x]})
	}
	for _, l := range fired {
		a.down[l.y][l.x] = l.down
		a.right[l.y][l.x] = l.right
	}
	a.counter++
}

// Result reads the rightmost partial sum of every row.
func (a *Array) Result() []uint16 {
	out := make([]uint16, a.n)
	for y := 0; y < a.n; y++ {
		out[y] = a.right[y][a.n-1]
	}
	return out
}

// Run streams one activation vector through the grid.
func (a *Array) Run(acts []uint16) ([]uint16, error) {
	if err := a.Load(acts); err != nil {
		return nil, err
	}
	for !a.Done() {
		a.Clock()
	}
	return a.Result(), nil
}

// RunMatrix streams each activation column in turn, out[y][x] = row y of the
// pass for column x.
func (a *Array) RunMatrix(acts [][]uint16) ([][]uint16, error) {
	m, err := Square(acts)
	if err != nil {
		return nil, err
	}
	if m != a.n {
		return nil, fmt.Errorf("%w: %d×%d activations for %d columns", ErrDimension, m, m, a.n)
	}
	out := make([][]uint16, a.n)
	for y := range out {
		out[y] = make([]uint16, a.n)
	}
	col := make([]uint16, a.n)
	for x := 0; x < a.n; x++ {
		for k := 0; k < a.n; k++ {
			col[k] = acts[k][x]
		}
		res, err := a.Run(col)
		if err != nil {
			return nil, err
		}
		for y := 0; y < a.n; y++ {
			out[y][x] = res[y]
		}
	}
	return out, nil
}
