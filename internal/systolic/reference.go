package systolic

import (
	"errors"
	"fmt"
)

var ErrDimension = errors.New("systolic: dimension mismatch")

// Square checks that m is n×n and returns n.
func Square(m [][]uint16) (int, error) {
	n := len(m)
	if n == 0 {
		return 0, fmt.Errorf("%w: empty matrix", ErrDimension)
	}
	for y, row := range m {
		if len(row) != n {
			return 0, fmt.Errorf("%w: row %d has %d columns, want %d", ErrDimension, y, len(row), n)
		}
	}
	return n, nil
}

// MulVector returns weights·acts with 16-bit wrapping, matching the device's
// accumulator width.
func MulVector(weights [][]uint16, acts []uint16) ([]uint16, error) {
	n, err := Square(weights)
	if err != nil {
		return nil, err
	}
	if len(acts) != n {
		return nil, fmt.Errorf("%w: %d activations for %d×%d weights", ErrDimension, len(acts), n, n)
	}
	out := make([]uint16, n)
	for y := 0; y < n; y++ {
		var sum uint16
		for x := 0; x < n; x++ {
			sum += weights[y][x] * acts[x]
		}
		out[y] = sum
	}
	return out, nil
}

// MulMatrix returns weights·acts, out[y][x] = Σk weights[y][k]·acts[k][x].
func MulMatrix(weights, acts [][]uint16) ([][]uint16, error) {
	n, err := Square(weights)
	if err != nil {
		return nil, err
	}
	m, err := Square(acts)
	if err != nil {
		return nil, err
	}
	if m != n {
		return nil, fmt.Errorf("%w: %d×%d activations for %d×%d weights", ErrDimension, m, m, n, n)
	}
	out := make([][]uint16, n)
	for y := 0; y < n; y++ {
		out[y] = make([]uint16, n)
		for x := 0; x < n; x++ {
			var sum uint16
			for k := 0; k < n; k++ {
				sum += weights[y][k] * acts[k][x]
			}
			out[y][x] = sum
		}
	}
	return out, nil
}
