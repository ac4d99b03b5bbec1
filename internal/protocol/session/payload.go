package session

import (
	"fmt"

	"github.com/danmuck/systolink/internal/protocol/frame"
)

// Payload is one weight matrix plus its activations. Vector is used in
// vector mode, Matrix in matrix mode; indexing is [y][x].
type Payload struct {
	Weights [][]uint16
	Vector  []uint16
	Matrix  [][]uint16
}

func (p Payload) Validate(n int, mode Mode) error {
	if err := checkSquare("weights", p.Weights, n); err != nil {
		return err
	}
	if mode == ModeMatrix {
		return checkSquare("activations", p.Matrix, n)
	}
	if len(p.Vector) != n {
		return fmt.Errorf("%w: %d activations, want %d", ErrDimensionMismatch, len(p.Vector), n)
	}
	return nil
}

func checkSquare(name string, m [][]uint16, n int) error {
	if len(m) != n {
		return fmt.Errorf("%w: %s has %d rows, want %d", ErrDimensionMismatch, name, len(m), n)
	}
	for y, row := range m {
		if len(row) != n {
			return fmt.Errorf("%w: %s row %d has %d columns, want %d", ErrDimensionMismatch, name, y, len(row), n)
		}
	}
	return nil
}

// FrameCount is the number of frames PackPayload emits.
func FrameCount(n int, mode Mode) int {
	if mode == ModeMatrix {
		return 2 * n * n
	}
	return n*n + n
}

// PackPayload encodes weights (row-major, y outer) followed by activations.
// Vector activations use x=0 and y=i. Callers validate shapes first.
func PackPayload(p Payload, mode Mode) []byte {
	n := len(p.Weights)
	out := make([]byte, 0, FrameCount(n, mode)*frame.Size)
	out = appendMatrix(out, p.Weights, frame.RoleWeight)
	if mode == ModeMatrix {
		return appendMatrix(out, p.Matrix, frame.RoleActivation)
	}
	for y, v := range p.Vector {
		f := frame.Encode(false, frame.RoleActivation, 0, y, int(v))
		out = append(out, f[:]...)
	}
	return out
}

func appendMatrix(out []byte, m [][]uint16, role frame.Role) []byte {
	for y, row := range m {
		for x, v := range row {
			f := frame.Encode(false, role, x, y, int(v))
			out = append(out, f[:]...)
		}
	}
	return out
}
