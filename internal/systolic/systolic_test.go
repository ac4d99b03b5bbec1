package systolic

import (
	"errors"
	"math/rand"
	"testing"
)

func TestMulVectorKnownValues(t *testing.T) {
	got, err := MulVector([][]uint16{{2, 4}, {3, 5}}, []uint16{2, 1})
	if err != nil {
		t.Fatalf("mul vector: %v", err)
	}
	if got[0] != 8 || got[1] != 11 {
		t.Fatalf("unexpected product: %v", got)
	}
}

func TestMulVectorWrapsAt16Bits(t *testing.T) {
	got, err := MulVector([][]uint16{{300}}, []uint16{300})
	if err != nil {
		t.Fatalf("mul vector: %v", err)
	}
	if got[0] != uint16(90000%65536) {
		t.Fatalf("expected wrapping product, got %d", got[0])
	}
}

func TestMulRejectsMismatchedShapes(t *testing.T) {
	if _, err := MulVector([][]uint16{{1, 2}, {3}}, []uint16{1, 2}); !errors.Is(err, ErrDimension) {
		t.Fatalf("expected ErrDimension for ragged weights, got %v", err)
	}
	if _, err := MulVector([][]uint16{{1}}, []uint16{1, 2}); !errors.Is(err, ErrDimension) {
		t.Fatalf("expected ErrDimension for vector length, got %v", err)
	}
	if _, err := MulMatrix([][]uint16{{1}}, [][]uint16{{1, 2}, {3, 4}}); !errors.Is(err, ErrDimension) {
		t.Fatalf("expected ErrDimension for matrix size, got %v", err)
	}
}

func TestArrayMatchesReference(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, n := range []int{1, 2, 3, 4, 8} {
		w := randomMatrix(rng, n)
		acts := make([]uint16, n)
		for i := range acts {
			acts[i] = uint16(rng.Intn(101))
		}
		arr, err := NewArray(w)
		if err != nil {
			t.Fatalf("new array: %v", err)
		}
		got, err := arr.Run(acts)
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		if arr.Cycles() != 2*n-1 {
			t.Fatalf("n=%d expected %d cycles, got %d", n, 2*n-1, arr.Cycles())
		}
		want, _ := MulVector(w, acts)
		for y := range want {
			if got[y] != want[y] {
				t.Fatalf("n=%d row %d: got=%d want=%d", n, y, got[y], want[y])
			}
		}

		a := randomMatrix(rng, n)
		gotM, err := arr.RunMatrix(a)
		if err != nil {
			t.Fatalf("run matrix: %v", err)
		}
		wantM, _ := MulMatrix(w, a)
		for y := 0; y < n; y++ {
			for x := 0; x < n; x++ {
				if gotM[y][x] != wantM[y][x] {
					t.Fatalf("n=%d (%d,%d): got=%d want=%d", n, x, y, gotM[y][x], wantM[y][x])
				}
			}
		}
	}
}

func randomMatrix(rng *rand.Rand, n int) [][]uint16 {
	m := make([][]uint16, n)
	for y := range m {
		m[y] = make([]uint16, n)
		for x := range m[y] {
			m[y][x] = uint16(rng.Intn(101))
		}
	}
	return m
}
