package session

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/danmuck/systolink/internal/observability"
	"github.com/danmuck/systolink/internal/systolic"
)

// Mismatch is one result slot that differs from the reference product.
type Mismatch struct {
	X, Y int
	Want uint16
	Got  uint16
}

// SelfTestReport compares a device result against the reference multiply.
// Expected and Got are in slot order: y for vectors, y*n+x for matrices.
type SelfTestReport struct {
	Passed      bool
	Mode        Mode
	FPGALatency time.Duration
	HostLatency time.Duration
	Payload     Payload
	Expected    []uint16
	Got         []uint16
	Mismatches  []Mismatch
	Exchange    Exchange
}

// RandomPayload draws weights and activations uniformly from [0, limit].
func RandomPayload(n int, mode Mode, limit int, rng *rand.Rand) Payload {
	p := Payload{Weights: randomMatrix(n, limit, rng)}
	if mode == ModeMatrix {
		p.Matrix = randomMatrix(n, limit, rng)
		return p
	}
	p.Vector = make([]uint16, n)
	for i := range p.Vector {
		p.Vector[i] = uint16(rng.Intn(limit + 1))
	}
	return p
}

func randomMatrix(n, limit int, rng *rand.Rand) [][]uint16 {
	m := make([][]uint16, n)
	for y := range m {
		m[y] = make([]uint16, n)
		for x := range m[y] {
			m[y][x] = uint16(rng.Intn(limit + 1))
		}
	}
	return m
}

// Expected computes the reference product for p, flattened in slot order.
func Expected(p Payload, mode Mode) ([]uint16, error) {
	if mode == ModeMatrix {
		m, err := systolic.MulMatrix(p.Weights, p.Matrix)
		if err != nil {
			return nil, err
		}
		out := make([]uint16, 0, len(m)*len(m))
		for _, row := range m {
			out = append(out, row...)
		}
		return out, nil
	}
	return systolic.MulVector(p.Weights, p.Vector)
}

// SelfTest sends a random payload and checks the device result elementwise
// against the reference multiply. The device is switched to the requested
// mode first when needed. A nil rng uses the session's own source.
func (s *Session) SelfTest(ctx context.Context, vector bool, rng *rand.Rand) (SelfTestReport, error) {
	if rng == nil {
		rng = s.rng
	}
	mode := ModeMatrix
	if vector {
		mode = ModeVector
	}
	report := SelfTestReport{Mode: mode}
	if s.Mode() != mode {
		if err := s.SwitchMode(ctx, vector); err != nil {
			return report, err
		}
	}

	n := s.cfg.Dimension
	report.Payload = RandomPayload(n, mode, s.cfg.SelfTestMax, rng)
	want, err := Expected(report.Payload, mode)
	if err != nil {
		return report, fmt.Errorf("session: self test reference: %w", err)
	}
	report.Expected = want

	ex, err := s.RunTransfer(ctx, report.Payload)
	report.Exchange = ex
	if err != nil {
		observability.RecordSelfTest(s.cfg.portLabel(), mode.String(), false)
		return report, err
	}
	report.FPGALatency = ex.FPGALatency()
	report.HostLatency = ex.HostLatency()

	got := ex.Result.Slots()
	report.Got = make([]uint16, len(got))
	for i, slot := range got {
		report.Got[i] = slot.Value
		if slot.Set && slot.Value == want[i] {
			continue
		}
		mm := Mismatch{Y: i, Want: want[i], Got: slot.Value}
		if mode == ModeMatrix {
			mm.X, mm.Y = i%n, i/n
		}
		report.Mismatches = append(report.Mismatches, mm)
	}
	report.Passed = len(report.Mismatches) == 0
	observability.RecordSelfTest(s.cfg.portLabel(), mode.String(), report.Passed)

	event := s.log.Info()
	if !report.Passed {
		event = s.log.Warn().Int("mismatches", len(report.Mismatches))
	}
	event.
		Str("mode", mode.String()).
		Bool("passed", report.Passed).
		Dur("fpga_latency", report.FPGALatency).
		Dur("host_latency", report.HostLatency).
		Msg("self test")
	return report, nil
}

// MismatchError lists the slots where the device disagreed with the
// reference product.
type MismatchError struct {
	Mode       Mode
	Mismatches []Mismatch
}

func (e *MismatchError) Error() string {
	if len(e.Mismatches) == 0 {
		return "session: self test mismatch"
	}
	m := e.Mismatches[0]
	return fmt.Sprintf("session: self test %s: %d mismatched slots, first at (%d,%d) want=%d got=%d",
		e.Mode, len(e.Mismatches), m.X, m.Y, m.Want, m.Got)
}

// Err returns a *MismatchError for a failed self test and nil otherwise.
func (r SelfTestReport) Err() error {
	if r.Passed {
		return nil
	}
	return &MismatchError{Mode: r.Mode, Mismatches: r.Mismatches}
}
