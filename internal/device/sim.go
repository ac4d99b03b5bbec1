package device

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/danmuck/systolink/internal/protocol/frame"
	"github.com/danmuck/systolink/internal/systolic"
	"github.com/danmuck/systolink/internal/transport"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type state int

const (
	stateIdle state = iota
	stateAwaitMagic
	stateCollect
	stateSync
	stateStream
)

func (s state) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateAwaitMagic:
		return "await_magic"
	case stateCollect:
		return "collect"
	case stateSync:
		return "sync"
	case stateStream:
		return "stream"
	default:
		return "unknown"
	}
}

// Options configures the simulated device.
type Options struct {
	Dimension int
	// Matrix starts the device in matrix-activation mode.
	Matrix bool
	// Misalignment is the number of junk bytes (0-3) emitted ahead of the
	// sentinel stream, shifting the host's read phase.
	Misalignment int
	// SentinelBurst is how many sentinels are queued per host poll while
	// waiting for the ready-ack.
	SentinelBurst int
	// StrayFrames control-flagged noise frames are mixed into the results.
	StrayFrames int
	// Duplicates extra copies of random result frames are mixed in.
	Duplicates int
	Shuffle    bool
	Seed       int64
	// DropTransmissions silently discards that many payload transmissions.
	DropTransmissions int
	// NeverAck withholds the completion-ack forever.
	NeverAck bool
	Logger   *zerolog.Logger
}

// Sim is a simulated systolic-array accelerator.
type Sim struct {
	mu   sync.Mutex
	opts Options
	n    int
	log  zerolog.Logger
	rng  *rand.Rand

	matrix bool
	state  state
	rx     []byte
	out    []byte

	weights  [][]uint16
	vecActs  []uint16
	matActs  [][]uint16
	wSeen    []bool
	aSeen    []bool
	received int

	transmissions int
	completed     int
	resets        int
	closes        int
	closed        bool
}

func New(opts Options) (*Sim, error) {
	if opts.Dimension < 1 || opts.Dimension > frame.MaxDimension {
		return nil, fmt.Errorf("device: dimension %d outside 1..%d", opts.Dimension, frame.MaxDimension)
	}
	if opts.Misalignment < 0 || opts.Misalignment >= frame.Size {
		return nil, fmt.Errorf("device: misalignment %d outside 0..3", opts.Misalignment)
	}
	if opts.SentinelBurst < 1 {
		opts.SentinelBurst = 1
	}
	logger := log.Logger.With().Str("component", "device").Logger()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	s := &Sim{
		opts:   opts,
		n:      opts.Dimension,
		log:    logger,
		rng:    rand.New(rand.NewSource(opts.Seed)),
		matrix: opts.Matrix,
	}
	s.resetLocked()
	return s, nil
}

// Opener adapts New to transport.Opener so sessions can open a simulated port.
func Opener(opts Options) transport.Opener {
	return func(cfg transport.Config) (transport.Port, error) {
		sim, err := New(opts)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", transport.ErrPortUnavailable, err)
		}
		return sim, nil
	}
}

// resetLocked returns to idle and drops queued output. Unprocessed input is
// kept so the rest of a reset burst is still consumed.
func (s *Sim) resetLocked() {
	s.state = stateIdle
	s.out = s.out[:0]
	s.clearPayloadLocked()
}

func (s *Sim) clearPayloadLocked() {
	n := s.n
	s.weights = square(n)
	s.matActs = square(n)
	s.vecActs = make([]uint16, n)
	s.wSeen = make([]bool, n*n)
	if s.matrix {
		s.aSeen = make([]bool, n*n)
	} else {
		s.aSeen = make([]bool, n)
	}
	s.received = 0
}

func square(n int) [][]uint16 {
	m := make([][]uint16, n)
	for i := range m {
		m[i] = make([]uint16, n)
	}
	return m
}

func (s *Sim) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, transport.ErrClosed
	}
	if s.state == stateCollect {
		s.transmissions++
		if s.transmissions <= s.opts.DropTransmissions {
			s.log.Debug().Int("transmission", s.transmissions).Msg("dropping payload transmission")
			return len(p), nil
		}
	}
	s.rx = append(s.rx, p...)
	for len(s.rx) >= frame.Size {
		word := frame.Word(s.rx)
		s.rx = s.rx[frame.Size:]
		s.handleLocked(word)
	}
	return len(p), nil
}

func (s *Sim) handleLocked(word [frame.Size]byte) {
	if word == frame.DeviceReset {
		s.resets++
		s.resetLocked()
		s.log.Debug().Msg("device reset")
		return
	}
	switch s.state {
	case stateIdle:
		switch word {
		case frame.OutboundSentinel:
			s.out = append(s.out, frame.ReadyAck[:]...)
			s.state = stateAwaitMagic
		case frame.ModeVector, frame.ModeMatrix:
			s.matrix = word == frame.ModeMatrix
			s.clearPayloadLocked()
			s.log.Debug().Bool("matrix", s.matrix).Msg("mode switched")
		}
	case stateAwaitMagic:
		if word == frame.OutboundStartMagic {
			s.clearPayloadLocked()
			s.state = stateCollect
		}
	case stateCollect:
		s.collectLocked(frame.Decode(word))
	case stateSync:
		if word == frame.ReadyAck {
			s.out = append(s.out, s.resultStreamLocked()...)
			s.state = stateStream
		}
	case stateStream:
		if word == frame.CompletionAck {
			s.completed++
			s.state = stateIdle
			s.log.Debug().Int("exchanges", s.completed).Msg("host acknowledged results")
		}
	}
}

func (s *Sim) collectLocked(f frame.DataFrame) {
	if f.Control {
		return
	}
	x, y := int(f.X), int(f.Y)
	if x >= s.n || y >= s.n {
		return
	}
	switch {
	case f.Role == frame.RoleWeight:
		s.weights[y][x] = f.Value
		s.markLocked(s.wSeen, y*s.n+x)
	case s.matrix:
		s.matActs[y][x] = f.Value
		s.markLocked(s.aSeen, y*s.n+x)
	default:
		s.vecActs[y] = f.Value
		s.markLocked(s.aSeen, y)
	}
	if s.received < len(s.wSeen)+len(s.aSeen) || s.opts.NeverAck {
		return
	}
	s.out = append(s.out, frame.CompletionAck[:]...)
	for i := 0; i < s.opts.Misalignment; i++ {
		s.out = append(s.out, 0x5A)
	}
	s.state = stateSync
}

func (s *Sim) markLocked(seen []bool, i int) {
	if !seen[i] {
		seen[i] = true
		s.received++
	}
}

// resultStreamLocked runs the payload through the systolic model and encodes
// the result frames, with any configured noise mixed in.
func (s *Sim) resultStreamLocked() []byte {
	arr, err := systolic.NewArray(s.weights)
	if err != nil {
		s.log.Error().Err(err).Msg("systolic array")
		return nil
	}
	var frames [][frame.Size]byte
	if s.matrix {
		res, err := arr.RunMatrix(s.matActs)
		if err != nil {
			s.log.Error().Err(err).Msg("systolic matrix pass")
			return nil
		}
		for y := range res {
			for x, v := range res[y] {
				frames = append(frames, frame.EncodeInbound(false, frame.RoleActivation, x, y, int(v)))
			}
		}
	} else {
		res, err := arr.Run(s.vecActs)
		if err != nil {
			s.log.Error().Err(err).Msg("systolic vector pass")
			return nil
		}
		for y, v := range res {
			frames = append(frames, frame.EncodeInbound(false, frame.RoleActivation, 0, y, int(v)))
		}
	}

	results := len(frames)
	for i := 0; i < s.opts.Duplicates; i++ {
		frames = append(frames, frames[s.rng.Intn(results)])
	}
	for i := 0; i < s.opts.StrayFrames; i++ {
		if i%2 == 0 {
			frames = append(frames, frame.Sentinel)
			continue
		}
		frames = append(frames, frame.EncodeInbound(true, frame.RoleActivation, s.rng.Intn(128), s.rng.Intn(128), s.rng.Intn(frame.MaxValue+1)))
	}
	if s.opts.Shuffle {
		s.rng.Shuffle(len(frames), func(i, j int) { frames[i], frames[j] = frames[j], frames[i] })
	}

	out := make([]byte, 0, len(frames)*frame.Size)
	for _, f := range frames {
		out = append(out, f[:]...)
	}
	s.log.Debug().Int("results", results).Int("frames", len(frames)).Msg("streaming results")
	return out
}

// pumpLocked keeps the sentinel stream flowing while the host aligns.
func (s *Sim) pumpLocked() {
	if s.state == stateSync && len(s.out) < frame.Size {
		for i := 0; i < s.opts.SentinelBurst; i++ {
			s.out = append(s.out, frame.Sentinel[:]...)
		}
	}
}

func (s *Sim) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, transport.ErrClosed
	}
	s.pumpLocked()
	if len(s.out) == 0 {
		return 0, transport.ErrReadTimeout
	}
	n := copy(p, s.out)
	s.out = s.out[n:]
	return n, nil
}

func (s *Sim) Available() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, transport.ErrClosed
	}
	s.pumpLocked()
	return len(s.out), nil
}

func (s *Sim) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return transport.ErrClosed
	}
	return nil
}

func (s *Sim) ResetInputBuffer() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return transport.ErrClosed
	}
	s.out = s.out[:0]
	return nil
}

func (s *Sim) ResetOutputBuffer() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return transport.ErrClosed
	}
	s.rx = s.rx[:0]
	return nil
}

func (s *Sim) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	s.closed = true
	return nil
}

// Stats is a snapshot of device-side counters.
type Stats struct {
	State         string
	Matrix        bool
	Transmissions int
	Completed     int
	Resets        int
	Closes        int
}

func (s *Sim) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		State:         s.state.String(),
		Matrix:        s.matrix,
		Transmissions: s.transmissions,
		Completed:     s.completed,
		Resets:        s.resets,
		Closes:        s.closes,
	}
}
