package session

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/danmuck/systolink/internal/observability"
	"github.com/danmuck/systolink/internal/protocol/frame"
	"github.com/danmuck/systolink/internal/transport"
	"github.com/rs/zerolog"
)

// Exchange is the outcome of one write+read round trip.
type Exchange struct {
	Result *Result
	// SendTime is when the device acknowledged the payload.
	SendTime time.Time
	// RecvTime is the first byte seen while aligning for the result.
	RecvTime time.Time
	Attempts int
	Started  time.Time
	Finished time.Time
}

// FPGALatency is the gap between payload acknowledgment and the first result
// byte, i.e. time spent on the device.
func (e Exchange) FPGALatency() time.Duration {
	d := e.RecvTime.Sub(e.SendTime)
	if d < 0 {
		return 0
	}
	return d
}

// HostLatency is the rest of the round trip: handshakes, payload transfer and
// result reception.
func (e Exchange) HostLatency() time.Duration {
	d := e.Finished.Sub(e.Started) - e.FPGALatency()
	if d < 0 {
		return 0
	}
	return d
}

// Session owns one open transport for its whole lifetime. Protocol calls are
// sequential; the mutex only guards the status snapshot.
type Session struct {
	cfg      Config
	port     transport.Port
	log      zerolog.Logger
	engine   *Engine
	receiver *Receiver
	rng      *rand.Rand

	mu     sync.Mutex
	mode   Mode
	last   *Exchange
	runs   int
	fails  int
	closed bool

	closeOnce sync.Once
	closeErr  error
}

// Open opens the configured transport and builds a session over it. A port
// that cannot be opened is fatal and surfaces transport.ErrPortUnavailable.
func Open(cfg Config, opener transport.Opener, logger zerolog.Logger) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opener == nil {
		opener = transport.OpenSerial
	}
	port, err := opener(cfg.Transport)
	if err != nil {
		return nil, fmt.Errorf("session: open: %w", err)
	}
	s, err := New(port, cfg, logger)
	if err != nil {
		_ = port.Close()
		return nil, err
	}
	return s, nil
}

// New builds a session over an already open port. The session takes
// ownership of port and closes it in Close.
func New(port transport.Port, cfg Config, logger zerolog.Logger) (*Session, error) {
	if port == nil {
		return nil, fmt.Errorf("%w: nil port", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger = logger.With().Str("port", cfg.portLabel()).Int("n", cfg.Dimension).Logger()
	return &Session{
		cfg:      cfg,
		port:     port,
		log:      logger,
		engine:   NewEngine(port, cfg, logger),
		receiver: NewReceiver(port, cfg, logger),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		mode:     cfg.Mode,
	}, nil
}

func (s *Session) Config() Config { return s.cfg }

func (s *Session) Dimension() int { return s.cfg.Dimension }

func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

func (s *Session) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Reset clears local buffering and, when fpga is set, tells the device to
// reset its internal state.
func (s *Session) Reset(ctx context.Context, fpga bool) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("session: reset: %w", err)
	}
	if err := s.port.ResetInputBuffer(); err != nil {
		return fmt.Errorf("session: reset input: %w", err)
	}
	if err := s.port.ResetOutputBuffer(); err != nil {
		return fmt.Errorf("session: reset output: %w", err)
	}
	if fpga {
		if _, err := s.port.Write(frame.Repeat(frame.DeviceReset, s.cfg.ResetRepeats)); err != nil {
			return fmt.Errorf("session: device reset: %w", err)
		}
		if err := s.port.Flush(); err != nil {
			return fmt.Errorf("session: device reset: %w", err)
		}
	}
	s.log.Info().Bool("fpga", fpga).Msg("session reset")
	return nil
}

// SwitchMode selects vector or matrix activations on the device.
func (s *Session) SwitchMode(ctx context.Context, vector bool) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("session: switch mode: %w", err)
	}
	word, mode := frame.ModeMatrix, ModeMatrix
	if vector {
		word, mode = frame.ModeVector, ModeVector
	}
	if _, err := s.port.Write(word[:]); err != nil {
		return fmt.Errorf("session: switch mode: %w", err)
	}
	if err := s.port.Flush(); err != nil {
		return fmt.Errorf("session: switch mode: %w", err)
	}
	s.mu.Lock()
	s.mode = mode
	s.mu.Unlock()
	s.log.Info().Str("mode", mode.String()).Msg("mode switched")
	return nil
}

// RunTransfer sends payload and collects the device's result. A transfer
// that exhausts its resends returns ErrResendsExhausted; the session stays
// usable and the caller may retry.
func (s *Session) RunTransfer(ctx context.Context, payload Payload) (Exchange, error) {
	if err := s.checkOpen(); err != nil {
		return Exchange{}, err
	}
	mode := s.Mode()
	ex := Exchange{Started: time.Now()}

	sent, err := s.engine.Send(ctx, payload, mode)
	ex.Attempts = sent.Attempts
	if err != nil {
		s.record(ex, false)
		return ex, fmt.Errorf("session: send: %w", err)
	}
	ex.SendTime = sent.AckAt
	observability.RecordPhase(s.cfg.portLabel(), "send", ex.SendTime.Sub(ex.Started))

	recv, err := s.receiver.Receive(ctx, mode)
	if err != nil {
		s.record(ex, false)
		return ex, fmt.Errorf("session: receive: %w", err)
	}
	ex.Result = recv.Result
	ex.RecvTime = recv.FirstByteAt
	ex.Finished = time.Now()
	observability.RecordPhase(s.cfg.portLabel(), "receive", ex.Finished.Sub(ex.SendTime))

	s.record(ex, true)
	s.log.Info().
		Str("mode", mode.String()).
		Int("attempts", ex.Attempts).
		Int("sync_offset", recv.Sync.Offset).
		Int("discarded", recv.Discarded).
		Dur("fpga_latency", ex.FPGALatency()).
		Dur("host_latency", ex.HostLatency()).
		Msg("transfer complete")
	return ex, nil
}

func (s *Session) record(ex Exchange, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs++
	if !ok {
		s.fails++
		return
	}
	s.last = &ex
}

// Status is a snapshot for the status endpoint.
func (s *Session) Status() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]any{
		"port":      s.cfg.portLabel(),
		"dimension": s.cfg.Dimension,
		"mode":      s.mode.String(),
		"sync":      s.cfg.Sync.String(),
		"runs":      s.runs,
		"failures":  s.fails,
		"closed":    s.closed,
	}
	if s.last != nil {
		out["last_attempts"] = s.last.Attempts
		out["last_fpga_latency_ms"] = float64(s.last.FPGALatency()) / float64(time.Millisecond)
		out["last_host_latency_ms"] = float64(s.last.HostLatency()) / float64(time.Millisecond)
	}
	return out
}

// Close releases the transport exactly once; later calls return the first
// result.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		s.closeErr = s.port.Close()
		s.log.Info().Msg("session closed")
	})
	return s.closeErr
}
