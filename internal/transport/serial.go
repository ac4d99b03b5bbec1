package transport

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.bug.st/serial"
)

const scratchSize = 4096

// Serial is a Port over a physical serial device. The underlying port is
// opened with a short read timeout so Available can poll without blocking for
// long; bytes pulled in while polling are kept in buf until read.
type Serial struct {
	port    serial.Port
	cfg     Config
	buf     []byte
	scratch []byte

	closeOnce sync.Once
	closeErr  error
	closed    bool
}

// OpenSerial opens cfg.Name as 8E1 at cfg.BaudRate, waits for the link to
// settle and clears both directions. Any failure is ErrPortUnavailable.
func OpenSerial(cfg Config) (Port, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPortUnavailable, err)
	}
	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.EvenParity,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(cfg.Name, mode)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrPortUnavailable, cfg.Name, err)
	}

	poll := cfg.PollInterval
	if poll <= 0 {
		poll = time.Millisecond
	}
	if err := p.SetReadTimeout(poll); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("%w: %s: set read timeout: %v", ErrPortUnavailable, cfg.Name, err)
	}

	if cfg.Stabilize > 0 {
		time.Sleep(cfg.Stabilize)
	}

	s := &Serial{
		port:    p,
		cfg:     cfg,
		scratch: make([]byte, scratchSize),
	}
	if err := s.ResetInputBuffer(); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrPortUnavailable, cfg.Name, err)
	}
	if err := s.ResetOutputBuffer(); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrPortUnavailable, cfg.Name, err)
	}
	log.Info().Str("port", cfg.Name).Int("baud", cfg.BaudRate).Msg("serial port connected")
	return s, nil
}

func (s *Serial) fill() error {
	n, err := s.port.Read(s.scratch)
	if n > 0 {
		s.buf = append(s.buf, s.scratch[:n]...)
	}
	return err
}

func (s *Serial) Read(p []byte) (int, error) {
	if s.closed {
		return 0, ErrClosed
	}
	if len(p) == 0 {
		return 0, nil
	}
	deadline := time.Now().Add(s.cfg.ReadTimeout)
	for len(s.buf) == 0 {
		if err := s.fill(); err != nil {
			return 0, err
		}
		if len(s.buf) == 0 && time.Now().After(deadline) {
			return 0, ErrReadTimeout
		}
	}
	n := copy(p, s.buf)
	s.buf = s.buf[n:]
	return n, nil
}

func (s *Serial) Write(p []byte) (int, error) {
	if s.closed {
		return 0, ErrClosed
	}
	written := 0
	for written < len(p) {
		n, err := s.port.Write(p[written:])
		written += n
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

// Available pulls whatever the driver has buffered and reports the count.
func (s *Serial) Available() (int, error) {
	if s.closed {
		return 0, ErrClosed
	}
	if err := s.fill(); err != nil {
		return len(s.buf), err
	}
	return len(s.buf), nil
}

func (s *Serial) Flush() error {
	if s.closed {
		return ErrClosed
	}
	return s.port.Drain()
}

func (s *Serial) ResetInputBuffer() error {
	if s.closed {
		return ErrClosed
	}
	s.buf = s.buf[:0]
	return s.port.ResetInputBuffer()
}

func (s *Serial) ResetOutputBuffer() error {
	if s.closed {
		return ErrClosed
	}
	return s.port.ResetOutputBuffer()
}

// Close releases the device. Repeated calls return the first result.
func (s *Serial) Close() error {
	s.closeOnce.Do(func() {
		s.closed = true
		s.closeErr = s.port.Close()
		log.Info().Str("port", s.cfg.Name).Msg("serial port closed")
	})
	return s.closeErr
}
