package transport

import (
	"errors"
	"fmt"
	"io"
	"time"
)

var (
	ErrPortUnavailable = errors.New("transport: port unavailable")
	ErrReadTimeout     = errors.New("transport: read timeout")
	ErrClosed          = errors.New("transport: port closed")
)

// Port is a duplex byte channel with a non-blocking "bytes available" query.
// Read blocks up to the port's read timeout and returns ErrReadTimeout when
// nothing arrived.
type Port interface {
	io.ReadWriteCloser
	Available() (int, error)
	Flush() error
	ResetInputBuffer() error
	ResetOutputBuffer() error
}

// Opener opens a configured Port.
type Opener func(cfg Config) (Port, error)

// Config describes a serial link. Data bits, parity and stop bits are fixed
// by the device (8E1).
type Config struct {
	Name         string
	BaudRate     int
	ReadTimeout  time.Duration
	PollInterval time.Duration
	Stabilize    time.Duration
}

func DefaultConfig() Config {
	return Config{
		BaudRate:     9600,
		ReadTimeout:  time.Second,
		PollInterval: time.Millisecond,
		Stabilize:    2 * time.Second,
	}
}

func (c Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("transport config missing port name")
	}
	if c.BaudRate <= 0 {
		return fmt.Errorf("transport config invalid baud rate: %d", c.BaudRate)
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("transport config invalid read timeout: %v", c.ReadTimeout)
	}
	return nil
}

// ReadExact reads exactly n bytes or fails with the port's error.
func ReadExact(p Port, n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(p, buf); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return buf, ErrReadTimeout
		}
		return buf, err
	}
	return buf, nil
}
