package session

import (
	"context"
	"fmt"
	"time"

	"github.com/danmuck/systolink/internal/protocol/frame"
	"github.com/danmuck/systolink/internal/transport"
	"github.com/rs/zerolog"
)

// link wraps the port with the polling primitives every phase shares.
type link struct {
	port  transport.Port
	label string
	poll  time.Duration
	log   zerolog.Logger
}

func newLink(port transport.Port, cfg Config, logger zerolog.Logger) *link {
	return &link{port: port, label: cfg.portLabel(), poll: cfg.PollInterval, log: logger}
}

func (l *link) write(b []byte) error {
	if _, err := l.port.Write(b); err != nil {
		return fmt.Errorf("session: write: %w", err)
	}
	return nil
}

func (l *link) flush() error {
	if err := l.port.Flush(); err != nil {
		return fmt.Errorf("session: flush: %w", err)
	}
	return nil
}

// send writes count copies of word and flushes.
func (l *link) send(word [frame.Size]byte, count int) error {
	if err := l.write(frame.Repeat(word, count)); err != nil {
		return err
	}
	return l.flush()
}

func (l *link) available() (int, error) {
	n, err := l.port.Available()
	if err != nil {
		return n, fmt.Errorf("session: available: %w", err)
	}
	return n, nil
}

func (l *link) readWord() ([frame.Size]byte, error) {
	b, err := transport.ReadExact(l.port, frame.Size)
	if err != nil {
		return [frame.Size]byte{}, fmt.Errorf("session: read word: %w", err)
	}
	return frame.Word(b), nil
}

// pause sleeps one poll interval unless ctx ends first.
func (l *link) pause(ctx context.Context) error {
	return sleepCtx(ctx, l.poll)
}

// await polls until at least n bytes are buffered.
func (l *link) await(ctx context.Context, n int, dl deadline, what string) error {
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("session: %s: %w", what, err)
		}
		got, err := l.available()
		if err != nil {
			return err
		}
		if got >= n {
			return nil
		}
		if dl.expired() {
			return fmt.Errorf("%w: %s", ErrHandshakeTimeout, what)
		}
		if err := l.pause(ctx); err != nil {
			return fmt.Errorf("session: %s: %w", what, err)
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// deadline is a restartable wall-clock bound; a zero window never expires.
type deadline struct {
	window time.Duration
	at     time.Time
}

func newDeadline(window time.Duration) deadline {
	d := deadline{window: window}
	d.reset()
	return d
}

func (d *deadline) reset() {
	if d.window > 0 {
		d.at = time.Now().Add(d.window)
	}
}

func (d deadline) expired() bool {
	return d.window > 0 && time.Now().After(d.at)
}
