package transport

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/danmuck/systolink/internal/testutil/testlog"
)

func TestMemoryPortReadExactAndAvailable(t *testing.T) {
	testlog.Start(t)
	m := NewMemoryPort([]byte{1, 2, 3}, []byte{4, 5})
	n, err := m.Available()
	if err != nil || n != 5 {
		t.Fatalf("available got=%d err=%v", n, err)
	}
	got, err := ReadExact(m, 4)
	if err != nil {
		t.Fatalf("read exact: %v", err)
	}
	if !bytes.Equal(got, []byte{1, 2, 3, 4}) {
		t.Fatalf("unexpected bytes: %v", got)
	}
	if _, err := ReadExact(m, 4); !errors.Is(err, ErrReadTimeout) {
		t.Fatalf("expected ErrReadTimeout on short read, got %v", err)
	}
}

func TestMemoryPortRefillAndWriteHook(t *testing.T) {
	testlog.Start(t)
	m := NewMemoryPort()
	calls := 0
	m.Refill = func() []byte {
		calls++
		return []byte{0xAA}
	}
	var seen []byte
	m.OnWrite = func(p []byte) { seen = append(seen, p...) }

	if n, _ := m.Available(); n != 1 {
		t.Fatalf("expected refill to queue one byte, got %d", n)
	}
	if _, err := m.Write([]byte{7, 8}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !bytes.Equal(seen, []byte{7, 8}) || !bytes.Equal(m.Written(), []byte{7, 8}) {
		t.Fatalf("write not captured: hook=%v written=%v", seen, m.Written())
	}
	if calls != 1 {
		t.Fatalf("unexpected refill calls: %d", calls)
	}
}

func TestMemoryPortClosedRejectsIO(t *testing.T) {
	testlog.Start(t)
	m := NewMemoryPort([]byte{1})
	if err := m.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := m.Write([]byte{1}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed on write, got %v", err)
	}
	if _, err := m.Available(); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed on available, got %v", err)
	}
}

func TestOpenSerialUnavailable(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig()
	cfg.Stabilize = 0
	if _, err := OpenSerial(cfg); !errors.Is(err, ErrPortUnavailable) {
		t.Fatalf("expected ErrPortUnavailable for missing name, got %v", err)
	}
	cfg.Name = "/dev/systolink-does-not-exist"
	if _, err := OpenSerial(cfg); !errors.Is(err, ErrPortUnavailable) {
		t.Fatalf("expected ErrPortUnavailable, got %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	testlog.Start(t)
	cfg := Config{Name: "COM59", BaudRate: 9600, ReadTimeout: time.Second}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	cfg.BaudRate = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected invalid baud rate error")
	}
}
