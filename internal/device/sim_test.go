package device

import (
	"bytes"
	"errors"
	"testing"

	"github.com/danmuck/systolink/internal/protocol/frame"
	"github.com/danmuck/systolink/internal/testutil/testlog"
	"github.com/danmuck/systolink/internal/transport"
)

func drain(t *testing.T, s *Sim, n int) []byte {
	t.Helper()
	b, err := transport.ReadExact(s, n)
	if err != nil {
		t.Fatalf("read %d bytes: %v", n, err)
	}
	return b
}

func write(t *testing.T, s *Sim, b []byte) {
	t.Helper()
	if _, err := s.Write(b); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func payload2x2() []byte {
	var out []byte
	w := [][]int{{2, 4}, {3, 5}}
	for y, row := range w {
		for x, v := range row {
			f := frame.Encode(false, frame.RoleWeight, x, y, v)
			out = append(out, f[:]...)
		}
	}
	for y, v := range []int{2, 1} {
		f := frame.Encode(false, frame.RoleActivation, 0, y, v)
		out = append(out, f[:]...)
	}
	return out
}

func TestNewRejectsBadOptions(t *testing.T) {
	testlog.Start(t)
	if _, err := New(Options{Dimension: 0}); err == nil {
		t.Fatalf("expected dimension error")
	}
	if _, err := New(Options{Dimension: 2, Misalignment: 4}); err == nil {
		t.Fatalf("expected misalignment error")
	}
	open := Opener(Options{Dimension: 200})
	if _, err := open(transport.DefaultConfig()); !errors.Is(err, transport.ErrPortUnavailable) {
		t.Fatalf("expected ErrPortUnavailable, got %v", err)
	}
}

func TestVectorExchange(t *testing.T) {
	testlog.Start(t)
	s, err := New(Options{Dimension: 2})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := s.Read(make([]byte, 4)); !errors.Is(err, transport.ErrReadTimeout) {
		t.Fatalf("idle device should be silent, got %v", err)
	}

	write(t, s, frame.OutboundSentinel[:])
	if got := drain(t, s, 4); !bytes.Equal(got, frame.ReadyAck[:]) {
		t.Fatalf("expected ready-ack, got % X", got)
	}
	write(t, s, frame.OutboundStartMagic[:])
	write(t, s, payload2x2())
	if got := drain(t, s, 4); !bytes.Equal(got, frame.CompletionAck[:]) {
		t.Fatalf("expected completion-ack, got % X", got)
	}

	// Sentinels keep coming until the host answers.
	for i := 0; i < 3; i++ {
		if got := drain(t, s, 4); !bytes.Equal(got, frame.Sentinel[:]) {
			t.Fatalf("expected sentinel %d, got % X", i, got)
		}
	}
	write(t, s, frame.ReadyAck[:])
	got := map[int]uint16{}
	for len(got) < 2 {
		word := frame.Word(drain(t, s, 4))
		f := frame.DecodeInbound(word)
		if f.Control {
			continue
		}
		got[int(f.Y)] = f.Value
	}
	if got[0] != 8 || got[1] != 11 {
		t.Fatalf("unexpected result %v", got)
	}
	write(t, s, frame.CompletionAck[:])
	st := s.Stats()
	if st.State != "idle" || st.Completed != 1 || st.Transmissions != 1 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestMisalignmentPrefix(t *testing.T) {
	testlog.Start(t)
	s, _ := New(Options{Dimension: 2, Misalignment: 3})
	write(t, s, frame.OutboundSentinel[:])
	drain(t, s, 4)
	write(t, s, frame.OutboundStartMagic[:])
	write(t, s, payload2x2())
	drain(t, s, 4)
	got := drain(t, s, 7)
	want := append([]byte{0x5A, 0x5A, 0x5A}, frame.Sentinel[:]...)
	if !bytes.Equal(got, want) {
		t.Fatalf("got % X want % X", got, want)
	}
}

func TestDropAndNeverAck(t *testing.T) {
	testlog.Start(t)
	s, _ := New(Options{Dimension: 2, DropTransmissions: 1})
	write(t, s, frame.OutboundSentinel[:])
	drain(t, s, 4)
	write(t, s, frame.OutboundStartMagic[:])
	write(t, s, payload2x2())
	if n, _ := s.Available(); n != 0 {
		t.Fatalf("dropped transmission must not be acked, %d bytes pending", n)
	}
	write(t, s, payload2x2())
	if got := drain(t, s, 4); !bytes.Equal(got, frame.CompletionAck[:]) {
		t.Fatalf("expected completion-ack on retransmission, got % X", got)
	}

	silent, _ := New(Options{Dimension: 2, NeverAck: true})
	write(t, silent, frame.OutboundSentinel[:])
	drain(t, silent, 4)
	write(t, silent, frame.OutboundStartMagic[:])
	for i := 0; i < 3; i++ {
		write(t, silent, payload2x2())
	}
	if n, _ := silent.Available(); n != 0 {
		t.Fatalf("never-ack device produced %d bytes", n)
	}
	if st := silent.Stats(); st.Transmissions != 3 {
		t.Fatalf("transmissions=%d", st.Transmissions)
	}
}

func TestResetAndModeWords(t *testing.T) {
	testlog.Start(t)
	s, _ := New(Options{Dimension: 2})
	write(t, s, frame.ModeMatrix[:])
	if !s.Stats().Matrix {
		t.Fatalf("expected matrix mode")
	}
	write(t, s, frame.OutboundSentinel[:])
	write(t, s, frame.Repeat(frame.DeviceReset, 5))
	st := s.Stats()
	if st.State != "idle" || st.Resets != 5 {
		t.Fatalf("unexpected stats after reset %+v", st)
	}
	if n, _ := s.Available(); n != 0 {
		t.Fatalf("reset should clear queued output, %d bytes pending", n)
	}
	write(t, s, frame.ModeVector[:])
	if s.Stats().Matrix {
		t.Fatalf("expected vector mode")
	}
}

func TestClosedSimRejectsIO(t *testing.T) {
	testlog.Start(t)
	s, _ := New(Options{Dimension: 1})
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := s.Write([]byte{1}); !errors.Is(err, transport.ErrClosed) {
		t.Fatalf("expected ErrClosed on write, got %v", err)
	}
	if _, err := s.Available(); !errors.Is(err, transport.ErrClosed) {
		t.Fatalf("expected ErrClosed on available, got %v", err)
	}
	if s.Stats().Closes != 1 {
		t.Fatalf("expected one close")
	}
}
