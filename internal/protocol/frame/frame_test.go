package frame

import (
	"errors"
	"testing"
)

func TestEncodeBitLayout(t *testing.T) {
	got := Encode(false, RoleWeight, 1, 2, 3)
	want := [Size]byte{0x03, 0x00, 0x82, 0x40}
	if got != want {
		t.Fatalf("encode mismatch: got=% X want=% X", got, want)
	}

	got = Encode(true, RoleActivation, 127, 127, 0xFFFF)
	want = [Size]byte{0xFF, 0xFF, 0xFF, 0xBF}
	if got != want {
		t.Fatalf("encode mismatch: got=% X want=% X", got, want)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	values := []int{0, 1, 255, 256, 4095, 40000, MaxValue}
	for _, control := range []bool{false, true} {
		for _, role := range []Role{RoleActivation, RoleWeight} {
			for x := 0; x <= MaxIndex; x += 7 {
				for y := 0; y <= MaxIndex; y += 9 {
					for _, v := range values {
						out := Decode(Encode(control, role, x, y, v))
						in := DataFrame{Control: control, Role: role, X: uint8(x), Y: uint8(y), Value: uint16(v)}
						if out != in {
							t.Fatalf("round trip mismatch: in=%v out=%v", in, out)
						}
					}
				}
			}
		}
	}
	edge := DataFrame{Control: true, Role: RoleWeight, X: MaxIndex, Y: MaxIndex, Value: MaxValue}
	if out := Decode(edge.Bytes()); out != edge {
		t.Fatalf("edge round trip mismatch: in=%v out=%v", edge, out)
	}
}

func TestEncodeMasksOutOfRangeFields(t *testing.T) {
	if Encode(false, RoleWeight, 200, 5, 9) != Encode(false, RoleWeight, 200%128, 5, 9) {
		t.Fatalf("x index not masked to 7 bits")
	}
	if Encode(false, RoleWeight, 5, 130, 9) != Encode(false, RoleWeight, 5, 2, 9) {
		t.Fatalf("y index not masked to 7 bits")
	}
	if Encode(false, RoleActivation, 0, 0, 0x1_0005) != Encode(false, RoleActivation, 0, 0, 5) {
		t.Fatalf("value not masked to 16 bits")
	}
	f := Decode(Encode(false, RoleActivation, 200, 0, 0))
	if f.X != 72 || f.Control || f.Role != RoleActivation {
		t.Fatalf("masked x leaked into neighbouring fields: %v", f)
	}
}

func TestDecodeSliceRejectsShortInput(t *testing.T) {
	_, err := DecodeSlice([]byte{1, 2, 3})
	if !errors.Is(err, ErrShortFrame) {
		t.Fatalf("expected ErrShortFrame, got %v", err)
	}
	b := Encode(false, RoleWeight, 3, 4, 5)
	f, err := DecodeSlice(b[:])
	if err != nil {
		t.Fatalf("decode slice: %v", err)
	}
	if f.X != 3 || f.Y != 4 || f.Value != 5 || f.Role != RoleWeight {
		t.Fatalf("unexpected frame: %v", f)
	}
}

func TestControlWords(t *testing.T) {
	if !Decode(Sentinel).Control {
		t.Fatalf("inbound sentinel must carry the control flag")
	}
	if OutboundSentinel != [Size]byte{0xEF, 0xBE, 0xAD, 0xDE} {
		t.Fatalf("unexpected outbound sentinel: % X", OutboundSentinel)
	}
	if OutboundStartMagic != [Size]byte{0x06, 0x1D, 0x22, 0xDA} {
		t.Fatalf("unexpected outbound start magic: % X", OutboundStartMagic)
	}
	for _, w := range [][Size]byte{Sentinel, ReadyAck, CompletionAck, StartMagic, DeviceReset, ModeVector, ModeMatrix} {
		if !IsControlWord(w) {
			t.Fatalf("expected control word: % X", w)
		}
	}
	if IsControlWord(Encode(false, RoleWeight, 1, 1, 1)) {
		t.Fatalf("data frame classified as control word")
	}
}

func TestRotateCyclesBackAfterFourSteps(t *testing.T) {
	w := Sentinel
	w = Rotate(w)
	if w != [Size]byte{0xEF, 0xDE, 0xAD, 0xBE} {
		t.Fatalf("unexpected rotation: % X", w)
	}
	for i := 0; i < 3; i++ {
		w = Rotate(w)
	}
	if w != Sentinel {
		t.Fatalf("four rotations should restore the word: % X", w)
	}
}

func TestRepeat(t *testing.T) {
	got := Repeat(ReadyAck, 5)
	if len(got) != 5*Size {
		t.Fatalf("unexpected length %d", len(got))
	}
	for i := 0; i < len(got); i++ {
		if got[i] != 0x0C {
			t.Fatalf("unexpected byte at %d: %X", i, got[i])
		}
	}
}

func TestInboundFramesAreMostSignificantByteFirst(t *testing.T) {
	// x=0, y=0, value=200 as the device sends it.
	f := DecodeInbound([Size]byte{0x00, 0x00, 0x00, 0xC8})
	if f.Control || f.X != 0 || f.Y != 0 || f.Value != 200 {
		t.Fatalf("unexpected inbound frame: %v", f)
	}
	if Decode([Size]byte{0x00, 0x00, 0x00, 0xC8}) == f {
		t.Fatalf("outbound decode should not agree with inbound decode here")
	}
	b := EncodeInbound(false, RoleActivation, 5, 9, 0xBEEF)
	if b != [Size]byte{0x02, 0x89, 0xBE, 0xEF} {
		t.Fatalf("unexpected inbound layout: % X", b)
	}
	if got := DecodeInbound(b); got.X != 5 || got.Y != 9 || got.Value != 0xBEEF {
		t.Fatalf("inbound round trip: %v", got)
	}
	if !DecodeInbound(Sentinel).Control {
		t.Fatalf("inbound sentinel must carry the control flag")
	}
}
