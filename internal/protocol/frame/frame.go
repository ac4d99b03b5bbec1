package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Size is the fixed wire size of every frame and control word.
const Size = 4

const (
	MaxIndex     = 0x7F
	MaxValue     = 0xFFFF
	MaxDimension = MaxIndex + 1
)

const (
	controlBit = 31
	roleBit    = 30
	xShift     = 23
	yShift     = 16
)

var ErrShortFrame = errors.New("frame: short frame")

// Role distinguishes weight elements from activation elements on the send path.
type Role uint8

const (
	RoleActivation Role = 0
	RoleWeight     Role = 1
)

func (r Role) String() string {
	if r == RoleWeight {
		return "weight"
	}
	return "activation"
}

// DataFrame is one decoded 32-bit protocol unit.
type DataFrame struct {
	Control bool
	Role    Role
	X       uint8
	Y       uint8
	Value   uint16
}

// Encode packs the fields into a little-endian frame for the host-to-device
// direction. Indices are masked to 7 bits and value to 16 bits; out-of-range
// inputs are truncated, not rejected.
func Encode(control bool, role Role, x, y, value int) [Size]byte {
	var out [Size]byte
	binary.LittleEndian.PutUint32(out[:], pack(control, role, x, y, value))
	return out
}

// EncodeInbound packs the fields most-significant byte first, the order the
// device uses for result frames.
func EncodeInbound(control bool, role Role, x, y, value int) [Size]byte {
	var out [Size]byte
	binary.BigEndian.PutUint32(out[:], pack(control, role, x, y, value))
	return out
}

func pack(control bool, role Role, x, y, value int) uint32 {
	var n uint32
	if control {
		n |= 1 << controlBit
	}
	if role == RoleWeight {
		n |= 1 << roleBit
	}
	n |= (uint32(x) & MaxIndex) << xShift
	n |= (uint32(y) & MaxIndex) << yShift
	n |= uint32(value) & MaxValue
	return n
}

// Bytes encodes f.
func (f DataFrame) Bytes() [Size]byte {
	return Encode(f.Control, f.Role, int(f.X), int(f.Y), int(f.Value))
}

func (f DataFrame) String() string {
	return fmt.Sprintf("frame(control=%t role=%s x=%d y=%d value=%d)", f.Control, f.Role, f.X, f.Y, f.Value)
}

// Decode is the inverse of Encode.
func Decode(b [Size]byte) DataFrame {
	return unpack(binary.LittleEndian.Uint32(b[:]))
}

// DecodeInbound decodes a device-to-host word, most-significant byte first.
// The inbound sentinel DE AD BE EF decodes with the control bit set.
func DecodeInbound(b [Size]byte) DataFrame {
	return unpack(binary.BigEndian.Uint32(b[:]))
}

func unpack(n uint32) DataFrame {
	return DataFrame{
		Control: bitSlice(n, controlBit, controlBit) == 1,
		Role:    Role(bitSlice(n, roleBit, roleBit)),
		X:       uint8(bitSlice(n, 29, xShift)),
		Y:       uint8(bitSlice(n, 22, yShift)),
		Value:   uint16(bitSlice(n, 15, 0)),
	}
}

// DecodeSlice decodes exactly Size bytes.
func DecodeSlice(b []byte) (DataFrame, error) {
	if len(b) != Size {
		return DataFrame{}, fmt.Errorf("%w: got %d bytes", ErrShortFrame, len(b))
	}
	var word [Size]byte
	copy(word[:], b)
	return Decode(word), nil
}

// bitSlice extracts bits hi..lo inclusive (lsb is bit 0).
func bitSlice(n uint32, hi, lo uint) uint32 {
	width := hi - lo + 1
	return (n >> lo) & (1<<width - 1)
}
