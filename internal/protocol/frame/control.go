package frame

// Control words are raw 4-byte literals, recognised by pattern rather than by
// the control flag.
var (
	Sentinel      = [Size]byte{0xDE, 0xAD, 0xBE, 0xEF}
	ReadyAck      = [Size]byte{0x0C, 0x0C, 0x0C, 0x0C}
	CompletionAck = [Size]byte{0x1C, 0x1C, 0x1C, 0x1C}
	StartMagic    = [Size]byte{0xDA, 0x22, 0x1D, 0x06}
	DeviceReset   = [Size]byte{0xFF, 0xFF, 0xFF, 0xFF}
	ModeVector    = [Size]byte{0xFE, 0xFE, 0xFE, 0xFE}
	ModeMatrix    = [Size]byte{0xFD, 0xFD, 0xFD, 0xFD}
)

// The device receives sentinel and start-magic in little-endian word order.
var (
	OutboundSentinel   = Reverse(Sentinel)
	OutboundStartMagic = Reverse(StartMagic)
)

// Reverse returns b with its byte order flipped.
func Reverse(b [Size]byte) [Size]byte {
	return [Size]byte{b[3], b[2], b[1], b[0]}
}

// Rotate performs one circular right rotation (last byte moves to the front).
func Rotate(b [Size]byte) [Size]byte {
	return [Size]byte{b[3], b[0], b[1], b[2]}
}

// Word copies the first Size bytes of b. Callers guarantee len(b) >= Size.
func Word(b []byte) [Size]byte {
	var w [Size]byte
	copy(w[:], b)
	return w
}

// ControlName names a known control word, or returns "" for anything else.
func ControlName(b [Size]byte) string {
	switch b {
	case Sentinel:
		return "sentinel"
	case OutboundSentinel:
		return "sentinel_le"
	case ReadyAck:
		return "ready_ack"
	case CompletionAck:
		return "completion_ack"
	case StartMagic:
		return "start_magic"
	case OutboundStartMagic:
		return "start_magic_le"
	case DeviceReset:
		return "device_reset"
	case ModeVector:
		return "mode_vector"
	case ModeMatrix:
		return "mode_matrix"
	default:
		return ""
	}
}

// IsControlWord reports whether b is one of the protocol control literals.
func IsControlWord(b [Size]byte) bool {
	return ControlName(b) != ""
}

// Repeat concatenates count copies of word.
func Repeat(word [Size]byte, count int) []byte {
	if count < 1 {
		count = 1
	}
	out := make([]byte, 0, Size*count)
	for i := 0; i < count; i++ {
		out = append(out, word[:]...)
	}
	return out
}
