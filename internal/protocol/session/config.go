package session

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/danmuck/systolink/internal/protocol/frame"
	"github.com/danmuck/systolink/internal/transport"
)

// Mode selects whether activations are a vector or a matrix.
type Mode int

const (
	ModeVector Mode = iota
	ModeMatrix
)

func (m Mode) String() string {
	if m == ModeMatrix {
		return "matrix"
	}
	return "vector"
}

func ParseMode(raw string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "vector", "vec", "":
		return ModeVector, nil
	case "matrix", "mat":
		return ModeMatrix, nil
	default:
		return ModeVector, fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, raw)
	}
}

type SyncKind int

const (
	SyncStrict SyncKind = iota
	SyncTrusted
)

// DefaultSyncThreshold is the number of consecutive identical rotation
// matches the strict policy needs.
const DefaultSyncThreshold = 10

// SyncPolicy decides when an observed rotation offset is trusted. Strict
// needs Threshold consecutive identical matches; Trusted takes the first one
// and is only sound on a low-noise link.
type SyncPolicy struct {
	Kind      SyncKind
	Threshold int
}

func Strict(threshold int) SyncPolicy {
	if threshold < 1 {
		threshold = 1
	}
	return SyncPolicy{Kind: SyncStrict, Threshold: threshold}
}

func Trusted() SyncPolicy {
	return SyncPolicy{Kind: SyncTrusted, Threshold: 1}
}

func DefaultSyncPolicy() SyncPolicy {
	return Strict(DefaultSyncThreshold)
}

func (p SyncPolicy) String() string {
	if p.Kind == SyncTrusted {
		return "trusted"
	}
	return "strict:" + strconv.Itoa(p.Threshold)
}

// ParseSyncPolicy accepts "strict", "strict:<n>" and "trusted".
func ParseSyncPolicy(raw string) (SyncPolicy, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	switch {
	case raw == "" || raw == "strict":
		return DefaultSyncPolicy(), nil
	case raw == "trusted":
		return Trusted(), nil
	case strings.HasPrefix(raw, "strict:"):
		n, err := strconv.Atoi(strings.TrimPrefix(raw, "strict:"))
		if err != nil || n < 1 {
			return SyncPolicy{}, fmt.Errorf("%w: bad strict threshold in %q", ErrInvalidConfig, raw)
		}
		return Strict(n), nil
	default:
		return SyncPolicy{}, fmt.Errorf("%w: unknown sync policy %q", ErrInvalidConfig, raw)
	}
}

// Config defines link and protocol behaviour for one session.
type Config struct {
	Transport transport.Config
	Dimension int
	Mode      Mode
	Sync      SyncPolicy

	// ResendTimeout is measured from the most recent transmission.
	ResendTimeout time.Duration
	MaxResends    int
	// HandshakeTimeout bounds alignment and ready-ack waits; 0 waits forever.
	HandshakeTimeout time.Duration
	// ReceiveIdleTimeout bounds the gap between result frames; 0 waits forever.
	ReceiveIdleTimeout time.Duration
	PollInterval       time.Duration

	ReadyAckRepeats int
	ResetRepeats    int
	SelfTestMax     int

	// Backoff paces repeated sentinels during the outbound handshake.
	Backoff BackoffConfig
}

func DefaultConfig() Config {
	return Config{
		Transport:          transport.DefaultConfig(),
		Dimension:          4,
		Mode:               ModeVector,
		Sync:               DefaultSyncPolicy(),
		ResendTimeout:      100 * time.Millisecond,
		MaxResends:         10,
		HandshakeTimeout:   10 * time.Second,
		ReceiveIdleTimeout: 5 * time.Second,
		PollInterval:       time.Millisecond,
		ReadyAckRepeats:    5,
		ResetRepeats:       5,
		SelfTestMax:        100,
		Backoff: BackoffConfig{
			InitialDelay: time.Millisecond,
			Multiplier:   1.5,
			MaxDelay:     50 * time.Millisecond,
			Jitter:       false,
		},
	}
}

func (c Config) Validate() error {
	if c.Dimension < 1 || c.Dimension > frame.MaxDimension {
		return fmt.Errorf("%w: dimension %d outside 1..%d", ErrInvalidConfig, c.Dimension, frame.MaxDimension)
	}
	if c.Mode != ModeVector && c.Mode != ModeMatrix {
		return fmt.Errorf("%w: unknown mode %d", ErrInvalidConfig, c.Mode)
	}
	if c.Sync.Kind == SyncStrict && c.Sync.Threshold < 1 {
		return fmt.Errorf("%w: strict sync threshold must be positive", ErrInvalidConfig)
	}
	if c.ResendTimeout <= 0 {
		return fmt.Errorf("%w: resend timeout must be positive", ErrInvalidConfig)
	}
	if c.MaxResends < 1 {
		return fmt.Errorf("%w: max resends must be at least 1", ErrInvalidConfig)
	}
	if c.HandshakeTimeout < 0 || c.ReceiveIdleTimeout < 0 || c.PollInterval < 0 {
		return fmt.Errorf("%w: negative timeout", ErrInvalidConfig)
	}
	if c.ReadyAckRepeats < 1 || c.ResetRepeats < 1 {
		return fmt.Errorf("%w: repeat counts must be at least 1", ErrInvalidConfig)
	}
	if c.SelfTestMax < 0 || c.SelfTestMax > frame.MaxValue {
		return fmt.Errorf("%w: self test max %d outside 0..%d", ErrInvalidConfig, c.SelfTestMax, frame.MaxValue)
	}
	return nil
}

func (c Config) portLabel() string {
	if c.Transport.Name == "" {
		return "memory"
	}
	return c.Transport.Name
}
