package session

import (
	"context"
	"fmt"
	"time"

	"github.com/danmuck/systolink/internal/observability"
	"github.com/danmuck/systolink/internal/protocol/frame"
	"github.com/danmuck/systolink/internal/transport"
	"github.com/rs/zerolog"
)

// noMatch is the rotation count reported when no rotation of a chunk equals
// the sentinel.
const noMatch = frame.Size

// SyncResult describes one alignment pass.
type SyncResult struct {
	// Offset is the accepted rotation count k; 0 means already aligned.
	Offset int
	// Dropped is the number of bytes consumed to land on a frame boundary (4-k).
	Dropped  int
	Chunks   int
	Noise    int
	Spurious int
	// FirstByteAt is when the first byte of this pass became available.
	FirstByteAt time.Time
}

// Synchronizer recovers 4-byte frame alignment against the inbound sentinel.
// Its counters are per instance and reset at the start of every pass.
type Synchronizer struct {
	link    *link
	policy  SyncPolicy
	timeout time.Duration

	candidate int
	streak    int
}

func NewSynchronizer(port transport.Port, cfg Config, logger zerolog.Logger) *Synchronizer {
	return &Synchronizer{
		link:    newLink(port, cfg, logger),
		policy:  cfg.Sync,
		timeout: cfg.HandshakeTimeout,
	}
}

// MatchRotation returns how many right rotations turn chunk into the sentinel,
// or 4 when none does.
func MatchRotation(chunk [frame.Size]byte) int {
	for k := 0; k < frame.Size; k++ {
		if chunk == frame.Sentinel {
			return k
		}
		chunk = frame.Rotate(chunk)
	}
	return noMatch
}

// Align reads 4-byte chunks until the policy accepts a rotation offset, then
// consumes 4-k bytes so later 4-byte reads fall on frame boundaries.
func (s *Synchronizer) Align(ctx context.Context) (SyncResult, error) {
	s.candidate, s.streak = 0, 0
	res := SyncResult{}
	dl := newDeadline(s.timeout)
	l := s.link

	for {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("session: align: %w", err)
		}
		n, err := l.available()
		if err != nil {
			return res, err
		}
		if n > 0 && res.FirstByteAt.IsZero() {
			res.FirstByteAt = time.Now()
		}
		if n < frame.Size {
			if dl.expired() {
				return res, fmt.Errorf("%w: alignment after %d chunks", ErrHandshakeTimeout, res.Chunks)
			}
			if err := l.pause(ctx); err != nil {
				return res, fmt.Errorf("session: align: %w", err)
			}
			continue
		}

		chunk, err := l.readWord()
		if err != nil {
			return res, err
		}
		res.Chunks++
		k := MatchRotation(chunk)
		if !s.observe(k, chunk, &res) {
			if dl.expired() {
				return res, fmt.Errorf("%w: alignment after %d chunks", ErrHandshakeTimeout, res.Chunks)
			}
			continue
		}

		res.Offset = k
		res.Dropped = frame.Size - k
		if err := l.await(ctx, res.Dropped, dl, "align drop"); err != nil {
			return res, err
		}
		if _, err := transport.ReadExact(l.port, res.Dropped); err != nil {
			return res, fmt.Errorf("session: align drop: %w", err)
		}
		observability.RecordSyncOffset(l.label, k)
		l.log.Debug().
			Int("offset", k).
			Int("dropped", res.Dropped).
			Int("chunks", res.Chunks).
			Int("noise", res.Noise).
			Int("spurious", res.Spurious).
			Str("policy", s.policy.String()).
			Msg("alignment accepted")
		return res, nil
	}
}

// observe feeds one chunk's rotation count to the policy and reports whether
// alignment is accepted.
func (s *Synchronizer) observe(k int, chunk [frame.Size]byte, res *SyncResult) bool {
	if k == noMatch {
		s.streak = 0
		res.Noise++
		observability.RecordSyncChunk(s.link.label, "noise")
		s.link.log.Debug().Hex("chunk", chunk[:]).Msg("sync chunk matches no rotation")
		return false
	}
	if s.policy.Kind == SyncTrusted {
		observability.RecordSyncChunk(s.link.label, "aligned")
		return true
	}
	if s.streak > 0 && k != s.candidate {
		s.streak = 0
		res.Spurious++
		observability.RecordSyncChunk(s.link.label, "spurious")
		s.link.log.Debug().Int("candidate", s.candidate).Int("offset", k).Msg("sync offset changed, counter reset")
		return false
	}
	if s.streak == 0 {
		s.candidate = k
	}
	s.streak++
	observability.RecordSyncChunk(s.link.label, "match")
	return s.streak >= s.policy.Threshold
}
