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

// ReceiveReport describes one receive-path exchange.
type ReceiveReport struct {
	Result *Result
	Sync   SyncResult
	// FirstByteAt is the first byte seen while aligning for this receive.
	FirstByteAt time.Time
	Frames      int
	Discarded   int
	OutOfRange  int
}

// Receiver reassembles addressed result frames.
type Receiver struct {
	link       *link
	negotiator *Negotiator
	cfg        Config
}

func NewReceiver(port transport.Port, cfg Config, logger zerolog.Logger) *Receiver {
	return &Receiver{
		link:       newLink(port, cfg, logger),
		negotiator: NewNegotiator(port, cfg, logger),
		cfg:        cfg,
	}
}

// Receive aligns, signals readiness and accumulates frames until every slot
// is filled, then sends the completion-ack. Control-flagged frames are stray
// sentinels or noise and are dropped; duplicates overwrite.
func (r *Receiver) Receive(ctx context.Context, mode Mode) (ReceiveReport, error) {
	report := ReceiveReport{}
	syncRes, err := r.negotiator.Inbound(ctx)
	report.Sync = syncRes
	report.FirstByteAt = syncRes.FirstByteAt
	if err != nil {
		return report, err
	}

	l := r.link
	result := NewResult(r.cfg.Dimension, mode)
	report.Result = result
	idle := newDeadline(r.cfg.ReceiveIdleTimeout)
	// grace is the number of bytes still allowed after the idle window ran
	// out: whatever was already queued at that moment. -1 means not expired.
	grace := -1
	timeout := func() error {
		return fmt.Errorf("%w: %d of %d slots still unset", ErrReceiveTimeout, result.Missing(), len(result.slots))
	}

	for !result.Complete() {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("session: receive: %w", err)
		}
		avail, err := l.available()
		if err != nil {
			return report, err
		}
		if idle.expired() {
			if grace < 0 {
				grace = avail
			}
			if avail < frame.Size || grace < frame.Size {
				return report, timeout()
			}
			grace -= frame.Size
		}
		if avail < frame.Size {
			if err := l.pause(ctx); err != nil {
				return report, fmt.Errorf("session: receive: %w", err)
			}
			continue
		}

		word, err := l.readWord()
		if err != nil {
			return report, err
		}
		f := frame.DecodeInbound(word)
		if f.Control {
			report.Discarded++
			if word == frame.Sentinel {
				observability.RecordDiscardedFrame(l.label, "sentinel")
				l.log.Debug().Msg("extra sentinel after alignment")
			} else {
				observability.RecordDiscardedFrame(l.label, "control")
				l.log.Debug().Hex("word", word[:]).Msg("extraneous control word after alignment")
			}
			continue
		}
		if !result.Set(int(f.X), int(f.Y), f.Value) {
			report.OutOfRange++
			observability.RecordDiscardedFrame(l.label, "out_of_range")
			l.log.Debug().Uint8("x", f.X).Uint8("y", f.Y).Msg("result frame outside result bounds")
			continue
		}
		report.Frames++
		idle.reset()
		grace = -1
		l.log.Trace().Uint8("x", f.X).Uint8("y", f.Y).Uint16("value", f.Value).Msg("result frame")
	}

	if err := r.negotiator.Complete(); err != nil {
		return report, err
	}
	return report, nil
}
