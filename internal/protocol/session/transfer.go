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

// TransferReport describes one send-path exchange.
type TransferReport struct {
	OK       bool
	Attempts int
	Frames   int
	Bytes    int
	// AckAt is when the completion-ack was read.
	AckAt time.Time
}

// Engine delivers payloads and retransmits them until the device acknowledges
// or the attempt budget runs out.
type Engine struct {
	link       *link
	negotiator *Negotiator
	cfg        Config
}

func NewEngine(port transport.Port, cfg Config, logger zerolog.Logger) *Engine {
	return &Engine{
		link:       newLink(port, cfg, logger),
		negotiator: NewNegotiator(port, cfg, logger),
		cfg:        cfg,
	}
}

// Send runs the outbound handshake, transmits the packed payload and waits
// for the completion-ack, retransmitting whenever ResendTimeout passes since
// the latest transmission. It fails with ErrResendsExhausted after MaxResends
// transmissions.
func (e *Engine) Send(ctx context.Context, p Payload, mode Mode) (TransferReport, error) {
	report := TransferReport{}
	if err := p.Validate(e.cfg.Dimension, mode); err != nil {
		return report, err
	}
	start := time.Now()
	if err := e.negotiator.Outbound(ctx); err != nil {
		return report, err
	}

	l := e.link
	data := PackPayload(p, mode)
	pending := NewPendingTransfer(len(data)/frame.Size, len(data), time.Now())
	report.Frames, report.Bytes = pending.Frames, pending.Bytes

	transmit := func() error {
		if err := l.write(data); err != nil {
			return err
		}
		if err := l.flush(); err != nil {
			return err
		}
		pending.MarkAttempt(time.Now(), e.cfg.ResendTimeout)
		observability.RecordTransmission(l.label)
		return nil
	}
	if err := transmit(); err != nil {
		return report, err
	}
	l.log.Debug().Int("frames", pending.Frames).Str("mode", mode.String()).Msg("payload sent")

	for {
		report.Attempts = pending.Attempts
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("session: transfer: %w", err)
		}
		avail, err := l.available()
		if err != nil {
			return report, err
		}
		drained := false
		if avail >= frame.Size {
			drained = true
			word, err := l.readWord()
			if err != nil {
				return report, err
			}
			if word == frame.CompletionAck {
				report.OK = true
				report.AckAt = time.Now()
				observability.RecordTransfer(l.label, true, report.AckAt.Sub(start))
				l.log.Debug().Int("attempts", pending.Attempts).Msg("completion-ack received")
				return report, nil
			}
			l.log.Debug().Hex("word", word[:]).Msg("transfer ignoring word while awaiting completion-ack")
		}

		if pending.Expired(time.Now()) {
			if pending.Exhausted(e.cfg.MaxResends) {
				observability.RecordTransfer(l.label, false, time.Since(start))
				l.log.Warn().Int("attempts", pending.Attempts).Msg("no completion-ack, giving up")
				return report, fmt.Errorf("%w: %d transmissions without completion-ack", ErrResendsExhausted, pending.Attempts)
			}
			l.log.Debug().
				Int("attempt", pending.Attempts+1).
				Dur("timeout", e.cfg.ResendTimeout).
				Msg("completion-ack timeout, retransmitting payload")
			if err := transmit(); err != nil {
				return report, err
			}
			continue
		}
		if drained {
			continue
		}
		if err := l.pause(ctx); err != nil {
			return report, fmt.Errorf("session: transfer: %w", err)
		}
	}
}
