package session

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/danmuck/systolink/internal/protocol/frame"
	"github.com/danmuck/systolink/internal/transport"
	"github.com/rs/zerolog"
)

// Negotiator runs the control-word exchanges that authorise each direction.
type Negotiator struct {
	link    *link
	sync    *Synchronizer
	cfg     Config
	rng     *rand.Rand
	timeout time.Duration
}

func NewNegotiator(port transport.Port, cfg Config, logger zerolog.Logger) *Negotiator {
	return &Negotiator{
		link:    newLink(port, cfg, logger),
		sync:    NewSynchronizer(port, cfg, logger),
		cfg:     cfg,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		timeout: cfg.HandshakeTimeout,
	}
}

// Outbound repeats the sentinel until the device answers with a ready-ack,
// then sends start-magic once.
func (n *Negotiator) Outbound(ctx context.Context) error {
	l := n.link
	dl := newDeadline(n.timeout)
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("session: outbound handshake: %w", err)
		}
		if dl.expired() {
			return fmt.Errorf("%w: no ready-ack after %d sentinels", ErrHandshakeTimeout, attempt-1)
		}
		if err := l.send(frame.OutboundSentinel, 1); err != nil {
			return err
		}

		avail, err := l.available()
		if err != nil {
			return err
		}
		if avail >= frame.Size {
			word, err := l.readWord()
			if err != nil {
				return err
			}
			if word == frame.ReadyAck {
				if err := l.send(frame.OutboundStartMagic, 1); err != nil {
					return err
				}
				l.log.Debug().Int("sentinels", attempt).Msg("outbound handshake complete")
				return nil
			}
			l.log.Debug().Hex("word", word[:]).Msg("outbound handshake ignoring word")
		}

		if err := sleepCtx(ctx, n.cfg.Backoff.Delay(attempt, n.rng)); err != nil {
			return fmt.Errorf("session: outbound handshake: %w", err)
		}
	}
}

// Inbound aligns on the device's sentinel stream and answers with a burst of
// ready-acks.
func (n *Negotiator) Inbound(ctx context.Context) (SyncResult, error) {
	res, err := n.sync.Align(ctx)
	if err != nil {
		return res, err
	}
	if err := n.link.send(frame.ReadyAck, n.cfg.ReadyAckRepeats); err != nil {
		return res, err
	}
	n.link.log.Debug().Int("repeats", n.cfg.ReadyAckRepeats).Msg("ready-ack sent")
	return res, nil
}

// Complete tells the device every expected result arrived.
func (n *Negotiator) Complete() error {
	if err := n.link.send(frame.CompletionAck, 1); err != nil {
		return err
	}
	n.link.log.Debug().Msg("completion-ack sent")
	return nil
}
