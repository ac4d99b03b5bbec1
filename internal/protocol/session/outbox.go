package session

import "time"

// PendingTransfer tracks one payload awaiting its completion-ack.
type PendingTransfer struct {
	Frames        int
	Bytes         int
	Attempts      int
	QueuedAt      time.Time
	LastAttemptAt time.Time
	AckDeadlineAt time.Time
}

func NewPendingTransfer(frames, bytes int, at time.Time) *PendingTransfer {
	return &PendingTransfer{Frames: frames, Bytes: bytes, QueuedAt: at}
}

// MarkAttempt records a transmission; the ack window restarts from it.
func (p *PendingTransfer) MarkAttempt(at time.Time, timeout time.Duration) {
	p.Attempts++
	p.LastAttemptAt = at
	p.AckDeadlineAt = at.Add(timeout)
}

func (p *PendingTransfer) Expired(now time.Time) bool {
	return p.Attempts > 0 && now.After(p.AckDeadlineAt)
}

func (p *PendingTransfer) Exhausted(maxAttempts int) bool {
	return p.Attempts >= maxAttempts
}
