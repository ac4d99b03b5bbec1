package session

import (
	"math/rand"
	"time"
)

// BackoffConfig paces repeated unanswered writes, such as outbound sentinels
// while the device is still busy.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	// Jitter scales each delay by a random factor in [0.5, 1.5).
	Jitter bool
}

// Delay returns the pause after the given 1-based attempt. Growth stops at
// MaxDelay when it is set.
func (c BackoffConfig) Delay(attempt int, rng *rand.Rand) time.Duration {
	if c.InitialDelay <= 0 {
		return 0
	}
	mult := c.Multiplier
	if mult < 1 {
		mult = 1
	}
	delay := float64(c.InitialDelay)
	ceiling := float64(c.MaxDelay)
	for i := 1; i < attempt; i++ {
		delay *= mult
		if ceiling > 0 && delay >= ceiling {
			delay = ceiling
			break
		}
	}
	if c.Jitter {
		factor := 1.0
		if rng != nil {
			factor = 0.5 + rng.Float64()
		}
		delay *= factor
	}
	return time.Duration(delay)
}
