package wheel

import (
	"math"
	"time"
)

// Floors applied by Clamp regardless of configuration.
const (
	MinTickDelay  = 5 * time.Millisecond
	MinGrowth     = 1.01
	MinBlinkDelay = 20 * time.Millisecond

	// MaxRolloutFactor keeps an infinite factor from producing an
	// unbounded path.
	MaxRolloutFactor = 1000.0
)

// SpinConfig controls the animation pacing and path length.
type SpinConfig struct {
	FastDelay     time.Duration // first tick delay
	SlowDelay     time.Duration // deceleration plateau
	Growth        float64       // delay multiplier per tick, > 1
	Rounds        int           // full passes over the candidates before the rollout
	RolloutFactor float64       // rollout length relative to the candidate count
	BlinkCount    int           // on/off pairs when the winner is revealed
	BlinkDelay    time.Duration // time between blink toggles
}

func DefaultSpinConfig() SpinConfig {
	return SpinConfig{
		FastDelay:     18 * time.Millisecond,
		SlowDelay:     240 * time.Millisecond,
		Growth:        1.12,
		Rounds:        3,
		RolloutFactor: 1.5,
		BlinkCount:    3,
		BlinkDelay:    180 * time.Millisecond,
	}
}

// Clamp returns c with every field raised to its sane minimum.
// NaN floats are treated as below the minimum.
func (c SpinConfig) Clamp() SpinConfig {
	if c.FastDelay < MinTickDelay {
		c.FastDelay = MinTickDelay
	}
	if c.SlowDelay < c.FastDelay {
		c.SlowDelay = c.FastDelay
	}
	if !(c.Growth >= MinGrowth) {
		c.Growth = MinGrowth
	}
	if c.Rounds < 0 {
		c.Rounds = 0
	}
	switch {
	case !(c.RolloutFactor >= 0):
		c.RolloutFactor = 0
	case c.RolloutFactor > MaxRolloutFactor:
		c.RolloutFactor = MaxRolloutFactor
	}
	if c.BlinkCount < 0 {
		c.BlinkCount = 0
	}
	if c.BlinkDelay < MinBlinkDelay {
		c.BlinkDelay = MinBlinkDelay
	}
	return c
}

// nextDelay grows d geometrically and caps it at the slow plateau.
func (c SpinConfig) nextDelay(d time.Duration) time.Duration {
	f := float64(d) * c.Growth
	if math.IsNaN(f) || f > float64(c.SlowDelay) {
		return c.SlowDelay
	}
	return time.Duration(f)
}

// tickDelay is what actually gets scheduled: never below the floor so the
// animation always makes progress.
func tickDelay(d time.Duration) time.Duration {
	return max(d, MinTickDelay)
}
