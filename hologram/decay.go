package hologram

import (
	"math"
	"time"
)

// Decay constants.
const (
	// DefaultHalfLife is the half-life of the default importance decay.
	DefaultHalfLife = 72 * time.Hour

	// ArchiveThreshold is the effective weight below which DecaySweep
	// evicts a capsule.
	ArchiveThreshold = 0.2
)

// DecayFunc maps a capsule's age to a retention factor in [0, 1]. It must be
// monotonically non-increasing in age, so that a capsule's effective weight
// never exceeds its importance.
type DecayFunc func(age time.Duration) float64

// ExponentialDecay returns a half-life decay: retention halves every halfLife.
func ExponentialDecay(halfLife time.Duration) DecayFunc {
	return func(age time.Duration) float64 {
		if age <= 0 {
			return 1
		}
		return math.Exp(-math.Ln2 * age.Hours() / halfLife.Hours())
	}
}

// NoDecay keeps effective weight equal to importance regardless of age.
func NoDecay() DecayFunc {
	return func(time.Duration) float64 { return 1 }
}
