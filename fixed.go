package gogusplayer

import "math"

// Sample positions and loop points are Q10 fixed-point: index<<10 | fraction.
const (
	FracBits = 10
	FracOne  = 1 << FracBits
	FracMask = FracOne - 1
)

// Envelope levels live on a 12-bit amplitude scale, separate from the
// position scale above.
const (
	EnvBits = 12
	EnvMax  = 1<<EnvBits - 1
)

// AdjustOne is unity gain for the Q10 channel and note gain factors.
const AdjustOne = 1 << 10

// ToFixed converts a whole sample index to a Q10 position.
func ToFixed(index int) int64 {
	return int64(index) << FracBits
}

// SplitPos splits a Q10 position into its sample index and fractional offset.
func SplitPos(pos int64) (idx int, frac int) {
	return int(pos >> FracBits), int(pos & FracMask)
}

// PitchIncrement returns the Q10 per-output-sample position delta that plays
// a sample recorded at rootFreq (sampled at patchRate) back at noteFreq on an
// output running at outRate. Frequencies may use any common unit.
func PitchIncrement(noteFreq, rootFreq float64, patchRate, outRate int) int64 {
	if rootFreq <= 0 || patchRate <= 0 || outRate <= 0 {
		return FracOne
	}
	ratio := noteFreq / rootFreq * float64(patchRate) / float64(outRate)
	inc := int64(math.Round(ratio * FracOne))
	if inc < 1 {
		inc = 1
	}
	return inc
}

// KeyFrequency returns the equal-tempered frequency of a MIDI key in
// millihertz (the unit GUS patches store), shifted by bend semitones.
func KeyFrequency(key int, bend float64) float64 {
	return 440000.0 * math.Pow(2.0, (float64(key-69)+bend)/12.0)
}

func clampInt32(v, lo, hi int32) int32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
