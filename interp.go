package gogusplayer

import "math"

// interpolator reads the waveform value at a Q10 position. Implementations
// must only index inside data.
type interpolator func(data []int16, pos int64) int32

func interpolateLinear(data []int16, pos int64) int32 {
	idx, frac := SplitPos(pos)
	s0 := int32(data[idx])
	s1 := s0
	if idx+1 < len(data) {
		s1 = int32(data[idx+1])
	}
	return s0 + ((s1-s0)*int32(frac))>>FracBits
}

// hqInterpolator returns the windowed interpolator bound to tables. Near the
// ends of the sample, where a full kernel would read outside data, it falls
// back to a Newton polynomial over the samples that do exist.
func hqInterpolator(t *InterpTables) interpolator {
	return func(data []int16, pos int64) int32 {
		idx, frac := SplitPos(pos)
		left := idx
		right := len(data) - idx - 1
		if right <= 0 {
			return int32(data[idx])
		}

		order := 2*right - 1
		if o := 2*left + 1; o < order {
			order = o
		}
		if order < 1 {
			order = 1
		}

		var y float64
		if order < GaussN {
			half := order >> 1
			s := data[idx-half : idx-half+order+1]
			xd := float64(frac)/FracOne + float64(half)
			for ii := order; ii > 0; {
				row := t.NewtonRow(ii)
				for jj, c := range row {
					y += float64(s[jj]) * c
				}
				ii--
				y *= xd - float64(ii)
			}
			y += float64(s[0])
		} else {
			s := data[idx-gaussHalf : idx-gaussHalf+gaussTaps]
			for k, w := range t.GaussKernel(frac) {
				y += float64(s[k]) * w
			}
		}
		return int32(math.Round(y))
	}
}
