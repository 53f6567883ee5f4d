package gogusplayer

import (
	"fmt"
	"sync"
)

// Quality selects the interpolation used when resampling patches.
type Quality int

const (
	QualityLinear Quality = iota
	QualityHigh
)

func (q Quality) String() string {
	switch q {
	case QualityLinear:
		return "linear"
	case QualityHigh:
		return "high"
	default:
		return fmt.Sprintf("Quality(%d)", int(q))
	}
}

// Renderer mixes notes into a stereo accumulation buffer. The envelope, loop
// and termination logic is shared by every quality; only the waveform
// interpolation differs.
type Renderer struct {
	quality Quality
	interp  interpolator
}

// NewRenderer returns a renderer for the given quality. tables may be nil,
// in which case the process-wide tables are used for QualityHigh.
func NewRenderer(q Quality, tables *InterpTables) *Renderer {
	r := &Renderer{quality: q}
	switch q {
	case QualityHigh:
		if tables == nil {
			r.interp = defaultHQ()
		} else {
			r.interp = hqInterpolator(tables)
		}
	default:
		r.quality = QualityLinear
		r.interp = interpolateLinear
	}
	return r
}

// Quality returns the renderer's interpolation quality.
func (r *Renderer) Quality() Quality {
	return r.quality
}

// Render adds up to frames stereo frames of note into out, which holds
// interleaved left/right accumulators. It returns the number of frames
// produced; fewer than frames means the note ended during this call.
func (r *Renderer) Render(note *Note, out []int32, frames int) int {
	return renderNote(note, out, frames, r.interp)
}

// RenderLinear renders note with linear interpolation.
func RenderLinear(note *Note, out []int32, frames int) int {
	return renderNote(note, out, frames, interpolateLinear)
}

// RenderHQ renders note with the windowed interpolation kernel, using the
// process-wide tables.
func RenderHQ(note *Note, out []int32, frames int) int {
	return renderNote(note, out, frames, defaultHQ())
}

var (
	hqOnce    sync.Once
	hqDefault interpolator
)

func defaultHQ() interpolator {
	hqOnce.Do(func() {
		hqDefault = hqInterpolator(DefaultTables())
	})
	return hqDefault
}

func renderNote(note *Note, out []int32, frames int, interp interpolator) int {
	if frames <= 0 {
		return 0
	}
	if len(out) < 2*frames {
		panic(fmt.Sprintf("gogusplayer: mix buffer holds %d slots, %d frames need %d", len(out), frames, 2*frames))
	}
	if note.Ended() {
		return 0
	}
	if note.Patch == nil || len(note.Patch.Data) == 0 {
		note.Env = EnvDone
		return 0
	}

	patch := note.Patch
	data := patch.Data
	end := patch.SampleEnd()
	loopOK := patch.LoopValid()
	loopStart := patch.LoopStart
	loopEnd := patch.LoopEnd
	loopSize := loopEnd - loopStart

	left, right := int32(AdjustOne), int32(AdjustOne)
	if note.Channel != nil {
		left, right = note.Channel.LeftAdjust, note.Channel.RightAdjust
	}
	left = left * note.Gain >> 10
	right = right * note.Gain >> 10

	n := 0
	for n < frames {
		pos := note.SamplePos
		if pos < 0 || pos >= end {
			note.Env = EnvDone
			break
		}

		v := interp(data, pos) * note.EnvLevel >> EnvBits
		out[2*n] += v * left >> 10
		out[2*n+1] += v * right >> 10
		n++

		pos += note.SampleInc
		if note.Modes&ModeLoop != 0 && loopOK {
			if pos >= loopEnd {
				pos = loopStart + (pos-loopStart)%loopSize
			}
		} else if pos >= end {
			note.SamplePos = pos
			note.Env = EnvDone
			break
		}
		note.SamplePos = pos

		if !note.advanceEnvelope() {
			note.Env = EnvDone
			break
		}
	}
	return n
}
