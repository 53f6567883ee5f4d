package gogusplayer

import "math"

// Modes are the GUS sample mode bits.
type Modes uint8

const (
	Mode16Bit          Modes = 0x01
	ModeUnsigned       Modes = 0x02
	ModeLoop           Modes = 0x04
	ModePingPong       Modes = 0x08
	ModeReverse        Modes = 0x10
	ModeSustain        Modes = 0x20
	ModeEnvelope       Modes = 0x40
	ModeClampedRelease Modes = 0x80
)

// EnvSegments is the number of envelope stages; segment EnvDone is terminal.
const (
	EnvSegments = 6
	EnvDone     = EnvSegments
)

// Patch is one immutable instrument sample. It is shared by every Note that
// plays it and must not be modified once a Note references it.
type Patch struct {
	Name string
	Data []int16 // mono 16-bit PCM

	// Loop boundaries in Q10 sample positions.
	LoopStart int64
	LoopEnd   int64

	EnvTarget [EnvSegments]int32 // 0..EnvMax
	EnvInc    [EnvSegments]int32 // signed per-output-sample delta

	Modes Modes

	Rate     int     // recording rate in Hz
	RootFreq float64 // millihertz
	LowFreq  float64
	HighFreq float64
}

// SampleCount returns the number of PCM samples.
func (p *Patch) SampleCount() int {
	return len(p.Data)
}

// SampleEnd returns the Q10 position one past the last sample.
func (p *Patch) SampleEnd() int64 {
	return ToFixed(len(p.Data))
}

// LoopValid reports whether the loop points describe a usable forward loop.
func (p *Patch) LoopValid() bool {
	return p.LoopStart >= 0 && p.LoopStart < p.LoopEnd && p.LoopEnd <= p.SampleEnd()
}

// sanitize clamps untrusted header values into ranges the renderer relies on.
// Degenerate loops turn the patch into a one-shot sample.
func (p *Patch) sanitize() {
	if p.Modes&ModeLoop != 0 && !p.LoopValid() {
		patchDebug("Patch %q: dropping degenerate loop %d..%d (end %d)",
			p.Name, p.LoopStart, p.LoopEnd, p.SampleEnd())
		p.Modes &^= ModeLoop
	}
	for i := range p.EnvTarget {
		p.EnvTarget[i] = clampInt32(p.EnvTarget[i], 0, EnvMax)
	}
}

// Instrument groups the patches of one patch file. A note picks the patch
// whose frequency range covers its pitch.
type Instrument struct {
	Name    string
	Patches []*Patch
	Amp     int // percent
	Note    int // fixed playback key for drums, -1 when unused
}

// PatchFor selects the patch for a note frequency in millihertz.
func (in *Instrument) PatchFor(freq float64) *Patch {
	if in == nil || len(in.Patches) == 0 {
		return nil
	}
	for _, p := range in.Patches {
		if freq >= p.LowFreq && freq <= p.HighFreq {
			return p
		}
	}
	best := in.Patches[0]
	bestDist := math.Inf(1)
	for _, p := range in.Patches {
		if d := math.Abs(p.RootFreq - freq); d < bestDist {
			best, bestDist = p, d
		}
	}
	return best
}

// withOptions returns a copy of the instrument with config line options
// applied. Patch headers are copied; sample data stays shared.
func (in *Instrument) withOptions(amp, note int, clearModes Modes, stripTail bool) *Instrument {
	out := &Instrument{
		Name:    in.Name,
		Patches: make([]*Patch, len(in.Patches)),
		Amp:     amp,
		Note:    note,
	}
	for i, p := range in.Patches {
		cp := *p
		cp.Modes &^= clearModes
		if stripTail && cp.Modes&ModeLoop != 0 {
			end := int((cp.LoopEnd + FracMask) >> FracBits)
			if end < len(cp.Data) {
				cp.Data = cp.Data[:end]
			}
			cp.sanitize()
		}
		out.Patches[i] = &cp
	}
	return out
}
