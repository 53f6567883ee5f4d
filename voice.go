package gogusplayer

// Note is one sounding voice. It is mutated in place by the renderer and
// must only be rendered from one goroutine at a time.
type Note struct {
	SamplePos int64 // Q10 read position into Patch.Data
	SampleInc int64 // Q10 per-output-sample delta

	Env      int   // envelope segment, EnvDone once the voice has ended
	EnvLevel int32 // 0..EnvMax
	EnvInc   int32

	// Modes is copied from the patch at note-on; release clears the loop bit
	// here without touching the shared patch.
	Modes Modes

	// Gain is the per-note Q10 velocity and instrument amplitude factor.
	Gain int32

	Patch   *Patch
	Channel *Channel

	key        uint8 // key as received, for note-off matching
	pitchKey   uint8 // key the pitch is computed from
	velocity   uint8
	channelNum int
	instrument *Instrument
	held       bool // note-off deferred by the sustain pedal
	releasing  bool
}

// NewNote activates a voice for patch at the given pitch increment.
func NewNote(patch *Patch, channel *Channel, inc int64, gain int32) *Note {
	n := &Note{
		SampleInc: inc,
		Modes:     patch.Modes,
		Gain:      gain,
		Patch:     patch,
		Channel:   channel,
	}
	n.EnvInc = patch.EnvInc[0]
	return n
}

// Ended reports whether the voice has reached its terminal segment.
func (n *Note) Ended() bool {
	return n.Env >= EnvDone
}

// Release starts the release phase after a note-off. Enveloped patches move
// to segment 3; patches without an envelope stop looping and play out.
func (n *Note) Release() {
	if n.Ended() || n.releasing {
		return
	}
	n.releasing = true
	if n.Modes&ModeEnvelope == 0 {
		n.Modes &^= ModeLoop
		return
	}
	if n.Env < 3 {
		n.SetSegment(3)
	}
}

// SetSegment forces the envelope into segment seg, moving toward that
// segment's target from the current level.
func (n *Note) SetSegment(seg int) {
	if seg < 0 || seg >= EnvSegments {
		n.Env = EnvDone
		n.EnvInc = 0
		return
	}
	n.Env = seg
	inc := n.Patch.EnvInc[seg]
	if inc < 0 {
		inc = -inc
	}
	if n.EnvLevel > n.Patch.EnvTarget[seg] {
		inc = -inc
	}
	n.EnvInc = inc
}

// advanceEnvelope applies one frame of envelope motion and reports false
// when the voice has finished.
func (n *Note) advanceEnvelope() bool {
	if n.EnvInc == 0 {
		return true
	}
	n.EnvLevel += n.EnvInc
	target := n.Patch.EnvTarget[n.Env]
	if (n.EnvInc > 0 && n.EnvLevel < target) || (n.EnvInc < 0 && n.EnvLevel > target) {
		return true
	}
	n.EnvLevel = target

	switch n.Env {
	case 0:
		if n.Modes&ModeEnvelope == 0 {
			n.EnvInc = 0
			return true
		}
	case 2:
		if n.Modes&ModeSustain != 0 {
			n.EnvInc = 0
			return true
		}
	case 5:
		if n.EnvLevel == 0 {
			return false
		}
		// Release tail: stop looping so the sample runs out.
		n.Modes &^= ModeLoop
		n.EnvInc = 0
		return true
	}

	n.Env++
	n.EnvInc = n.Patch.EnvInc[n.Env]
	return true
}

// Channel is the per-MIDI-channel mix state shared by its notes.
type Channel struct {
	// Q10 stereo gains combining volume, expression, pan and master volume.
	LeftAdjust  int32
	RightAdjust int32

	volume     uint8
	expression uint8
	pan        uint8
	program    uint8
	bank       uint8
	pitchBend  int16 // -8192..8191
	bendRange  float64
	sustain    bool
	drum       bool
	rpnMSB     uint8
	rpnLSB     uint8
}

func newChannel(drum bool) *Channel {
	c := &Channel{drum: drum}
	c.reset()
	return c
}

func (c *Channel) reset() {
	c.volume = 100
	c.pan = 64
	c.bendRange = 2
	c.resetControllers()
}

// resetControllers handles Reset All Controllers. Volume, pan and the
// pitch-bend range survive it.
func (c *Channel) resetControllers() {
	c.expression = 127
	c.pitchBend = 0
	c.sustain = false
	c.rpnMSB = 127
	c.rpnLSB = 127
}

// updateAdjust recomputes the stereo gains. master is a Q10 factor.
func (c *Channel) updateAdjust(master int32) {
	gain := int64(c.volume) * int64(c.expression) * int64(master) / (127 * 127)

	left := int64(127 - int(c.pan))
	if left > 63 {
		left = 63
	}
	right := int64(c.pan)
	if right > 64 {
		right = 64
	}
	c.LeftAdjust = int32(gain * left / 63)
	c.RightAdjust = int32(gain * right / 64)
}

// bendSemitones returns the current pitch bend in semitones.
func (c *Channel) bendSemitones() float64 {
	return float64(c.pitchBend) / 8192.0 * c.bendRange
}
