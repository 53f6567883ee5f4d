package gogusplayer

import (
	"sync"

	"github.com/GeoffreyPlitt/debuggo"
)

var mixerDebug = debuggo.Debug("gusplayer:mixer")

const (
	numChannels = 16
	drumChannel = 9
)

// MIDI controller numbers the mixer understands.
const (
	ccBankSelect     = 0
	ccDataEntry      = 6
	ccVolume         = 7
	ccPan            = 10
	ccExpression     = 11
	ccSustain        = 64
	ccRPNLSB         = 100
	ccRPNMSB         = 101
	ccAllSoundOff    = 120
	ccResetAll       = 121
	ccAllNotesOff    = 123
	rpnPitchBendSens = 0
)

// SampleSource produces interleaved stereo 16-bit frames. Mixer and
// Sequencer both implement it.
type SampleSource interface {
	ReadInt16(dst []int16) int
}

// Mixer owns the channels and active voices and mixes them into blocks of
// interleaved stereo output. All methods are safe for concurrent use; events
// and rendering are serialised.
type Mixer struct {
	mu         sync.Mutex
	bank       *Bank
	renderer   *Renderer
	sampleRate int
	maxVoices  int
	master     int32
	channels   [numChannels]*Channel
	voices     []*Note
	accum      []int32
}

// NewMixer creates a mixer playing instruments from bank.
func NewMixer(bank *Bank, opts Options) *Mixer {
	opts = opts.withDefaults()
	if bank == nil {
		bank = NewBank()
	}
	m := &Mixer{
		bank:       bank,
		renderer:   NewRenderer(opts.Quality, nil),
		sampleRate: opts.SampleRate,
		maxVoices:  opts.MaxVoices,
		master:     int32(opts.MasterVolume * AdjustOne / 100),
		voices:     make([]*Note, 0, opts.MaxVoices),
	}
	for i := range m.channels {
		m.channels[i] = newChannel(i == drumChannel)
		m.channels[i].updateAdjust(m.master)
	}
	mixerDebug("Mixer created: rate=%d quality=%s voices=%d", m.sampleRate, opts.Quality, m.maxVoices)
	return m
}

// SampleRate returns the output rate in Hz.
func (m *Mixer) SampleRate() int {
	return m.sampleRate
}

// ActiveVoices returns the number of sounding voices.
func (m *Mixer) ActiveVoices() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.voices)
}

// NoteOn starts a voice. A velocity of zero is a note-off.
func (m *Mixer) NoteOn(ch, key, velocity uint8) {
	if velocity == 0 {
		m.NoteOff(ch, key)
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	ch &= 0x0f
	c := m.channels[ch]
	number := int(c.program)
	if c.drum {
		number = int(key)
	}
	inst, err := m.bank.Find(c.drum, int(c.bank), number)
	if err != nil {
		mixerDebug("Channel %d: %v", ch, err)
		return
	}

	pitchKey := key
	if inst.Note >= 0 && inst.Note <= 127 {
		pitchKey = uint8(inst.Note)
	}
	freq := KeyFrequency(int(pitchKey), c.bendSemitones())
	patch := inst.PatchFor(freq)
	if patch == nil || len(patch.Data) == 0 {
		return
	}

	gain := int32(velocity) * AdjustOne / 127 * int32(inst.Amp) / 100
	gain = clampInt32(gain, 0, 4*AdjustOne)

	// Retriggering a key releases the previous voice on it.
	for _, v := range m.voices {
		if v.channelNum == int(ch) && v.key == key && !v.releasing {
			v.Release()
		}
	}

	if len(m.voices) >= m.maxVoices {
		mixerDebug("Stealing oldest voice (channel %d key %d)", m.voices[0].channelNum, m.voices[0].key)
		copy(m.voices, m.voices[1:])
		m.voices[len(m.voices)-1] = nil
		m.voices = m.voices[:len(m.voices)-1]
	}

	n := NewNote(patch, c, PitchIncrement(freq, patch.RootFreq, patch.Rate, m.sampleRate), gain)
	n.key = key
	n.pitchKey = pitchKey
	n.velocity = velocity
	n.channelNum = int(ch)
	n.instrument = inst
	m.voices = append(m.voices, n)

	mixerDebug("Note on: channel=%d key=%d velocity=%d patch=%q inc=%d", ch, key, velocity, patch.Name, n.SampleInc)
}

// NoteOff releases the voices playing key on ch, or defers the release while
// the sustain pedal is down.
func (m *Mixer) NoteOff(ch, key uint8) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch &= 0x0f
	c := m.channels[ch]
	for _, v := range m.voices {
		if v.channelNum != int(ch) || v.key != key || v.releasing {
			continue
		}
		if c.sustain {
			v.held = true
			continue
		}
		v.Release()
	}
}

// ProgramChange selects the instrument for subsequent notes on ch.
func (m *Mixer) ProgramChange(ch, program uint8) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[ch&0x0f].program = program & 0x7f
}

// PitchBend sets the bend of ch (-8192..8191) and retunes its voices.
func (m *Mixer) PitchBend(ch uint8, value int16) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch &= 0x0f
	c := m.channels[ch]
	c.pitchBend = value
	m.retuneLocked(int(ch))
}

func (m *Mixer) retuneLocked(ch int) {
	c := m.channels[ch]
	for _, v := range m.voices {
		if v.channelNum != ch {
			continue
		}
		freq := KeyFrequency(int(v.pitchKey), c.bendSemitones())
		v.SampleInc = PitchIncrement(freq, v.Patch.RootFreq, v.Patch.Rate, m.sampleRate)
	}
}

// ControlChange applies a MIDI controller message.
func (m *Mixer) ControlChange(ch, controller, value uint8) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch &= 0x0f
	c := m.channels[ch]
	switch controller {
	case ccBankSelect:
		c.bank = value
	case ccVolume:
		c.volume = value
		c.updateAdjust(m.master)
	case ccPan:
		c.pan = value
		c.updateAdjust(m.master)
	case ccExpression:
		c.expression = value
		c.updateAdjust(m.master)
	case ccSustain:
		c.sustain = value >= 64
		if !c.sustain {
			m.releaseHeldLocked(int(ch))
		}
	case ccRPNMSB:
		c.rpnMSB = value
	case ccRPNLSB:
		c.rpnLSB = value
	case ccDataEntry:
		if c.rpnMSB == 0 && c.rpnLSB == rpnPitchBendSens {
			c.bendRange = float64(value)
			m.retuneLocked(int(ch))
		}
	case ccAllSoundOff:
		m.dropChannelLocked(int(ch))
	case ccResetAll:
		m.releaseHeldLocked(int(ch))
		c.resetControllers()
		c.updateAdjust(m.master)
		m.retuneLocked(int(ch))
	case ccAllNotesOff:
		for _, v := range m.voices {
			if v.channelNum == int(ch) {
				v.held = false
				v.Release()
			}
		}
	default:
		mixerDebug("Ignoring controller %d=%d on channel %d", controller, value, ch)
	}
}

// releaseHeldLocked releases the notes on ch kept alive by the sustain pedal.
func (m *Mixer) releaseHeldLocked(ch int) {
	for _, v := range m.voices {
		if v.channelNum == ch && v.held {
			v.held = false
			v.Release()
		}
	}
}

func (m *Mixer) dropChannelLocked(ch int) {
	live := m.voices[:0]
	for _, v := range m.voices {
		if v.channelNum != ch {
			live = append(live, v)
		}
	}
	for i := len(live); i < len(m.voices); i++ {
		m.voices[i] = nil
	}
	m.voices = live
}

// Reset silences every voice and restores channel defaults.
func (m *Mixer) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.voices {
		m.voices[i] = nil
	}
	m.voices = m.voices[:0]
	for i, c := range m.channels {
		c.reset()
		c.program = 0
		c.bank = 0
		c.drum = i == drumChannel
		c.updateAdjust(m.master)
	}
}

// Mix renders frames stereo frames of every active voice and returns the
// interleaved accumulator. The slice is reused by the next call.
func (m *Mixer) Mix(frames int) []int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mixLocked(frames)
}

func (m *Mixer) mixLocked(frames int) []int32 {
	if cap(m.accum) < 2*frames {
		m.accum = make([]int32, 2*frames)
	}
	buf := m.accum[:2*frames]
	clear(buf)

	live := m.voices[:0]
	for _, v := range m.voices {
		if got, ok := m.renderVoice(v, buf, frames); !ok || got < frames || v.Ended() {
			mixerDebug("Voice ended: channel=%d key=%d after %d/%d frames", v.channelNum, v.key, got, frames)
			continue
		}
		live = append(live, v)
	}
	for i := len(live); i < len(m.voices); i++ {
		m.voices[i] = nil
	}
	m.voices = live
	return buf
}

// renderVoice isolates the mix from a voice that fails while rendering; the
// voice is retired and the other voices keep playing.
func (m *Mixer) renderVoice(v *Note, buf []int32, frames int) (got int, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			mixerDebug("Voice on channel %d key %d failed: %v", v.channelNum, v.key, r)
			v.Env = EnvDone
			ok = false
		}
	}()
	return m.renderer.Render(v, buf, frames), true
}

// ReadInt16 fills dst with interleaved stereo 16-bit samples and returns the
// number of frames written.
func (m *Mixer) ReadInt16(dst []int16) int {
	frames := len(dst) / 2
	if frames == 0 {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	buf := m.mixLocked(frames)
	for i := 0; i < 2*frames; i++ {
		dst[i] = saturate16(buf[i])
	}
	return frames
}

// ReadFloat32 fills separate left and right buffers with samples in [-1, 1].
func (m *Mixer) ReadFloat32(left, right []float32) int {
	frames := min(len(left), len(right))
	if frames == 0 {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	buf := m.mixLocked(frames)
	for i := 0; i < frames; i++ {
		left[i] = float32(saturate16(buf[2*i])) / 32768
		right[i] = float32(saturate16(buf[2*i+1])) / 32768
	}
	return frames
}

func saturate16(v int32) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
