package gogusplayer

import (
	"github.com/gopxl/beep"
)

// Format describes the mixer's output as a beep format.
func (m *Mixer) Format() beep.Format {
	return beep.Format{
		SampleRate:  beep.SampleRate(m.sampleRate),
		NumChannels: 2,
		Precision:   2,
	}
}

// MixerStreamer is an endless beep.Streamer over a live mixer. Events sent
// to the mixer between Stream calls take effect at the next block.
type MixerStreamer struct {
	mixer       *Mixer
	left, right []float32
}

// Streamer returns a beep.Streamer rendering the mixer.
func (m *Mixer) Streamer() *MixerStreamer {
	return &MixerStreamer{mixer: m}
}

// Stream implements beep.Streamer.
func (s *MixerStreamer) Stream(samples [][2]float64) (int, bool) {
	if len(s.left) < len(samples) {
		s.left = make([]float32, len(samples))
		s.right = make([]float32, len(samples))
	}
	n := s.mixer.ReadFloat32(s.left[:len(samples)], s.right[:len(samples)])
	for i := 0; i < n; i++ {
		samples[i][0] = float64(s.left[i])
		samples[i][1] = float64(s.right[i])
	}
	return n, true
}

// Err implements beep.Streamer.
func (s *MixerStreamer) Err() error {
	return nil
}

// Streamer returns a beep.Streamer that plays the song and drains once every
// event has been applied and all voices have ended.
func (s *Sequencer) Streamer() beep.Streamer {
	var block []int16
	return beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		if s.Done() {
			return 0, false
		}
		if len(block) < 2*len(samples) {
			block = make([]int16, 2*len(samples))
		}
		n := s.ReadInt16(block[:2*len(samples)])
		for i := 0; i < n; i++ {
			samples[i][0] = float64(block[2*i]) / 32768
			samples[i][1] = float64(block[2*i+1]) / 32768
		}
		return n, true
	})
}
