package gogusplayer

import (
	"testing"

	"github.com/gopxl/beep"
)

func TestMixerFormat(t *testing.T) {
	m := testMixer(t, 4)
	format := m.Format()
	if format.SampleRate != 44100 || format.NumChannels != 2 || format.Precision != 2 {
		t.Errorf("Expected 44100 Hz 16-bit stereo, got %+v", format)
	}
	if got := format.SampleRate.N(1e9); got != 44100 {
		t.Errorf("Expected 44100 samples per second, got %d", got)
	}
}

func TestMixerStreamer(t *testing.T) {
	m := testMixer(t, 4)
	m.ProgramChange(0, 1)
	m.NoteOn(0, 69, 127)

	samples := make([][2]float64, 16)
	n, ok := m.Streamer().Stream(samples)
	if n != 16 || !ok {
		t.Fatalf("Expected 16 samples, got %d (ok=%v)", n, ok)
	}
	want := float64(int16(999*806>>10)) / 32768
	if samples[1][0] != float64(float32(want)) || samples[1][1] != samples[1][0] {
		t.Errorf("Expected %g on both sides, got %v", want, samples[1])
	}
}

func TestSequencerStreamerDrains(t *testing.T) {
	m := testMixer(t, 4)
	song := &Song{Events: []Event{
		{Kind: EventProgram, Channel: 0, Data1: 1},
		{Kind: EventNoteOn, Channel: 0, Data1: 69, Data2: 127},
	}}
	stream := NewSequencer(song, m).Streamer()

	// Take bounds the read in case the stream never drains.
	total := 0
	buf := make([][2]float64, 64)
	limited := beep.Take(10000, stream)
	for {
		n, ok := limited.Stream(buf)
		total += n
		if !ok {
			break
		}
	}
	// The 100-sample one-shot retires inside the second 64-frame block.
	if total != 128 {
		t.Errorf("Expected the stream to drain after 128 frames, got %d", total)
	}
	if err := limited.Err(); err != nil {
		t.Errorf("Expected no stream error, got %v", err)
	}
}
