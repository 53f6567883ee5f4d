package gogusplayer

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// testPatSample describes one sample of a synthetic GUS patch.
type testPatSample struct {
	name      string
	data      []int16
	bits8     bool
	unsigned  bool
	loopStart int // sample index
	loopEnd   int // sample index
	fractions byte
	modes     Modes // loop/envelope/sustain bits; width and sign come from the fields above
	rate      int
	low       uint32 // millihertz
	high      uint32
	root      uint32
	envRates  [6]byte
	envLevels [6]byte
}

// buildPat assembles the bytes of a single-layer GUS patch file.
func buildPat(name string, samples ...testPatSample) []byte {
	hdr := make([]byte, patHeaderSize)
	copy(hdr, "GF1PATCH110\x00ID#000002\x00")
	copy(hdr[22:], "synthetic test patch")
	hdr[82] = 1
	copy(hdr[131:147], name)
	hdr[151] = 1
	hdr[198] = byte(len(samples))

	out := hdr
	for _, s := range samples {
		modes := s.modes
		var body []byte
		loopStart, loopEnd := s.loopStart, s.loopEnd
		if s.bits8 {
			body = make([]byte, len(s.data))
			for i, v := range s.data {
				b := byte(int8(v >> 8))
				if s.unsigned {
					b ^= 0x80
				}
				body[i] = b
			}
		} else {
			modes |= Mode16Bit
			body = make([]byte, 2*len(s.data))
			for i, v := range s.data {
				u := uint16(v)
				if s.unsigned {
					u ^= 0x8000
				}
				binary.LittleEndian.PutUint16(body[2*i:], u)
			}
			loopStart *= 2
			loopEnd *= 2
		}
		if s.unsigned {
			modes |= ModeUnsigned
		}

		sh := make([]byte, patSampleHeaderSize)
		copy(sh[0:7], s.name)
		sh[7] = s.fractions
		binary.LittleEndian.PutUint32(sh[8:], uint32(len(body)))
		binary.LittleEndian.PutUint32(sh[12:], uint32(loopStart))
		binary.LittleEndian.PutUint32(sh[16:], uint32(loopEnd))
		binary.LittleEndian.PutUint16(sh[20:], uint16(s.rate))
		binary.LittleEndian.PutUint32(sh[22:], s.low)
		binary.LittleEndian.PutUint32(sh[26:], s.high)
		binary.LittleEndian.PutUint32(sh[30:], s.root)
		copy(sh[37:43], s.envRates[:])
		copy(sh[43:49], s.envLevels[:])
		sh[55] = byte(modes)

		out = append(out, sh...)
		out = append(out, body...)
	}
	return out
}

// sineData returns n samples of a sine with the given period and amplitude.
func sineData(n, period int, amp float64) []int16 {
	data := make([]int16, n)
	for i := range data {
		data[i] = int16(math.Round(amp * math.Sin(2*math.Pi*float64(i)/float64(period))))
	}
	return data
}

// loopedSine is a looping sustained patch with a quick attack, used by the
// mixer and player tests.
func loopedSine() testPatSample {
	return testPatSample{
		name:      "sine",
		data:      sineData(1000, 100, 12000),
		loopStart: 100,
		loopEnd:   900,
		modes:     ModeLoop | ModeEnvelope | ModeSustain,
		rate:      44100,
		low:       8000,
		high:      12600000,
		root:      440000,
		envRates:  [6]byte{63, 63, 63, 63, 63, 63},
		envLevels: [6]byte{255, 250, 240, 0, 0, 0},
	}
}

// writeTestFile writes content under dir and returns its path.
func writeTestFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("Failed to create directory for %s: %v", name, err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

// writeTestWAV writes interleaved PCM through the go-audio encoder.
func writeTestWAV(t *testing.T, path string, data []int, rate, channels, bitDepth int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create WAV file: %v", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, rate, bitDepth, channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: rate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("Failed to write WAV data: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Failed to close WAV encoder: %v", err)
	}
}

// testMidiEvent is one event of a synthetic single-track song, with its
// delta in ticks at 96 ticks per quarter note and 120 bpm (5.2083ms a tick).
type testMidiEvent struct {
	delta uint32
	msg   midi.Message
}

const testTicksPerQuarter = 96

func writeTestMidi(t *testing.T, path string, events ...testMidiEvent) {
	t.Helper()
	s := smf.New()
	s.TimeFormat = smf.MetricTicks(testTicksPerQuarter)

	var tr smf.Track
	tr.Add(0, smf.MetaTempo(120))
	for _, e := range events {
		tr.Add(e.delta, e.msg)
	}
	tr.Close(0)
	if err := s.Add(tr); err != nil {
		t.Fatalf("Failed to add MIDI track: %v", err)
	}
	if err := s.WriteFile(path); err != nil {
		t.Fatalf("Failed to write MIDI file: %v", err)
	}
}

// testSetup writes a patch directory with a config mapping program 0 to a
// looped sine and drum key 36 to the same patch.
func testSetup(t *testing.T) (dir, cfgPath string) {
	t.Helper()
	dir = t.TempDir()
	writeTestFile(t, dir, "patches/sine.pat", buildPat("sine", loopedSine()))
	cfgPath = writeTestFile(t, dir, "test.cfg", []byte(
		"dir patches\n"+
			"bank 0\n"+
			"0 sine amp=100\n"+
			"drumset 0\n"+
			"36 sine\n"))
	return dir, cfgPath
}

// testPatch builds an in-memory patch with a flat envelope at full level.
func testPatch(data []int16) *Patch {
	p := &Patch{
		Name:     "test",
		Data:     data,
		Rate:     44100,
		RootFreq: 440000,
		HighFreq: 20000000,
	}
	for i := range p.EnvTarget {
		p.EnvTarget[i] = EnvMax
	}
	return p
}

// rampData returns n samples where data[i] = step*i.
func rampData(n int, step int16) []int16 {
	data := make([]int16, n)
	for i := range data {
		data[i] = int16(i) * step
	}
	return data
}

// fullNote returns a note at full envelope level with unity gains.
func fullNote(p *Patch, inc int64) *Note {
	n := NewNote(p, nil, inc, AdjustOne)
	n.EnvLevel = EnvMax
	n.EnvInc = 0
	return n
}

func shouldPanic(t *testing.T, f func()) {
	t.Helper()
	defer func() { _ = recover() }()
	f()
	t.Errorf("Expected panic")
}
