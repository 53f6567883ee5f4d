package gogusplayer

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func parseTestPat(t *testing.T, samples ...testPatSample) *Instrument {
	t.Helper()
	inst, err := ParsePat(bytes.NewReader(buildPat("test", samples...)), 44100)
	if err != nil {
		t.Fatalf("Failed to parse patch: %v", err)
	}
	return inst
}

func TestParsePat16BitLooped(t *testing.T) {
	s := loopedSine()
	s.fractions = 0x84
	inst := parseTestPat(t, s)

	if inst.Name != "test" {
		t.Errorf("Expected instrument name test, got %q", inst.Name)
	}
	if inst.Amp != 100 || inst.Note != -1 {
		t.Errorf("Expected default amp 100 and note -1, got %d/%d", inst.Amp, inst.Note)
	}
	if len(inst.Patches) != 1 {
		t.Fatalf("Expected 1 patch, got %d", len(inst.Patches))
	}
	p := inst.Patches[0]

	if p.Name != "sine" {
		t.Errorf("Expected patch name sine, got %q", p.Name)
	}
	if diff := cmp.Diff(s.data, p.Data); diff != "" {
		t.Errorf("Sample data mismatch (-want +got):\n%s", diff)
	}
	if want := ToFixed(100) + 256; p.LoopStart != want {
		t.Errorf("Expected loop start %d, got %d", want, p.LoopStart)
	}
	if want := ToFixed(900) + 512; p.LoopEnd != want {
		t.Errorf("Expected loop end %d, got %d", want, p.LoopEnd)
	}
	if want := ModeLoop | ModeEnvelope | ModeSustain; p.Modes != want {
		t.Errorf("Expected modes %#02x, got %#02x", want, p.Modes)
	}
	if p.Rate != 44100 || p.RootFreq != 440000 || p.LowFreq != 8000 || p.HighFreq != 12600000 {
		t.Errorf("Unexpected header values: rate %d root %g low %g high %g", p.Rate, p.RootFreq, p.LowFreq, p.HighFreq)
	}

	wantTargets := [EnvSegments]int32{4080, 4000, 3840, 0, 0, 0}
	wantIncs := [EnvSegments]int32{63, -63, -63, -63, 63, 63}
	if p.EnvTarget != wantTargets {
		t.Errorf("Expected targets %v, got %v", wantTargets, p.EnvTarget)
	}
	if p.EnvInc != wantIncs {
		t.Errorf("Expected increments %v, got %v", wantIncs, p.EnvInc)
	}
}

func TestParsePatSampleFormats(t *testing.T) {
	data := []int16{-32768, -256, 0, 256, 32512}

	tests := []struct {
		name     string
		bits8    bool
		unsigned bool
	}{
		{"16-bit signed", false, false},
		{"16-bit unsigned", false, true},
		{"8-bit signed", true, false},
		{"8-bit unsigned", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst := parseTestPat(t, testPatSample{
				name:     "fmt",
				data:     data,
				bits8:    tt.bits8,
				unsigned: tt.unsigned,
				rate:     22050,
				root:     261626,
				high:     20000000,
			})
			p := inst.Patches[0]
			if diff := cmp.Diff(data, p.Data); diff != "" {
				t.Errorf("Sample data mismatch (-want +got):\n%s", diff)
			}
			if p.Modes&(Mode16Bit|ModeUnsigned) != 0 {
				t.Errorf("Expected format bits to be cleared, got %#02x", p.Modes)
			}
		})
	}
}

func TestParsePat8BitLoopPoints(t *testing.T) {
	inst := parseTestPat(t, testPatSample{
		data:      make([]int16, 64),
		bits8:     true,
		loopStart: 8,
		loopEnd:   40,
		modes:     ModeLoop,
		rate:      8000,
	})
	p := inst.Patches[0]
	if p.LoopStart != ToFixed(8) || p.LoopEnd != ToFixed(40) {
		t.Errorf("Expected loop 8..40 samples, got %d..%d", p.LoopStart>>FracBits, p.LoopEnd>>FracBits)
	}
}

func TestParsePatReverse(t *testing.T) {
	inst := parseTestPat(t, testPatSample{
		data:      rampData(10, 100),
		loopStart: 2,
		loopEnd:   5,
		modes:     ModeLoop | ModeReverse,
		rate:      44100,
	})
	p := inst.Patches[0]

	want := []int16{900, 800, 700, 600, 500, 400, 300, 200, 100, 0}
	if diff := cmp.Diff(want, p.Data); diff != "" {
		t.Errorf("Reversed data mismatch (-want +got):\n%s", diff)
	}
	if p.LoopStart != ToFixed(5) || p.LoopEnd != ToFixed(8) {
		t.Errorf("Expected mirrored loop 5..8, got %d..%d", p.LoopStart>>FracBits, p.LoopEnd>>FracBits)
	}
	if p.Modes&ModeReverse != 0 {
		t.Error("Expected reverse bit to be cleared")
	}
}

func TestParsePatPingPong(t *testing.T) {
	inst := parseTestPat(t, testPatSample{
		data:      rampData(8, 100),
		loopStart: 2,
		loopEnd:   5,
		modes:     ModeLoop | ModePingPong,
		rate:      44100,
	})
	p := inst.Patches[0]

	want := []int16{0, 100, 200, 300, 400, 400, 300, 200, 500, 600, 700}
	if diff := cmp.Diff(want, p.Data); diff != "" {
		t.Errorf("Unrolled data mismatch (-want +got):\n%s", diff)
	}
	if p.LoopStart != ToFixed(2) || p.LoopEnd != ToFixed(8) {
		t.Errorf("Expected forward loop 2..8, got %d..%d", p.LoopStart>>FracBits, p.LoopEnd>>FracBits)
	}
	if p.Modes&ModePingPong != 0 || p.Modes&ModeLoop == 0 {
		t.Errorf("Expected a plain forward loop, got modes %#02x", p.Modes)
	}
}

func TestParsePatDegenerateLoop(t *testing.T) {
	inst := parseTestPat(t, testPatSample{
		data:      make([]int16, 32),
		loopStart: 20,
		loopEnd:   10,
		modes:     ModeLoop,
		rate:      44100,
	})
	if inst.Patches[0].Modes&ModeLoop != 0 {
		t.Error("Expected degenerate loop to be dropped")
	}
}

func TestParsePatMultiSample(t *testing.T) {
	low := testPatSample{name: "low", data: make([]int16, 16), rate: 44100, low: 0, high: 300000, root: 220000}
	high := testPatSample{name: "high", data: make([]int16, 16), rate: 44100, low: 300001, high: 20000000, root: 880000}
	inst := parseTestPat(t, low, high)

	if len(inst.Patches) != 2 {
		t.Fatalf("Expected 2 patches, got %d", len(inst.Patches))
	}
	tests := []struct {
		freq float64
		want string
	}{
		{KeyFrequency(45, 0), "low"},
		{KeyFrequency(81, 0), "high"},
		{30000000, "high"},
	}
	for _, tt := range tests {
		if got := inst.PatchFor(tt.freq); got.Name != tt.want {
			t.Errorf("Frequency %.0f: expected %s, got %s", tt.freq, tt.want, got.Name)
		}
	}
}

func TestParsePatErrors(t *testing.T) {
	valid := buildPat("err", testPatSample{data: make([]int16, 16), rate: 44100})

	badMagic := append([]byte(nil), valid...)
	copy(badMagic, "GF1PATCH999")

	layers := append([]byte(nil), valid...)
	layers[151] = 2

	instruments := append([]byte(nil), valid...)
	instruments[82] = 3

	noSamples := append([]byte(nil), valid[:patHeaderSize]...)
	noSamples[198] = 0

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"short header", valid[:100], ErrNotPatchFile},
		{"bad magic", badMagic, ErrNotPatchFile},
		{"multiple layers", layers, ErrUnsupportedPatch},
		{"multiple instruments", instruments, ErrUnsupportedPatch},
		{"no samples", noSamples, ErrUnsupportedPatch},
		{"truncated data", valid[:len(valid)-4], nil},
		{"truncated header", valid[:patHeaderSize+10], nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePat(bytes.NewReader(tt.data), 44100)
			if err == nil {
				t.Fatal("Expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestEnvelopeRate(t *testing.T) {
	tests := []struct {
		rate    byte
		outRate int
		want    int32
	}{
		{63, 44100, 63},
		{63, 22050, 126},
		{0x40 | 32, 44100, 4},
		{0x80 | 63, 4410, 10},
		// Sub-step rates are floored to one level per frame.
		{0x80 | 63, 44100, 1},
		{0xC0 | 63, 44100, 1},
		{0, 44100, 1},
		{10, 0, 10},
	}
	for _, tt := range tests {
		if got := envelopeRate(tt.rate, tt.outRate); got != tt.want {
			t.Errorf("envelopeRate(%#02x, %d): expected %d, got %d", tt.rate, tt.outRate, tt.want, got)
		}
	}
}

func TestLoadPatFile(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "sine.pat", buildPat("sine", loopedSine()))

	inst, err := LoadPatFile(path, 44100)
	if err != nil {
		t.Fatalf("Failed to load patch file: %v", err)
	}
	if len(inst.Patches) != 1 || len(inst.Patches[0].Data) != 1000 {
		t.Errorf("Expected one 1000-sample patch, got %d patches", len(inst.Patches))
	}

	if _, err := LoadPatFile(filepath.Join(dir, "missing.pat"), 44100); err == nil {
		t.Error("Expected error for missing patch file")
	}

	junk := writeTestFile(t, dir, "junk.pat", bytes.Repeat([]byte{0x55}, 400))
	if _, err := LoadPatFile(junk, 44100); !errors.Is(err, ErrNotPatchFile) {
		t.Errorf("Expected ErrNotPatchFile, got %v", err)
	}
}
