package gogusplayer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/GeoffreyPlitt/debuggo"
	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"
)

var patchDebug = debuggo.Debug("gusplayer:patch")

// ErrUnsupportedFormat is returned for files that are neither GUS patches
// nor WAV/FLAC recordings.
var ErrUnsupportedFormat = errors.New("unsupported patch format")

// rawRootKey is the key a plain WAV/FLAC recording is assumed to be pitched at.
const rawRootKey = 60

// PatchCache loads instruments once per path. Envelope rates are baked for
// the cache's output rate.
type PatchCache struct {
	mu          sync.Mutex
	instruments map[string]*Instrument // File path -> Instrument
	outRate     int
}

// NewPatchCache creates a new patch cache for an output running at outRate
func NewPatchCache(outRate int) *PatchCache {
	return &PatchCache{
		instruments: make(map[string]*Instrument),
		outRate:     outRate,
	}
}

// LoadPatch loads a .pat, .wav or .flac file, using the cache if available
func (pc *PatchCache) LoadPatch(filePath string) (*Instrument, error) {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	if inst, exists := pc.instruments[filePath]; exists {
		patchDebug("Patch already cached: %s", filePath)
		return inst, nil
	}

	patchDebug("Loading new patch: %s", filePath)

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("patch file not found: %s", filePath)
	}

	var inst *Instrument
	var err error

	switch ext := strings.ToLower(filepath.Ext(filePath)); ext {
	case ".pat":
		inst, err = LoadPatFile(filePath, pc.outRate)
	case ".wav":
		inst, err = pc.loadWAV(filePath)
	case ".flac":
		inst, err = pc.loadFLAC(filePath)
	default:
		return nil, fmt.Errorf("%w: %s (supported: .pat, .wav, .flac)", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, err
	}

	pc.instruments[filePath] = inst

	patchDebug("Loaded patch: %s (%d samples)", filePath, len(inst.Patches))
	return inst, nil
}

// LoadPatchRelative loads a patch with a path relative to dir
func (pc *PatchCache) LoadPatchRelative(dir, relativePath string) (*Instrument, error) {
	return pc.LoadPatch(filepath.Join(dir, relativePath))
}

// GetPatch returns a cached instrument if it exists
func (pc *PatchCache) GetPatch(filePath string) (*Instrument, bool) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	inst, exists := pc.instruments[filePath]
	return inst, exists
}

// Clear removes all instruments from the cache
func (pc *PatchCache) Clear() {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.instruments = make(map[string]*Instrument)
	patchDebug("Patch cache cleared")
}

// Size returns the number of cached instruments
func (pc *PatchCache) Size() int {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return len(pc.instruments)
}

// loadWAV loads a WAV file as a one-shot instrument
func (pc *PatchCache) loadWAV(filePath string) (*Instrument, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open WAV file %s: %w", filePath, err)
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("invalid WAV file: %s", filePath)
	}

	audioData, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data from %s: %w", filePath, err)
	}

	channels := int(audioData.Format.NumChannels)
	if channels < 1 {
		channels = 1
	}
	frames := len(audioData.Data) / channels
	data := make([]int16, frames)
	for i := range data {
		// First channel only, scaled to 16 bits.
		v := audioData.Data[i*channels]
		if decoder.BitDepth == 8 {
			v -= 128 // 8-bit WAV data is unsigned
		}
		data[i] = to16(v, int(decoder.BitDepth))
	}

	return rawInstrument(filePath, data, int(audioData.Format.SampleRate))
}

// loadFLAC loads a FLAC file as a one-shot instrument
func (pc *PatchCache) loadFLAC(filePath string) (*Instrument, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open FLAC file %s: %w", filePath, err)
	}
	defer file.Close()

	stream, err := flac.New(file)
	if err != nil {
		return nil, fmt.Errorf("failed to create FLAC decoder for %s: %w", filePath, err)
	}
	defer stream.Close()

	info := stream.Info
	if info == nil {
		return nil, fmt.Errorf("no stream info available for FLAC file: %s", filePath)
	}
	bitsPerSample := int(info.BitsPerSample)

	var data []int16
	for {
		frame, err := stream.ParseNext()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("failed to read FLAC frame from %s: %w", filePath, err)
		}
		for _, s := range frame.Subframes[0].Samples {
			data = append(data, to16(int(s), bitsPerSample))
		}
	}

	return rawInstrument(filePath, data, int(info.SampleRate))
}

func to16(sample, bitDepth int) int16 {
	switch {
	case bitDepth > 16:
		return int16(sample >> (bitDepth - 16))
	case bitDepth > 0 && bitDepth < 16:
		return int16(sample << (16 - bitDepth))
	default:
		return int16(sample)
	}
}

// rawInstrument wraps plain PCM as a single patch without loop or envelope
// that attacks to full level on its first frame.
func rawInstrument(filePath string, data []int16, rate int) (*Instrument, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("no audio data in %s", filePath)
	}
	root := KeyFrequency(rawRootKey, 0)
	p := &Patch{
		Name:     filepath.Base(filePath),
		Data:     data,
		Rate:     rate,
		RootFreq: root,
		LowFreq:  0,
		HighFreq: KeyFrequency(127, 1),
	}
	for i := range p.EnvTarget {
		p.EnvTarget[i] = EnvMax
		p.EnvInc[i] = EnvMax
	}
	return &Instrument{
		Name:    p.Name,
		Patches: []*Patch{p},
		Amp:     100,
		Note:    -1,
	}, nil
}
