package gogusplayer

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
)

var (
	// ErrNotPatchFile is returned when the data lacks a GF1PATCH header.
	ErrNotPatchFile = errors.New("not a GUS patch file")
	// ErrUnsupportedPatch is returned for multi-instrument or multi-layer patches.
	ErrUnsupportedPatch = errors.New("unsupported GUS patch layout")
)

const (
	patHeaderSize       = 239 // file + instrument + layer headers
	patSampleHeaderSize = 96
	gusRampRate         = 44100 // volume ramp update rate the envelope bytes assume
)

// LoadPatFile reads a GUS .pat file.
func LoadPatFile(path string, outRate int) (*Instrument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read patch file %s: %w", path, err)
	}
	inst, err := ParsePat(bytes.NewReader(data), outRate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse patch file %s: %w", path, err)
	}
	return inst, nil
}

// ParsePat decodes a GUS patch. Envelope increments are computed for an
// output running at outRate.
func ParsePat(r io.Reader, outRate int) (*Instrument, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(raw) < patHeaderSize {
		return nil, fmt.Errorf("%w: %d byte header", ErrNotPatchFile, len(raw))
	}
	magic := string(raw[:22])
	if magic != "GF1PATCH110\x00ID#000002\x00" && magic != "GF1PATCH100\x00ID#000002\x00" {
		return nil, ErrNotPatchFile
	}
	if raw[82] > 1 {
		return nil, fmt.Errorf("%w: %d instruments", ErrUnsupportedPatch, raw[82])
	}
	if raw[151] > 1 {
		return nil, fmt.Errorf("%w: %d layers", ErrUnsupportedPatch, raw[151])
	}

	inst := &Instrument{
		Name: strings.TrimRight(string(raw[131:147]), "\x00 "),
		Amp:  100,
		Note: -1,
	}

	count := int(raw[198])
	off := patHeaderSize
	for i := 0; i < count; i++ {
		if off+patSampleHeaderSize > len(raw) {
			return nil, fmt.Errorf("sample %d header truncated", i)
		}
		hdr := raw[off : off+patSampleHeaderSize]
		off += patSampleHeaderSize

		size := int(binary.LittleEndian.Uint32(hdr[8:12]))
		if size < 0 || off+size > len(raw) {
			return nil, fmt.Errorf("sample %d data truncated: need %d bytes", i, size)
		}
		p, err := decodePatSample(hdr, raw[off:off+size], outRate)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
		off += size

		patchDebug("Patch %q sample %d: %d samples, rate %d, root %.0fmHz, modes %#02x, loop %d..%d",
			inst.Name, i, len(p.Data), p.Rate, p.RootFreq, uint8(p.Modes), p.LoopStart, p.LoopEnd)
		inst.Patches = append(inst.Patches, p)
	}
	if len(inst.Patches) == 0 {
		return nil, fmt.Errorf("%w: no samples", ErrUnsupportedPatch)
	}
	return inst, nil
}

func decodePatSample(hdr, body []byte, outRate int) (*Patch, error) {
	le := binary.LittleEndian
	fractions := hdr[7]
	loopStart := int64(le.Uint32(hdr[12:16]))
	loopEnd := int64(le.Uint32(hdr[16:20]))
	p := &Patch{
		Name:     strings.TrimRight(string(hdr[0:7]), "\x00 "),
		Rate:     int(le.Uint16(hdr[20:22])),
		LowFreq:  float64(le.Uint32(hdr[22:26])),
		HighFreq: float64(le.Uint32(hdr[26:30])),
		RootFreq: float64(le.Uint32(hdr[30:34])),
		Modes:    Modes(hdr[55]),
	}

	// Samples, with loop points converted from bytes to sample indices.
	if p.Modes&Mode16Bit != 0 {
		n := len(body) / 2
		p.Data = make([]int16, n)
		for i := 0; i < n; i++ {
			v := le.Uint16(body[2*i:])
			if p.Modes&ModeUnsigned != 0 {
				v ^= 0x8000
			}
			p.Data[i] = int16(v)
		}
		loopStart >>= 1
		loopEnd >>= 1
	} else {
		p.Data = make([]int16, len(body))
		for i, b := range body {
			if p.Modes&ModeUnsigned != 0 {
				b ^= 0x80
			}
			p.Data[i] = int16(int8(b)) << 8
		}
	}
	if len(p.Data) == 0 {
		return nil, errors.New("empty sample")
	}

	p.LoopStart = loopStart<<FracBits | int64(fractions&0x0f)<<FracBits/16
	p.LoopEnd = loopEnd<<FracBits | int64(fractions>>4)<<FracBits/16

	if p.Modes&ModeReverse != 0 {
		reverseSample(p)
	}
	if p.Modes&ModePingPong != 0 && p.Modes&ModeLoop != 0 && p.LoopValid() {
		unrollPingPong(p)
	}
	p.Modes &^= ModeReverse | ModePingPong | Mode16Bit | ModeUnsigned

	var prev int32
	for i := 0; i < EnvSegments; i++ {
		target := int32(hdr[43+i]) << 4
		inc := envelopeRate(hdr[37+i], outRate)
		if target < prev {
			inc = -inc
		}
		p.EnvTarget[i] = target
		p.EnvInc[i] = inc
		prev = target
	}

	p.sanitize()
	return p, nil
}

// envelopeRate converts a GUS ramp-rate byte to a per-output-sample delta on
// the 12-bit level scale. The top two bits divide the update rate by 8^n.
//
// The delta is an integer of at least 1, so a full-scale ramp lasts at most
// EnvMax frames (about 93ms at 44.1kHz). Rates slower than one level step per
// frame, which covers most bytes with the top bits set, are shortened to that.
func envelopeRate(rate byte, outRate int) int32 {
	if outRate <= 0 {
		outRate = gusRampRate
	}
	mantissa := float64(rate & 0x3f)
	div := math.Pow(8, float64(rate>>6))
	inc := int32(math.Round(mantissa * gusRampRate / (div * float64(outRate))))
	if inc < 1 {
		inc = 1
	}
	return inc
}

func reverseSample(p *Patch) {
	for i, j := 0, len(p.Data)-1; i < j; i, j = i+1, j-1 {
		p.Data[i], p.Data[j] = p.Data[j], p.Data[i]
	}
	end := p.SampleEnd()
	p.LoopStart, p.LoopEnd = end-p.LoopEnd, end-p.LoopStart
}

// unrollPingPong appends the reversed loop after the loop end so the
// bidirectional loop plays as a forward loop of twice the length.
func unrollPingPong(p *Patch) {
	ls := int(p.LoopStart >> FracBits)
	le := int(p.LoopEnd >> FracBits)
	if le > len(p.Data) {
		le = len(p.Data)
	}
	seg := p.Data[ls:le]
	out := make([]int16, 0, len(p.Data)+len(seg))
	out = append(out, p.Data[:le]...)
	for i := len(seg) - 1; i >= 0; i-- {
		out = append(out, seg[i])
	}
	out = append(out, p.Data[le:]...)
	p.Data = out
	p.LoopEnd += ToFixed(len(seg))
}
