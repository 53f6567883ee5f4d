package gogusplayer

import (
	"fmt"
	"os"

	"github.com/GeoffreyPlitt/debuggo"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

var wavDebug = debuggo.Debug("gusplayer:wav")

const (
	renderBlockFrames = 1024
	// renderTailLimit bounds how long voices may ring after the last event.
	renderTailLimit = 30 // seconds
)

// RenderMidiToWav renders a MIDI file to a 16-bit stereo WAV file using a
// fresh mixer, so a live backend is unaffected.
func (p *GusPlayer) RenderMidiToWav(midiPath, wavPath string) error {
	song, err := LoadMidiFile(midiPath)
	if err != nil {
		return err
	}
	frames, err := RenderSongToWav(song, p.NewMixer(), wavPath)
	if err != nil {
		return err
	}
	wavDebug("Rendered %s to %s: %d frames", midiPath, wavPath, frames)
	return nil
}

// RenderSongToWav plays song through mixer until it finishes and writes the
// result to wavPath. It returns the number of frames written.
func RenderSongToWav(song *Song, mixer *Mixer, wavPath string) (int64, error) {
	file, err := os.Create(wavPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create WAV file: %w", err)
	}
	defer file.Close()

	rate := mixer.SampleRate()
	enc := wav.NewEncoder(file, rate, 16, 2, 1)

	seq := NewSequencer(song, mixer)
	limit := song.Duration*int64(rate)/1e6 + int64(renderTailLimit*rate)

	block := make([]int16, 2*renderBlockFrames)
	intBuf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: 2,
			SampleRate:  rate,
		},
		Data:           make([]int, len(block)),
		SourceBitDepth: 16,
	}

	for !seq.Done() && seq.Frame() < limit {
		n := seq.ReadInt16(block)
		for i := 0; i < 2*n; i++ {
			intBuf.Data[i] = int(block[i])
		}
		intBuf.Data = intBuf.Data[:2*n]
		if err := enc.Write(intBuf); err != nil {
			return seq.Frame(), fmt.Errorf("failed to write WAV data: %w", err)
		}
		intBuf.Data = intBuf.Data[:cap(intBuf.Data)]
	}

	if err := enc.Close(); err != nil {
		return seq.Frame(), fmt.Errorf("failed to finalize WAV file: %w", err)
	}
	return seq.Frame(), nil
}
