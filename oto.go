//go:build oto

package gogusplayer

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/GeoffreyPlitt/debuggo"
	"github.com/ebitengine/oto/v3"
)

var otoDebug = debuggo.Debug("gusplayer:oto")

// OtoOutput plays a sample source through the system speaker.
type OtoOutput struct {
	ctx     *oto.Context
	player  *oto.Player
	source  SampleSource
	samples []int16
	started bool
	mutex   sync.Mutex // setup and control only
}

// NewOtoOutput opens a 16-bit stereo output at sampleRate pulling from source.
func NewOtoOutput(source SampleSource, sampleRate int) (*OtoOutput, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("failed to open oto context: %w", err)
	}
	<-ready

	o := &OtoOutput{
		ctx:     ctx,
		source:  source,
		samples: make([]int16, 2*renderBlockFrames),
	}
	o.player = ctx.NewPlayer(o)
	otoDebug("Oto output ready at %d Hz", sampleRate)
	return o, nil
}

// Read implements io.Reader for the oto player.
func (o *OtoOutput) Read(p []byte) (int, error) {
	n := len(p) / 4 * 2
	if len(o.samples) < n {
		o.samples = make([]int16, n)
	}
	samples := o.samples[:n]
	o.source.ReadInt16(samples)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(p[2*i:], uint16(s))
	}
	return 2 * n, nil
}

// Start begins playback.
func (o *OtoOutput) Start() {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	if !o.started {
		o.player.Play()
		o.started = true
	}
}

// Close stops playback and releases the player.
func (o *OtoOutput) Close() error {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	o.started = false
	if o.player == nil {
		return nil
	}
	err := o.player.Close()
	o.player = nil
	return err
}
