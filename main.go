package gogusplayer

import (
	"fmt"

	"github.com/GeoffreyPlitt/debuggo"
)

var debug = debuggo.Debug("gusplayer:main")

// Options configures output format and voice limits.
type Options struct {
	SampleRate   int     // output rate in Hz
	Quality      Quality // interpolation used by the renderer
	MaxVoices    int     // polyphony; the oldest voice is stolen beyond it
	MasterVolume int     // percent
}

// DefaultOptions returns 44.1kHz high-quality rendering with 32 voices.
func DefaultOptions() Options {
	return Options{
		SampleRate:   44100,
		Quality:      QualityHigh,
		MaxVoices:    32,
		MasterVolume: 100,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.SampleRate <= 0 {
		o.SampleRate = def.SampleRate
	}
	if o.MaxVoices <= 0 {
		o.MaxVoices = def.MaxVoices
	}
	if o.MasterVolume <= 0 {
		o.MasterVolume = def.MasterVolume
	}
	if o.MasterVolume > 400 {
		o.MasterVolume = 400
	}
	return o
}

// GusPlayer is a GUS patch synthesizer driven by a timidity-style config
type GusPlayer struct {
	config     *Config
	cache      *PatchCache
	bank       *Bank
	opts       Options
	mixer      *Mixer
	jackClient *JackClient
}

// NewGusPlayer loads the config and its patches. If jackClientName is not
// empty a JACK client is started as well; failure to reach JACK is logged and
// leaves the player usable for offline rendering.
func NewGusPlayer(cfgPath, jackClientName string, opts Options) (*GusPlayer, error) {
	debug("Creating new GUS player for config: %s", cfgPath)
	opts = opts.withDefaults()

	cfg, err := ParseConfigFile(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create GUS player: %w", err)
	}

	cache := NewPatchCache(opts.SampleRate)
	bank, err := LoadBank(cfg, cache)
	if err != nil {
		return nil, fmt.Errorf("failed to create GUS player: %w", err)
	}

	// Built here so the first note does not pay for the tables.
	if opts.Quality == QualityHigh {
		DefaultTables()
	}

	p := &GusPlayer{
		config: cfg,
		cache:  cache,
		bank:   bank,
		opts:   opts,
	}
	p.mixer = p.NewMixer()

	if jackClientName != "" {
		client, err := NewJackClient(p, jackClientName)
		if err != nil {
			debug("JACK unavailable: %v", err)
		} else if err := client.Start(); err != nil {
			debug("JACK start failed: %v", err)
			client.Close()
		} else {
			p.jackClient = client
		}
	}

	debug("Successfully loaded %d instruments", bank.Len())
	return p, nil
}

// NewMixer returns a fresh mixer over the player's instruments.
func (p *GusPlayer) NewMixer() *Mixer {
	return NewMixer(p.bank, p.opts)
}

// Mixer returns the live mixer used by real-time backends.
func (p *GusPlayer) Mixer() *Mixer {
	return p.mixer
}

// Bank returns the loaded instruments.
func (p *GusPlayer) Bank() *Bank {
	return p.bank
}

// Options returns the options the player was created with.
func (p *GusPlayer) Options() Options {
	return p.opts
}

// StopAndClose shuts down any real-time backend.
func (p *GusPlayer) StopAndClose() error {
	if p.jackClient == nil {
		return nil
	}
	client := p.jackClient
	p.jackClient = nil
	if err := client.Stop(); err != nil {
		client.Close()
		return err
	}
	return client.Close()
}
