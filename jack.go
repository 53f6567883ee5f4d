//go:build jack
// +build jack

package gogusplayer

import (
	"fmt"

	"github.com/GeoffreyPlitt/debuggo"
	"github.com/xthexder/go-jack"
)

var jackDebug = debuggo.Debug("gusplayer:jack")

// JackClient represents a JACK audio client for the GUS player
type JackClient struct {
	client     *jack.Client
	mixer      *Mixer
	leftPort   *jack.Port
	rightPort  *jack.Port
	midiInPort *jack.Port
	sampleRate uint32
	bufferSize uint32
	left       []float32
	right      []float32
}

// NewJackClient creates a new JACK client rendering the player's mixer
func NewJackClient(player *GusPlayer, clientName string) (*JackClient, error) {
	jackDebug("Creating JACK client: %s", clientName)

	client, status := jack.ClientOpen(clientName, jack.NoStartServer)
	if status != 0 {
		return nil, fmt.Errorf("failed to open JACK client: %w", jack.StrError(status))
	}

	sampleRate := uint32(client.GetSampleRate())
	if int(sampleRate) != player.Options().SampleRate {
		jackDebug("JACK runs at %d Hz, player configured for %d Hz", sampleRate, player.Options().SampleRate)
	}

	jackClient := &JackClient{
		client:     client,
		mixer:      player.Mixer(),
		sampleRate: sampleRate,
		bufferSize: uint32(client.GetBufferSize()),
	}
	jackClient.left = make([]float32, jackClient.bufferSize)
	jackClient.right = make([]float32, jackClient.bufferSize)

	jackClient.leftPort = client.PortRegister("audio_out_l", jack.DEFAULT_AUDIO_TYPE, jack.PortIsOutput, 0)
	jackClient.rightPort = client.PortRegister("audio_out_r", jack.DEFAULT_AUDIO_TYPE, jack.PortIsOutput, 0)
	jackClient.midiInPort = client.PortRegister("midi_in", jack.DEFAULT_MIDI_TYPE, jack.PortIsInput, 0)
	if jackClient.leftPort == nil || jackClient.rightPort == nil || jackClient.midiInPort == nil {
		client.Close()
		return nil, fmt.Errorf("failed to register JACK ports for %s", clientName)
	}

	client.SetProcessCallback(jackClient.processCallback)

	jackDebug("JACK client created successfully (sample rate: %d Hz, buffer size: %d)",
		jackClient.sampleRate, jackClient.bufferSize)

	return jackClient, nil
}

// Start activates the JACK client and begins audio processing
func (jc *JackClient) Start() error {
	jackDebug("Starting JACK client")

	if code := jc.client.Activate(); code != 0 {
		return fmt.Errorf("failed to activate JACK client: %w", jack.StrError(code))
	}

	jackDebug("JACK client activated successfully")
	return nil
}

// Stop deactivates the JACK client
func (jc *JackClient) Stop() error {
	jackDebug("Stopping JACK client")

	if code := jc.client.Deactivate(); code != 0 {
		return fmt.Errorf("failed to deactivate JACK client: %w", jack.StrError(code))
	}

	jackDebug("JACK client deactivated")
	return nil
}

// Close closes the JACK client connection
func (jc *JackClient) Close() error {
	jackDebug("Closing JACK client")

	if code := jc.client.Close(); code != 0 {
		return fmt.Errorf("failed to close JACK client: %w", jack.StrError(code))
	}

	jackDebug("JACK client closed")
	return nil
}

// processCallback is called by JACK for each audio buffer
func (jc *JackClient) processCallback(nframes uint32) int {
	left := jc.leftPort.GetBuffer(nframes)
	right := jc.rightPort.GetBuffer(nframes)

	jc.processMidiEvents(jc.midiInPort.GetMidiEvents(nframes))

	if uint32(len(jc.left)) < nframes {
		// Buffer size changed since the client was opened.
		jc.left = make([]float32, nframes)
		jc.right = make([]float32, nframes)
	}
	jc.mixer.ReadFloat32(jc.left[:nframes], jc.right[:nframes])
	for i := uint32(0); i < nframes; i++ {
		left[i] = jack.AudioSample(jc.left[i])
		right[i] = jack.AudioSample(jc.right[i])
	}

	return 0
}

// processMidiEvents forwards incoming channel messages to the mixer
func (jc *JackClient) processMidiEvents(events []*jack.MidiData) {
	for _, event := range events {
		if len(event.Buffer) < 1 {
			continue
		}
		status := event.Buffer[0]
		ch := status & 0x0F

		switch status & 0xF0 {
		case 0x90: // Note On
			if len(event.Buffer) >= 3 {
				jc.mixer.NoteOn(ch, event.Buffer[1], event.Buffer[2])
			}
		case 0x80: // Note Off
			if len(event.Buffer) >= 2 {
				jc.mixer.NoteOff(ch, event.Buffer[1])
			}
		case 0xB0: // Control Change
			if len(event.Buffer) >= 3 {
				jc.mixer.ControlChange(ch, event.Buffer[1], event.Buffer[2])
			}
		case 0xC0: // Program Change
			if len(event.Buffer) >= 2 {
				jc.mixer.ProgramChange(ch, event.Buffer[1])
			}
		case 0xE0: // Pitch Bend
			if len(event.Buffer) >= 3 {
				value := int16(event.Buffer[1]&0x7F) | int16(event.Buffer[2]&0x7F)<<7
				jc.mixer.PitchBend(ch, value-8192)
			}
		}
	}
}
