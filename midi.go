package gogusplayer

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/GeoffreyPlitt/debuggo"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

var midiDebug = debuggo.Debug("gusplayer:midi")

// EventKind identifies a channel message.
type EventKind uint8

const (
	EventNoteOn EventKind = iota
	EventNoteOff
	EventControl
	EventProgram
	EventPitchBend
)

// Event is one timed channel message.
type Event struct {
	Time    int64 // microseconds from the start of the song
	Kind    EventKind
	Channel uint8
	Data1   uint8 // key, controller or program
	Data2   uint8 // velocity or controller value
	Bend    int16
}

// Song is a time-ordered event list.
type Song struct {
	Events   []Event
	Duration int64 // microseconds
}

// LoadMidiFile reads a Standard MIDI File.
func LoadMidiFile(path string) (*Song, error) {
	s, err := smf.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read MIDI file %s: %w", path, err)
	}
	return songFromSMF(s), nil
}

// ReadMidi reads a Standard MIDI File from r.
func ReadMidi(r io.Reader) (*Song, error) {
	s, err := smf.ReadFrom(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read MIDI data: %w", err)
	}
	return songFromSMF(s), nil
}

func songFromSMF(s *smf.SMF) *Song {
	song := &Song{}
	for trackNo, track := range s.Tracks {
		var ticks int64
		for _, ev := range track {
			ticks += int64(ev.Delta)
			e, ok := convertMessage(midi.Message(ev.Message))
			if !ok {
				continue
			}
			e.Time = s.TimeAt(ticks)
			song.Events = append(song.Events, e)
		}
		if t := s.TimeAt(ticks); t > song.Duration {
			song.Duration = t
		}
		midiDebug("Track %d: %d ticks", trackNo, ticks)
	}
	// Tracks are merged by time; ties keep track order.
	sort.SliceStable(song.Events, func(i, j int) bool {
		return song.Events[i].Time < song.Events[j].Time
	})
	midiDebug("Loaded song: %d events, %.2fs", len(song.Events), float64(song.Duration)/1e6)
	return song
}

func convertMessage(msg midi.Message) (Event, bool) {
	var ch, key, vel, ctrl, val, prog uint8
	var rel int16
	var abs uint16

	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		return Event{Kind: EventNoteOn, Channel: ch, Data1: key, Data2: vel}, true
	case msg.GetNoteEnd(&ch, &key):
		return Event{Kind: EventNoteOff, Channel: ch, Data1: key}, true
	case msg.GetControlChange(&ch, &ctrl, &val):
		return Event{Kind: EventControl, Channel: ch, Data1: ctrl, Data2: val}, true
	case msg.GetProgramChange(&ch, &prog):
		return Event{Kind: EventProgram, Channel: ch, Data1: prog}, true
	case msg.GetPitchBend(&ch, &rel, &abs):
		return Event{Kind: EventPitchBend, Channel: ch, Bend: rel}, true
	}
	return Event{}, false
}

// Apply sends the event to a mixer.
func (e Event) Apply(m *Mixer) {
	switch e.Kind {
	case EventNoteOn:
		m.NoteOn(e.Channel, e.Data1, e.Data2)
	case EventNoteOff:
		m.NoteOff(e.Channel, e.Data1)
	case EventControl:
		m.ControlChange(e.Channel, e.Data1, e.Data2)
	case EventProgram:
		m.ProgramChange(e.Channel, e.Data1)
	case EventPitchBend:
		m.PitchBend(e.Channel, e.Bend)
	}
}

// Sequencer plays a song through a mixer, applying each event at its output
// frame. It may be read from an audio callback while another goroutine
// polls Done.
type Sequencer struct {
	mu    sync.Mutex
	song  *Song
	mixer *Mixer
	next  int
	frame int64
}

// NewSequencer starts song at frame zero on mixer.
func NewSequencer(song *Song, mixer *Mixer) *Sequencer {
	return &Sequencer{song: song, mixer: mixer}
}

func (s *Sequencer) eventFrame(e Event) int64 {
	return e.Time * int64(s.mixer.SampleRate()) / 1e6
}

// Frame returns the number of frames rendered so far.
func (s *Sequencer) Frame() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame
}

// Done reports whether every event has been applied and all voices ended.
func (s *Sequencer) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next >= len(s.song.Events) && s.mixer.ActiveVoices() == 0
}

// ReadInt16 fills dst with interleaved stereo samples, splitting the block at
// event boundaries. It returns the number of frames written.
func (s *Sequencer) ReadInt16(dst []int16) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	frames := len(dst) / 2
	done := 0
	for done < frames {
		for s.next < len(s.song.Events) && s.eventFrame(s.song.Events[s.next]) <= s.frame {
			s.song.Events[s.next].Apply(s.mixer)
			s.next++
		}
		chunk := frames - done
		if s.next < len(s.song.Events) {
			if until := s.eventFrame(s.song.Events[s.next]) - s.frame; until < int64(chunk) {
				chunk = int(until)
			}
		}
		s.mixer.ReadInt16(dst[2*done : 2*(done+chunk)])
		done += chunk
		s.frame += int64(chunk)
	}
	return frames
}
