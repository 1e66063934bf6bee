// Package sequence turns Standard MIDI Files into frame-stamped events and
// plays them into an engine block by block.
package sequence

import (
	"fmt"
	"io"
	"os"
	"sort"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// Event is a channel message due at Frame.
type Event struct {
	Frame   int64
	Message midi.Message
}

// Sequence is a time-ordered list of events at a fixed sample rate.
type Sequence struct {
	SampleRate int
	Events     []Event
}

// ReadFile reads a MIDI file.
func ReadFile(path string, sampleRate int) (*Sequence, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	seq, err := Read(f, sampleRate)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return seq, nil
}

// Read parses an SMF stream, merging all tracks. Only note and control change
// messages are kept; tempo changes are folded into the frame positions.
func Read(r io.Reader, sampleRate int) (*Sequence, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be > 0, got %d", sampleRate)
	}
	seq := &Sequence{SampleRate: sampleRate}
	err := smf.ReadTracksFrom(r).Do(func(ev smf.TrackEvent) {
		msg := midi.Message(ev.Message)
		if !keep(msg) {
			return
		}
		seq.Events = append(seq.Events, Event{
			Frame:   ev.AbsMicroSeconds * int64(sampleRate) / 1_000_000,
			Message: append(midi.Message(nil), msg...),
		})
	}).Error()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(seq.Events, func(i, j int) bool {
		return seq.Events[i].Frame < seq.Events[j].Frame
	})
	return seq, nil
}

func keep(msg midi.Message) bool {
	var ch, key, vel, cc, val uint8
	return msg.GetNoteOn(&ch, &key, &vel) ||
		msg.GetNoteOff(&ch, &key, &vel) ||
		msg.GetControlChange(&ch, &cc, &val)
}

// Length is the frame of the last event.
func (s *Sequence) Length() int64 {
	if len(s.Events) == 0 {
		return 0
	}
	return s.Events[len(s.Events)-1].Frame
}

// Target receives events and renders audio between them.
type Target interface {
	HandleMIDI(msg midi.Message)
	Render(out []float32)
	Channels() int
}

// Player dispatches a sequence into a Target with frame accuracy.
type Player struct {
	seq   *Sequence
	next  int
	frame int64
}

// NewPlayer creates a player positioned at frame 0.
func NewPlayer(seq *Sequence) *Player {
	return &Player{seq: seq}
}

// Frame returns the number of frames rendered so far.
func (p *Player) Frame() int64 { return p.frame }

// Done reports whether every event has been dispatched.
func (p *Player) Done() bool { return p.next >= len(p.seq.Events) }

// Render fills out, splitting the block at each event that falls inside it.
func (p *Player) Render(t Target, out []float32) {
	ch := t.Channels()
	frames := int64(len(out) / ch)
	end := p.frame + frames
	pos := int64(0)
	for p.next < len(p.seq.Events) {
		ev := p.seq.Events[p.next]
		if ev.Frame >= end {
			break
		}
		if at := ev.Frame - p.frame; at > pos {
			t.Render(out[pos*int64(ch) : at*int64(ch)])
			pos = at
		}
		t.HandleMIDI(ev.Message)
		p.next++
	}
	if pos < frames {
		t.Render(out[pos*int64(ch) : frames*int64(ch)])
	}
	p.frame = end
}
