package main

import (
	"encoding/binary"
	"io"
	"math"
	"testing"

	"github.com/cwbudde/algo-sampler/sequence"
	"gitlab.com/gomidi/midi/v2"
)

// levelTarget outputs the velocity of the last note-on on both channels.
type levelTarget struct {
	level float32
}

func (l *levelTarget) HandleMIDI(msg midi.Message) {
	var ch, key, vel uint8
	if msg.GetNoteStart(&ch, &key, &vel) {
		l.level = float32(vel) / 127
	}
}

func (l *levelTarget) Render(out []float32) {
	for i := range out {
		out[i] = l.level
	}
}

func (l *levelTarget) Channels() int { return 2 }

func TestSequenceStreamEncodesFloat32LEAndEnds(t *testing.T) {
	seq := &sequence.Sequence{
		SampleRate: 48000,
		Events: []sequence.Event{
			{Frame: 0, Message: midi.NoteOn(0, 60, 127)},
			{Frame: 10, Message: midi.NoteOn(0, 62, 64)},
		},
	}
	target := &levelTarget{}
	s := newSequenceStream(target, seq, 6, 4)

	// An odd-sized buffer forces reads that split a sample.
	var got []byte
	buf := make([]byte, 7)
	for {
		n, err := s.Read(buf)
		got = append(got, buf[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
	}
	if !s.Done() {
		t.Fatalf("expected stream to be done after EOF")
	}
	const frames = 16
	if len(got) != frames*2*4 {
		t.Fatalf("bytes: got=%d want=%d", len(got), frames*2*4)
	}
	for i := 0; i < frames*2; i++ {
		v := math.Float32frombits(binary.LittleEndian.Uint32(got[i*4:]))
		frame := i / 2
		want := float32(1)
		if frame >= 10 {
			want = float32(64) / 127
		}
		if v != want {
			t.Fatalf("sample %d: got=%f want=%f", i, v, want)
		}
	}
	if s.Position() != frames {
		t.Fatalf("position: got=%d want=%d", s.Position(), frames)
	}
}

func TestSequenceStreamFillsLargeReadsAcrossBlocks(t *testing.T) {
	seq := &sequence.Sequence{
		SampleRate: 48000,
		Events:     []sequence.Event{{Frame: 0, Message: midi.NoteOn(0, 60, 127)}},
	}
	s := newSequenceStream(&levelTarget{}, seq, 100, 8)

	buf := make([]byte, 1024)
	n, err := s.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n != 100*2*4 {
		t.Fatalf("bytes: got=%d want=%d", n, 100*2*4)
	}
	if v := math.Float32frombits(binary.LittleEndian.Uint32(buf[n-4:])); v != 1 {
		t.Fatalf("last sample: got=%f want=1", v)
	}
	if _, err := s.Read(buf); err != io.EOF {
		t.Fatalf("expected io.EOF after the tail, got %v", err)
	}
}
