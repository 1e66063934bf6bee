package main

import (
	"github.com/cwbudde/algo-sampler/sequence"
	"gitlab.com/gomidi/midi/v2"
)

// singleNote builds a one-note sequence: NoteOn at frame 0 and NoteOff after
// releaseAfter seconds.
func singleNote(note, velocity int, releaseAfter float64, sampleRate int) *sequence.Sequence {
	off := int64(releaseAfter * float64(sampleRate))
	if off < 0 {
		off = 0
	}
	return &sequence.Sequence{
		SampleRate: sampleRate,
		Events: []sequence.Event{
			{Frame: 0, Message: midi.NoteOn(0, uint8(note), uint8(velocity))},
			{Frame: off, Message: midi.NoteOff(0, uint8(note))},
		},
	}
}
