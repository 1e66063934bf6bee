package sampler

import "gitlab.com/gomidi/midi/v2"

const (
	sustainController = 64
	// sustainThreshold is the CC value at which the pedal counts as down.
	sustainThreshold = 64
)

// NoteOn starts a note. Velocity 0 is a note-off. The channel is ignored.
func (e *Engine) NoteOn(channel, note, velocity int) {
	if velocity <= 0 {
		e.NoteOff(channel, note, 0)
		return
	}
	if note < 0 || note > maxNote {
		return
	}
	if velocity > maxVelocity {
		velocity = maxVelocity
	}
	e.applyPending()
	inst := e.inst
	if inst == nil {
		return
	}

	matches := inst.catalog.Match(note, velocity, inst.matches[:0])
	if len(matches) == 0 {
		return
	}
	idx := matches[int(e.rr[note]%uint32(len(matches)))]
	e.rr[note]++
	z := inst.catalog.Zone(idx)
	e.lastSelected.Store(z)

	v := e.allocate()
	v.start(z, note, velocity, float64(e.sampleRate))
	e.stats.started.Add(1)
}

// NoteOff releases every voice playing note. With the pedal down the voices
// keep sounding until the pedal is lifted.
func (e *Engine) NoteOff(channel, note, velocity int) {
	e.applyPending()
	for _, v := range e.pool() {
		if v.busy() && v.playingNote() == note {
			v.noteOff(e.pedalDown)
		}
	}
}

// SustainPedal sets the pedal state. Lifting it releases held notes.
func (e *Engine) SustainPedal(down bool) {
	e.applyPending()
	e.pedalDown = down
	if down {
		return
	}
	for _, v := range e.pool() {
		v.pedalUp()
	}
}

// SustainPedalDown reports the pedal state.
func (e *Engine) SustainPedalDown() bool {
	return e.pedalDown
}

// HandleMIDI dispatches note and sustain messages; others are ignored.
func (e *Engine) HandleMIDI(msg midi.Message) {
	var ch, key, vel, cc, val uint8
	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		e.NoteOn(int(ch), int(key), int(vel))
	case msg.GetNoteEnd(&ch, &key):
		e.NoteOff(int(ch), int(key), 0)
	case msg.GetControlChange(&ch, &cc, &val):
		if cc == sustainController {
			e.SustainPedal(val >= sustainThreshold)
		}
	}
}

// allocate returns the first idle slot below the polyphony limit, or steals slot 0.
func (e *Engine) allocate() voice {
	pool := e.pool()
	limit := clampInt(int(e.polyphony.Load()), 1, len(pool))
	for _, v := range pool[:limit] {
		if !v.busy() {
			return v
		}
	}
	e.stats.steals.Add(1)
	return pool[0]
}
