package sampler

type envState int

const (
	envIdle envState = iota
	envAttack
	envDecay
	envSustain
	envRelease
)

// Envelope is a linear ADSR generator.
type Envelope struct {
	sampleRate float32
	params     ADSR
	state      envState
	level      float32

	attackRate  float32
	decayRate   float32
	releaseRate float32
}

// NewEnvelope creates an idle envelope.
func NewEnvelope(sampleRate int, params ADSR) *Envelope {
	e := &Envelope{}
	e.init(sampleRate, params)
	return e
}

func (e *Envelope) init(sampleRate int, params ADSR) {
	e.sampleRate = float32(sampleRate)
	e.SetParams(params)
}

// SetParams updates the times and sustain level. A running note keeps its
// level; a stage whose time becomes zero ends at once.
func (e *Envelope) SetParams(p ADSR) {
	e.params = p
	e.attackRate = e.rate(1, p.Attack)
	e.decayRate = e.rate(1-p.Sustain, p.Decay)
	switch e.state {
	case envAttack:
		if e.attackRate <= 0 {
			e.level = 1
			e.endAttack()
		}
	case envDecay:
		if e.decayRate <= 0 || e.level <= p.Sustain {
			e.level = p.Sustain
			e.state = envSustain
		}
	case envSustain:
		e.level = p.Sustain
	case envRelease:
		e.releaseRate = e.rate(e.level, p.Release)
		if e.releaseRate <= 0 {
			e.Reset()
		}
	}
}

// rate is the per-sample step covering distance in seconds. Zero means the
// stage is skipped; it is never negative.
func (e *Envelope) rate(distance, seconds float32) float32 {
	if seconds <= 0 || distance <= 0 || e.sampleRate <= 0 {
		return 0
	}
	return distance / (seconds * e.sampleRate)
}

func (e *Envelope) endAttack() {
	if e.decayRate > 0 {
		e.state = envDecay
		return
	}
	e.level = e.params.Sustain
	e.state = envSustain
}

// Trigger starts the attack stage.
func (e *Envelope) Trigger() {
	switch {
	case e.attackRate > 0:
		e.state = envAttack
	case e.decayRate > 0:
		e.level = 1
		e.state = envDecay
	default:
		e.level = e.params.Sustain
		e.state = envSustain
	}
}

// Release starts the release stage from the current level.
func (e *Envelope) Release() {
	if e.state == envIdle {
		return
	}
	if e.releaseRate = e.rate(e.level, e.params.Release); e.releaseRate > 0 {
		e.state = envRelease
		return
	}
	e.Reset()
}

// Reset returns to idle at zero level.
func (e *Envelope) Reset() {
	e.state = envIdle
	e.level = 0
}

// Active reports whether the envelope is producing a level.
func (e *Envelope) Active() bool {
	return e.state != envIdle
}

// Releasing reports whether the envelope is in its release stage.
func (e *Envelope) Releasing() bool {
	return e.state == envRelease
}

// Level returns the current output level.
func (e *Envelope) Level() float32 {
	return e.level
}

// Next advances one sample and returns the level.
func (e *Envelope) Next() float32 {
	switch e.state {
	case envIdle:
		return 0
	case envAttack:
		e.level += e.attackRate
		if e.level >= 1 {
			e.level = 1
			e.endAttack()
		}
	case envDecay:
		e.level -= e.decayRate
		if e.level <= e.params.Sustain {
			e.level = e.params.Sustain
			e.state = envSustain
		}
	case envSustain:
		e.level = e.params.Sustain
	case envRelease:
		e.level -= e.releaseRate
		if e.level <= 0 {
			e.Reset()
		}
	}
	return e.level
}
