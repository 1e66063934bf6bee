package sampler

import "github.com/cwbudde/algo-sampler/dsp"

// voice is the allocator's view of a pool slot. All methods run on the audio goroutine.
type voice interface {
	busy() bool
	playingNote() int
	start(z *Zone, note, velocity int, hostRate float64)
	stop()
	noteOff(pedalDown bool)
	pedalUp()
	setADSR(a ADSR)
}

// voiceCore is the playback state shared by both voice kinds.
type voiceCore struct {
	zone      *Zone
	note      int
	velocity  float32
	position  float64
	ratio     float64
	env       Envelope
	released  bool
	sustained bool

	// last is the most recent output frame, held for the steal de-click.
	last [maxOutputChannels]float32
	tail [maxOutputChannels]float32
	fade dsp.LinearFade
}

func (c *voiceCore) initCore(sampleRate int, a ADSR, fadeSamples int) {
	c.env.init(sampleRate, a)
	c.fade = dsp.NewLinearFade(fadeSamples)
	c.note = -1
}

// beginNote resets playback for a new note. If the slot was sounding its last
// output is carried as a tail that ramps to zero under the new note.
func (c *voiceCore) beginNote(sounding bool, z *Zone, note, velocity int, hostRate float64) {
	if sounding {
		c.tail = c.last
		c.fade.Start()
	}
	c.last = [maxOutputChannels]float32{}
	c.zone = z
	c.note = note
	c.velocity = float32(velocity) / maxVelocity
	c.position = 0
	c.ratio = pitchRatio(note, z.RootNote, float64(z.SampleRate), hostRate)
	c.released = false
	c.sustained = false
	c.env.Reset()
	c.env.Trigger()
}

func (c *voiceCore) endNote() {
	c.env.Reset()
	c.released = false
	c.sustained = false
	c.last = [maxOutputChannels]float32{}
}

func (c *voiceCore) playingNote() int { return c.note }

func (c *voiceCore) setADSR(a ADSR) { c.env.SetParams(a) }

func (c *voiceCore) releaseNote(pedalDown bool) {
	if c.released {
		return
	}
	c.released = true
	if pedalDown {
		c.sustained = true
		return
	}
	c.env.Release()
}

func (c *voiceCore) releaseSustained() {
	if !c.sustained {
		return
	}
	c.sustained = false
	c.env.Release()
}

// addTail mixes the stolen note's fading tail into out.
func (c *voiceCore) addTail(out []float32, frames, outCh int) {
	if !c.fade.Active() {
		return
	}
	for i := 0; i < frames; i++ {
		if c.fade.Done() {
			c.fade.Stop()
			return
		}
		g := c.fade.Next()
		for ch := 0; ch < outCh; ch++ {
			out[i*outCh+ch] += c.tail[ch] * g
		}
	}
}

// MemoryVoice plays a zone held entirely in memory.
type MemoryVoice struct {
	voiceCore
	active bool
	data   []float32
	srcCh  int
	total  int
}

func newMemoryVoice(sampleRate int, a ADSR, fadeSamples int) *MemoryVoice {
	v := &MemoryVoice{}
	v.initCore(sampleRate, a, fadeSamples)
	return v
}

func (v *MemoryVoice) busy() bool { return v.active }

func (v *MemoryVoice) start(z *Zone, note, velocity int, hostRate float64) {
	v.beginNote(v.active, z, note, velocity, hostRate)
	v.data = z.ResidentFrames()
	v.srcCh = z.Channels
	v.total = len(v.data) / z.Channels
	v.active = v.total > 0
}

func (v *MemoryVoice) stop() {
	v.active = false
	v.fade.Stop()
	v.endNote()
}

func (v *MemoryVoice) free() {
	v.active = false
	v.endNote()
}

func (v *MemoryVoice) noteOff(pedalDown bool) {
	if v.active {
		v.releaseNote(pedalDown)
	}
}

func (v *MemoryVoice) pedalUp() {
	if v.active {
		v.releaseSustained()
	}
}

// render adds frames of output to out, interleaved with outCh channels.
func (v *MemoryVoice) render(out []float32, frames, outCh int) {
	v.addTail(out, frames, outCh)
	if !v.active {
		return
	}
	data := v.data
	srcCh := v.srcCh
	total := v.total
	for i := 0; i < frames; i++ {
		if v.position >= float64(total) {
			v.free()
			return
		}
		env := v.env.Next()
		if !v.env.Active() {
			v.free()
			return
		}
		pos0 := int(v.position)
		pos1 := pos0 + 1
		if pos1 >= total {
			pos1 = pos0
		}
		frac := float32(v.position - float64(pos0))
		g := v.velocity * env
		for ch := 0; ch < outCh; ch++ {
			sc := ch
			if sc >= srcCh {
				sc = srcCh - 1
			}
			s := dsp.Lerp(data[pos0*srcCh+sc], data[pos1*srcCh+sc], frac) * g
			out[i*outCh+ch] += s
			v.last[ch] = s
		}
		v.position += v.ratio
	}
}
