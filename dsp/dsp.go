package dsp

import (
	"math"

	"github.com/cwbudde/algo-approx"
)

// Lerp linearly interpolates between a and b at frac in [0,1].
func Lerp(a, b, frac float32) float32 {
	return a + frac*(b-a)
}

// DBToGain converts decibels to a linear gain factor.
// Values at or below -144 dB are treated as silence.
func DBToGain(db float32) float32 {
	if db <= -144 {
		return 0
	}
	const ln10Over20 = 0.11512925464970228
	return approx.FastExp(db * ln10Over20)
}

// GainToDB converts a linear gain factor to decibels.
func GainToDB(gain float32) float32 {
	if gain <= 0 {
		return float32(math.Inf(-1))
	}
	return float32(20 * math.Log10(float64(gain)))
}

// LinearFade is a fixed-length ramp from 1 down to 0.
// It holds no buffers, so it is safe to use on the audio thread.
type LinearFade struct {
	length int
	pos    int
	active bool
}

// NewLinearFade creates an idle fade of the given length in samples.
func NewLinearFade(length int) LinearFade {
	if length < 1 {
		length = 1
	}
	return LinearFade{length: length}
}

// Start restarts the fade from full level.
func (f *LinearFade) Start() {
	f.pos = 0
	f.active = true
}

// Stop cancels the fade.
func (f *LinearFade) Stop() {
	f.pos = 0
	f.active = false
}

// Active reports whether the fade is running.
func (f *LinearFade) Active() bool {
	return f.active
}

// Done reports whether a running fade has reached zero.
func (f *LinearFade) Done() bool {
	return f.active && f.pos >= f.length
}

// Len returns the fade length in samples.
func (f *LinearFade) Len() int {
	return f.length
}

// Next returns the current fade gain and advances by one sample.
// An inactive fade returns 1.
func (f *LinearFade) Next() float32 {
	if !f.active {
		return 1
	}
	if f.pos >= f.length {
		return 0
	}
	g := 1 - float32(f.pos)/float32(f.length)
	f.pos++
	return g
}
