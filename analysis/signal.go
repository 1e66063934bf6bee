// Package analysis holds offline checks used by the render tool and tests.
package analysis

import (
	"errors"
	"math"
	"math/cmplx"

	algofft "github.com/cwbudde/algo-fft"
)

// Report summarizes one channel of rendered audio.
type Report struct {
	SampleRate int `json:"sample_rate"`
	Frames     int `json:"frames"`

	RMS       float64 `json:"rms"`
	RMSDB     float64 `json:"rms_db"`
	Peak      float64 `json:"peak"`
	PeakDB    float64 `json:"peak_db"`
	MaxStep   float64 `json:"max_step"`
	Frequency float64 `json:"dominant_hz"`
}

// Analyze computes a Report for x. Frequency is zero when x is shorter
// than one FFT frame.
func Analyze(x []float64, sampleRate int) Report {
	r := Report{
		SampleRate: sampleRate,
		Frames:     len(x),
		RMS:        RMS(x),
		Peak:       Peak(x),
		MaxStep:    MaxStep(x),
	}
	r.RMSDB = linToDB(r.RMS)
	r.PeakDB = linToDB(r.Peak)
	if f, err := DominantFrequency(x, sampleRate); err == nil {
		r.Frequency = f
	}
	return r
}

// RMS returns the root mean square of x.
func RMS(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(x)))
}

// Peak returns the largest absolute sample.
func Peak(x []float64) float64 {
	var p float64
	for _, v := range x {
		if a := math.Abs(v); a > p {
			p = a
		}
	}
	return p
}

// MaxStep returns the largest absolute difference between adjacent samples.
// A hard cut in a decaying signal shows up as a step far above the rest.
func MaxStep(x []float64) float64 {
	var m float64
	for i := 1; i < len(x); i++ {
		if d := math.Abs(x[i] - x[i-1]); d > m {
			m = d
		}
	}
	return m
}

// ErrTooShort is returned when a signal has fewer samples than MinFFTSize.
var ErrTooShort = errors.New("analysis: signal too short")

// MinFFTSize is the smallest frame DominantFrequency analyses.
const MinFFTSize = 1024

const maxFFTSize = 1 << 16

// DominantFrequency estimates the strongest spectral peak of x in Hz.
//
// The largest power-of-two prefix of x (up to 65536 samples) is Hann
// windowed and transformed; the peak bin is refined by parabolic
// interpolation over log magnitudes.
func DominantFrequency(x []float64, sampleRate int) (float64, error) {
	if sampleRate <= 0 {
		return 0, errors.New("analysis: sample rate must be > 0")
	}
	n := fftSizeFor(len(x))
	if n < MinFFTSize {
		return 0, ErrTooShort
	}
	plan, err := algofft.NewPlanReal64(n)
	if err != nil {
		return 0, err
	}

	buf := make([]float64, n)
	for i := 0; i < n; i++ {
		w := 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
		buf[i] = x[i] * w
	}
	bins := make([]complex128, n/2+1)
	if err := plan.Forward(bins, buf); err != nil {
		return 0, err
	}

	best := 1
	bestMag := 0.0
	for k := 1; k < n/2; k++ {
		if m := cmplx.Abs(bins[k]); m > bestMag {
			bestMag = m
			best = k
		}
	}
	if bestMag == 0 {
		return 0, nil
	}

	a := linToDB(cmplx.Abs(bins[best-1]))
	b := linToDB(bestMag)
	c := linToDB(cmplx.Abs(bins[best+1]))
	offset := 0.0
	if den := a - 2*b + c; den != 0 {
		offset = 0.5 * (a - c) / den
	}
	return (float64(best) + offset) * float64(sampleRate) / float64(n), nil
}

func fftSizeFor(length int) int {
	n := 1
	for n*2 <= length && n*2 <= maxFFTSize {
		n *= 2
	}
	if n > length {
		return 0
	}
	return n
}

// Channel extracts channel ch of an interleaved float32 buffer as float64.
func Channel(interleaved []float32, channels, ch int) []float64 {
	if channels < 1 || ch < 0 || ch >= channels {
		return nil
	}
	frames := len(interleaved) / channels
	out := make([]float64, frames)
	for i := 0; i < frames; i++ {
		out[i] = float64(interleaved[i*channels+ch])
	}
	return out
}

func linToDB(x float64) float64 {
	if x < 1e-12 {
		x = 1e-12
	}
	return 20.0 * math.Log10(x)
}
