package wavout

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/cwbudde/wav"
	"github.com/go-audio/audio"
)

// WriteInterleaved writes interleaved float samples as 16-bit PCM.
func WriteInterleaved(path string, samples []float32, numChannels int, sampleRate int) error {
	if numChannels < 1 {
		return fmt.Errorf("invalid channel count %d", numChannels)
	}
	if len(samples)%numChannels != 0 {
		return fmt.Errorf("sample count %d is not a multiple of %d channels", len(samples), numChannels)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := wav.NewEncoder(f, sampleRate, 16, numChannels, 1)

	buf := &audio.Float32Buffer{
		Format: &audio.Format{
			SampleRate:  sampleRate,
			NumChannels: numChannels,
		},
		Data:           samples,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return err
	}
	return enc.Close()
}

// WriteMono writes a mono float buffer as 16-bit PCM.
func WriteMono(path string, data []float32, sampleRate int) error {
	return WriteInterleaved(path, data, 1, sampleRate)
}

// WriteStereoLR interleaves left/right channels and writes them.
func WriteStereoLR(path string, left []float32, right []float32, sampleRate int) error {
	if len(left) != len(right) {
		return fmt.Errorf("left/right length mismatch")
	}
	data := make([]float32, len(left)*2)
	for i := 0; i < len(left); i++ {
		data[i*2] = left[i]
		data[i*2+1] = right[i]
	}
	return WriteInterleaved(path, data, 2, sampleRate)
}

// Sine renders a mono sine of the given frequency and amplitude.
func Sine(freq float64, amp float32, frames int, sampleRate int) []float32 {
	out := make([]float32, frames)
	for i := range out {
		out[i] = amp * float32(math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
	}
	return out
}

// Ramp renders a mono ramp where frame i has value i*step, wrapping at limit.
// Sample-accurate fixtures use it to check frame ordering after decoding.
func Ramp(frames int, step float32, limit float32) []float32 {
	out := make([]float32, frames)
	v := float32(0)
	for i := range out {
		out[i] = v
		v += step
		if v >= limit {
			v -= 2 * limit
		}
	}
	return out
}

// PeakAbs returns the largest absolute sample value.
func PeakAbs(interleaved []float32) float32 {
	var peak float32
	for _, s := range interleaved {
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	return peak
}
