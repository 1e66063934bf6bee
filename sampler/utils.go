package sampler

import "math"

const (
	maxNote     = 127
	maxVelocity = 127

	// maxOutputChannels bounds per-voice channel state; the ring stores stereo.
	maxOutputChannels = 2
)

// midiNoteToFreq converts MIDI note number to frequency in Hz.
func midiNoteToFreq(note int) float64 {
	const a4Freq = 440.0
	const a4Note = 69
	return a4Freq * math.Exp2(float64(note-a4Note)/12.0)
}

// pitchRatio is the source-frame increment per output frame.
func pitchRatio(note, rootNote int, zoneRate, hostRate float64) float64 {
	if hostRate <= 0 {
		hostRate = zoneRate
	}
	return midiNoteToFreq(note) / midiNoteToFreq(rootNote) * (zoneRate / hostRate)
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
