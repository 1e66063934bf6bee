package sampler

import (
	"fmt"
	"time"
)

// ADSR holds envelope times in seconds and the sustain level in [0,1].
type ADSR struct {
	Attack  float32
	Decay   float32
	Sustain float32
	Release float32
}

// StreamingParams holds the tunables of the disk streaming path.
type StreamingParams struct {
	// PreloadBytes is the size of the resident head of each streamed sample.
	PreloadBytes int
	// RingBufferFrames is the per-voice ring capacity; must be a power of two.
	RingBufferFrames int
	// LowWatermarkFrames triggers a refill request when occupancy drops below it.
	LowWatermarkFrames int
	// DiskReadFrames is the batch size of one disk read.
	DiskReadFrames int
	// PollInterval is the sleep between disk streamer scans.
	PollInterval time.Duration
	// MaxStreamingVoices is the size of the streaming voice pool.
	MaxStreamingVoices int
	// UnderrunFadeSamples is the fade-out length used on underrun and steal.
	UnderrunFadeSamples int
	// StopTimeout bounds the join when the streamer is stopped.
	StopTimeout time.Duration
}

// Params holds all engine parameters.
type Params struct {
	ADSR ADSR

	Gain float32

	// Polyphony is the runtime voice ceiling, 1..MaxVoices.
	Polyphony int
	// MaxVoices is the size of the resident voice pool.
	MaxVoices int

	Streaming bool
	Stream    StreamingParams
}

// NewDefaultParams creates default parameters.
func NewDefaultParams() *Params {
	return &Params{
		ADSR: ADSR{
			Attack:  0.01,
			Decay:   0.1,
			Sustain: 0.8,
			Release: 0.5,
		},
		Gain:      1.0,
		Polyphony: 16,
		MaxVoices: 64,
		Streaming: false,
		Stream: StreamingParams{
			PreloadBytes:        65536,
			RingBufferFrames:    32768,
			LowWatermarkFrames:  8192,
			DiskReadFrames:      4096,
			PollInterval:        5 * time.Millisecond,
			MaxStreamingVoices:  64,
			UnderrunFadeSamples: 64,
			StopTimeout:         time.Second,
		},
	}
}

// Validate checks parameter ranges.
func (p *Params) Validate() error {
	if p == nil {
		return fmt.Errorf("nil params")
	}
	if p.MaxVoices < 1 {
		return fmt.Errorf("max voices must be >= 1, got %d", p.MaxVoices)
	}
	if p.Polyphony < 1 || p.Polyphony > p.MaxVoices {
		return fmt.Errorf("polyphony must be in 1..%d, got %d", p.MaxVoices, p.Polyphony)
	}
	if p.Gain < 0 {
		return fmt.Errorf("gain must be >= 0")
	}
	if err := p.ADSR.validate(); err != nil {
		return err
	}
	return p.Stream.validate()
}

func (a ADSR) validate() error {
	if a.Attack < 0 || a.Decay < 0 || a.Release < 0 {
		return fmt.Errorf("envelope times must be >= 0: %+v", a)
	}
	if a.Sustain < 0 || a.Sustain > 1 {
		return fmt.Errorf("sustain must be in [0,1], got %f", a.Sustain)
	}
	return nil
}

func (s StreamingParams) validate() error {
	if s.RingBufferFrames < 4 || !isPowerOfTwo(s.RingBufferFrames) {
		return fmt.Errorf("ring buffer frames must be a power of two >= 4, got %d", s.RingBufferFrames)
	}
	if s.LowWatermarkFrames < 1 || s.LowWatermarkFrames > s.RingBufferFrames {
		return fmt.Errorf("low watermark must be in 1..%d, got %d", s.RingBufferFrames, s.LowWatermarkFrames)
	}
	if s.DiskReadFrames < 1 || s.DiskReadFrames > s.RingBufferFrames {
		return fmt.Errorf("disk read frames must be in 1..%d, got %d", s.RingBufferFrames, s.DiskReadFrames)
	}
	if s.PreloadBytes < 0 {
		return fmt.Errorf("preload bytes must be >= 0")
	}
	if s.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be > 0")
	}
	if s.MaxStreamingVoices < 1 {
		return fmt.Errorf("max streaming voices must be >= 1, got %d", s.MaxStreamingVoices)
	}
	if s.UnderrunFadeSamples < 1 {
		return fmt.Errorf("underrun fade samples must be >= 1")
	}
	if s.StopTimeout <= 0 {
		return fmt.Errorf("stop timeout must be > 0")
	}
	return nil
}

// PreloadFrames converts the preload byte budget to frames of 32-bit float audio.
func (s StreamingParams) PreloadFrames(channels int) int {
	if channels < 1 {
		channels = 1
	}
	return s.PreloadBytes / (channels * 4)
}
