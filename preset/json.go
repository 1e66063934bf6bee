// Package preset reads JSON engine presets layered over the default parameters.
package preset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cwbudde/algo-sampler/dsp"
	"github.com/cwbudde/algo-sampler/sampler"
)

// File is the JSON schema for sampler presets. Absent fields keep their defaults.
type File struct {
	Instrument   string          `json:"instrument"`
	Attack       *float32        `json:"attack"`
	Decay        *float32        `json:"decay"`
	Sustain      *float32        `json:"sustain"`
	Release      *float32        `json:"release"`
	OutputGain   *float32        `json:"output_gain"`
	OutputGainDB *float32        `json:"output_gain_db"`
	Polyphony    *int            `json:"polyphony"`
	MaxVoices    *int            `json:"max_voices"`
	Streaming    *bool           `json:"streaming"`
	Stream       *StreamSettings `json:"stream"`
}

// StreamSettings overrides the disk streaming tunables.
type StreamSettings struct {
	PreloadBytes        *int     `json:"preload_bytes"`
	RingBufferFrames    *int     `json:"ring_buffer_frames"`
	LowWatermarkFrames  *int     `json:"low_watermark_frames"`
	DiskReadFrames      *int     `json:"disk_read_frames"`
	PollIntervalMS      *float64 `json:"poll_interval_ms"`
	MaxStreamingVoices  *int     `json:"max_streaming_voices"`
	UnderrunFadeSamples *int     `json:"underrun_fade_samples"`
}

// Preset is a loaded preset: engine parameters plus the instrument to load.
type Preset struct {
	Params *sampler.Params
	// Instrument is a folder or definition path, resolved against the preset file.
	Instrument string
}

// LoadJSON loads a preset JSON file and applies it on top of default params.
func LoadJSON(path string) (*Preset, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f File
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, err
	}

	p := sampler.NewDefaultParams()
	if err := ApplyFile(p, &f); err != nil {
		return nil, err
	}

	out := &Preset{Params: p, Instrument: strings.TrimSpace(f.Instrument)}
	if out.Instrument != "" && !filepath.IsAbs(out.Instrument) {
		base := filepath.Dir(path)
		out.Instrument = filepath.Clean(filepath.Join(base, out.Instrument))
	}
	return out, nil
}

// ApplyFile applies a parsed preset file onto an existing params object.
func ApplyFile(dst *sampler.Params, f *File) error {
	if dst == nil {
		return fmt.Errorf("nil destination params")
	}
	if f == nil {
		return nil
	}

	for _, stage := range []struct {
		name string
		src  *float32
		dst  *float32
	}{
		{"attack", f.Attack, &dst.ADSR.Attack},
		{"decay", f.Decay, &dst.ADSR.Decay},
		{"release", f.Release, &dst.ADSR.Release},
	} {
		if stage.src == nil {
			continue
		}
		if *stage.src < 0 {
			return fmt.Errorf("%s must be >= 0", stage.name)
		}
		*stage.dst = *stage.src
	}
	if f.Sustain != nil {
		if *f.Sustain < 0 || *f.Sustain > 1 {
			return fmt.Errorf("sustain must be in [0,1]")
		}
		dst.ADSR.Sustain = *f.Sustain
	}

	if f.OutputGain != nil && f.OutputGainDB != nil {
		return fmt.Errorf("output_gain and output_gain_db are mutually exclusive")
	}
	if f.OutputGain != nil {
		if *f.OutputGain < 0 {
			return fmt.Errorf("output_gain must be >= 0")
		}
		dst.Gain = *f.OutputGain
	}
	if f.OutputGainDB != nil {
		if *f.OutputGainDB > 24 {
			return fmt.Errorf("output_gain_db must be <= 24")
		}
		dst.Gain = dsp.DBToGain(*f.OutputGainDB)
	}

	if f.MaxVoices != nil {
		if *f.MaxVoices < 1 {
			return fmt.Errorf("max_voices must be >= 1")
		}
		dst.MaxVoices = *f.MaxVoices
		if dst.Polyphony > dst.MaxVoices {
			dst.Polyphony = dst.MaxVoices
		}
	}
	if f.Polyphony != nil {
		if *f.Polyphony < 1 || *f.Polyphony > dst.MaxVoices {
			return fmt.Errorf("polyphony must be in 1..%d", dst.MaxVoices)
		}
		dst.Polyphony = *f.Polyphony
	}
	if f.Streaming != nil {
		dst.Streaming = *f.Streaming
	}
	if f.Stream != nil {
		applyStream(&dst.Stream, f.Stream)
	}
	return dst.Validate()
}

func applyStream(dst *sampler.StreamingParams, s *StreamSettings) {
	setInt := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}
	setInt(&dst.PreloadBytes, s.PreloadBytes)
	setInt(&dst.RingBufferFrames, s.RingBufferFrames)
	setInt(&dst.LowWatermarkFrames, s.LowWatermarkFrames)
	setInt(&dst.DiskReadFrames, s.DiskReadFrames)
	setInt(&dst.MaxStreamingVoices, s.MaxStreamingVoices)
	setInt(&dst.UnderrunFadeSamples, s.UnderrunFadeSamples)
	if s.PollIntervalMS != nil {
		dst.PollInterval = time.Duration(*s.PollIntervalMS * float64(time.Millisecond))
	}
}
