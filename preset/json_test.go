package preset

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writePreset(t *testing.T, content string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	presetPath := filepath.Join(dir, "preset.json")
	if err := os.WriteFile(presetPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write preset: %v", err)
	}
	return dir, presetPath
}

func TestLoadJSONAppliesEnvelopeVoicesAndStreaming(t *testing.T) {
	dir, presetPath := writePreset(t, `{
  "instrument": "instruments/keys",
  "attack": 0.002,
  "decay": 0.3,
  "sustain": 0.6,
  "release": 1.5,
  "output_gain": 0.9,
  "max_voices": 32,
  "polyphony": 24,
  "streaming": true,
  "stream": {
    "preload_bytes": 32768,
    "ring_buffer_frames": 16384,
    "low_watermark_frames": 4096,
    "disk_read_frames": 2048,
    "poll_interval_ms": 2.5,
    "max_streaming_voices": 48,
    "underrun_fade_samples": 128
  }
}`)

	pr, err := LoadJSON(presetPath)
	if err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}
	if want := filepath.Join(dir, "instruments", "keys"); pr.Instrument != want {
		t.Fatalf("instrument path mismatch: got=%q want=%q", pr.Instrument, want)
	}
	p := pr.Params
	if p.ADSR.Attack != 0.002 || p.ADSR.Decay != 0.3 || p.ADSR.Sustain != 0.6 || p.ADSR.Release != 1.5 {
		t.Fatalf("envelope mismatch: %+v", p.ADSR)
	}
	if p.Gain != 0.9 || p.MaxVoices != 32 || p.Polyphony != 24 || !p.Streaming {
		t.Fatalf("global fields mismatch: %+v", p)
	}
	s := p.Stream
	if s.PreloadBytes != 32768 || s.RingBufferFrames != 16384 || s.LowWatermarkFrames != 4096 ||
		s.DiskReadFrames != 2048 || s.MaxStreamingVoices != 48 || s.UnderrunFadeSamples != 128 {
		t.Fatalf("stream fields mismatch: %+v", s)
	}
	if s.PollInterval != 2500*time.Microsecond {
		t.Fatalf("poll interval: got=%v", s.PollInterval)
	}
}

func TestLoadJSONKeepsDefaultsForAbsentFields(t *testing.T) {
	_, presetPath := writePreset(t, `{"output_gain_db": -6}`)
	pr, err := LoadJSON(presetPath)
	if err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}
	p := pr.Params
	if math.Abs(float64(p.Gain)-0.501) > 0.01 {
		t.Fatalf("-6 dB should be about 0.5, got %f", p.Gain)
	}
	if p.ADSR.Sustain != 0.8 || p.Polyphony != 16 || p.Stream.RingBufferFrames != 32768 {
		t.Fatalf("defaults changed: %+v", p)
	}
	if pr.Instrument != "" {
		t.Fatalf("instrument should stay empty, got %q", pr.Instrument)
	}
}

func TestLoadJSONRejectsInvalidRanges(t *testing.T) {
	cases := map[string]string{
		"negative attack":  `{"attack": -1}`,
		"sustain above 1":  `{"sustain": 1.5}`,
		"polyphony > pool": `{"max_voices": 8, "polyphony": 9}`,
		"gain and gain dB": `{"output_gain": 1, "output_gain_db": 0}`,
		"odd ring size":    `{"stream": {"ring_buffer_frames": 1000}}`,
		"watermark > ring": `{"stream": {"ring_buffer_frames": 1024, "low_watermark_frames": 2048}}`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, presetPath := writePreset(t, content)
			if _, err := LoadJSON(presetPath); err == nil {
				t.Fatalf("expected error for %s", name)
			}
		})
	}
}
