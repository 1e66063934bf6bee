package sampler

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/cwbudde/algo-sampler/decoder"
	"github.com/go-audio/audio"
)

const testRate = 48000

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// flatADSR makes the envelope a constant 1 while the note is held.
func flatADSR() ADSR {
	return ADSR{Attack: 0, Decay: 0, Sustain: 1, Release: 0}
}

func dcData(frames, channels int, value float32) []float32 {
	data := make([]float32, frames*channels)
	for i := range data {
		data[i] = value
	}
	return data
}

// rampData returns a mono signal whose value at frame i is i*step.
func rampData(frames int, step float32) []float32 {
	data := make([]float32, frames)
	for i := range data {
		data[i] = float32(i) * step
	}
	return data
}

func memZone(name string, root, loNote, hiNote, loVel, hiVel int, data []float32) Zone {
	return Zone{
		Name:         name,
		Path:         name + ".wav",
		RootNote:     root,
		LowNote:      loNote,
		HighNote:     hiNote,
		LowVelocity:  loVel,
		HighVelocity: hiVel,
		SampleRate:   testRate,
		Channels:     1,
		Data:         data,
		TotalFrames:  int64(len(data)),
	}
}

func mustCatalog(t *testing.T, zones ...Zone) *Catalog {
	t.Helper()
	c, err := NewCatalog(zones)
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	return c
}

func newTestEngine(t *testing.T, p *Params, open decoder.OpenFunc, zones ...Zone) *Engine {
	t.Helper()
	e, err := New(Config{
		SampleRate:      testRate,
		Channels:        2,
		Params:          p,
		Logger:          quietLogger(),
		Open:            open,
		ManualStreaming: true,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })
	if len(zones) > 0 {
		if err := e.LoadCatalog(mustCatalog(t, zones...)); err != nil {
			t.Fatalf("LoadCatalog: %v", err)
		}
	}
	return e
}

// smallStreamParams keeps rings tiny so tests cross many refills.
func smallStreamParams() *Params {
	p := NewDefaultParams()
	p.ADSR = flatADSR()
	p.Streaming = true
	p.Stream.RingBufferFrames = 256
	p.Stream.LowWatermarkFrames = 128
	p.Stream.DiskReadFrames = 64
	p.Stream.MaxStreamingVoices = 4
	p.Stream.UnderrunFadeSamples = 16
	p.Stream.PreloadBytes = 64 * 4
	p.Polyphony = 4
	return p
}

func streamZone(name string, root int, data []float32, preloadFrames int) Zone {
	return Zone{
		Name:         name,
		Path:         name + ".wav",
		RootNote:     root,
		LowNote:      0,
		HighNote:     127,
		LowVelocity:  1,
		HighVelocity: 127,
		SampleRate:   testRate,
		Channels:     1,
		Preload:      append([]float32(nil), data[:preloadFrames]...),
		TotalFrames:  int64(len(data)),
	}
}

func stereoRMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// maxStep returns the largest jump between consecutive frames of one channel.
func maxStep(samples []float32, channels, ch int) float64 {
	var worst float64
	for i := channels + ch; i < len(samples); i += channels {
		d := math.Abs(float64(samples[i] - samples[i-channels]))
		if d > worst {
			worst = d
		}
	}
	return worst
}

func leftChannel(samples []float32) []float32 {
	out := make([]float32, len(samples)/2)
	for i := range out {
		out[i] = samples[i*2]
	}
	return out
}

// memReader serves mono frames from memory.
type memReader struct {
	data   []float32
	closed atomic.Bool
	fail   error
}

func (r *memReader) Format() *audio.Format {
	return &audio.Format{NumChannels: 1, SampleRate: testRate}
}

func (r *memReader) TotalFrames() int64 { return int64(len(r.data)) }

func (r *memReader) ReadFrames(dst []float32, start int64, frames int) (int, error) {
	if r.fail != nil {
		return 0, r.fail
	}
	if start >= int64(len(r.data)) {
		return 0, nil
	}
	n := copy(dst[:frames], r.data[start:])
	return n, nil
}

func (r *memReader) Close() error {
	r.closed.Store(true)
	return nil
}

// fakeFS maps paths to in-memory readers and counts opens.
type fakeFS struct {
	mu      sync.Mutex
	files   map[string][]float32
	opens   map[string]int
	readErr error
	// gate, when set, stalls open until closed; entered is signalled first.
	gate    chan struct{}
	entered chan struct{}
}

func newFakeFS() *fakeFS {
	return &fakeFS{files: map[string][]float32{}, opens: map[string]int{}}
}

func (fs *fakeFS) add(path string, data []float32) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.files[path] = data
}

func (fs *fakeFS) openCount(path string) int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.opens[path]
}

func (fs *fakeFS) open(path string) (decoder.Reader, error) {
	if fs.gate != nil {
		select {
		case fs.entered <- struct{}{}:
		default:
		}
		<-fs.gate
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.opens[path]++
	data, ok := fs.files[path]
	if !ok {
		return nil, errors.New("no such file: " + path)
	}
	return &memReader{data: data, fail: fs.readErr}, nil
}
