// Package sampler is a polyphonic sample-playback engine.
//
// An Engine maps notes to zones of a Catalog, plays them on a fixed pool of
// voices and mixes them into an interleaved float32 buffer. Zones can be
// played from memory or streamed from disk through per-voice rings that a
// DiskStreamer goroutine keeps filled.
//
// Render, NoteOn, NoteOff, SustainPedal and HandleMIDI belong to the audio
// goroutine and never block or allocate. The Set*, LoadCatalog and Stats
// methods may be called from any goroutine; their effect is applied at the
// start of the next block.
package sampler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"github.com/cwbudde/algo-sampler/decoder"
	"github.com/viterin/vek/vek32"
)

// Config configures a new Engine.
type Config struct {
	SampleRate int
	// Channels is the output channel count, 1 or 2. Zero means 2.
	Channels int
	// Params defaults to NewDefaultParams.
	Params *Params
	Logger *slog.Logger
	// Open creates sample readers for the disk streamer. Defaults to decoder.Open.
	Open decoder.OpenFunc
	// ManualStreaming keeps the disk goroutine stopped; the caller runs
	// ServiceStreams between blocks instead.
	ManualStreaming bool
}

type instrumentState struct {
	catalog *Catalog
	matches []int
}

// Engine is the sampler: note router, voice pools and mixer.
type Engine struct {
	sampleRate int
	channels   int
	params     Params
	logger     *slog.Logger
	manual     bool

	memVoices    []*MemoryVoice
	streamVoices []*StreamingVoice
	memPool      []voice
	streamPool   []voice
	streamer     *DiskStreamer

	// audio goroutine state
	streaming bool
	inst      *instrumentState
	rr        [maxNote + 1]uint32
	pedalDown bool

	// control inputs; ctl serializes catalog and mode changes
	ctl           sync.Mutex
	catalog       *Catalog
	wantStreaming atomic.Bool
	nextInst      atomic.Pointer[instrumentState]
	nextADSR      atomic.Pointer[ADSR]
	polyphony     atomic.Int32
	gainBits      atomic.Uint32

	lastSelected atomic.Pointer[Zone]
	stats        counters
}

// New creates an engine. It fails only on invalid configuration.
func New(cfg Config) (*Engine, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be > 0, got %d", cfg.SampleRate)
	}
	ch := cfg.Channels
	if ch == 0 {
		ch = 2
	}
	if ch < 1 || ch > maxOutputChannels {
		return nil, fmt.Errorf("output channels must be 1 or 2, got %d", cfg.Channels)
	}
	p := cfg.Params
	if p == nil {
		p = NewDefaultParams()
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	e := &Engine{
		sampleRate: cfg.SampleRate,
		channels:   ch,
		params:     *p,
		logger:     logger,
		manual:     cfg.ManualStreaming,
	}

	fadeLen := p.Stream.UnderrunFadeSamples
	e.memVoices = make([]*MemoryVoice, p.MaxVoices)
	e.memPool = make([]voice, p.MaxVoices)
	for i := range e.memVoices {
		e.memVoices[i] = newMemoryVoice(cfg.SampleRate, p.ADSR, fadeLen)
		e.memPool[i] = e.memVoices[i]
	}
	e.streamVoices = make([]*StreamingVoice, p.Stream.MaxStreamingVoices)
	e.streamPool = make([]voice, p.Stream.MaxStreamingVoices)
	for i := range e.streamVoices {
		v, err := newStreamingVoice(i, cfg.SampleRate, p, &e.stats)
		if err != nil {
			return nil, err
		}
		e.streamVoices[i] = v
		e.streamPool[i] = v
	}
	e.streamer = newDiskStreamer(e.streamVoices, p, cfg.Open, logger, &e.stats)

	e.polyphony.Store(int32(p.Polyphony))
	e.gainBits.Store(math.Float32bits(p.Gain))
	e.streaming = p.Streaming
	e.wantStreaming.Store(p.Streaming)
	e.stats.streaming.Store(p.Streaming)

	if p.Streaming && !e.manual {
		if err := e.streamer.Start(); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// SampleRate returns the host sample rate.
func (e *Engine) SampleRate() int { return e.sampleRate }

// Channels returns the output channel count.
func (e *Engine) Channels() int { return e.channels }

// Streamer exposes the disk streamer for lifecycle inspection.
func (e *Engine) Streamer() *DiskStreamer { return e.streamer }

// LoadCatalog swaps in a new catalog. All voices stop at the next block and
// round-robin counters restart. In resident mode every zone must hold its
// full payload (ErrNotResident otherwise).
func (e *Engine) LoadCatalog(c *Catalog) error {
	if c == nil || c.Len() == 0 {
		return ErrNoZones
	}
	e.ctl.Lock()
	defer e.ctl.Unlock()
	if !e.wantStreaming.Load() && !c.Resident() {
		return ErrNotResident
	}
	e.catalog = c
	e.nextInst.Store(&instrumentState{catalog: c, matches: make([]int, 0, c.Len())})
	e.logger.Info("catalog loaded", "zones", c.Len())
	return nil
}

// UnloadCatalog removes the catalog; note-ons become silent.
func (e *Engine) UnloadCatalog() {
	e.ctl.Lock()
	defer e.ctl.Unlock()
	e.catalog = nil
	e.nextInst.Store(&instrumentState{})
}

// SetGain sets the linear output gain.
func (e *Engine) SetGain(g float32) {
	if g < 0 || math.IsNaN(float64(g)) {
		g = 0
	}
	e.gainBits.Store(math.Float32bits(g))
}

// Gain returns the linear output gain.
func (e *Engine) Gain() float32 {
	return math.Float32frombits(e.gainBits.Load())
}

// SetPolyphonyLimit sets the voice ceiling, clamped to 1..the larger pool.
// Allocation clamps again to the pool of the active mode. Sounding voices
// above the new limit keep playing.
func (e *Engine) SetPolyphonyLimit(n int) {
	pool := e.params.MaxVoices
	if e.params.Stream.MaxStreamingVoices > pool {
		pool = e.params.Stream.MaxStreamingVoices
	}
	e.polyphony.Store(int32(clampInt(n, 1, pool)))
}

// PolyphonyLimit returns the current voice ceiling.
func (e *Engine) PolyphonyLimit() int {
	return int(e.polyphony.Load())
}

// SetADSR replaces the envelope settings of every voice.
func (e *Engine) SetADSR(a ADSR) error {
	if err := a.validate(); err != nil {
		return err
	}
	e.nextADSR.Store(&a)
	return nil
}

// SetStreamingEnabled switches between resident and streaming playback.
// Voices of the old mode stop at the next block. The disk goroutine is
// started or stopped here unless the engine runs in manual streaming mode.
// Switching to resident mode fails with ErrNotResident when the loaded
// catalog only holds preload heads. If the disk goroutine cannot be started
// the engine stays in resident mode.
func (e *Engine) SetStreamingEnabled(on bool) error {
	e.ctl.Lock()
	defer e.ctl.Unlock()
	if e.wantStreaming.Load() == on {
		return nil
	}
	if !on && e.catalog != nil && !e.catalog.Resident() {
		return ErrNotResident
	}
	if on && !e.manual {
		if err := e.streamer.Start(); err != nil && !errors.Is(err, ErrAlreadyRunning) {
			return err
		}
	}
	e.wantStreaming.Store(on)
	e.logger.Info("streaming mode changed", "enabled", on)
	if on || e.manual {
		return nil
	}
	return e.streamer.Stop(e.params.Stream.StopTimeout)
}

// StreamingEnabled reports the requested playback mode.
func (e *Engine) StreamingEnabled() bool {
	return e.wantStreaming.Load()
}

// ServiceStreams runs one disk pass on the calling goroutine (manual mode).
func (e *Engine) ServiceStreams() error {
	return e.streamer.Service()
}

// LastSelected returns the zone chosen by the most recent note-on, or nil.
func (e *Engine) LastSelected() *Zone {
	return e.lastSelected.Load()
}

// Stats returns a snapshot of the engine counters.
func (e *Engine) Stats() Stats {
	return e.stats.snapshot()
}

// Close stops the disk goroutine and releases readers.
func (e *Engine) Close() error {
	return e.streamer.Close(e.params.Stream.StopTimeout)
}

// applyPending applies control changes made since the last call.
func (e *Engine) applyPending() {
	if inst := e.nextInst.Swap(nil); inst != nil {
		e.stopAll()
		if inst.catalog == nil {
			inst = nil
		}
		e.inst = inst
		e.rr = [maxNote + 1]uint32{}
		e.lastSelected.Store(nil)
	}
	if want := e.wantStreaming.Load(); want != e.streaming {
		e.stopAll()
		e.streaming = want
		e.stats.streaming.Store(want)
	}
	if a := e.nextADSR.Swap(nil); a != nil {
		for _, v := range e.memPool {
			v.setADSR(*a)
		}
		for _, v := range e.streamPool {
			v.setADSR(*a)
		}
	}
}

func (e *Engine) stopAll() {
	for _, v := range e.memPool {
		v.stop()
	}
	for _, v := range e.streamPool {
		v.stop()
	}
}

func (e *Engine) pool() []voice {
	if e.streaming {
		return e.streamPool
	}
	return e.memPool
}

// Render mixes the next block into out, interleaved with Channels() channels.
func (e *Engine) Render(out []float32) {
	clear(out)
	e.applyPending()

	ch := e.channels
	frames := len(out) / ch
	out = out[:frames*ch]
	active := 0
	if e.streaming {
		for _, v := range e.streamVoices {
			v.render(out, frames, ch)
			if v.busy() {
				active++
			}
		}
	} else {
		for _, v := range e.memVoices {
			v.render(out, frames, ch)
			if v.busy() {
				active++
			}
		}
	}
	e.stats.active.Store(int32(active))

	if g := e.Gain(); g != 1 {
		vek32.MulNumber_Inplace(out, g)
	}
}

// Process renders numFrames frames into a new interleaved buffer.
func (e *Engine) Process(numFrames int) []float32 {
	out := make([]float32, numFrames*e.channels)
	e.Render(out)
	return out
}
