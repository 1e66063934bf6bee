package sampler

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cwbudde/algo-sampler/decoder"
)

var (
	// ErrStopTimeout is returned when the disk goroutine does not exit in time.
	ErrStopTimeout = errors.New("sampler: disk streamer stop timed out")
	// ErrAlreadyRunning is returned when the disk goroutine is already running.
	ErrAlreadyRunning = errors.New("sampler: disk streamer already running")
)

// StreamerState is the lifecycle state of a DiskStreamer.
type StreamerState int32

const (
	StreamerStopped StreamerState = iota
	StreamerRunning
	StreamerStopRequested
)

func (s StreamerState) String() string {
	switch s {
	case StreamerStopped:
		return "stopped"
	case StreamerRunning:
		return "running"
	case StreamerStopRequested:
		return "stop-requested"
	default:
		return fmt.Sprintf("StreamerState(%d)", int32(s))
	}
}

// DiskStreamer refills streaming voice rings from disk on its own goroutine.
type DiskStreamer struct {
	voices []*StreamingVoice
	open   decoder.OpenFunc
	logger *slog.Logger
	stats  *counters
	poll   time.Duration
	batch  int
	// join bounds how long Start waits for a goroutine still stopping.
	join time.Duration

	state atomic.Int32
	mu    sync.Mutex
	stop  chan struct{}
	done  chan struct{}

	// Owned by whichever goroutine runs pass.
	readers     []decoder.Reader
	paths       []string
	mem         []decoder.BufferReader
	scratch     []float32
	activeCount int
}

func newDiskStreamer(voices []*StreamingVoice, p *Params, open decoder.OpenFunc, logger *slog.Logger, stats *counters) *DiskStreamer {
	if open == nil {
		open = decoder.Open
	}
	return &DiskStreamer{
		voices:  voices,
		open:    open,
		logger:  logger,
		stats:   stats,
		poll:    p.Stream.PollInterval,
		batch:   p.Stream.DiskReadFrames,
		join:    p.Stream.StopTimeout,
		readers: make([]decoder.Reader, len(voices)),
		paths:   make([]string, len(voices)),
		mem:     make([]decoder.BufferReader, len(voices)),
		scratch: make([]float32, p.Stream.DiskReadFrames*ringChannels),
	}
}

// State returns the lifecycle state.
func (s *DiskStreamer) State() StreamerState {
	return StreamerState(s.state.Load())
}

// Start launches the disk goroutine. If an earlier Stop timed out, Start
// first waits up to the stop timeout for that goroutine to exit and returns
// ErrStopTimeout if it is still running.
func (s *DiskStreamer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State() == StreamerStopRequested {
		timer := time.NewTimer(s.join)
		defer timer.Stop()
		select {
		case <-s.done:
		case <-timer.C:
			return ErrStopTimeout
		}
	}
	if !s.state.CompareAndSwap(int32(StreamerStopped), int32(StreamerRunning)) {
		return ErrAlreadyRunning
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(s.stop, s.done)
	s.logger.Info("disk streamer started", "voices", len(s.voices), "poll", s.poll)
	return nil
}

// Stop asks the disk goroutine to exit and waits up to timeout for it.
// On timeout the streamer stays in StreamerStopRequested and exits on its own.
func (s *DiskStreamer) Stop(timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.State() {
	case StreamerStopped:
		return nil
	case StreamerRunning:
		s.state.Store(int32(StreamerStopRequested))
		close(s.stop)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-s.done:
		return nil
	case <-timer.C:
		s.logger.Warn("disk streamer did not stop in time", "timeout", timeout)
		return ErrStopTimeout
	}
}

// Close stops the goroutine and releases cached readers.
func (s *DiskStreamer) Close(timeout time.Duration) error {
	if err := s.Stop(timeout); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeReaders()
	return nil
}

// Service runs one scan on the calling goroutine. It is meant for offline
// rendering and tests, where the caller interleaves it with Render.
func (s *DiskStreamer) Service() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State() != StreamerStopped {
		return ErrAlreadyRunning
	}
	s.pass()
	return nil
}

func (s *DiskStreamer) run(stop, done chan struct{}) {
	defer func() {
		s.closeReaders()
		s.state.Store(int32(StreamerStopped))
		close(done)
		s.logger.Info("disk streamer stopped")
	}()

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()
	for {
		s.pass()
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
	}
}

func (s *DiskStreamer) stopping() bool {
	return s.State() == StreamerStopRequested
}

// pass scans every slot once and services those that asked for data.
func (s *DiskStreamer) pass() {
	active := 0
	for i, v := range s.voices {
		if s.stopping() {
			return
		}
		if v.underran.Swap(false) {
			s.logger.Warn("stream underrun", "slot", i, "zone", zoneName(v.source.Load()))
		}
		if !v.active.Load() {
			continue
		}
		active++
		if v.needsData.Load() {
			s.fill(i, v)
		}
	}
	if active != s.activeCount {
		s.logger.Debug("streaming voices", "active", active)
		s.activeCount = active
	}
}

// fill reads batches into slot i until the ring is nearly full, the file ends,
// or shutdown is requested.
func (s *DiskStreamer) fill(i int, v *StreamingVoice) {
	if !v.claimed.CompareAndSwap(false, true) {
		return
	}
	defer v.claimed.Store(false)
	if !v.active.Load() {
		return
	}
	z := v.source.Load()
	defer v.needsData.Store(false)

	r, err := s.reader(i, z)
	if err != nil {
		s.fail(i, v, z, err)
		return
	}
	ch := r.Format().NumChannels
	total := minInt64(z.TotalFrames, r.TotalFrames())
	pos := v.filePos.Load()

	for !s.stopping() && v.active.Load() {
		if pos >= total {
			v.eof.Store(true)
			return
		}
		if v.ring.Space() < s.batch {
			return
		}
		n := int(minInt64(int64(s.batch), total-pos))
		need := n * ch
		if cap(s.scratch) < need {
			s.scratch = make([]float32, need)
		}
		got, err := r.ReadFrames(s.scratch[:need], pos, n)
		if err != nil {
			s.fail(i, v, z, err)
			return
		}
		if got == 0 {
			s.logger.Warn("sample ended early", "slot", i, "zone", z.Name, "frame", pos, "expected", total)
			v.eof.Store(true)
			return
		}
		pos += int64(v.ring.Write(s.scratch[:got*ch], ch))
		v.filePos.Store(pos)
	}
}

// reader returns the cached reader for slot i, reopening when the path changed.
// Zones holding their full payload are read from memory, which also keeps
// zones resampled at load time on their resampled frames.
func (s *DiskStreamer) reader(i int, z *Zone) (decoder.Reader, error) {
	if len(z.Data) > 0 {
		s.mem[i].Reset(z.Data, z.Channels, z.SampleRate)
		return &s.mem[i], nil
	}
	if s.readers[i] != nil && s.paths[i] == z.Path {
		return s.readers[i], nil
	}
	s.closeReader(i)
	if z.Path == "" {
		return nil, fmt.Errorf("zone %q has no file path", z.Name)
	}
	r, err := s.open(z.Path)
	if err != nil {
		return nil, err
	}
	s.readers[i] = r
	s.paths[i] = z.Path
	return r, nil
}

func (s *DiskStreamer) fail(i int, v *StreamingVoice, z *Zone, err error) {
	v.readErr.Store(true)
	s.stats.readErrors.Add(1)
	s.closeReader(i)
	s.logger.Error("stream read failed", "slot", i, "zone", z.Name, "path", z.Path, "err", err)
}

func (s *DiskStreamer) closeReader(i int) {
	if s.readers[i] == nil {
		return
	}
	if err := s.readers[i].Close(); err != nil {
		s.logger.Debug("closing sample reader", "path", s.paths[i], "err", err)
	}
	s.readers[i] = nil
	s.paths[i] = ""
}

func (s *DiskStreamer) closeReaders() {
	for i := range s.readers {
		s.closeReader(i)
	}
}

func zoneName(z *Zone) string {
	if z == nil {
		return ""
	}
	return z.Name
}
