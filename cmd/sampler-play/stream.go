package main

import (
	"encoding/binary"
	"io"
	"math"
	"sync/atomic"

	"github.com/cwbudde/algo-sampler/sequence"
)

// sequenceStream adapts a sequence player and its target to the io.Reader
// oto pulls float32LE bytes from. Reads happen on oto's goroutine, which
// makes it the engine's audio goroutine.
type sequenceStream struct {
	target   sequence.Target
	player   *sequence.Player
	endFrame int64
	block    []float32
	buf      []byte
	pending  []byte
	finished atomic.Bool
}

func newSequenceStream(t sequence.Target, seq *sequence.Sequence, tailFrames int64, blockFrames int) *sequenceStream {
	if blockFrames < 1 {
		blockFrames = 1
	}
	return &sequenceStream{
		target:   t,
		player:   sequence.NewPlayer(seq),
		endFrame: seq.Length() + tailFrames,
		block:    make([]float32, blockFrames*t.Channels()),
		buf:      make([]byte, blockFrames*t.Channels()*4),
	}
}

// Read implements io.Reader. It returns io.EOF once the sequence and its
// tail have been rendered.
func (s *sequenceStream) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if len(s.pending) == 0 {
			if !s.renderBlock() {
				break
			}
		}
		c := copy(p[n:], s.pending)
		s.pending = s.pending[c:]
		n += c
	}
	if n == 0 {
		s.finished.Store(true)
		return 0, io.EOF
	}
	return n, nil
}

func (s *sequenceStream) renderBlock() bool {
	remaining := s.endFrame - s.player.Frame()
	if remaining <= 0 {
		return false
	}
	ch := s.target.Channels()
	frames := int64(len(s.block) / ch)
	if remaining < frames {
		frames = remaining
	}
	out := s.block[:int(frames)*ch]
	s.player.Render(s.target, out)

	buf := s.buf[:len(out)*4]
	for i, v := range out {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	s.pending = buf
	return true
}

// Done reports whether the stream has returned io.EOF.
func (s *sequenceStream) Done() bool { return s.finished.Load() }

// Position returns the number of frames rendered.
func (s *sequenceStream) Position() int64 { return s.player.Frame() }
