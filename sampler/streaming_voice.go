package sampler

import (
	"sync/atomic"

	"github.com/cwbudde/algo-sampler/dsp"
)

// ringChannels is the frame width of every streaming ring.
const ringChannels = 2

// StreamingVoice plays a zone from its preload head followed by frames the
// disk streamer delivers through a per-voice ring.
//
// The audio goroutine owns playback state and the ring's read side. The disk
// goroutine owns the ring's write side and filePos while it holds claimed.
// The audio goroutine resets the ring only after claiming the slot itself;
// if the disk goroutine holds it, the start waits in pending until the next block.
type StreamingVoice struct {
	voiceCore

	slot         int
	ring         *RingBuffer
	lowWatermark int64
	stats        *counters

	source    atomic.Pointer[Zone]
	filePos   atomic.Int64
	active    atomic.Bool
	needsData atomic.Bool
	eof       atomic.Bool
	readErr   atomic.Bool
	claimed   atomic.Bool
	underran  atomic.Bool

	// audio goroutine only
	pending   *Zone
	total     int64
	streaming bool
	underrun  dsp.LinearFade
	hold      [maxOutputChannels]float32
}

func newStreamingVoice(slot, sampleRate int, p *Params, stats *counters) (*StreamingVoice, error) {
	ring, err := NewRingBuffer(p.Stream.RingBufferFrames, ringChannels)
	if err != nil {
		return nil, err
	}
	v := &StreamingVoice{
		slot:         slot,
		ring:         ring,
		lowWatermark: int64(p.Stream.LowWatermarkFrames),
		stats:        stats,
		underrun:     dsp.NewLinearFade(p.Stream.UnderrunFadeSamples),
	}
	v.initCore(sampleRate, p.ADSR, p.Stream.UnderrunFadeSamples)
	return v, nil
}

func (v *StreamingVoice) busy() bool {
	return v.pending != nil || v.active.Load()
}

func (v *StreamingVoice) start(z *Zone, note, velocity int, hostRate float64) {
	v.beginNote(v.active.Load(), z, note, velocity, hostRate)
	v.halt()
	v.pending = z
	v.tryBegin()
}

// tryBegin loads the pending zone into the ring if the slot can be claimed.
func (v *StreamingVoice) tryBegin() {
	if !v.claimed.CompareAndSwap(false, true) {
		return
	}
	z := v.pending
	v.pending = nil

	// A fully loaded zone primes the ring from its payload; the streamer
	// then serves the rest from memory as well.
	head := z.Preload
	if len(z.Data) > 0 {
		head = z.Data
	}
	v.ring.Reset()
	written := v.ring.Write(head, z.Channels)
	v.total = z.TotalFrames
	v.streaming = z.TotalFrames > int64(written)
	v.underrun.Stop()
	v.hold = [maxOutputChannels]float32{}

	v.filePos.Store(int64(written))
	v.eof.Store(!v.streaming)
	v.readErr.Store(false)
	v.underran.Store(false)
	v.source.Store(z)
	v.needsData.Store(v.streaming)
	v.active.Store(true)

	v.claimed.Store(false)
}

// halt silences the slot without touching the tail fade.
func (v *StreamingVoice) halt() {
	v.pending = nil
	v.needsData.Store(false)
	v.active.Store(false)
}

func (v *StreamingVoice) stop() {
	v.halt()
	v.fade.Stop()
	v.endNote()
}

func (v *StreamingVoice) free() {
	v.halt()
	v.underrun.Stop()
	v.endNote()
}

func (v *StreamingVoice) noteOff(pedalDown bool) {
	if v.busy() {
		v.releaseNote(pedalDown)
	}
}

func (v *StreamingVoice) pedalUp() {
	if v.busy() {
		v.releaseSustained()
	}
}

// render adds frames of output to out, interleaved with outCh channels.
func (v *StreamingVoice) render(out []float32, frames, outCh int) {
	v.addTail(out, frames, outCh)
	if v.pending != nil {
		v.tryBegin()
	}
	if !v.active.Load() {
		return
	}

	ring := v.ring
	total := v.total
	w := ring.WriteCursor()
	eof := v.eof.Load()
	rerr := v.readErr.Load()

	for i := 0; i < frames; i++ {
		if v.position >= float64(total) {
			v.free()
			return
		}
		env := v.env.Next()
		if !v.env.Active() {
			v.free()
			return
		}

		pos0 := int64(v.position)
		pos1 := pos0 + 1
		if pos1 >= total {
			pos1 = pos0
		}
		if w-pos0 <= 2 {
			w = ring.WriteCursor()
			eof = v.eof.Load()
			rerr = v.readErr.Load()
		}
		starved := pos1 >= w

		if !v.underrun.Active() {
			switch {
			case starved && (eof || rerr):
				// Drained everything the disk will ever deliver.
				v.underrun.Start()
			case w < total && !eof && !rerr && w-pos0 <= 2:
				v.underrun.Start()
				v.underran.Store(true)
				v.stats.underruns.Add(1)
			}
		}
		gain := v.velocity * env
		if v.underrun.Active() {
			if v.underrun.Done() {
				v.free()
				return
			}
			gain *= v.underrun.Next()
		}

		base := i * outCh
		if starved {
			for ch := 0; ch < outCh; ch++ {
				s := v.hold[ch] * gain
				out[base+ch] += s
				v.last[ch] = s
			}
			continue
		}
		frac := float32(v.position - float64(pos0))
		for ch := 0; ch < outCh; ch++ {
			sc := ch
			if sc >= ringChannels {
				sc = ringChannels - 1
			}
			x := dsp.Lerp(ring.Frame(pos0, sc), ring.Frame(pos1, sc), frac)
			v.hold[ch] = x
			s := x * gain
			out[base+ch] += s
			v.last[ch] = s
		}
		v.position += v.ratio
	}

	read := int64(v.position)
	ring.Consume(read)
	if read > w {
		read = w
	}
	if v.streaming && !eof && !rerr && w < total && w-read < v.lowWatermark {
		v.needsData.Store(true)
	}
}
