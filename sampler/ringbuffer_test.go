package sampler

import (
	"math/rand"
	"runtime"
	"testing"
)

func TestNewRingBufferRejectsBadCapacity(t *testing.T) {
	if _, err := NewRingBuffer(100, 2); err == nil {
		t.Fatalf("expected error for non power-of-two capacity")
	}
	if _, err := NewRingBuffer(64, 0); err == nil {
		t.Fatalf("expected error for zero channels")
	}
}

func TestRingBufferDuplicatesMonoAndWraps(t *testing.T) {
	r, err := NewRingBuffer(8, 2)
	if err != nil {
		t.Fatalf("NewRingBuffer: %v", err)
	}
	if n := r.Write([]float32{1, 2, 3, 4, 5, 6}, 1); n != 6 {
		t.Fatalf("write: got=%d want=6", n)
	}
	r.Consume(5)
	if n := r.Write([]float32{7, 8, 9, 10, 11, 12, 13, 14, 15}, 1); n != 7 {
		t.Fatalf("write into 7 free frames: got=%d", n)
	}
	if r.Available() != 8 || r.Space() != 0 {
		t.Fatalf("expected full ring: available=%d space=%d", r.Available(), r.Space())
	}
	for pos := int64(5); pos < r.WriteCursor(); pos++ {
		want := float32(pos + 1)
		if r.Frame(pos, 0) != want || r.Frame(pos, 1) != want {
			t.Fatalf("frame %d: got=(%f,%f) want=%f", pos, r.Frame(pos, 0), r.Frame(pos, 1), want)
		}
	}

	r.Consume(100)
	if r.ReadCursor() != r.WriteCursor() {
		t.Fatalf("consume must clamp to the write cursor")
	}
	r.Consume(3)
	if r.ReadCursor() != r.WriteCursor() {
		t.Fatalf("read cursor must not move backwards")
	}
	r.Reset()
	if r.ReadCursor() != 0 || r.WriteCursor() != 0 || r.Space() != 8 {
		t.Fatalf("reset should empty the ring")
	}
}

func TestRingBufferDropsExtraSourceChannels(t *testing.T) {
	r, _ := NewRingBuffer(4, 2)
	r.Write([]float32{1, 2, 3, 4, 5, 6}, 3)
	if r.Frame(0, 0) != 1 || r.Frame(0, 1) != 2 || r.Frame(1, 0) != 4 || r.Frame(1, 1) != 5 {
		t.Fatalf("unexpected channel mapping: %v", r.data[:4])
	}
}

func TestRingBufferOccupancyUnderRandomInterleavings(t *testing.T) {
	const capacity = 64
	r, _ := NewRingBuffer(capacity, 2)
	rng := rand.New(rand.NewSource(7))
	src := make([]float32, capacity*2)
	next := float32(0)
	expect := float32(0)

	for step := 0; step < 20000; step++ {
		if rng.Intn(2) == 0 {
			n := rng.Intn(capacity*2) + 1
			for i := 0; i < n; i++ {
				src[i] = next + float32(i)
			}
			written := r.Write(src[:n], 1)
			next += float32(written)
		} else {
			avail := r.Available()
			n := 0
			if avail > 0 {
				n = rng.Intn(avail + 1)
			}
			rd := r.ReadCursor()
			for i := 0; i < n; i++ {
				if got := r.Frame(rd+int64(i), 1); got != expect {
					t.Fatalf("step %d: frame order broken: got=%f want=%f", step, got, expect)
				}
				expect++
			}
			r.Consume(rd + int64(n))
		}
		occ := r.WriteCursor() - r.ReadCursor()
		if occ < 0 || occ > capacity {
			t.Fatalf("step %d: occupancy %d outside [0,%d]", step, occ, capacity)
		}
		if r.Space() != capacity-int(occ) {
			t.Fatalf("step %d: space %d inconsistent with occupancy %d", step, r.Space(), occ)
		}
	}
}

func TestRingBufferConcurrentProducerConsumer(t *testing.T) {
	const (
		capacity = 128
		total    = 200000
	)
	r, _ := NewRingBuffer(capacity, 2)

	go func() {
		rng := rand.New(rand.NewSource(11))
		batch := make([]float32, 48)
		sent := 0
		for sent < total {
			n := rng.Intn(len(batch)) + 1
			if n > total-sent {
				n = total - sent
			}
			for i := 0; i < n; i++ {
				batch[i] = float32(sent + i)
			}
			written := r.Write(batch[:n], 1)
			sent += written
			if written == 0 {
				runtime.Gosched()
			}
		}
	}()

	rng := rand.New(rand.NewSource(13))
	received := 0
	for received < total {
		avail := r.Available()
		if avail < 0 || avail > capacity {
			t.Fatalf("occupancy %d outside [0,%d]", avail, capacity)
		}
		if avail == 0 {
			runtime.Gosched()
			continue
		}
		n := rng.Intn(avail) + 1
		rd := r.ReadCursor()
		for i := 0; i < n; i++ {
			if got := r.Frame(rd+int64(i), 0); got != float32(received+i) {
				t.Fatalf("frame %d: got=%f", received+i, got)
			}
		}
		received += n
		r.Consume(rd + int64(n))
	}
}
