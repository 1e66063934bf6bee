package sampler

import "sync/atomic"

// Stats is a snapshot of engine counters.
type Stats struct {
	VoicesStarted uint64
	Steals        uint64
	Underruns     uint64
	ReadErrors    uint64
	ActiveVoices  int
	Streaming     bool
}

type counters struct {
	started    atomic.Uint64
	steals     atomic.Uint64
	underruns  atomic.Uint64
	readErrors atomic.Uint64
	active     atomic.Int32
	streaming  atomic.Bool
}

func (c *counters) snapshot() Stats {
	return Stats{
		VoicesStarted: c.started.Load(),
		Steals:        c.steals.Load(),
		Underruns:     c.underruns.Load(),
		ReadErrors:    c.readErrors.Load(),
		ActiveVoices:  int(c.active.Load()),
		Streaming:     c.streaming.Load(),
	}
}
