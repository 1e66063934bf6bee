package sampler

import (
	"errors"
	"testing"
)

func TestNewCatalogRejectsEmptyAndInvalidZones(t *testing.T) {
	if _, err := NewCatalog(nil); !errors.Is(err, ErrNoZones) {
		t.Fatalf("expected ErrNoZones, got %v", err)
	}

	bad := memZone("bad", 60, 70, 60, 1, 127, dcData(10, 1, 0.1))
	if _, err := NewCatalog([]Zone{bad}); err == nil {
		t.Fatalf("expected error for inverted note range")
	}

	zeroVel := memZone("vel0", 60, 0, 127, 0, 127, dcData(10, 1, 0.1))
	if _, err := NewCatalog([]Zone{zeroVel}); err == nil {
		t.Fatalf("expected error for velocity range starting at 0")
	}

	noRate := memZone("rate", 60, 0, 127, 1, 127, dcData(10, 1, 0.1))
	noRate.SampleRate = 0
	if _, err := NewCatalog([]Zone{noRate}); err == nil {
		t.Fatalf("expected error for zero sample rate")
	}
}

func TestCatalogMatchReturnsCatalogOrder(t *testing.T) {
	data := dcData(10, 1, 0.1)
	c := mustCatalog(t,
		memZone("a", 60, 60, 60, 1, 64, data),
		memZone("b", 60, 60, 60, 65, 127, data),
		memZone("c", 60, 55, 65, 1, 64, data),
		memZone("d", 72, 70, 80, 1, 127, data),
	)

	buf := make([]int, 0, c.Len())
	got := c.Match(60, 40, buf)
	if len(got) != 2 || got[0] != 0 || got[1] != 2 {
		t.Fatalf("match(60,40): got=%v want=[0 2]", got)
	}
	got = c.Match(60, 100, buf)
	if len(got) != 1 || got[0] != 1 {
		t.Fatalf("match(60,100): got=%v want=[1]", got)
	}
	if got = c.Match(20, 100, buf); len(got) != 0 {
		t.Fatalf("match(20,100): expected no zones, got=%v", got)
	}
	if c.Zone(3).Name != "d" {
		t.Fatalf("zone order not preserved")
	}
}

func TestCatalogCopiesZones(t *testing.T) {
	zones := []Zone{memZone("a", 60, 0, 127, 1, 127, dcData(10, 1, 0.1))}
	c := mustCatalog(t, zones...)
	zones[0].Name = "changed"
	if c.Zone(0).Name != "a" {
		t.Fatalf("catalog must not alias the caller's slice")
	}
}

func TestZoneStreamingHelpers(t *testing.T) {
	z := Zone{Channels: 2, Preload: make([]float32, 2*100), TotalFrames: 100}
	if z.NeedsStreaming() {
		t.Fatalf("zone fully covered by preload should not stream")
	}
	z.TotalFrames = 101
	if !z.NeedsStreaming() {
		t.Fatalf("zone longer than preload should stream")
	}
	if got := len(z.ResidentFrames()); got != 200 {
		t.Fatalf("resident frames without data should be the preload: got=%d", got)
	}
	z.Data = make([]float32, 2*101)
	if got := len(z.ResidentFrames()); got != 202 {
		t.Fatalf("resident frames should prefer data: got=%d", got)
	}
}
