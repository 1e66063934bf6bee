package sampler

import (
	"errors"
	"fmt"
)

var (
	// ErrNoZones is returned when a catalog is built without zones.
	ErrNoZones = errors.New("sampler: no zones in catalog")
	// ErrNotResident is returned when resident playback is asked of a catalog
	// whose zones only hold a preload head. Reload it with full sample data.
	ErrNotResident = errors.New("sampler: catalog zones are not fully loaded for resident playback")
)

// Zone is one sample mapped to a note and velocity rectangle.
type Zone struct {
	Name string
	Path string

	RootNote     int
	LowNote      int
	HighNote     int
	LowVelocity  int
	HighVelocity int

	SampleRate int
	Channels   int

	// Data is the full interleaved payload. Nil for streamed zones.
	Data []float32
	// Preload is the interleaved head of the sample.
	Preload []float32
	// TotalFrames is the length of the sample file in frames.
	TotalFrames int64
}

// Validate checks the zone's mapping and format.
func (z *Zone) Validate() error {
	if z.LowNote < 0 || z.HighNote > maxNote || z.LowNote > z.HighNote {
		return fmt.Errorf("zone %q: bad note range %d..%d", z.Name, z.LowNote, z.HighNote)
	}
	if z.LowVelocity < 1 || z.HighVelocity > maxVelocity || z.LowVelocity > z.HighVelocity {
		return fmt.Errorf("zone %q: bad velocity range %d..%d", z.Name, z.LowVelocity, z.HighVelocity)
	}
	if z.RootNote < 0 || z.RootNote > maxNote {
		return fmt.Errorf("zone %q: bad root note %d", z.Name, z.RootNote)
	}
	if z.SampleRate <= 0 {
		return fmt.Errorf("zone %q: sample rate must be > 0", z.Name)
	}
	if z.Channels < 1 {
		return fmt.Errorf("zone %q: channels must be >= 1", z.Name)
	}
	if z.TotalFrames <= 0 {
		return fmt.Errorf("zone %q: empty sample", z.Name)
	}
	if len(z.Data)%z.Channels != 0 || len(z.Preload)%z.Channels != 0 {
		return fmt.Errorf("zone %q: buffer length not a multiple of %d channels", z.Name, z.Channels)
	}
	if len(z.Data) == 0 && len(z.Preload) == 0 && z.Path == "" {
		return fmt.Errorf("zone %q: no audio and no path", z.Name)
	}
	return nil
}

// Matches reports whether note and velocity fall inside the zone.
func (z *Zone) Matches(note, velocity int) bool {
	return note >= z.LowNote && note <= z.HighNote &&
		velocity >= z.LowVelocity && velocity <= z.HighVelocity
}

// PreloadFrames is the number of frames held in Preload.
func (z *Zone) PreloadFrames() int64 {
	return int64(len(z.Preload) / z.Channels)
}

// NeedsStreaming reports whether the file extends past the preload head.
func (z *Zone) NeedsStreaming() bool {
	return z.TotalFrames > z.PreloadFrames()
}

// Resident reports whether Data holds the whole sample.
func (z *Zone) Resident() bool {
	return z.Channels > 0 && int64(len(z.Data)/z.Channels) >= z.TotalFrames
}

// ResidentFrames returns the in-memory audio used by resident playback:
// the full payload when loaded, otherwise the preload head.
func (z *Zone) ResidentFrames() []float32 {
	if len(z.Data) > 0 {
		return z.Data
	}
	return z.Preload
}

// Catalog is an immutable, ordered list of zones.
type Catalog struct {
	zones    []Zone
	resident bool
}

// NewCatalog validates zones and builds a catalog. The slice is copied.
func NewCatalog(zones []Zone) (*Catalog, error) {
	if len(zones) == 0 {
		return nil, ErrNoZones
	}
	c := &Catalog{zones: make([]Zone, len(zones))}
	copy(c.zones, zones)
	c.resident = true
	for i := range c.zones {
		if err := c.zones[i].Validate(); err != nil {
			return nil, err
		}
		c.resident = c.resident && c.zones[i].Resident()
	}
	return c, nil
}

// Len returns the number of zones.
func (c *Catalog) Len() int {
	return len(c.zones)
}

// Resident reports whether every zone can be played from memory.
func (c *Catalog) Resident() bool {
	return c.resident
}

// Zone returns zone i.
func (c *Catalog) Zone(i int) *Zone {
	return &c.zones[i]
}

// Match appends the indices of zones containing note and velocity, in catalog order.
// It does not allocate when dst has enough capacity.
func (c *Catalog) Match(note, velocity int, dst []int) []int {
	for i := range c.zones {
		if c.zones[i].Matches(note, velocity) {
			dst = append(dst, i)
		}
	}
	return dst
}
