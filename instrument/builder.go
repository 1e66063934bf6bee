package instrument

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ErrNoSamples is returned when a folder has no parseable sample names.
var ErrNoSamples = errors.New("instrument: no valid sample files")

var (
	sampleNamePattern = regexp.MustCompile(`(?i)^([A-G][#b]?-?\d+)_(\d+)_(\d+)(?:_.*)?$`)
	noteNamePattern   = regexp.MustCompile(`^([A-Ga-g])([#b]?)(-?\d+)$`)

	noteOffsets = map[byte]int{'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11}
	noteNames   = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

	audioExtensions = map[string]bool{".wav": true, ".aiff": true, ".aif": true, ".flac": true, ".mp3": true, ".ogg": true}
)

// SampleName is a sample file parsed from the {Note}_{Velocity}_{RR} convention.
type SampleName struct {
	File       string
	Note       string
	MIDINote   int
	Velocity   int
	RoundRobin int
}

// NoteToMIDI converts a note name such as C#2, Db3 or A4 to a MIDI number (C4 = 60).
func NoteToMIDI(name string) (int, bool) {
	m := noteNamePattern.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	note := noteOffsets[strings.ToUpper(m[1])[0]]
	switch m[2] {
	case "#":
		note++
	case "b":
		note--
	}
	octave, err := strconv.Atoi(m[3])
	if err != nil {
		return 0, false
	}
	return note + (octave+1)*12, true
}

// MIDIToNote converts a MIDI number in 0..127 to a sharp-spelled note name.
func MIDIToNote(n int) string {
	return fmt.Sprintf("%s%d", noteNames[n%12], n/12-1)
}

// ParseSampleName parses a file name, e.g. "F#4_127_02_piano.wav".
func ParseSampleName(file string) (SampleName, bool) {
	stem := strings.TrimSuffix(path.Base(filepath.ToSlash(file)), filepath.Ext(file))
	m := sampleNamePattern.FindStringSubmatch(stem)
	if m == nil {
		return SampleName{}, false
	}
	midi, ok := NoteToMIDI(m[1])
	if !ok {
		return SampleName{}, false
	}
	vel, err := strconv.Atoi(m[2])
	if err != nil {
		return SampleName{}, false
	}
	rr, err := strconv.Atoi(m[3])
	if err != nil {
		return SampleName{}, false
	}
	return SampleName{File: file, Note: m[1], MIDINote: midi, Velocity: vel, RoundRobin: rr}, true
}

// Range is an inclusive integer interval.
type Range struct {
	Low  int
	High int
}

// NoteRanges assigns each root a key range reaching down to the previous root,
// so samples are only pitched down. The highest root extends to 127.
func NoteRanges(roots []int) map[int]Range {
	notes := sortedUnique(roots)
	out := make(map[int]Range, len(notes))
	if len(notes) == 1 {
		out[notes[0]] = Range{0, 127}
		return out
	}
	for i, n := range notes {
		r := Range{Low: 0, High: n}
		if i > 0 {
			r.Low = notes[i-1] + 1
		}
		if i == len(notes)-1 {
			r.High = 127
		}
		out[n] = r
	}
	return out
}

// VelocityRanges splits 1..127 at the midpoints between recorded velocities.
func VelocityRanges(velocities []int) map[int]Range {
	vels := sortedUnique(velocities)
	out := make(map[int]Range, len(vels))
	if len(vels) == 1 {
		out[vels[0]] = Range{1, 127}
		return out
	}
	for i, v := range vels {
		r := Range{Low: 1, High: 127}
		if i > 0 {
			r.Low = (vels[i-1]+v)/2 + 1
		}
		if i < len(vels)-1 {
			r.High = (v + vels[i+1]) / 2
		}
		out[v] = r
	}
	return out
}

func sortedUnique(in []int) []int {
	seen := make(map[int]bool, len(in))
	out := make([]int, 0, len(in))
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Ints(out)
	return out
}

// ScanSampleDir parses the audio files in dir. File paths are returned relative
// to the parent of dir, matching where the definition is written by default.
// Names that do not follow the convention are returned in skipped.
func ScanSampleDir(dir string) (samples []SampleName, skipped []string, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, err
	}
	prefix := filepath.Base(filepath.Clean(dir))
	for _, e := range entries {
		if e.IsDir() || !audioExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		s, ok := ParseSampleName(e.Name())
		if !ok {
			skipped = append(skipped, e.Name())
			continue
		}
		s.File = path.Join(prefix, e.Name())
		samples = append(samples, s)
	}
	return samples, skipped, nil
}

// Build lays out samples as zones: notes ascending, then velocities ascending,
// round robins in RR order.
func Build(samples []SampleName, name, author string) (*Definition, error) {
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}
	roots := make([]int, 0, len(samples))
	vels := make([]int, 0, len(samples))
	for _, s := range samples {
		if s.MIDINote < 0 || s.MIDINote > 127 {
			return nil, fmt.Errorf("%s: note %s outside the MIDI range", s.File, s.Note)
		}
		if s.Velocity < 1 || s.Velocity > 127 {
			return nil, fmt.Errorf("%s: velocity %d outside 1..127", s.File, s.Velocity)
		}
		roots = append(roots, s.MIDINote)
		vels = append(vels, s.Velocity)
	}
	noteRanges := NoteRanges(roots)
	velRanges := VelocityRanges(vels)

	sorted := append([]SampleName(nil), samples...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.MIDINote != b.MIDINote {
			return a.MIDINote < b.MIDINote
		}
		if a.Velocity != b.Velocity {
			return a.Velocity < b.Velocity
		}
		return a.RoundRobin < b.RoundRobin
	})

	d := &Definition{Name: name, Author: author, Samples: make([]SampleDef, 0, len(sorted))}
	for _, s := range sorted {
		nr := noteRanges[s.MIDINote]
		vr := velRanges[s.Velocity]
		d.Samples = append(d.Samples, SampleDef{
			File:     s.File,
			Root:     s.MIDINote,
			LowNote:  nr.Low,
			HighNote: nr.High,
			LowVel:   vr.Low,
			HighVel:  vr.High,
		})
	}
	return d, nil
}
