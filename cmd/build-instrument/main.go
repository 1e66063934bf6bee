package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/cwbudde/algo-sampler/instrument"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <samples-dir>\n\n", os.Args[0])
		fmt.Fprintln(flag.CommandLine.Output(), "Builds an instrument definition from files named {Note}_{Velocity}_{RR}.wav,")
		fmt.Fprintln(flag.CommandLine.Output(), "for example C3_033_01.wav, C#3_127_02.wav or Db3_064_01.wav.")
		fmt.Fprintln(flag.CommandLine.Output())
		flag.PrintDefaults()
	}
	name := flag.String("name", "My Instrument", "Instrument name")
	author := flag.String("author", "", "Author name")
	output := flag.String("output", "", "Output path (default: <samples-dir>/../"+instrument.DefinitionFile+")")
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	dir, err := filepath.Abs(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fi, err := os.Stat(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: directory not found: %s\n", dir)
		os.Exit(1)
	}
	if !fi.IsDir() {
		fmt.Fprintf(os.Stderr, "Error: not a directory: %s\n", dir)
		os.Exit(1)
	}

	fmt.Printf("Scanning: %s\n", dir)
	samples, skipped, err := instrument.ScanSampleDir(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error scanning %s: %v\n", dir, err)
		os.Exit(1)
	}
	for _, s := range skipped {
		fmt.Printf("  Warning: could not parse filename: %s\n", s)
	}
	if len(samples) == 0 {
		fmt.Fprintln(os.Stderr, "Error: no valid sample files found")
		fmt.Fprintln(os.Stderr, "Expected naming format: {Note}_{Velocity}_{RR}.wav (e.g. C3_033_01.wav)")
		os.Exit(1)
	}
	fmt.Printf("Found %d valid samples\n", len(samples))

	def, err := instrument.Build(samples, *name, *author)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building instrument: %v\n", err)
		os.Exit(1)
	}

	out := *output
	if out == "" {
		out = filepath.Join(filepath.Dir(dir), instrument.DefinitionFile)
	}
	if err := def.WriteFile(out); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", out, err)
		os.Exit(1)
	}
	fmt.Printf("Generated: %s\n", out)

	notes, velocities := summarize(samples)
	fmt.Println()
	fmt.Println("Instrument Summary:")
	fmt.Printf("  Name: %s\n", *name)
	fmt.Printf("  Notes: %s - %s (%d zones)\n", instrument.MIDIToNote(notes[0]), instrument.MIDIToNote(notes[len(notes)-1]), len(notes))
	fmt.Printf("  Velocity layers: %v\n", velocities)
	fmt.Printf("  Total samples: %d\n", len(samples))
}

func summarize(samples []instrument.SampleName) (notes, velocities []int) {
	seenNote := map[int]bool{}
	seenVel := map[int]bool{}
	for _, s := range samples {
		if !seenNote[s.MIDINote] {
			seenNote[s.MIDINote] = true
			notes = append(notes, s.MIDINote)
		}
		if !seenVel[s.Velocity] {
			seenVel[s.Velocity] = true
			velocities = append(velocities, s.Velocity)
		}
	}
	sort.Ints(notes)
	sort.Ints(velocities)
	return notes, velocities
}
