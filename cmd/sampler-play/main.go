package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/cwbudde/algo-sampler/instrument"
	"github.com/cwbudde/algo-sampler/preset"
	"github.com/cwbudde/algo-sampler/sampler"
	"github.com/cwbudde/algo-sampler/sequence"
	"github.com/ebitengine/oto/v3"
)

func main() {
	midiPath := flag.String("midi", "", "Standard MIDI file to play (required)")
	sampleRate := flag.Int("sample-rate", 48000, "Output sample rate in Hz")
	presetPath := flag.String("preset", "", "Preset JSON file path (optional)")
	instPath := flag.String("instrument", "", "Instrument folder or definition file (overrides the preset)")
	stream := flag.Bool("stream", false, "Stream samples from disk instead of loading them into memory")
	blockSize := flag.Int("block", 256, "Render block size in frames")
	tail := flag.Float64("tail", 2.0, "Seconds to keep playing after the last event")
	verbose := flag.Bool("v", false, "Log engine events to stderr")
	flag.Parse()

	if *midiPath == "" {
		fmt.Fprintln(os.Stderr, "Error: -midi is required")
		flag.Usage()
		os.Exit(2)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	params := sampler.NewDefaultParams()
	instrumentPath := *instPath
	if *presetPath != "" {
		p, err := preset.LoadJSON(*presetPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading preset %q: %v\n", *presetPath, err)
			os.Exit(1)
		}
		params = p.Params
		if instrumentPath == "" {
			instrumentPath = p.Instrument
		}
	}
	if instrumentPath == "" {
		dir, err := instrument.DefaultFolder()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: no instrument given and no default folder: %v\n", err)
			os.Exit(1)
		}
		infos, err := instrument.Scan(dir)
		if err != nil || len(infos) == 0 {
			fmt.Fprintf(os.Stderr, "Error: no instrument given and none found in %s\n", dir)
			os.Exit(1)
		}
		instrumentPath = infos[0].DefinitionFile
	}
	if *stream {
		params.Streaming = true
	}

	opts := instrument.Options{
		Streaming:    params.Streaming,
		PreloadBytes: params.Stream.PreloadBytes,
		Logger:       logger,
	}
	if !params.Streaming {
		opts.ResampleTo = *sampleRate
	}
	var inst *instrument.Instrument
	var err error
	if fi, statErr := os.Stat(instrumentPath); statErr == nil && fi.IsDir() {
		inst, err = instrument.LoadFolder(instrumentPath, opts)
	} else {
		inst, err = instrument.Load(instrumentPath, opts)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading instrument %q: %v\n", instrumentPath, err)
		os.Exit(1)
	}
	catalog, err := inst.Catalog()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building catalog: %v\n", err)
		os.Exit(1)
	}

	eng, err := sampler.New(sampler.Config{
		SampleRate: *sampleRate,
		Params:     params,
		Logger:     logger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating engine: %v\n", err)
		os.Exit(1)
	}
	defer eng.Close()
	if err := eng.LoadCatalog(catalog); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading catalog: %v\n", err)
		os.Exit(1)
	}

	seq, err := sequence.ReadFile(*midiPath, *sampleRate)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading MIDI file %q: %v\n", *midiPath, err)
		os.Exit(1)
	}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   *sampleRate,
		ChannelCount: eng.Channels(),
		Format:       oto.FormatFloat32LE,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening audio device: %v\n", err)
		os.Exit(1)
	}
	<-ready

	src := newSequenceStream(eng, seq, int64(*tail*float64(*sampleRate)), *blockSize)
	player := ctx.NewPlayer(src)
	defer player.Close()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	fmt.Printf("Playing %s with %q (%d zones, %d events)...\n", *midiPath, inst.Info.Name, catalog.Len(), len(seq.Events))
	player.Play()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-interrupt:
			fmt.Println("\nInterrupted")
			printStats(eng)
			return
		case <-ticker.C:
			if src.Done() && !player.IsPlaying() {
				printStats(eng)
				return
			}
		}
	}
}

func printStats(eng *sampler.Engine) {
	st := eng.Stats()
	fmt.Printf("Voices started: %d, steals: %d, underruns: %d, read errors: %d\n", st.VoicesStarted, st.Steals, st.Underruns, st.ReadErrors)
}
