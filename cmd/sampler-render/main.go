package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"

	"github.com/cwbudde/algo-sampler/analysis"
	"github.com/cwbudde/algo-sampler/dsp"
	"github.com/cwbudde/algo-sampler/instrument"
	"github.com/cwbudde/algo-sampler/internal/wavout"
	"github.com/cwbudde/algo-sampler/preset"
	"github.com/cwbudde/algo-sampler/sampler"
	"github.com/cwbudde/algo-sampler/sequence"
)

func main() {
	note := flag.Int("note", 60, "MIDI note number to render when no -midi file is given")
	velocity := flag.Int("velocity", 100, "MIDI velocity (1-127)")
	duration := flag.Float64("duration", 2.0, "Duration in seconds (single note mode)")
	releaseAfter := flag.Float64("release-after", 1.0, "Send NoteOff after this many seconds (single note mode)")
	tail := flag.Float64("tail", 2.0, "Extra seconds rendered after the last MIDI event")
	midiPath := flag.String("midi", "", "Standard MIDI file to render instead of a single note")
	sampleRate := flag.Int("sample-rate", 48000, "Render sample rate in Hz")
	presetPath := flag.String("preset", "", "Preset JSON file path (optional)")
	instPath := flag.String("instrument", "", "Instrument folder or definition file (overrides the preset)")
	stream := flag.Bool("stream", false, "Stream samples from disk instead of loading them into memory")
	blockSize := flag.Int("block", 256, "Render block size in frames")
	gainDB := flag.Float64("gain-db", 0, "Extra output gain in dB applied on top of the preset gain")
	verbose := flag.Bool("v", false, "Log engine events to stderr")
	output := flag.String("output", "output.wav", "Output WAV file path")
	flag.Parse()

	level := slog.LevelWarn
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
		fmt.Fprintln(os.Stderr, "Error: no instrument given (use -instrument or a preset with \"instrument\")")
		os.Exit(1)
	}
	if *stream {
		params.Streaming = true
	}
	if *blockSize < 1 {
		*blockSize = 1
	}

	opts := instrument.Options{
		Streaming:    params.Streaming,
		PreloadBytes: params.Stream.PreloadBytes,
		Logger:       logger,
	}
	if !params.Streaming {
		opts.ResampleTo = *sampleRate
	}
	inst, err := loadInstrument(instrumentPath, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading instrument %q: %v\n", instrumentPath, err)
		os.Exit(1)
	}
	catalog, err := inst.Catalog()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building catalog: %v\n", err)
		os.Exit(1)
	}

	// Offline rendering services the disk streamer between blocks so the
	// output does not depend on scheduling.
	eng, err := sampler.New(sampler.Config{
		SampleRate:      *sampleRate,
		Params:          params,
		Logger:          logger,
		ManualStreaming: true,
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

	gain := params.Gain
	if *gainDB != 0 {
		gain *= dsp.DBToGain(float32(*gainDB))
		eng.SetGain(gain)
	}

	mode := "resident"
	if params.Streaming {
		mode = "streaming"
	}
	fmt.Printf("Instrument %q: %d zones (%s, %d Hz, output gain %.1f dB)\n", inst.Info.Name, catalog.Len(), mode, *sampleRate, dsp.GainToDB(gain))

	var seq *sequence.Sequence
	if *midiPath != "" {
		seq, err = sequence.ReadFile(*midiPath, *sampleRate)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading MIDI file %q: %v\n", *midiPath, err)
			os.Exit(1)
		}
		fmt.Printf("Rendering %s: %d events, %.2f seconds + %.2f tail...\n", *midiPath, len(seq.Events), float64(seq.Length())/float64(*sampleRate), *tail)
	} else {
		seq = singleNote(*note, *velocity, *releaseAfter, *sampleRate)
		fmt.Printf("Rendering note %d, velocity %d, for %.2f seconds...\n", *note, *velocity, *duration)
	}

	totalFrames := int64(float64(*sampleRate) * (*duration))
	if *midiPath != "" {
		totalFrames = seq.Length() + int64(float64(*sampleRate)*(*tail))
	}
	if totalFrames < 1 {
		totalFrames = 1
	}

	ch := eng.Channels()
	samples := make([]float32, 0, int(totalFrames)*ch)
	block := make([]float32, *blockSize*ch)
	player := sequence.NewPlayer(seq)
	for player.Frame() < totalFrames {
		n := int64(*blockSize)
		if rem := totalFrames - player.Frame(); rem < n {
			n = rem
		}
		if params.Streaming {
			if err := eng.ServiceStreams(); err != nil {
				fmt.Fprintf(os.Stderr, "Error servicing streams: %v\n", err)
				os.Exit(1)
			}
		}
		out := block[:int(n)*ch]
		player.Render(eng, out)
		samples = append(samples, out...)
	}

	if err := wavout.WriteInterleaved(*output, samples, ch, *sampleRate); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing WAV file: %v\n", err)
		os.Exit(1)
	}

	st := eng.Stats()
	left := analysis.Analyze(analysis.Channel(samples, ch, 0), *sampleRate)
	fmt.Printf("Voices started: %d, steals: %d, underruns: %d, read errors: %d\n", st.VoicesStarted, st.Steals, st.Underruns, st.ReadErrors)
	fmt.Printf("Left: peak %.1f dBFS, RMS %.1f dBFS, max step %.4f", left.PeakDB, left.RMSDB, left.MaxStep)
	if left.Frequency > 0 {
		fmt.Printf(", dominant %.1f Hz (note %.2f)", left.Frequency, 69+12*math.Log2(left.Frequency/440))
	}
	fmt.Println()
	fmt.Printf("Successfully wrote %s (%d frames)\n", *output, totalFrames)
}

func loadInstrument(path string, opts instrument.Options) (*instrument.Instrument, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if fi.IsDir() {
		return instrument.LoadFolder(path, opts)
	}
	return instrument.Load(path, opts)
}
