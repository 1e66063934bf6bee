package instrument

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	dspresample "github.com/cwbudde/algo-dsp/dsp/resample"
	"github.com/cwbudde/algo-sampler/decoder"
	"github.com/cwbudde/algo-sampler/sampler"
)

// Options controls how samples are brought into memory.
type Options struct {
	// Streaming keeps only a preload head of each sample resident.
	Streaming bool
	// PreloadBytes sizes the head in bytes of float32 audio.
	// Zero uses the engine default.
	PreloadBytes int
	// ResampleTo converts resident samples to this rate at load time.
	// Zero keeps the file rate. Streamed zones always keep the file rate.
	ResampleTo int
	// Open defaults to decoder.Open.
	Open   decoder.OpenFunc
	Logger *slog.Logger
}

// Info describes an instrument folder.
type Info struct {
	Name           string
	Author         string
	Folder         string
	DefinitionFile string
}

// Instrument is a loaded definition with its zones.
type Instrument struct {
	Info  Info
	Zones []sampler.Zone
}

// Catalog builds an engine catalog from the zones.
func (in *Instrument) Catalog() (*sampler.Catalog, error) {
	return sampler.NewCatalog(in.Zones)
}

// LoadFolder loads the definition inside folder.
func LoadFolder(folder string, opts Options) (*Instrument, error) {
	return Load(filepath.Join(folder, DefinitionFile), opts)
}

// Load reads a definition and its samples. Samples that cannot be opened are
// skipped with a warning; an instrument without any usable sample is an error.
func Load(definitionPath string, opts Options) (*Instrument, error) {
	def, err := ReadDefinition(definitionPath)
	if err != nil {
		return nil, err
	}
	if opts.Open == nil {
		opts.Open = decoder.Open
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.PreloadBytes <= 0 {
		opts.PreloadBytes = sampler.NewDefaultParams().Stream.PreloadBytes
	}

	folder := filepath.Dir(definitionPath)
	in := &Instrument{
		Info: Info{
			Name:           def.Name,
			Author:         def.Author,
			Folder:         folder,
			DefinitionFile: definitionPath,
		},
	}
	for _, s := range def.Samples {
		z, err := loadZone(folder, s, opts)
		if err != nil {
			logger.Warn("skipping sample", "instrument", def.Name, "file", s.File, "err", err)
			continue
		}
		in.Zones = append(in.Zones, z)
	}
	if len(in.Zones) == 0 {
		return nil, fmt.Errorf("%s: %w", definitionPath, sampler.ErrNoZones)
	}
	logger.Info("instrument loaded", "name", def.Name, "zones", len(in.Zones), "streaming", opts.Streaming)
	return in, nil
}

func loadZone(folder string, s SampleDef, opts Options) (sampler.Zone, error) {
	path := s.File
	if !filepath.IsAbs(path) {
		path = filepath.Join(folder, filepath.FromSlash(s.File))
	}
	r, err := opts.Open(path)
	if err != nil {
		return sampler.Zone{}, err
	}
	defer r.Close()

	format := r.Format()
	z := sampler.Zone{
		Name:         strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Path:         path,
		RootNote:     s.Root,
		LowNote:      s.LowNote,
		HighNote:     s.HighNote,
		LowVelocity:  s.LowVel,
		HighVelocity: s.HighVel,
		SampleRate:   format.SampleRate,
		Channels:     format.NumChannels,
		TotalFrames:  r.TotalFrames(),
	}

	if opts.Streaming {
		frames := int64(opts.PreloadBytes / (format.NumChannels * 4))
		head, err := decoder.ReadHead(r, frames)
		if err != nil {
			return sampler.Zone{}, err
		}
		z.Preload = head.Data
	} else {
		buf, err := decoder.ReadAll(r)
		if err != nil {
			return sampler.Zone{}, err
		}
		z.Data = buf.Data
		if opts.ResampleTo > 0 && opts.ResampleTo != z.SampleRate {
			data, err := resampleInterleaved(z.Data, z.Channels, z.SampleRate, opts.ResampleTo)
			if err != nil {
				return sampler.Zone{}, err
			}
			z.Data = data
			z.SampleRate = opts.ResampleTo
		}
		z.TotalFrames = int64(len(z.Data) / z.Channels)
	}
	if err := z.Validate(); err != nil {
		return sampler.Zone{}, err
	}
	return z, nil
}

// resampleInterleaved converts each channel with its own resampler.
func resampleInterleaved(in []float32, channels, inRate, outRate int) ([]float32, error) {
	frames := len(in) / channels
	var out []float32
	var outFrames int
	for ch := 0; ch < channels; ch++ {
		r, err := dspresample.NewForRates(
			float64(inRate),
			float64(outRate),
			dspresample.WithQuality(dspresample.QualityBest),
		)
		if err != nil {
			return nil, err
		}
		mono := make([]float64, frames)
		for i := range mono {
			mono[i] = float64(in[i*channels+ch])
		}
		res := r.Process(mono)
		if out == nil {
			outFrames = len(res)
			out = make([]float32, outFrames*channels)
		}
		for i := 0; i < outFrames && i < len(res); i++ {
			out[i*channels+ch] = float32(res[i])
		}
	}
	return out, nil
}

// Scan lists the instrument folders directly below root, sorted by name
// without regard to case. A missing root yields an empty list.
func Scan(root string) ([]Info, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []Info
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		folder := filepath.Join(root, e.Name())
		defPath := filepath.Join(folder, DefinitionFile)
		if st, err := os.Stat(defPath); err != nil || st.IsDir() {
			continue
		}
		info := Info{Name: e.Name(), Folder: folder, DefinitionFile: defPath}
		if def, err := ReadDefinition(defPath); err == nil {
			info.Name = strings.TrimSpace(def.Name)
			info.Author = strings.TrimSpace(def.Author)
		}
		out = append(out, info)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

// DefaultFolder is the per-user instruments folder.
func DefaultFolder() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "Documents", "Algo Sampler", "Instruments"), nil
}

// EnsureFolder creates dir if it does not exist.
func EnsureFolder(dir string) error {
	return os.MkdirAll(dir, 0o755)
}
