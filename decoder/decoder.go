// Package decoder provides random-access frame readers for sample files.
//
// The engine never decodes audio itself; it asks a Reader for interleaved
// float32 frames at a frame offset. WAV is the only container supported here.
package decoder

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cwbudde/wav"
	"github.com/go-audio/audio"
)

// ErrUnsupportedFormat is returned for sample encodings the reader cannot convert.
var ErrUnsupportedFormat = errors.New("decoder: unsupported sample format")

const (
	wavFormatPCM        = 1
	wavFormatIEEEFloat  = 3
	wavFormatExtensible = 0xFFFE
)

// Reader yields interleaved float32 frames from an audio file.
type Reader interface {
	// Format reports channel count and sample rate.
	Format() *audio.Format
	// TotalFrames is the number of frames in the file.
	TotalFrames() int64
	// ReadFrames reads up to frames frames starting at startFrame into dst
	// (interleaved, len(dst) >= frames*channels) and returns the frames read.
	ReadFrames(dst []float32, startFrame int64, frames int) (int, error)
	Close() error
}

// OpenFunc opens a Reader for a path.
type OpenFunc func(path string) (Reader, error)

// WAVReader reads frames from the PCM chunk of a WAV file. Decoding is done
// by wav.Decoder; the reader only positions it.
type WAVReader struct {
	f           *os.File
	dec         *wav.Decoder
	path        string
	format      *audio.Format
	dataOffset  int64
	frameBytes  int
	totalFrames int64
	buf         audio.Float32Buffer
}

// Open opens a WAV file for random-access reads.
func Open(path string) (Reader, error) {
	return OpenWAV(path)
}

// OpenWAV opens a WAV file and positions its decoder at the PCM data.
func OpenWAV(path string) (*WAVReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		f.Close()
		return nil, fmt.Errorf("invalid wav file: %s", path)
	}
	numCh := int(dec.NumChans)
	bitDepth := int(dec.BitDepth)
	sampleRate := int(dec.SampleRate)
	if numCh < 1 || sampleRate <= 0 {
		f.Close()
		return nil, fmt.Errorf("invalid wav header: %s", path)
	}
	if err := checkEncoding(dec.WavAudioFormat, bitDepth); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w in %s", err, path)
	}

	if err := dec.FwdToPCM(); err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	offset, err := dec.Seek(0, io.SeekCurrent)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	format := &audio.Format{NumChannels: numCh, SampleRate: sampleRate}
	frameBytes := numCh * bitDepth / 8
	return &WAVReader{
		f:           f,
		dec:         dec,
		path:        path,
		format:      format,
		dataOffset:  offset,
		frameBytes:  frameBytes,
		totalFrames: dec.PCMLen() / int64(frameBytes),
		buf:         audio.Float32Buffer{Format: format, SourceBitDepth: bitDepth},
	}, nil
}

func checkEncoding(tag uint16, bitDepth int) error {
	switch tag {
	case wavFormatPCM, wavFormatExtensible:
		switch bitDepth {
		case 8, 16, 24, 32:
			return nil
		}
		return fmt.Errorf("%w: %d-bit pcm", ErrUnsupportedFormat, bitDepth)
	case wavFormatIEEEFloat:
		if bitDepth == 32 {
			return nil
		}
		return fmt.Errorf("%w: %d-bit float", ErrUnsupportedFormat, bitDepth)
	}
	return fmt.Errorf("%w: wav format tag %d", ErrUnsupportedFormat, tag)
}

// Path returns the file path the reader was opened on.
func (w *WAVReader) Path() string { return w.path }

// Format implements Reader.
func (w *WAVReader) Format() *audio.Format { return w.format }

// TotalFrames implements Reader.
func (w *WAVReader) TotalFrames() int64 { return w.totalFrames }

// ReadFrames implements Reader.
func (w *WAVReader) ReadFrames(dst []float32, startFrame int64, frames int) (int, error) {
	if startFrame < 0 {
		return 0, fmt.Errorf("negative start frame %d", startFrame)
	}
	if startFrame >= w.totalFrames || frames <= 0 {
		return 0, nil
	}
	if remaining := w.totalFrames - startFrame; int64(frames) > remaining {
		frames = int(remaining)
	}
	ch := w.format.NumChannels
	if len(dst) < frames*ch {
		frames = len(dst) / ch
	}

	if _, err := w.dec.Seek(w.dataOffset+startFrame*int64(w.frameBytes), io.SeekStart); err != nil {
		return 0, err
	}
	w.buf.Data = dst[:frames*ch]
	n, err := w.dec.PCMBuffer(&w.buf)
	w.buf.Data = nil
	got := n / ch
	if err != nil && !(errors.Is(err, io.EOF) && got > 0) {
		return 0, err
	}
	return got, nil
}

// Close implements Reader.
func (w *WAVReader) Close() error {
	return w.f.Close()
}

// BufferReader serves interleaved frames already held in memory.
type BufferReader struct {
	format audio.Format
	data   []float32
}

// NewBufferReader wraps data, which must hold whole frames of channels samples.
func NewBufferReader(data []float32, channels, sampleRate int) *BufferReader {
	b := &BufferReader{}
	b.Reset(data, channels, sampleRate)
	return b
}

// Reset points the reader at new data without allocating.
func (b *BufferReader) Reset(data []float32, channels, sampleRate int) {
	if channels < 1 {
		channels = 1
	}
	b.format = audio.Format{NumChannels: channels, SampleRate: sampleRate}
	b.data = data[:len(data)/channels*channels]
}

// Format implements Reader.
func (b *BufferReader) Format() *audio.Format { return &b.format }

// TotalFrames implements Reader.
func (b *BufferReader) TotalFrames() int64 {
	return int64(len(b.data) / b.format.NumChannels)
}

// ReadFrames implements Reader.
func (b *BufferReader) ReadFrames(dst []float32, startFrame int64, frames int) (int, error) {
	if startFrame < 0 {
		return 0, fmt.Errorf("negative start frame %d", startFrame)
	}
	ch := b.format.NumChannels
	if startFrame >= b.TotalFrames() || frames <= 0 {
		return 0, nil
	}
	if len(dst) < frames*ch {
		frames = len(dst) / ch
	}
	n := copy(dst[:frames*ch], b.data[startFrame*int64(ch):])
	return n / ch, nil
}

// Close implements Reader.
func (b *BufferReader) Close() error { return nil }

// LoadFile reads a whole file into memory.
func LoadFile(path string) (*audio.Float32Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("invalid wav file: %s", path)
	}
	if err := checkEncoding(dec.WavAudioFormat, int(dec.BitDepth)); err != nil {
		return nil, fmt.Errorf("%w in %s", err, path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, err
	}
	if buf == nil || buf.Format == nil || buf.Format.NumChannels < 1 {
		return nil, fmt.Errorf("invalid wav buffer: %s", path)
	}
	return buf, nil
}

// ReadAll reads every frame of r.
func ReadAll(r Reader) (*audio.Float32Buffer, error) {
	return ReadHead(r, r.TotalFrames())
}

// ReadHead reads at most maxFrames frames from the start of r.
func ReadHead(r Reader, maxFrames int64) (*audio.Float32Buffer, error) {
	format := r.Format()
	frames := r.TotalFrames()
	if maxFrames < frames {
		frames = maxFrames
	}
	if frames < 0 {
		frames = 0
	}
	data := make([]float32, int(frames)*format.NumChannels)
	n, err := r.ReadFrames(data, 0, int(frames))
	if err != nil {
		return nil, err
	}
	return &audio.Float32Buffer{
		Format: &audio.Format{
			NumChannels: format.NumChannels,
			SampleRate:  format.SampleRate,
		},
		Data: data[:n*format.NumChannels],
	}, nil
}
