// Package audio reads RIFF/WAV audio into the [B, N] sample batches the
// preprocessor consumes.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/ieee0824/transducer-go/tensor"
)

const (
	formatPCM   = 1
	formatFloat = 3
)

// Header holds the parsed fmt chunk fields.
type Header struct {
	Format        uint16
	SampleRate    uint32
	BitsPerSample uint16
	NumChannels   uint16
	NumFrames     int
}

// Clip is a mono signal in [-1, 1].
type Clip struct {
	Samples    []float64
	SampleRate int
}

// Duration returns the clip length in seconds.
func (c Clip) Duration() float64 {
	if c.SampleRate == 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate)
}

// ReadWAV decodes 16-bit PCM or 32-bit float WAV data. Multi-channel audio
// is averaged down to mono.
func ReadWAV(r io.ReadSeeker) (Clip, Header, error) {
	var header Header

	var riff struct {
		ID   [4]byte
		Size uint32
		Wave [4]byte
	}
	if err := binary.Read(r, binary.LittleEndian, &riff); err != nil {
		return Clip{}, header, fmt.Errorf("read RIFF header: %w", err)
	}
	if string(riff.ID[:]) != "RIFF" || string(riff.Wave[:]) != "WAVE" {
		return Clip{}, header, errors.New("not a RIFF/WAVE file")
	}

	var fmtFound bool
	for {
		var chunk struct {
			ID   [4]byte
			Size uint32
		}
		if err := binary.Read(r, binary.LittleEndian, &chunk); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return Clip{}, header, fmt.Errorf("read chunk header: %w", err)
		}

		switch string(chunk.ID[:]) {
		case "fmt ":
			if err := readFmtChunk(r, chunk.Size, &header); err != nil {
				return Clip{}, header, err
			}
			fmtFound = true

		case "data":
			if !fmtFound {
				return Clip{}, header, errors.New("data chunk before fmt chunk")
			}
			samples, err := readDataChunk(r, chunk.Size, &header)
			if err != nil {
				return Clip{}, header, err
			}
			return Clip{Samples: samples, SampleRate: int(header.SampleRate)}, header, nil

		default:
			// chunks are word aligned
			skip := int64(chunk.Size) + int64(chunk.Size%2)
			if _, err := r.Seek(skip, io.SeekCurrent); err != nil {
				return Clip{}, header, fmt.Errorf("skip chunk %q: %w", chunk.ID, err)
			}
		}
	}

	if !fmtFound {
		return Clip{}, header, errors.New("missing fmt chunk")
	}
	return Clip{}, header, errors.New("missing data chunk")
}

// ReadWAVFile is a convenience wrapper that opens a file path.
func ReadWAVFile(path string) (Clip, Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return Clip{}, Header{}, err
	}
	defer f.Close()
	return ReadWAV(f)
}

func readFmtChunk(r io.ReadSeeker, size uint32, h *Header) error {
	var f struct {
		Format        uint16
		NumChannels   uint16
		SampleRate    uint32
		ByteRate      uint32
		BlockAlign    uint16
		BitsPerSample uint16
	}
	if err := binary.Read(r, binary.LittleEndian, &f); err != nil {
		return fmt.Errorf("read fmt chunk: %w", err)
	}
	switch {
	case f.Format == formatPCM && f.BitsPerSample == 16:
	case f.Format == formatFloat && f.BitsPerSample == 32:
	default:
		return fmt.Errorf("unsupported encoding: format %d with %d bits (want 16-bit PCM or 32-bit float)",
			f.Format, f.BitsPerSample)
	}
	if f.NumChannels == 0 {
		return errors.New("fmt chunk declares zero channels")
	}
	if f.SampleRate == 0 {
		return errors.New("fmt chunk declares zero sample rate")
	}
	h.Format, h.NumChannels, h.SampleRate, h.BitsPerSample = f.Format, f.NumChannels, f.SampleRate, f.BitsPerSample

	const consumed = 16
	if size > consumed {
		extra := int64(size-consumed) + int64(size%2)
		if _, err := r.Seek(extra, io.SeekCurrent); err != nil {
			return fmt.Errorf("skip extra fmt bytes: %w", err)
		}
	}
	return nil
}

func readDataChunk(r io.Reader, size uint32, h *Header) ([]float64, error) {
	channels := int(h.NumChannels)
	frameBytes := channels * int(h.BitsPerSample) / 8
	n := int(size) / frameBytes
	h.NumFrames = n

	interleaved := make([]float64, n*channels)
	switch h.Format {
	case formatPCM:
		raw := make([]int16, len(interleaved))
		if err := binary.Read(r, binary.LittleEndian, raw); err != nil {
			return nil, fmt.Errorf("read PCM data: %w", err)
		}
		for i, s := range raw {
			interleaved[i] = float64(s) / 32768.0
		}
	case formatFloat:
		raw := make([]float32, len(interleaved))
		if err := binary.Read(r, binary.LittleEndian, raw); err != nil {
			return nil, fmt.Errorf("read float data: %w", err)
		}
		for i, s := range raw {
			interleaved[i] = math.Max(-1, math.Min(1, float64(s)))
		}
	}

	if channels == 1 {
		return interleaved, nil
	}
	mono := make([]float64, n)
	for i := range mono {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += interleaved[i*channels+c]
		}
		mono[i] = sum / float64(channels)
	}
	return mono, nil
}

// Batch zero-pads clips to the longest one and returns signals [B, N] with
// the valid sample count of each row. All clips must share a sample rate.
func Batch(clips []Clip) (*tensor.Tensor, []int, error) {
	if len(clips) == 0 {
		return nil, nil, errors.New("no clips")
	}
	longest := 0
	for i, c := range clips {
		if c.SampleRate != clips[0].SampleRate {
			return nil, nil, fmt.Errorf("clip %d has sample rate %d, clip 0 has %d", i, c.SampleRate, clips[0].SampleRate)
		}
		longest = max(longest, len(c.Samples))
	}
	signals := tensor.Zeros(len(clips), longest)
	lengths := make([]int, len(clips))
	for i, c := range clips {
		copy(signals.Data[i*longest:], c.Samples)
		lengths[i] = len(c.Samples)
	}
	return signals, lengths, nil
}
