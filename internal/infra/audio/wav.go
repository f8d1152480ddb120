package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

const (
	wavFormatPCM  = 1
	wavBitDepth   = 16
	wavHeaderSize = 44
)

var ErrUnsupportedWAV = errors.New("unsupported wav format")

// PCM is decoded mono 16-bit audio.
type PCM struct {
	SampleRate int
	Samples    []int16
}

// EncodeWAV writes samples as a canonical mono 16-bit PCM WAV stream.
func EncodeWAV(w io.Writer, samples []int16, sampleRate int) error {
	dataSize := len(samples) * 2

	var buf bytes.Buffer
	buf.Grow(wavHeaderSize + dataSize)

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(wavFormatPCM))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*2))
	binary.Write(&buf, binary.LittleEndian, uint16(2))
	binary.Write(&buf, binary.LittleEndian, uint16(wavBitDepth))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataSize))
	binary.Write(&buf, binary.LittleEndian, samples)

	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("writing wav: %w", err)
	}
	return nil
}

func SamplesToWAV(samples []int16, sampleRate int) []byte {
	var buf bytes.Buffer
	_ = EncodeWAV(&buf, samples, sampleRate)
	return buf.Bytes()
}

// DecodeWAV reads a mono 16-bit PCM WAV stream. Chunks other than "fmt "
// and "data" are skipped.
func DecodeWAV(r io.Reader) (PCM, error) {
	var riff struct {
		ID   [4]byte
		Size uint32
		Wave [4]byte
	}
	if err := binary.Read(r, binary.LittleEndian, &riff); err != nil {
		return PCM{}, fmt.Errorf("reading riff header: %w", err)
	}
	if string(riff.ID[:]) != "RIFF" || string(riff.Wave[:]) != "WAVE" {
		return PCM{}, fmt.Errorf("%w: not a RIFF/WAVE stream", ErrUnsupportedWAV)
	}

	var (
		pcm     PCM
		haveFmt bool
	)
	for {
		var chunk struct {
			ID   [4]byte
			Size uint32
		}
		if err := binary.Read(r, binary.LittleEndian, &chunk); err != nil {
			return PCM{}, fmt.Errorf("reading chunk header: %w", err)
		}

		switch string(chunk.ID[:]) {
		case "fmt ":
			var f struct {
				Format        uint16
				Channels      uint16
				SampleRate    uint32
				ByteRate      uint32
				BlockAlign    uint16
				BitsPerSample uint16
			}
			if chunk.Size < 16 {
				return PCM{}, fmt.Errorf("%w: fmt chunk of %d bytes", ErrUnsupportedWAV, chunk.Size)
			}
			if err := binary.Read(r, binary.LittleEndian, &f); err != nil {
				return PCM{}, fmt.Errorf("reading fmt chunk: %w", err)
			}
			if err := skip(r, int64(chunk.Size)-16); err != nil {
				return PCM{}, err
			}
			if f.Format != wavFormatPCM || f.Channels != 1 || f.BitsPerSample != wavBitDepth {
				return PCM{}, fmt.Errorf("%w: format %d, %d channels, %d bits",
					ErrUnsupportedWAV, f.Format, f.Channels, f.BitsPerSample)
			}
			pcm.SampleRate = int(f.SampleRate)
			haveFmt = true

		case "data":
			if !haveFmt {
				return PCM{}, fmt.Errorf("%w: data chunk before fmt chunk", ErrUnsupportedWAV)
			}
			pcm.Samples = make([]int16, chunk.Size/2)
			if err := binary.Read(r, binary.LittleEndian, pcm.Samples); err != nil {
				return PCM{}, fmt.Errorf("reading samples: %w", err)
			}
			return pcm, nil

		default:
			// chunks are word aligned
			if err := skip(r, int64(chunk.Size+chunk.Size%2)); err != nil {
				return PCM{}, err
			}
		}
	}
}

func skip(r io.Reader, n int64) error {
	if n <= 0 {
		return nil
	}
	if _, err := io.CopyN(io.Discard, r, n); err != nil {
		return fmt.Errorf("skipping %d bytes: %w", n, err)
	}
	return nil
}

// WriteWAVFile stages samples at path, readable only by the owner.
func WriteWAVFile(path string, samples []int16, sampleRate int) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating wav file: %w", err)
	}
	if err := EncodeWAV(f, samples, sampleRate); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func ReadWAVFile(path string) (PCM, error) {
	f, err := os.Open(path)
	if err != nil {
		return PCM{}, fmt.Errorf("opening wav file: %w", err)
	}
	defer f.Close()

	return DecodeWAV(f)
}
