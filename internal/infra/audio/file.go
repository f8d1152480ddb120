package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"plant-voice/internal/application"
	"plant-voice/internal/domain"
)

// FileSource replays recorded audio frame by frame. The path may be a
// single WAV file or a directory, whose .wav files are played in name
// order. NextFrame returns io.EOF once everything has been played.
type FileSource struct {
	path   string
	format application.AudioFormat
	pace   bool
	logger zerolog.Logger

	mu      sync.Mutex
	samples []int16
	offset  int
	index   int
	ticker  *time.Ticker
	started bool
}

// NewFileSource replays path in frames of format.FrameDuration. With pace
// set, frames are delivered no faster than real time.
func NewFileSource(path string, format application.AudioFormat, pace bool, logger zerolog.Logger) *FileSource {
	return &FileSource{
		path:   path,
		format: format,
		pace:   pace,
		logger: logger.With().Str("component", "audio.file").Logger(),
	}
}

func (f *FileSource) Name() string {
	return "file"
}

func (f *FileSource) Format() application.AudioFormat {
	return f.format
}

func (f *FileSource) Start(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.format.FrameSamples() <= 0 {
		return fmt.Errorf("invalid frame size for %d Hz and %s frames", f.format.SampleRate, f.format.FrameDuration)
	}

	files, err := f.listFiles()
	if err != nil {
		return err
	}

	f.samples = f.samples[:0]
	for _, path := range files {
		pcm, err := ReadWAVFile(path)
		if err != nil {
			return fmt.Errorf("loading %s: %w", path, err)
		}
		if pcm.SampleRate != f.format.SampleRate {
			return fmt.Errorf("%s is %d Hz, source expects %d Hz", path, pcm.SampleRate, f.format.SampleRate)
		}
		f.samples = append(f.samples, pcm.Samples...)
	}

	f.offset = 0
	f.index = 0
	if f.pace {
		f.ticker = time.NewTicker(f.format.FrameDuration)
	}
	f.started = true

	f.logger.Info().
		Int("files", len(files)).
		Int("samples", len(f.samples)).
		Msg("audio loaded")
	return nil
}

func (f *FileSource) listFiles() ([]string, error) {
	info, err := os.Stat(f.path)
	if err != nil {
		return nil, fmt.Errorf("opening audio path: %w", err)
	}
	if !info.IsDir() {
		return []string{f.path}, nil
	}

	entries, err := os.ReadDir(f.path)
	if err != nil {
		return nil, fmt.Errorf("reading dir: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".wav") {
			continue
		}
		files = append(files, filepath.Join(f.path, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func (f *FileSource) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ticker != nil {
		f.ticker.Stop()
		f.ticker = nil
	}
	f.started = false
	return nil
}

// NextFrame returns the next frame. A trailing partial frame is padded
// with silence so every frame has the same length.
func (f *FileSource) NextFrame(ctx context.Context) (domain.Frame, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.started {
		return domain.Frame{}, errors.New("file source not started")
	}
	if f.offset >= len(f.samples) {
		return domain.Frame{}, io.EOF
	}

	if f.ticker != nil {
		select {
		case <-ctx.Done():
			return domain.Frame{}, ctx.Err()
		case <-f.ticker.C:
		}
	}

	n := f.format.FrameSamples()
	frame := make([]int16, n)
	copied := copy(frame, f.samples[f.offset:])
	f.offset += copied

	out := domain.Frame{Index: f.index, Samples: frame}
	f.index++
	return out, nil
}
