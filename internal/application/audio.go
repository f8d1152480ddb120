package application

import (
	"context"
	"time"

	"plant-voice/internal/domain"
)

// FrameSource delivers fixed-duration mono PCM frames. NextFrame blocks
// until exactly one frame is available and returns io.EOF when a finite
// source is exhausted.
type FrameSource interface {
	Start(ctx context.Context) error
	Stop() error
	NextFrame(ctx context.Context) (domain.Frame, error)
	Format() AudioFormat
	Name() string
}

type AudioFormat struct {
	SampleRate    int
	Channels      int
	BitDepth      int
	FrameDuration time.Duration
}

func DefaultAudioFormat() AudioFormat {
	return AudioFormat{
		SampleRate:    16000,
		Channels:      1,
		BitDepth:      16,
		FrameDuration: 30 * time.Millisecond,
	}
}

// FrameSamples is the number of samples in one frame.
func (f AudioFormat) FrameSamples() int {
	return int(int64(f.SampleRate) * int64(f.FrameDuration) / int64(time.Second))
}
