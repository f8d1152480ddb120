//go:build !portaudio
// +build !portaudio

package audio

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"plant-voice/internal/application"
	"plant-voice/internal/domain"
)

var errNoPortAudio = errors.New("microphone source not available: rebuild with -tags portaudio")

// MicrophoneSource stub when portaudio is not available
type MicrophoneSource struct {
	format application.AudioFormat
	logger zerolog.Logger
}

func NewMicrophoneSource(format application.AudioFormat, _ int, logger zerolog.Logger) *MicrophoneSource {
	return &MicrophoneSource{format: format, logger: logger}
}

func (m *MicrophoneSource) Name() string {
	return "microphone"
}

func (m *MicrophoneSource) Format() application.AudioFormat {
	return m.format
}

func (m *MicrophoneSource) Start(_ context.Context) error {
	return errNoPortAudio
}

func (m *MicrophoneSource) Stop() error {
	return nil
}

func (m *MicrophoneSource) NextFrame(_ context.Context) (domain.Frame, error) {
	return domain.Frame{}, errNoPortAudio
}

func ListDevices() ([]InputDevice, error) {
	return nil, errNoPortAudio
}
