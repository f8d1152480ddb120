//go:build portaudio
// +build portaudio

package audio

import (
	"context"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"

	"plant-voice/internal/application"
	"plant-voice/internal/domain"
)

// MicrophoneSource reads fixed-size frames from a PortAudio blocking input
// stream. Device is an index from ListDevices, or -1 for the default input.
type MicrophoneSource struct {
	format application.AudioFormat
	device int
	logger zerolog.Logger

	mu     sync.Mutex
	stream *portaudio.Stream
	buffer []int16
	index  int
}

func NewMicrophoneSource(format application.AudioFormat, device int, logger zerolog.Logger) *MicrophoneSource {
	return &MicrophoneSource{
		format: format,
		device: device,
		logger: logger.With().Str("component", "audio.microphone").Logger(),
	}
}

func (m *MicrophoneSource) Name() string {
	return "microphone"
}

func (m *MicrophoneSource) Format() application.AudioFormat {
	return m.format
}

func (m *MicrophoneSource) Start(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initializing portaudio: %w", err)
	}

	framesPerBuffer := m.format.FrameSamples()
	m.buffer = make([]int16, framesPerBuffer)

	stream, err := m.openStream(framesPerBuffer)
	if err != nil {
		portaudio.Terminate()
		return err
	}
	m.stream = stream

	if err := m.stream.Start(); err != nil {
		m.stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("starting stream: %w", err)
	}

	m.index = 0
	m.logger.Info().
		Int("sample_rate", m.format.SampleRate).
		Int("frames_per_buffer", framesPerBuffer).
		Int("device", m.device).
		Msg("microphone started")
	return nil
}

func (m *MicrophoneSource) openStream(framesPerBuffer int) (*portaudio.Stream, error) {
	if m.device < 0 {
		stream, err := portaudio.OpenDefaultStream(1, 0, float64(m.format.SampleRate), framesPerBuffer, m.buffer)
		if err != nil {
			return nil, fmt.Errorf("opening default stream: %w", err)
		}
		return stream, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	if m.device >= len(devices) {
		return nil, fmt.Errorf("device %d not found, %d devices available", m.device, len(devices))
	}
	dev := devices[m.device]
	if dev.MaxInputChannels < 1 {
		return nil, fmt.Errorf("device %d (%s) has no input channels", m.device, dev.Name)
	}

	params := portaudio.LowLatencyParameters(dev, nil)
	params.Input.Channels = 1
	params.SampleRate = float64(m.format.SampleRate)
	params.FramesPerBuffer = framesPerBuffer

	stream, err := portaudio.OpenStream(params, m.buffer)
	if err != nil {
		return nil, fmt.Errorf("opening stream on %s: %w", dev.Name, err)
	}
	return stream, nil
}

func (m *MicrophoneSource) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stream != nil {
		m.stream.Stop()
		m.stream.Close()
		m.stream = nil
	}
	portaudio.Terminate()
	return nil
}

// NextFrame blocks until PortAudio has filled one frame. An input overflow
// is logged and the frame kept; other stream errors are returned and the
// caller treats them as device failures.
func (m *MicrophoneSource) NextFrame(ctx context.Context) (domain.Frame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return domain.Frame{}, err
	}
	if m.stream == nil {
		return domain.Frame{}, fmt.Errorf("microphone not started")
	}

	if err := checkRead(m.stream.Read(), portaudio.InputOverflowed, m.index, m.logger); err != nil {
		return domain.Frame{}, err
	}

	samples := make([]int16, len(m.buffer))
	copy(samples, m.buffer)

	frame := domain.Frame{Index: m.index, Samples: samples}
	m.index++
	return frame, nil
}

// ListDevices returns the devices that can capture audio.
func ListDevices() ([]InputDevice, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initializing portaudio: %w", err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	def, _ := portaudio.DefaultInputDevice()

	var out []InputDevice
	for i, d := range devices {
		if d.MaxInputChannels < 1 {
			continue
		}
		out = append(out, InputDevice{
			Index:             i,
			Name:              d.Name,
			MaxInputChannels:  d.MaxInputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
			Default:           def != nil && def.Name == d.Name,
		})
	}
	return out, nil
}
