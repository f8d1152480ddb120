package vad

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/rs/zerolog"

	"plant-voice/internal/domain"
)

// NoiseFloorMultiplier scales the calibrated ambient RMS into a threshold.
const NoiseFloorMultiplier = 1.5

type EnergyClassifier struct {
	noiseFloor float64
	threshold  float64
}

func NewEnergyClassifier(staticThreshold, noiseFloor float64) *EnergyClassifier {
	return &EnergyClassifier{
		noiseFloor: noiseFloor,
		threshold:  math.Max(staticThreshold, noiseFloor*NoiseFloorMultiplier),
	}
}

func (c *EnergyClassifier) Threshold() float64 { return c.threshold }

func (c *EnergyClassifier) NoiseFloor() float64 { return c.noiseFloor }

func (c *EnergyClassifier) Classify(frame domain.Frame) (bool, error) {
	return RMS(frame.Samples) >= c.threshold, nil
}

// Calibrate reads frames covering window and returns the RMS over all of
// their samples. A source that ends early yields the floor of what it
// delivered.
func Calibrate(ctx context.Context, src FrameReader, sampleRate int, window time.Duration) (float64, error) {
	if sampleRate <= 0 {
		return 0, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	want := int(window.Seconds() * float64(sampleRate))

	samples := make([]int16, 0, want)
	for len(samples) < want {
		frame, err := src.NextFrame(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, &domain.DeviceError{Op: "reading calibration frame", Err: err}
		}
		samples = append(samples, frame.Samples...)
	}
	return RMS(samples), nil
}

type EnergyStrategy struct {
	staticThreshold float64
	calibration     time.Duration
	logger          zerolog.Logger
}

func NewEnergyStrategy(staticThreshold float64, calibration time.Duration, logger zerolog.Logger) *EnergyStrategy {
	return &EnergyStrategy{
		staticThreshold: staticThreshold,
		calibration:     calibration,
		logger:          logger.With().Str("component", "vad.energy").Logger(),
	}
}

func (s *EnergyStrategy) Name() string { return "energy" }

func (s *EnergyStrategy) Prepare(ctx context.Context, src FrameReader, sampleRate int) (Classifier, error) {
	if s.calibration <= 0 {
		return NewEnergyClassifier(s.staticThreshold, 0), nil
	}

	floor, err := Calibrate(ctx, src, sampleRate, s.calibration)
	if err != nil {
		return nil, err
	}
	c := NewEnergyClassifier(s.staticThreshold, floor)
	s.logger.Debug().
		Float64("noise_floor", floor).
		Float64("threshold", c.Threshold()).
		Msg("calibrated noise floor")
	return c, nil
}
