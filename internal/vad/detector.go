package vad

import (
	"context"
	"errors"
	"fmt"
	"time"

	"plant-voice/internal/domain"
)

// The detector only accepts this input format.
const (
	DetectorSampleRate    = 16000
	DetectorFrameDuration = 30 * time.Millisecond
	DetectorFrameSamples  = DetectorSampleRate * 30 / 1000
)

var ErrFrameSize = errors.New("frame size does not match detector input")

// Mode is the detector aggressiveness, 0 keeps the most audio as speech and
// 3 suppresses silence the hardest.
type Mode int

const (
	ModeQuality Mode = iota
	ModeLowBitrate
	ModeAggressive
	ModeVeryAggressive
)

// detectorEngine decides on one frame of DetectorFrameSamples samples.
type detectorEngine interface {
	speech(samples []int16) (bool, error)
}

// Detector classifies fixed 30ms frames with the engine compiled in (see
// DetectorBackend). It is not safe for concurrent use.
type Detector struct {
	mode   Mode
	engine detectorEngine
}

func NewDetector(mode Mode, sampleRate int, frameDuration time.Duration) (*Detector, error) {
	if mode < ModeQuality || mode > ModeVeryAggressive {
		return nil, fmt.Errorf("detector mode must be between 0 and 3, got %d", mode)
	}
	if sampleRate != DetectorSampleRate {
		return nil, fmt.Errorf("detector requires %d Hz input, got %d", DetectorSampleRate, sampleRate)
	}
	if frameDuration != DetectorFrameDuration {
		return nil, fmt.Errorf("detector requires %s frames, got %s", DetectorFrameDuration, frameDuration)
	}

	engine, err := newDetectorEngine(mode)
	if err != nil {
		return nil, fmt.Errorf("creating %s detector: %w", DetectorBackend, err)
	}
	return &Detector{mode: mode, engine: engine}, nil
}

func (d *Detector) Mode() Mode { return d.mode }

func (d *Detector) Classify(frame domain.Frame) (bool, error) {
	if len(frame.Samples) != DetectorFrameSamples {
		return false, fmt.Errorf("%w: expected %d samples, got %d", ErrFrameSize, DetectorFrameSamples, len(frame.Samples))
	}
	return d.engine.speech(frame.Samples)
}

type DetectorStrategy struct {
	detector *Detector
}

func NewDetectorStrategy(mode Mode, sampleRate int, frameDuration time.Duration) (*DetectorStrategy, error) {
	d, err := NewDetector(mode, sampleRate, frameDuration)
	if err != nil {
		return nil, err
	}
	return &DetectorStrategy{detector: d}, nil
}

func (s *DetectorStrategy) Name() string { return "detector" }

func (s *DetectorStrategy) Prepare(_ context.Context, _ FrameReader, _ int) (Classifier, error) {
	return s.detector, nil
}
