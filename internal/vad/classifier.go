package vad

import (
	"context"

	"plant-voice/internal/domain"
)

// FrameReader is the part of a frame source the voice pipeline needs.
type FrameReader interface {
	NextFrame(ctx context.Context) (domain.Frame, error)
}

// Classifier decides speech vs. silence for a single frame.
type Classifier interface {
	Classify(frame domain.Frame) (bool, error)
}

// Strategy builds a ready classifier for one capture cycle. Energy
// classification calibrates against the source here; the detector model
// needs no preparation.
type Strategy interface {
	Name() string
	Prepare(ctx context.Context, src FrameReader, sampleRate int) (Classifier, error)
}
