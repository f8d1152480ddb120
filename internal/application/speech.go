package application

import (
	"context"
	"time"

	"plant-voice/internal/domain"
)

type TranscribeOptions struct {
	Model    string
	Language string // empty means auto-detect
	Deadline time.Duration
}

// Transcriber turns an utterance into text within opts.Deadline. It never
// returns an error: every failure is reported as a failed Outcome.
type Transcriber interface {
	Transcribe(ctx context.Context, utt domain.Utterance, opts TranscribeOptions) domain.Outcome
}
