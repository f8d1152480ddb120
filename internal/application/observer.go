package application

import (
	"context"
	"time"

	"plant-voice/internal/domain"
)

// Observer is told about every capture cycle. Implementations must not
// block the pipeline for long and handle their own errors.
type Observer interface {
	UtteranceCaptured(ctx context.Context, utt domain.Utterance)
	TranscriptionFinished(ctx context.Context, outcome domain.Outcome, latency time.Duration, utt domain.Utterance)
}

type NoopObserver struct{}

func (NoopObserver) UtteranceCaptured(_ context.Context, _ domain.Utterance) {}

func (NoopObserver) TranscriptionFinished(_ context.Context, _ domain.Outcome, _ time.Duration, _ domain.Utterance) {
}

// Observers fans events out in order.
type Observers []Observer

func (o Observers) UtteranceCaptured(ctx context.Context, utt domain.Utterance) {
	for _, obs := range o {
		obs.UtteranceCaptured(ctx, utt)
	}
}

func (o Observers) TranscriptionFinished(ctx context.Context, outcome domain.Outcome, latency time.Duration, utt domain.Utterance) {
	for _, obs := range o {
		obs.TranscriptionFinished(ctx, outcome, latency, utt)
	}
}
