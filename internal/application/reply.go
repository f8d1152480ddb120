package application

import (
	"context"

	"plant-voice/internal/domain"
)

// ReplyGenerator completes a prompt with a language model.
type ReplyGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type SensorReader interface {
	Read(ctx context.Context) (domain.Readings, error)
	Name() string
}

// Speaker voices a reply. Synthesis itself lives outside this module.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

type NoopSpeaker struct{}

func (NoopSpeaker) Speak(_ context.Context, _ string) error {
	return nil
}
