package application

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"

	"plant-voice/internal/domain"
)

// Recorder is the listening half of the assistant. *Listener implements it.
type Recorder interface {
	Start(ctx context.Context) error
	Stop() error
	Name() string
	Listen(ctx context.Context) (Result, error)
}

// fallbackReadings stand in when the sensors cannot be read.
var fallbackReadings = domain.Readings{
	TemperatureC:    22,
	HumidityPct:     50,
	PressureHPa:     1013,
	SoilMoisturePct: 45,
}

type Assistant struct {
	recorder Recorder
	sensors  SensorReader
	replies  ReplyGenerator
	speaker  Speaker
	notifier Notifier
	logger   zerolog.Logger

	now  func() time.Time
	pick func(n int) int
}

func NewAssistant(
	recorder Recorder,
	sensors SensorReader,
	replies ReplyGenerator,
	speaker Speaker,
	notifier Notifier,
	logger zerolog.Logger,
) *Assistant {
	return &Assistant{
		recorder: recorder,
		sensors:  sensors,
		replies:  replies,
		speaker:  speaker,
		notifier: notifier,
		logger:   logger.With().Str("component", "assistant").Logger(),
		now:      time.Now,
		pick:     rand.IntN,
	}
}

// Run listens until ctx is canceled, the source is exhausted or the audio
// device fails. Every other error is logged and the loop continues.
func (a *Assistant) Run(ctx context.Context) error {
	a.logger.Info().Str("source", a.recorder.Name()).Msg("starting audio source")
	if err := a.recorder.Start(ctx); err != nil {
		return fmt.Errorf("starting audio: %w", err)
	}
	defer a.recorder.Stop()

	a.logger.Info().Msg("plant ready, listening")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			ended, err := a.processOneUtterance(ctx)
			if err != nil {
				var devErr *domain.DeviceError
				switch {
				case ctx.Err() != nil:
					return ctx.Err()
				case errors.As(err, &devErr):
					return err
				}
				a.logger.Error().Err(err).Msg("processing utterance")
			}
			if ended {
				a.logger.Info().Msg("audio source exhausted")
				return nil
			}
		}
	}
}

func (a *Assistant) processOneUtterance(ctx context.Context) (bool, error) {
	res, err := a.recorder.Listen(ctx)
	if err != nil {
		return false, fmt.Errorf("listening: %w", err)
	}
	ended := res.Utterance.End == domain.EndOfStream

	switch {
	case res.Outcome.Reason == domain.FailureNoSpeech:
		return ended, nil
	case !res.Outcome.OK():
		if err := a.speaker.Speak(ctx, res.Text); err != nil {
			return ended, fmt.Errorf("speaking fallback: %w", err)
		}
		return ended, nil
	}

	reply, err := a.Converse(ctx, res.Text)
	if err != nil {
		return ended, err
	}
	if err := a.speaker.Speak(ctx, reply.Text); err != nil {
		return ended, fmt.Errorf("speaking reply: %w", err)
	}
	return ended, nil
}

// Converse answers ownerText (which may be empty) as the plant, based on
// the current sensor readings.
func (a *Assistant) Converse(ctx context.Context, ownerText string) (domain.Reply, error) {
	readings, err := a.sensors.Read(ctx)
	if err != nil {
		a.logger.Warn().Err(err).Str("sensors", a.sensors.Name()).Msg("sensor read failed, using fallback readings")
		readings = fallbackReadings
	}
	status := domain.EvaluatePlant(readings)

	prompt := BuildPrompt(status, ownerText, a.now())
	a.logger.Debug().Str("prompt", prompt).Msg("generating reply")

	text, err := a.replies.Generate(ctx, prompt)
	if err != nil {
		return domain.Reply{}, fmt.Errorf("generating reply: %w", err)
	}

	reply := domain.Reply{
		Text:  text,
		Mood:  status.Overall,
		Emoji: domain.Emoji(status.Overall, a.pick),
	}
	a.logger.Info().
		Str("mood", string(reply.Mood)).
		Str("reply", reply.Text).
		Msg("plant replied")

	if err := a.notifier.Notify(ctx, fmt.Sprintf("%s %s", reply.Emoji, reply.Text)); err != nil {
		a.logger.Error().Err(err).Msg("notifying reply")
	}
	return reply, nil
}
