package application

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"plant-voice/internal/domain"
	"plant-voice/internal/vad"
)

// Result is one finished listen cycle. Text is always safe to show to a
// user: it is either the trimmed transcript or domain.FallbackText.
type Result struct {
	Text      string
	Outcome   domain.Outcome
	Utterance domain.Utterance
	Latency   time.Duration
}

// Listener captures one utterance from a frame source and transcribes it.
type Listener struct {
	source      FrameSource
	strategy    vad.Strategy
	segmenter   *vad.Segmenter
	transcriber Transcriber
	opts        TranscribeOptions
	observer    Observer
	logger      zerolog.Logger

	mu sync.Mutex
}

// NewListener builds a listener. A zero segmenter frame duration is taken
// from the source format; any other value must match it.
func NewListener(
	source FrameSource,
	strategy vad.Strategy,
	segCfg vad.SegmenterConfig,
	transcriber Transcriber,
	opts TranscribeOptions,
	observer Observer,
	logger zerolog.Logger,
) (*Listener, error) {
	format := source.Format()
	if segCfg.FrameDuration == 0 {
		segCfg.FrameDuration = format.FrameDuration
	}
	if segCfg.FrameDuration != format.FrameDuration {
		return nil, fmt.Errorf("segmenter frame duration %s does not match source %s frames of %s",
			segCfg.FrameDuration, source.Name(), format.FrameDuration)
	}

	seg, err := vad.NewSegmenter(segCfg)
	if err != nil {
		return nil, err
	}
	if observer == nil {
		observer = NoopObserver{}
	}

	return &Listener{
		source:      source,
		strategy:    strategy,
		segmenter:   seg,
		transcriber: transcriber,
		opts:        opts,
		observer:    observer,
		logger:      logger.With().Str("component", "listener").Logger(),
	}, nil
}

func (l *Listener) Start(ctx context.Context) error { return l.source.Start(ctx) }

func (l *Listener) Stop() error { return l.source.Stop() }

func (l *Listener) Name() string { return l.source.Name() }

// RecordAndTranscribe waits for speech, captures it and returns its text.
// Failures after capture collapse into domain.FallbackText; the only errors
// returned are device, classifier and context errors.
func (l *Listener) RecordAndTranscribe(ctx context.Context) (string, error) {
	res, err := l.Listen(ctx)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// Listen is RecordAndTranscribe with the full outcome attached.
func (l *Listener) Listen(ctx context.Context) (Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	format := l.source.Format()

	classifier, err := l.strategy.Prepare(ctx, l.source, format.SampleRate)
	if err != nil {
		return Result{}, fmt.Errorf("preparing %s classifier: %w", l.strategy.Name(), err)
	}

	utt, err := l.segmenter.Capture(ctx, l.source, classifier, format.SampleRate)
	if err != nil {
		return Result{}, fmt.Errorf("capturing utterance: %w", err)
	}
	l.observer.UtteranceCaptured(ctx, utt)

	l.logger.Debug().
		Str("end", string(utt.End)).
		Int("frames", utt.Frames).
		Dur("duration", utt.Duration).
		Msg("utterance captured")

	if utt.IsEmpty() {
		outcome := domain.FailedOutcome(domain.FailureNoSpeech, "no voiced frames captured")
		l.observer.TranscriptionFinished(ctx, outcome, 0, utt)
		return Result{Text: outcome.UserText(), Outcome: outcome, Utterance: utt}, nil
	}

	start := time.Now()
	outcome := normalize(l.transcriber.Transcribe(ctx, utt, l.opts))
	latency := time.Since(start)

	if outcome.OK() {
		l.logger.Info().
			Str("text", outcome.Text).
			Dur("latency", latency).
			Msg("transcribed")
	} else {
		l.logger.Warn().
			Str("reason", string(outcome.Reason)).
			Str("detail", outcome.Detail).
			Dur("latency", latency).
			Msg("transcription failed")
	}
	l.observer.TranscriptionFinished(ctx, outcome, latency, utt)

	return Result{
		Text:      outcome.UserText(),
		Outcome:   outcome,
		Utterance: utt,
		Latency:   latency,
	}, nil
}

func normalize(o domain.Outcome) domain.Outcome {
	if !o.OK() {
		return o
	}
	text := strings.TrimSpace(o.Text)
	if text == "" {
		return domain.FailedOutcome(domain.FailureEmptyResult, "transcript was blank")
	}
	return domain.TextOutcome(text)
}
