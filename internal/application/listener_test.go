package application_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"plant-voice/internal/application"
	"plant-voice/internal/domain"
	"plant-voice/internal/vad"
)

type mockFrameSource struct {
	frames  []domain.Frame
	next    int
	err     error
	started bool
	stopped bool
}

func (m *mockFrameSource) Start(_ context.Context) error { m.started = true; return nil }
func (m *mockFrameSource) Stop() error                   { m.stopped = true; return nil }
func (m *mockFrameSource) Name() string                  { return "mock" }

func (m *mockFrameSource) Format() application.AudioFormat {
	return application.AudioFormat{SampleRate: 16000, Channels: 1, BitDepth: 16, FrameDuration: 30 * time.Millisecond}
}

func (m *mockFrameSource) NextFrame(_ context.Context) (domain.Frame, error) {
	if m.next >= len(m.frames) {
		if m.err != nil {
			return domain.Frame{}, m.err
		}
		return domain.Frame{}, io.EOF
	}
	f := m.frames[m.next]
	m.next++
	return f, nil
}

// speechPattern builds frames from a string of 'v' (voiced) and 's'.
func speechPattern(pattern string) []domain.Frame {
	frames := make([]domain.Frame, len(pattern))
	for i, c := range pattern {
		samples := make([]int16, 480)
		if c == 'v' {
			samples[0] = 1000
		}
		frames[i] = domain.Frame{Index: i, Samples: samples}
	}
	return frames
}

type firstSampleClassifier struct{}

func (firstSampleClassifier) Classify(f domain.Frame) (bool, error) {
	return f.Samples[0] != 0, nil
}

type mockStrategy struct {
	err error
}

func (m *mockStrategy) Name() string { return "mock" }

func (m *mockStrategy) Prepare(_ context.Context, _ vad.FrameReader, _ int) (vad.Classifier, error) {
	if m.err != nil {
		return nil, m.err
	}
	return firstSampleClassifier{}, nil
}

type mockTranscriber struct {
	outcome domain.Outcome
	calls   []domain.Utterance
	opts    application.TranscribeOptions
}

func (m *mockTranscriber) Transcribe(_ context.Context, utt domain.Utterance, opts application.TranscribeOptions) domain.Outcome {
	m.calls = append(m.calls, utt)
	m.opts = opts
	return m.outcome
}

type recordingObserver struct {
	captured []domain.Utterance
	outcomes []domain.Outcome
}

func (r *recordingObserver) UtteranceCaptured(_ context.Context, utt domain.Utterance) {
	r.captured = append(r.captured, utt)
}

func (r *recordingObserver) TranscriptionFinished(_ context.Context, o domain.Outcome, _ time.Duration, _ domain.Utterance) {
	r.outcomes = append(r.outcomes, o)
}

var testSegmenterConfig = vad.SegmenterConfig{
	PreRoll:      90 * time.Millisecond,
	EndSilence:   90 * time.Millisecond,
	MaxUtterance: 3 * time.Second,
}

func newTestListener(t *testing.T, src application.FrameSource, tr application.Transcriber, obs application.Observer) *application.Listener {
	t.Helper()
	l, err := application.NewListener(src, &mockStrategy{}, testSegmenterConfig, tr,
		application.TranscribeOptions{Model: "base", Deadline: time.Second}, obs, zerolog.Nop())
	if err != nil {
		t.Fatalf("new listener: %v", err)
	}
	return l
}

func TestListener_RecordAndTranscribe(t *testing.T) {
	tests := []struct {
		name    string
		outcome domain.Outcome
		want    string
	}{
		{"trims transcript", domain.TextOutcome("  hello plant  "), "hello plant"},
		{"blank transcript", domain.TextOutcome(""), domain.FallbackText},
		{"whitespace transcript", domain.TextOutcome(" \n\t"), domain.FallbackText},
		{"timeout", domain.FailedOutcome(domain.FailureTimeout, "deadline 1s exceeded"), domain.FallbackText},
		{"worker error", domain.FailedOutcome(domain.FailureWorkerError, "exit status 1"), domain.FallbackText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &mockFrameSource{frames: speechPattern("sssvvvvvssss")}
			tr := &mockTranscriber{outcome: tt.outcome}

			got, err := newTestListener(t, src, tr, nil).RecordAndTranscribe(context.Background())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
			if len(tr.calls) != 1 {
				t.Fatalf("expected 1 transcription, got %d", len(tr.calls))
			}
			if tr.opts.Model != "base" || tr.opts.Deadline != time.Second {
				t.Errorf("options not forwarded: %+v", tr.opts)
			}
		})
	}
}

func TestListener_NoSpeechSkipsTranscriber(t *testing.T) {
	src := &mockFrameSource{frames: speechPattern("ssssssssss")}
	tr := &mockTranscriber{outcome: domain.TextOutcome("should not be used")}
	obs := &recordingObserver{}

	res, err := newTestListener(t, src, tr, obs).Listen(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Text != domain.FallbackText {
		t.Errorf("text: got %q", res.Text)
	}
	if res.Outcome.Reason != domain.FailureNoSpeech {
		t.Errorf("reason: got %q, want %q", res.Outcome.Reason, domain.FailureNoSpeech)
	}
	if len(tr.calls) != 0 {
		t.Errorf("transcriber called %d times for silence", len(tr.calls))
	}
	if len(obs.outcomes) != 1 || obs.outcomes[0].Reason != domain.FailureNoSpeech {
		t.Errorf("observer outcomes: %+v", obs.outcomes)
	}
}

func TestListener_UtteranceHandedToTranscriber(t *testing.T) {
	// P = 3, S = 3: three voiced frames trigger and the fourth silent frame ends.
	src := &mockFrameSource{frames: speechPattern("ssvvvvssss")}
	tr := &mockTranscriber{outcome: domain.TextOutcome("hi")}
	obs := &recordingObserver{}

	res, err := newTestListener(t, src, tr, obs).Listen(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	utt := tr.calls[0]
	if utt.Frames != 8 {
		t.Errorf("frames: got %d, want 8", utt.Frames)
	}
	if utt.End != domain.EndSilence {
		t.Errorf("end: got %s", utt.End)
	}
	if len(utt.Samples) != 8*480 {
		t.Errorf("samples: got %d", len(utt.Samples))
	}
	if utt.Duration != 240*time.Millisecond {
		t.Errorf("duration: got %s", utt.Duration)
	}
	if !res.Outcome.OK() || len(obs.captured) != 1 || len(obs.outcomes) != 1 {
		t.Errorf("unexpected result %+v, observer %d/%d", res.Outcome, len(obs.captured), len(obs.outcomes))
	}
}

func TestListener_DeviceErrorPropagates(t *testing.T) {
	boom := errors.New("input overflowed")
	src := &mockFrameSource{frames: speechPattern("sss"), err: boom}
	tr := &mockTranscriber{}

	_, err := newTestListener(t, src, tr, nil).RecordAndTranscribe(context.Background())

	var devErr *domain.DeviceError
	if !errors.As(err, &devErr) {
		t.Fatalf("expected DeviceError, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Error("device error should wrap the source error")
	}
	if len(tr.calls) != 0 {
		t.Error("transcriber called after device error")
	}
}

func TestListener_ClassifierPreparationError(t *testing.T) {
	src := &mockFrameSource{}
	l, err := application.NewListener(src, &mockStrategy{err: errors.New("calibration failed")},
		testSegmenterConfig, &mockTranscriber{}, application.TranscribeOptions{}, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("new listener: %v", err)
	}

	if _, err := l.RecordAndTranscribe(context.Background()); err == nil {
		t.Error("expected error from classifier preparation")
	}
}

func TestListener_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := &mockFrameSource{frames: speechPattern("vvvv")}
	_, err := newTestListener(t, src, &mockTranscriber{}, nil).Listen(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestNewListener_FrameDurationMismatch(t *testing.T) {
	cfg := testSegmenterConfig
	cfg.FrameDuration = 20 * time.Millisecond

	_, err := application.NewListener(&mockFrameSource{}, &mockStrategy{}, cfg, &mockTranscriber{},
		application.TranscribeOptions{}, nil, zerolog.Nop())
	if err == nil {
		t.Error("expected error for mismatched frame duration")
	}
}
