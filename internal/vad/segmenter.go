package vad

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"plant-voice/internal/domain"
)

// DefaultTriggerRatio is the voiced fraction of the pre-roll ring that
// starts capture.
const DefaultTriggerRatio = 0.9

type SegmenterConfig struct {
	FrameDuration time.Duration
	PreRoll       time.Duration
	EndSilence    time.Duration
	MaxUtterance  time.Duration
	TriggerRatio  float64
}

func (c SegmenterConfig) Validate() error {
	if c.FrameDuration <= 0 {
		return fmt.Errorf("frame duration must be positive, got %s", c.FrameDuration)
	}
	if c.MaxUtterance < c.FrameDuration {
		return fmt.Errorf("max utterance %s is shorter than one frame (%s)", c.MaxUtterance, c.FrameDuration)
	}
	if c.EndSilence < 0 || c.PreRoll < 0 {
		return fmt.Errorf("pre-roll and end silence must not be negative")
	}
	if c.TriggerRatio < 0 || c.TriggerRatio >= 1 {
		return fmt.Errorf("trigger ratio must be in [0, 1), got %f", c.TriggerRatio)
	}
	return nil
}

// PreRollFrames is P, never less than one frame.
func (c SegmenterConfig) PreRollFrames() int {
	return max(1, int(c.PreRoll/c.FrameDuration))
}

// EndSilenceFrames is S; capture ends once the silence run exceeds it.
func (c SegmenterConfig) EndSilenceFrames() int {
	return int(c.EndSilence / c.FrameDuration)
}

func (c SegmenterConfig) MaxFrames() int {
	return int(c.MaxUtterance / c.FrameDuration)
}

type State int

const (
	StateWaiting State = iota
	StateCapturing
	StateDone
)

func (s State) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StateCapturing:
		return "capturing"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Segmenter turns a stream of classified frames into one utterance. It is
// used by a single goroutine and must be Reset before reuse.
type Segmenter struct {
	cfg          SegmenterConfig
	triggerRatio float64
	endSilence   int
	maxFrames    int

	ring       *Ring
	state      State
	silenceRun int
	voiced     []domain.Frame
	processed  int
	end        domain.EndReason
}

func NewSegmenter(cfg SegmenterConfig) (*Segmenter, error) {
	if cfg.TriggerRatio == 0 {
		cfg.TriggerRatio = DefaultTriggerRatio
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid segmenter config: %w", err)
	}
	return &Segmenter{
		cfg:          cfg,
		triggerRatio: cfg.TriggerRatio,
		endSilence:   cfg.EndSilenceFrames(),
		maxFrames:    cfg.MaxFrames(),
		ring:         NewRing(cfg.PreRollFrames()),
	}, nil
}

func (s *Segmenter) State() State { return s.state }

func (s *Segmenter) Processed() int { return s.processed }

func (s *Segmenter) Reset() {
	s.ring.Clear()
	s.state = StateWaiting
	s.silenceRun = 0
	s.voiced = nil
	s.processed = 0
	s.end = ""
}

// Push feeds one classified frame and reports whether the utterance is
// complete. Frames pushed after completion are ignored.
func (s *Segmenter) Push(frame domain.Frame, isSpeech bool) bool {
	if s.state == StateDone {
		return true
	}
	s.processed++

	switch s.state {
	case StateWaiting:
		s.ring.Push(frame, isSpeech)
		if s.ring.VoicedFraction() > s.triggerRatio {
			s.voiced = append(s.voiced, s.ring.Frames()...)
			s.ring.Clear()
			s.silenceRun = 0
			s.state = StateCapturing
		}
	case StateCapturing:
		s.voiced = append(s.voiced, frame)
		if isSpeech {
			s.silenceRun = 0
		} else {
			s.silenceRun++
			if s.silenceRun > s.endSilence {
				s.finish(domain.EndSilence)
				return true
			}
		}
	}

	if s.processed >= s.maxFrames {
		s.finish(domain.EndMaxDuration)
		return true
	}
	return false
}

// EndOfStream completes the utterance when the source has no more frames.
func (s *Segmenter) EndOfStream() {
	if s.state != StateDone {
		s.finish(domain.EndOfStream)
	}
}

// A cap reached while still waiting is reported as no speech. End of
// stream keeps its reason so callers can tell the source is exhausted.
func (s *Segmenter) finish(reason domain.EndReason) {
	if s.state == StateWaiting && reason != domain.EndOfStream {
		reason = domain.EndNoSpeech
	}
	s.state = StateDone
	s.end = reason
}

// Utterance concatenates the captured frames. It is empty when capture
// never triggered.
func (s *Segmenter) Utterance(sampleRate int) domain.Utterance {
	total := 0
	for _, f := range s.voiced {
		total += len(f.Samples)
	}
	samples := make([]int16, 0, total)
	for _, f := range s.voiced {
		samples = append(samples, f.Samples...)
	}

	end := s.end
	if end == "" && len(s.voiced) == 0 {
		end = domain.EndNoSpeech
	}
	return domain.Utterance{
		Samples:    samples,
		SampleRate: sampleRate,
		Frames:     len(s.voiced),
		Duration:   time.Duration(len(s.voiced)) * s.cfg.FrameDuration,
		End:        end,
	}
}

// Capture runs one full capture cycle against src. It resets the segmenter
// first. io.EOF from src ends the stream normally; any other source error
// is returned as a *domain.DeviceError.
func (s *Segmenter) Capture(ctx context.Context, src FrameReader, classifier Classifier, sampleRate int) (domain.Utterance, error) {
	s.Reset()

	for {
		if err := ctx.Err(); err != nil {
			return domain.Utterance{}, err
		}

		frame, err := src.NextFrame(ctx)
		if errors.Is(err, io.EOF) {
			s.EndOfStream()
			break
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return domain.Utterance{}, ctxErr
			}
			return domain.Utterance{}, &domain.DeviceError{Op: fmt.Sprintf("reading frame %d", s.processed), Err: err}
		}

		isSpeech, err := classifier.Classify(frame)
		if err != nil {
			return domain.Utterance{}, fmt.Errorf("classifying frame %d: %w", frame.Index, err)
		}

		if s.Push(frame, isSpeech) {
			break
		}
	}

	return s.Utterance(sampleRate), nil
}
