package domain

import "time"

// FallbackText is the only thing a caller sees when speech could not be
// turned into text.
const FallbackText = "could not understand"

type FailureReason string

const (
	FailureTimeout     FailureReason = "timeout"
	FailureWorkerError FailureReason = "worker_error"
	FailureEmptyResult FailureReason = "empty_result"
	FailureNoSpeech    FailureReason = "no_speech"
	FailureCanceled    FailureReason = "canceled"
)

type TranscriptionJob struct {
	ID        string
	AudioPath string
	Model     string
	Language  string
	Deadline  time.Duration
}

// Outcome holds either recognized text or a failure reason, never both.
type Outcome struct {
	Text   string
	Reason FailureReason
	Detail string
}

func TextOutcome(text string) Outcome {
	return Outcome{Text: text}
}

func FailedOutcome(reason FailureReason, detail string) Outcome {
	return Outcome{Reason: reason, Detail: detail}
}

func (o Outcome) OK() bool {
	return o.Reason == ""
}

// Label is "text" for a successful outcome and the failure reason otherwise.
func (o Outcome) Label() string {
	if o.OK() {
		return "text"
	}
	return string(o.Reason)
}

// UserText applies the fallback policy: failures collapse into FallbackText.
func (o Outcome) UserText() string {
	if !o.OK() {
		return FallbackText
	}
	return o.Text
}
