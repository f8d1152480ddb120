package domain

import "time"

// Frame is a fixed-duration slice of mono PCM audio. Samples must not be
// modified after capture.
type Frame struct {
	Index   int
	Samples []int16
}

type EndReason string

const (
	EndSilence     EndReason = "silence"
	EndMaxDuration EndReason = "max_duration"
	EndOfStream    EndReason = "end_of_stream"
	EndNoSpeech    EndReason = "no_speech"
)

// Utterance is the voiced audio assembled from one capture cycle.
type Utterance struct {
	Samples    []int16
	SampleRate int
	Frames     int
	Duration   time.Duration
	End        EndReason
}

func (u Utterance) IsEmpty() bool {
	return u.Frames == 0 || len(u.Samples) == 0
}
