package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// Recognizer transcribes an audio file. An empty language means the
// backend should detect it.
type Recognizer interface {
	TranscribeFile(ctx context.Context, path, model, language string) (string, error)
}

// Serve handles exactly one job: it decodes the job from r, runs the
// recognizer and writes the result to w. Recognition failures are reported
// in the result; only protocol failures are returned.
func Serve(ctx context.Context, r io.Reader, w io.Writer, rec Recognizer) error {
	var job Job
	if err := json.NewDecoder(r).Decode(&job); err != nil {
		return fmt.Errorf("decoding job: %w", err)
	}

	res := Result{ID: job.ID}
	if job.AudioPath == "" {
		res.Error = "job has no audio path"
	} else {
		text, err := rec.TranscribeFile(ctx, job.AudioPath, job.Model, job.Language)
		if err != nil {
			res.Error = err.Error()
		} else {
			res.Text = text
		}
	}

	if err := json.NewEncoder(w).Encode(res); err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	return nil
}

// RecognizerFunc adapts a plain function to Recognizer.
type RecognizerFunc func(ctx context.Context, path, model, language string) (string, error)

func (f RecognizerFunc) TranscribeFile(ctx context.Context, path, model, language string) (string, error) {
	return f(ctx, path, model, language)
}
