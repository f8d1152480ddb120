package whispercli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// Recognizer runs the openai-whisper command line through a Python
// interpreter and reads back its JSON output.
type Recognizer struct {
	python string
	logger zerolog.Logger
}

func NewRecognizer(python string, logger zerolog.Logger) *Recognizer {
	if python == "" {
		python = "python3"
	}
	return &Recognizer{
		python: python,
		logger: logger.With().Str("component", "whispercli").Logger(),
	}
}

type output struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

func (r *Recognizer) TranscribeFile(ctx context.Context, path, model, language string) (string, error) {
	if model == "" {
		model = "base"
	}

	outDir, err := os.MkdirTemp("", "whisper-out-*")
	if err != nil {
		return "", fmt.Errorf("creating output dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	args := []string{
		"-m", "whisper", path,
		"--model", model,
		"--output_format", "json",
		"--output_dir", outDir,
		"--verbose", "False",
		"--fp16", "False",
	}
	if language != "" {
		args = append(args, "--language", language)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.python, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Debug().Str("model", model).Str("language", language).Msg("running whisper")
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("running whisper: %w: %s", err, lastLine(stderr.String()))
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)) + ".json"
	data, err := os.ReadFile(filepath.Join(outDir, name))
	if err != nil {
		return "", fmt.Errorf("reading whisper output: %w", err)
	}

	var out output
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("decoding whisper output: %w", err)
	}
	r.logger.Debug().Str("detected_language", out.Language).Msg("whisper finished")
	return out.Text, nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
