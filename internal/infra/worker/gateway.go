package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"plant-voice/internal/application"
	"plant-voice/internal/domain"
	"plant-voice/internal/infra/audio"
)

const (
	defaultWaitDelay = 2 * time.Second
	defaultDeadline  = 30 * time.Second

	maxStdout = 1 << 20
	maxStderr = 4 << 10
)

type Config struct {
	// Command is the worker argv. The job is written to its stdin.
	Command []string
	// Env is appended to the parent environment.
	Env        []string
	StagingDir string
	// Deadline applies when a call does not set one.
	Deadline time.Duration
	// WaitDelay bounds how long output pipes are drained after a kill.
	WaitDelay time.Duration
}

// Gateway runs each transcription in a fresh worker process and kills it
// when the deadline passes. Calls are serialized.
type Gateway struct {
	cfg    Config
	logger zerolog.Logger

	mu sync.Mutex
}

func NewGateway(cfg Config, logger zerolog.Logger) (*Gateway, error) {
	if len(cfg.Command) == 0 || cfg.Command[0] == "" {
		return nil, errors.New("worker command is required")
	}
	if cfg.StagingDir == "" {
		cfg.StagingDir = os.TempDir()
	}
	if cfg.Deadline <= 0 {
		cfg.Deadline = defaultDeadline
	}
	if cfg.WaitDelay <= 0 {
		cfg.WaitDelay = defaultWaitDelay
	}
	if err := os.MkdirAll(cfg.StagingDir, 0700); err != nil {
		return nil, fmt.Errorf("creating staging dir: %w", err)
	}

	return &Gateway{
		cfg:    cfg,
		logger: logger.With().Str("component", "worker.gateway").Logger(),
	}, nil
}

// Transcribe stages utt as a WAV file, hands it to a worker and waits at
// most opts.Deadline plus the pipe drain delay. It always returns an
// outcome; failures carry a reason and an operator-facing detail.
func (g *Gateway) Transcribe(ctx context.Context, utt domain.Utterance, opts application.TranscribeOptions) domain.Outcome {
	g.mu.Lock()
	defer g.mu.Unlock()

	if utt.IsEmpty() {
		return domain.FailedOutcome(domain.FailureNoSpeech, "empty utterance")
	}

	job := domain.TranscriptionJob{
		ID:       uuid.NewString(),
		Model:    opts.Model,
		Language: opts.Language,
		Deadline: opts.Deadline,
	}
	if job.Deadline <= 0 {
		job.Deadline = g.cfg.Deadline
	}

	job.AudioPath = filepath.Join(g.cfg.StagingDir, "utterance-"+job.ID+".wav")
	if err := audio.WriteWAVFile(job.AudioPath, utt.Samples, utt.SampleRate); err != nil {
		return domain.FailedOutcome(domain.FailureWorkerError, fmt.Sprintf("staging audio: %v", err))
	}
	defer func() {
		if err := os.Remove(job.AudioPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			g.logger.Warn().Err(err).Str("path", job.AudioPath).Msg("removing staged audio")
		}
	}()

	return g.run(ctx, job)
}

func (g *Gateway) run(ctx context.Context, job domain.TranscriptionJob) domain.Outcome {
	payload, err := json.Marshal(Job{
		ID:        job.ID,
		Model:     job.Model,
		AudioPath: job.AudioPath,
		Language:  job.Language,
	})
	if err != nil {
		return domain.FailedOutcome(domain.FailureWorkerError, fmt.Sprintf("encoding job: %v", err))
	}

	runCtx, cancel := context.WithTimeout(ctx, job.Deadline)
	defer cancel()

	stdout := &tailBuffer{max: maxStdout}
	stderr := &tailBuffer{max: maxStderr}

	cmd := exec.CommandContext(runCtx, g.cfg.Command[0], g.cfg.Command[1:]...)
	cmd.Env = append(os.Environ(), g.cfg.Env...)
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = g.cfg.WaitDelay
	isolate(cmd)

	start := time.Now()
	err = cmd.Run()
	elapsed := time.Since(start)

	log := g.logger.With().Str("job", job.ID).Dur("elapsed", elapsed).Logger()

	if err != nil {
		switch {
		case ctx.Err() != nil:
			log.Debug().Msg("worker canceled")
			return domain.FailedOutcome(domain.FailureCanceled, ctx.Err().Error())
		case errors.Is(runCtx.Err(), context.DeadlineExceeded):
			log.Debug().Dur("deadline", job.Deadline).Msg("worker killed at deadline")
			return domain.FailedOutcome(domain.FailureTimeout, fmt.Sprintf("no result within %s", job.Deadline))
		default:
			return domain.FailedOutcome(domain.FailureWorkerError, describeExit(err, stderr.String()))
		}
	}

	res, err := decodeResult(stdout.Bytes())
	if err != nil {
		return domain.FailedOutcome(domain.FailureWorkerError, err.Error())
	}
	if res.ID != job.ID {
		return domain.FailedOutcome(domain.FailureWorkerError, fmt.Sprintf("result for job %q, expected %q", res.ID, job.ID))
	}
	if res.Error != "" {
		return domain.FailedOutcome(domain.FailureWorkerError, res.Error)
	}

	text := strings.TrimSpace(res.Text)
	if text == "" {
		return domain.FailedOutcome(domain.FailureEmptyResult, "worker returned no text")
	}

	log.Debug().Int("chars", len(text)).Msg("worker finished")
	return domain.TextOutcome(text)
}

// decodeResult reads the last non-empty line of the worker's stdout, so
// stray library output before the answer is tolerated.
func decodeResult(out []byte) (Result, error) {
	lines := bytes.Split(bytes.TrimSpace(out), []byte("\n"))
	last := bytes.TrimSpace(lines[len(lines)-1])
	if len(last) == 0 {
		return Result{}, errors.New("worker wrote no result")
	}

	var res Result
	if err := json.Unmarshal(last, &res); err != nil {
		return Result{}, fmt.Errorf("decoding worker result: %w", err)
	}
	return res, nil
}

func describeExit(err error, stderr string) string {
	stderr = strings.TrimSpace(stderr)
	if i := strings.LastIndexByte(stderr, '\n'); i >= 0 {
		stderr = stderr[i+1:]
	}
	if stderr == "" {
		return err.Error()
	}
	return fmt.Sprintf("%v: %s", err, stderr)
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	max int
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if len(t.buf) > t.max {
		t.buf = t.buf[len(t.buf)-t.max:]
	}
	return len(p), nil
}

func (t *tailBuffer) Bytes() []byte { return t.buf }

func (t *tailBuffer) String() string { return string(t.buf) }
