package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"plant-voice/config"
	"plant-voice/internal/application"
	"plant-voice/internal/infra/audio"
	"plant-voice/internal/infra/history"
	"plant-voice/internal/infra/httpapi"
	"plant-voice/internal/infra/metrics"
	"plant-voice/internal/infra/ollama"
	"plant-voice/internal/infra/openai"
	"plant-voice/internal/infra/pushover"
	"plant-voice/internal/infra/sensors"
	"plant-voice/internal/infra/whispercli"
	"plant-voice/internal/infra/worker"
	"plant-voice/internal/vad"
)

const usage = `usage: plantvoice [-config path] [command]

commands:
  listen   run the plant: listen, transcribe and answer (default)
  once     record one utterance and print the transcription
  serve    serve the HTTP API
  worker   transcribe one job from stdin (started by the gateway)
  devices  list audio input devices
`

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	command := flag.Arg(0)
	if command == "" {
		command = "listen"
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The worker speaks the job protocol on stdout and takes no config file.
	if command == "worker" {
		logger := setupLogger(config.LogConfig{Level: os.Getenv("PLANT_WORKER_LOG_LEVEL"), Format: "json"}, logOutput(command, os.Stdout, os.Stderr))
		if err := runWorker(ctx, logger); err != nil {
			logger.Error().Err(err).Msg("worker failed")
			os.Exit(1)
		}
		return
	}

	if command == "devices" {
		if err := listDevices(os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "loading config:", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.Log, logOutput(command, os.Stdout, os.Stderr))

	var runErr error
	switch command {
	case "listen":
		runErr = runListen(ctx, cfg, logger)
	case "once":
		runErr = runOnce(ctx, cfg, logger)
	case "serve":
		runErr = runServe(ctx, cfg, logger)
	default:
		flag.Usage()
		os.Exit(2)
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logger.Error().Err(runErr).Str("command", command).Msg("plant voice error")
		os.Exit(1)
	}
}

// app holds the components shared by the listen, once and serve commands.
type app struct {
	listener  *application.Listener
	assistant *application.Assistant
	metrics   *metrics.Metrics
	history   *history.Store
}

func (a *app) Close() {
	if a.history != nil {
		a.history.Close()
	}
}

func buildApp(cfg *config.Config, logger zerolog.Logger) (*app, error) {
	format := application.AudioFormat{
		SampleRate:    cfg.Audio.SampleRate,
		Channels:      1,
		BitDepth:      16,
		FrameDuration: cfg.Audio.FrameDuration,
	}

	source, err := createFrameSource(cfg.Audio, format, logger)
	if err != nil {
		return nil, err
	}

	strategy, err := createStrategy(cfg.VAD, format, logger)
	if err != nil {
		return nil, err
	}

	gateway, err := createGateway(cfg.Worker, cfg.Transcription, logger)
	if err != nil {
		return nil, err
	}

	a := &app{metrics: metrics.New()}
	observers := application.Observers{a.metrics}
	if cfg.History.Path != "" {
		a.history, err = history.Open(cfg.History.Path, logger)
		if err != nil {
			return nil, err
		}
		observers = append(observers, a.history)
	}

	a.listener, err = application.NewListener(
		source,
		strategy,
		vad.SegmenterConfig{
			FrameDuration: cfg.Audio.FrameDuration,
			PreRoll:       cfg.VAD.PreRoll,
			EndSilence:    cfg.VAD.EndSilence,
			MaxUtterance:  cfg.VAD.MaxUtterance,
			TriggerRatio:  cfg.VAD.TriggerRatio,
		},
		gateway,
		application.TranscribeOptions{
			Model:    cfg.Transcription.Model,
			Language: cfg.Transcription.Language,
			Deadline: cfg.Transcription.Deadline,
		},
		observers,
		logger,
	)
	if err != nil {
		a.Close()
		return nil, err
	}

	sensorReader, err := createSensors(cfg.Sensors)
	if err != nil {
		a.Close()
		return nil, err
	}

	var notifier application.Notifier
	if cfg.Pushover.Enabled {
		notifier = pushover.NewClient(cfg.Pushover.Token, cfg.Pushover.UserKey, cfg.Pushover.Title)
	} else {
		notifier = &application.NoopNotifier{}
	}

	a.assistant = application.NewAssistant(
		a.listener,
		sensorReader,
		ollama.NewClient(cfg.Reply.OllamaURL, cfg.Reply.Model, cfg.Reply.Timeout),
		&consoleSpeaker{w: os.Stdout},
		notifier,
		logger,
	)

	logger.Info().
		Str("audio_source", source.Name()).
		Str("vad", strategy.Name()).
		Str("detector_backend", vad.DetectorBackend).
		Str("backend", cfg.Worker.Backend).
		Str("model", cfg.Transcription.Model).
		Dur("deadline", cfg.Transcription.Deadline).
		Msg("plant voice configured")
	return a, nil
}

func runListen(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	a, err := buildApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.assistant.Run(ctx)
}

func runOnce(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	a, err := buildApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.listener.Start(ctx); err != nil {
		return fmt.Errorf("starting audio: %w", err)
	}
	defer a.listener.Stop()

	text, err := a.listener.RecordAndTranscribe(ctx)
	if err != nil {
		return err
	}
	fmt.Println(text)
	return nil
}

func runServe(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	a, err := buildApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.listener.Start(ctx); err != nil {
		return fmt.Errorf("starting audio: %w", err)
	}
	defer a.listener.Stop()

	deps := httpapi.Deps{
		Listener:     a.listener,
		Conversation: a.assistant,
		Speaker:      &consoleSpeaker{w: os.Stdout},
		Metrics:      a.metrics,
	}
	if a.history != nil {
		deps.History = a.history
	}

	srv := httpapi.NewServer(httpapi.Config{
		Addr:       cfg.HTTP.Addr,
		AuthToken:  cfg.HTTP.AuthToken,
		RateLimit:  cfg.HTTP.RateLimit,
		RateWindow: cfg.HTTP.RateWindow,
	}, deps, logger)

	if err := srv.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	logger.Info().Msg("shutting down")
	return srv.Stop()
}

func runWorker(ctx context.Context, logger zerolog.Logger) error {
	wc, err := config.LoadWorker()
	if err != nil {
		return err
	}

	var rec worker.Recognizer
	switch wc.Backend {
	case config.BackendOpenAI:
		rec = openai.NewWhisperClient(wc.OpenAIAPIKey, wc.OpenAIBaseURL, logger)
	default:
		rec = whispercli.NewRecognizer(wc.Python, logger)
	}

	return worker.Serve(ctx, os.Stdin, os.Stdout, rec)
}

func listDevices(w io.Writer) error {
	devices, err := audio.ListDevices()
	if err != nil {
		return err
	}
	for _, d := range devices {
		marker := " "
		if d.Default {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %2d  %-40s  %d ch  %.0f Hz\n", marker, d.Index, d.Name, d.MaxInputChannels, d.DefaultSampleRate)
	}
	return nil
}

func createFrameSource(cfg config.AudioConfig, format application.AudioFormat, logger zerolog.Logger) (application.FrameSource, error) {
	switch cfg.Source {
	case "microphone":
		return audio.NewMicrophoneSource(format, cfg.Device, logger), nil
	case "file":
		return audio.NewFileSource(cfg.Path, format, cfg.Pace, logger), nil
	default:
		return nil, fmt.Errorf("unknown audio source %q", cfg.Source)
	}
}

func createGateway(wc config.WorkerConfig, tc config.TranscriptionConfig, logger zerolog.Logger) (*worker.Gateway, error) {
	command := wc.Command
	if len(command) == 0 {
		self, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("locating worker binary: %w", err)
		}
		command = []string{self, "worker"}
	}

	return worker.NewGateway(worker.Config{
		Command:    command,
		Env:        wc.Env(),
		StagingDir: wc.StagingDir,
		Deadline:   tc.Deadline,
		WaitDelay:  wc.WaitDelay,
	}, logger)
}

func createStrategy(cfg config.VADConfig, format application.AudioFormat, logger zerolog.Logger) (vad.Strategy, error) {
	switch cfg.Strategy {
	case "detector":
		strategy, err := vad.NewDetectorStrategy(vad.Mode(cfg.Mode), format.SampleRate, format.FrameDuration)
		if err != nil {
			return nil, fmt.Errorf("creating detector: %w", err)
		}
		return strategy, nil
	case "energy":
		return vad.NewEnergyStrategy(cfg.Threshold, cfg.Calibration, logger), nil
	default:
		return nil, fmt.Errorf("unknown vad strategy %q", cfg.Strategy)
	}
}

func createSensors(cfg config.SensorsConfig) (application.SensorReader, error) {
	if cfg.Kind != "command" {
		return sensors.NewStub(), nil
	}
	reader, err := sensors.NewCommand(cfg.Command, cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("creating sensor reader: %w", err)
	}
	return reader, nil
}

// consoleSpeaker prints replies; speech synthesis is left to whatever
// reads the output.
type consoleSpeaker struct {
	w io.Writer
}

func (s *consoleSpeaker) Speak(_ context.Context, text string) error {
	_, err := fmt.Fprintf(s.w, "plant: %s\n", text)
	return err
}

// logOutput keeps stdout clean for commands whose output is the result.
func logOutput(command string, stdout, stderr io.Writer) io.Writer {
	switch command {
	case "once", "worker", "devices":
		return stderr
	default:
		return stdout
	}
}

func setupLogger(cfg config.LogConfig, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	if cfg.Format != "json" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
