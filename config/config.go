package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Audio         AudioConfig         `yaml:"audio"`
	VAD           VADConfig           `yaml:"vad"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Worker        WorkerConfig        `yaml:"worker"`
	Reply         ReplyConfig         `yaml:"reply"`
	Sensors       SensorsConfig       `yaml:"sensors"`
	Pushover      PushoverConfig      `yaml:"pushover"`
	HTTP          HTTPConfig          `yaml:"http"`
	History       HistoryConfig       `yaml:"history"`
	Log           LogConfig           `yaml:"log"`
}

type AudioConfig struct {
	// Source is "microphone" or "file".
	Source string `yaml:"source"`
	// Path is a WAV file or a directory of them, for the file source.
	Path string `yaml:"path"`
	// Device is a PortAudio input index; -1 selects the default input.
	Device        int           `yaml:"device"`
	SampleRate    int           `yaml:"sample_rate"`
	FrameDuration time.Duration `yaml:"frame_duration"`
	Pace          bool          `yaml:"pace"`
}

type VADConfig struct {
	// Strategy is "energy" or "detector".
	Strategy     string        `yaml:"strategy"`
	Mode         int           `yaml:"mode"`
	Threshold    float64       `yaml:"threshold"`
	Calibration  time.Duration `yaml:"calibration"`
	PreRoll      time.Duration `yaml:"pre_roll"`
	EndSilence   time.Duration `yaml:"end_silence"`
	MaxUtterance time.Duration `yaml:"max_utterance"`
	TriggerRatio float64       `yaml:"trigger_ratio"`
}

type TranscriptionConfig struct {
	Model string `yaml:"model"`
	// Language is passed to the recognizer; empty means auto-detect.
	Language string        `yaml:"language"`
	Deadline time.Duration `yaml:"deadline"`
}

type WorkerConfig struct {
	// Command overrides the worker argv. By default the running binary is
	// started with the "worker" subcommand.
	Command    []string      `yaml:"command"`
	StagingDir string        `yaml:"staging_dir"`
	WaitDelay  time.Duration `yaml:"wait_delay"`

	Backend       string `yaml:"backend"`
	OpenAIAPIKey  string `yaml:"openai_api_key"`
	OpenAIBaseURL string `yaml:"openai_base_url"`
	Python        string `yaml:"python"`
}

// Env renders the recognizer settings as the variables LoadWorker reads.
func (w WorkerConfig) Env() []string {
	env := []string{"PLANT_WORKER_BACKEND=" + w.Backend}
	if w.OpenAIAPIKey != "" {
		env = append(env, "PLANT_WORKER_OPENAI_API_KEY="+w.OpenAIAPIKey)
	}
	if w.OpenAIBaseURL != "" {
		env = append(env, "PLANT_WORKER_OPENAI_BASE_URL="+w.OpenAIBaseURL)
	}
	if w.Python != "" {
		env = append(env, "PLANT_WORKER_PYTHON="+w.Python)
	}
	return env
}

type ReplyConfig struct {
	OllamaURL string        `yaml:"ollama_url"`
	Model     string        `yaml:"model"`
	Timeout   time.Duration `yaml:"timeout"`
}

type SensorsConfig struct {
	// Kind is "stub" or "command".
	Kind    string        `yaml:"kind"`
	Command []string      `yaml:"command"`
	Timeout time.Duration `yaml:"timeout"`
}

type PushoverConfig struct {
	Token   string `yaml:"token"`
	UserKey string `yaml:"user_key"`
	Title   string `yaml:"title"`
	Enabled bool   `yaml:"enabled"`
}

type HTTPConfig struct {
	Addr       string        `yaml:"addr"`
	AuthToken  string        `yaml:"auth_token"`
	RateLimit  int           `yaml:"rate_limit"`
	RateWindow time.Duration `yaml:"rate_window"`
}

type HistoryConfig struct {
	// Path of the SQLite database; empty disables history.
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads the YAML file at path. A .env file next to the process is
// loaded first so ${VARS} in the YAML can come from it.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse expands environment variables in data and decodes it.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	cfg := Config{Audio: AudioConfig{Device: -1}}
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Audio.Source == "" {
		c.Audio.Source = "microphone"
	}
	if c.Audio.Path == "" {
		c.Audio.Path = "./audio"
	}
	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = 16000
	}
	if c.Audio.FrameDuration == 0 {
		c.Audio.FrameDuration = 30 * time.Millisecond
	}
	if c.VAD.Strategy == "" {
		c.VAD.Strategy = "energy"
	}
	if c.VAD.Threshold == 0 {
		c.VAD.Threshold = 0.01
	}
	if c.VAD.Calibration == 0 {
		c.VAD.Calibration = time.Second
	}
	if c.VAD.PreRoll == 0 {
		c.VAD.PreRoll = 300 * time.Millisecond
	}
	if c.VAD.EndSilence == 0 {
		c.VAD.EndSilence = 800 * time.Millisecond
	}
	if c.VAD.MaxUtterance == 0 {
		c.VAD.MaxUtterance = 15 * time.Second
	}
	if c.VAD.TriggerRatio == 0 {
		c.VAD.TriggerRatio = 0.9
	}
	if c.Transcription.Model == "" {
		c.Transcription.Model = "base"
	}
	if c.Transcription.Deadline == 0 {
		c.Transcription.Deadline = 30 * time.Second
	}
	if c.Worker.StagingDir == "" {
		c.Worker.StagingDir = os.TempDir()
	}
	if c.Worker.WaitDelay == 0 {
		c.Worker.WaitDelay = 2 * time.Second
	}
	if c.Worker.Backend == "" {
		c.Worker.Backend = BackendWhisperCLI
	}
	if c.Reply.OllamaURL == "" {
		c.Reply.OllamaURL = "http://localhost:11434"
	}
	if c.Reply.Model == "" {
		c.Reply.Model = "qwen:0.5b"
	}
	if c.Reply.Timeout == 0 {
		c.Reply.Timeout = 60 * time.Second
	}
	if c.Sensors.Kind == "" {
		c.Sensors.Kind = "stub"
	}
	if c.Sensors.Timeout == 0 {
		c.Sensors.Timeout = 5 * time.Second
	}
	if c.Pushover.Title == "" {
		c.Pushover.Title = "Plant"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.HTTP.RateLimit == 0 {
		c.HTTP.RateLimit = 30
	}
	if c.HTTP.RateWindow == 0 {
		c.HTTP.RateWindow = time.Minute
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func (c *Config) Validate() error {
	var problems []string

	switch c.Audio.Source {
	case "microphone", "file":
	default:
		problems = append(problems, fmt.Sprintf("audio.source %q must be microphone or file", c.Audio.Source))
	}
	if c.Audio.SampleRate <= 0 {
		problems = append(problems, "audio.sample_rate must be positive")
	}
	if c.Audio.FrameDuration <= 0 {
		problems = append(problems, "audio.frame_duration must be positive")
	}

	switch c.VAD.Strategy {
	case "energy":
		if c.VAD.Threshold < 0 || c.VAD.Threshold > 1 {
			problems = append(problems, "vad.threshold must be in [0, 1]")
		}
	case "detector":
		if c.VAD.Mode < 0 || c.VAD.Mode > 3 {
			problems = append(problems, "vad.mode must be between 0 and 3")
		}
	default:
		problems = append(problems, fmt.Sprintf("vad.strategy %q must be energy or detector", c.VAD.Strategy))
	}
	if c.VAD.TriggerRatio < 0 || c.VAD.TriggerRatio >= 1 {
		problems = append(problems, "vad.trigger_ratio must be in [0, 1)")
	}
	if c.VAD.MaxUtterance < c.Audio.FrameDuration {
		problems = append(problems, "vad.max_utterance must cover at least one frame")
	}

	if c.Transcription.Deadline < 0 {
		problems = append(problems, "transcription.deadline must not be negative")
	}
	switch c.Worker.Backend {
	case BackendOpenAI, BackendWhisperCLI:
	default:
		problems = append(problems, fmt.Sprintf("worker.backend %q must be %s or %s", c.Worker.Backend, BackendOpenAI, BackendWhisperCLI))
	}

	switch c.Sensors.Kind {
	case "stub":
	case "command":
		if len(c.Sensors.Command) == 0 {
			problems = append(problems, "sensors.command is required for the command reader")
		}
	default:
		problems = append(problems, fmt.Sprintf("sensors.kind %q must be stub or command", c.Sensors.Kind))
	}

	if c.Pushover.Enabled && (c.Pushover.Token == "" || c.Pushover.UserKey == "") {
		problems = append(problems, "pushover.token and pushover.user_key are required when pushover is enabled")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

const (
	BackendOpenAI     = "openai"
	BackendWhisperCLI = "whisper-cli"
)

// Worker is the configuration of the transcription worker process. It is
// read from PLANT_WORKER_* variables set by the parent.
type Worker struct {
	Backend       string `envconfig:"BACKEND" default:"whisper-cli"`
	OpenAIAPIKey  string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com/v1"`
	Python        string `envconfig:"PYTHON" default:"python3"`
}

func LoadWorker() (*Worker, error) {
	var w Worker
	if err := envconfig.Process("PLANT_WORKER", &w); err != nil {
		return nil, fmt.Errorf("loading worker config: %w", err)
	}

	switch w.Backend {
	case BackendOpenAI:
		if w.OpenAIAPIKey == "" {
			return nil, errors.New("PLANT_WORKER_OPENAI_API_KEY is required for the openai backend")
		}
	case BackendWhisperCLI:
	default:
		return nil, fmt.Errorf("unknown worker backend %q", w.Backend)
	}
	return &w, nil
}
