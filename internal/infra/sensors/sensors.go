package sensors

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"plant-voice/internal/domain"
)

// Stub returns fixed, healthy readings. It is used when no hardware is
// attached.
type Stub struct {
	Readings domain.Readings
}

func NewStub() *Stub {
	return &Stub{Readings: domain.Readings{
		TemperatureC:    22,
		HumidityPct:     50,
		PressureHPa:     1013,
		SoilMoisturePct: 45,
	}}
}

func (s *Stub) Name() string { return "stub" }

func (s *Stub) Read(_ context.Context) (domain.Readings, error) {
	return s.Readings, nil
}

// Command runs an external reader that prints one JSON object with the
// readings on stdout, for example a script talking to I2C sensors.
type Command struct {
	argv    []string
	timeout time.Duration
}

func NewCommand(argv []string, timeout time.Duration) (*Command, error) {
	if len(argv) == 0 || argv[0] == "" {
		return nil, errors.New("sensor command is required")
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Command{argv: argv, timeout: timeout}, nil
}

func (c *Command) Name() string { return "command" }

func (c *Command) Read(ctx context.Context) (domain.Readings, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.argv[0], c.argv[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return domain.Readings{}, fmt.Errorf("sensor command timed out after %s", c.timeout)
		}
		return domain.Readings{}, fmt.Errorf("running sensor command: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	var r domain.Readings
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &r); err != nil {
		return domain.Readings{}, fmt.Errorf("decoding sensor output: %w", err)
	}
	return r, nil
}
