package audio

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// checkRead classifies the error of a blocking stream read. An input
// overflow means samples were dropped before this read; the buffer itself
// is filled, so the frame is kept and the overflow only logged.
func checkRead(err, overflow error, frame int, logger zerolog.Logger) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, overflow):
		logger.Warn().Int("frame", frame).Msg("input overflowed, samples dropped")
		return nil
	default:
		return fmt.Errorf("reading from stream: %w", err)
	}
}
