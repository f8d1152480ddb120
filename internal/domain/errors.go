package domain

import "fmt"

// DeviceError marks a capture hardware or stream failure. It is never
// retried by the pipeline and always reaches the caller.
type DeviceError struct {
	Op  string
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("audio device: %s: %v", e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}
