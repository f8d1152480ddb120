//go:build webrtcvad

package vad

import (
	"encoding/binary"
	"errors"
	"fmt"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"
)

const DetectorBackend = "webrtc"

type webrtcEngine struct {
	vad *webrtcvad.VAD
	buf []byte
}

func newDetectorEngine(mode Mode) (detectorEngine, error) {
	v, err := webrtcvad.New()
	if err != nil {
		return nil, err
	}
	if err := v.SetMode(int(mode)); err != nil {
		return nil, fmt.Errorf("setting mode %d: %w", mode, err)
	}

	buf := make([]byte, 2*DetectorFrameSamples)
	if !v.ValidRateAndFrameLength(DetectorSampleRate, len(buf)) {
		return nil, errors.New("16 kHz 30ms frames rejected")
	}
	return &webrtcEngine{vad: v, buf: buf}, nil
}

// speech hands the frame to WebRTC as little-endian 16-bit PCM.
func (e *webrtcEngine) speech(samples []int16) (bool, error) {
	for i, s := range samples {
		binary.LittleEndian.PutUint16(e.buf[2*i:], uint16(s))
	}
	active, err := e.vad.Process(DetectorSampleRate, e.buf)
	if err != nil {
		return false, fmt.Errorf("webrtc vad: %w", err)
	}
	return active, nil
}
