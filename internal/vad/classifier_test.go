package vad_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"plant-voice/internal/domain"
	"plant-voice/internal/vad"
)

// constantFrame returns n samples whose normalized RMS equals rms.
func constantFrame(index, n int, rms float64) domain.Frame {
	samples := make([]int16, n)
	v := int16(math.Round(rms * 32768))
	for i := range samples {
		if i%2 == 0 {
			samples[i] = v
		} else {
			samples[i] = -v
		}
	}
	return domain.Frame{Index: index, Samples: samples}
}

func sineFrame(n, sampleRate int, freq, amplitude float64) domain.Frame {
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
	}
	return domain.Frame{Samples: samples}
}

func TestRMS(t *testing.T) {
	if got := vad.RMS(nil); got != 0 {
		t.Errorf("RMS(nil): got %f", got)
	}
	f := constantFrame(0, 100, 0.25)
	if got := vad.RMS(f.Samples); math.Abs(got-0.25) > 1e-4 {
		t.Errorf("RMS: got %f, want 0.25", got)
	}
}

func TestEnergyClassifier_ThresholdScenario(t *testing.T) {
	// 0.3 s frames at 16 kHz.
	const n = 4800

	c := vad.NewEnergyClassifier(0.01, 0.002)
	if got := c.Threshold(); math.Abs(got-0.01) > 1e-12 {
		t.Fatalf("threshold: got %f, want 0.01", got)
	}

	speech, err := c.Classify(constantFrame(0, n, 0.02))
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if !speech {
		t.Error("RMS 0.02 frame should be speech")
	}

	speech, _ = c.Classify(constantFrame(1, n, 0.005))
	if speech {
		t.Error("RMS 0.005 frame should be silence")
	}
}

func TestEnergyClassifier_NoiseFloorRaisesThreshold(t *testing.T) {
	c := vad.NewEnergyClassifier(0.01, 0.02)
	if got := c.Threshold(); math.Abs(got-0.03) > 1e-9 {
		t.Errorf("threshold: got %f, want 0.03", got)
	}
	if speech, _ := c.Classify(constantFrame(0, 160, 0.025)); speech {
		t.Error("frame below raised threshold classified as speech")
	}
}

func TestCalibrate(t *testing.T) {
	src := &sliceSource{}
	for i := 0; i < 5; i++ {
		src.frames = append(src.frames, constantFrame(i, 1600, 0.004))
	}

	// 0.2 s at 16 kHz is two 1600-sample frames.
	floor, err := vad.Calibrate(context.Background(), src, 16000, 200*time.Millisecond)
	if err != nil {
		t.Fatalf("calibrate: %v", err)
	}
	if math.Abs(floor-0.004) > 1e-4 {
		t.Errorf("noise floor: got %f, want 0.004", floor)
	}
	if src.next != 2 {
		t.Errorf("calibration consumed %d frames, want 2", src.next)
	}
}

func TestCalibrate_DeviceError(t *testing.T) {
	src := &sliceSource{err: errors.New("device unplugged")}
	_, err := vad.Calibrate(context.Background(), src, 16000, time.Second)

	var devErr *domain.DeviceError
	if !errors.As(err, &devErr) {
		t.Fatalf("expected DeviceError, got %v", err)
	}
}

func TestEnergyStrategy_Prepare(t *testing.T) {
	src := &sliceSource{}
	for i := 0; i < 10; i++ {
		src.frames = append(src.frames, constantFrame(i, 1600, 0.02))
	}

	strategy := vad.NewEnergyStrategy(0.01, time.Second, zerolog.Nop())
	cls, err := strategy.Prepare(context.Background(), src, 16000)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}

	energy, ok := cls.(*vad.EnergyClassifier)
	if !ok {
		t.Fatalf("expected *EnergyClassifier, got %T", cls)
	}
	if math.Abs(energy.Threshold()-0.03) > 1e-4 {
		t.Errorf("threshold: got %f, want 0.03", energy.Threshold())
	}
}

func TestNewDetector_Preconditions(t *testing.T) {
	tests := []struct {
		name       string
		mode       vad.Mode
		sampleRate int
		frame      time.Duration
		wantErr    bool
	}{
		{"valid", vad.ModeQuality, 16000, 30 * time.Millisecond, false},
		{"most aggressive", vad.ModeVeryAggressive, 16000, 30 * time.Millisecond, false},
		{"8 kHz", vad.ModeQuality, 8000, 30 * time.Millisecond, true},
		{"20 ms frames", vad.ModeQuality, 16000, 20 * time.Millisecond, true},
		{"mode too high", vad.Mode(4), 16000, 30 * time.Millisecond, true},
		{"negative mode", vad.Mode(-1), 16000, 30 * time.Millisecond, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := vad.NewDetector(tt.mode, tt.sampleRate, tt.frame)
			if tt.wantErr && err == nil {
				t.Error("expected error but got none")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestDetector_RejectsWrongFrameSize(t *testing.T) {
	d, err := vad.NewDetector(vad.ModeAggressive, vad.DetectorSampleRate, vad.DetectorFrameDuration)
	if err != nil {
		t.Fatalf("new detector: %v", err)
	}

	_, err = d.Classify(domain.Frame{Samples: make([]int16, 320)})
	if !errors.Is(err, vad.ErrFrameSize) {
		t.Errorf("expected ErrFrameSize, got %v", err)
	}
}

func TestRing_FractionOfCapacity(t *testing.T) {
	r := vad.NewRing(10)
	r.Push(domain.Frame{}, true)
	if got := r.VoicedFraction(); got != 0.1 {
		t.Errorf("one voiced frame in a ring of 10: got %f, want 0.1", got)
	}
}

func TestRing_CapacityInvariant(t *testing.T) {
	r := vad.NewRing(3)
	for i := 0; i < 10; i++ {
		r.Push(domain.Frame{Index: i}, i%2 == 0)
		if r.Len() > r.Cap() {
			t.Fatalf("ring length %d exceeds capacity %d", r.Len(), r.Cap())
		}
	}

	frames := r.Frames()
	for i, want := range []int{7, 8, 9} {
		if frames[i].Index != want {
			t.Errorf("frame %d: got index %d, want %d", i, frames[i].Index, want)
		}
	}
	if r.Voiced() != 1 {
		t.Errorf("voiced: got %d, want 1", r.Voiced())
	}

	if got := r.VoicedFraction(); math.Abs(got-1.0/3) > 1e-9 {
		t.Errorf("voiced fraction: got %f, want 1/3", got)
	}

	r.Clear()
	if r.Len() != 0 || r.VoicedFraction() != 0 {
		t.Error("ring not empty after Clear")
	}
}
