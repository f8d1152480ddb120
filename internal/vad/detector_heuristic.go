//go:build !webrtcvad

package vad

// DetectorBackend names the engine behind Detector. Build with
// -tags webrtcvad for the WebRTC voice activity detector.
const DetectorBackend = "heuristic"

type modeLimits struct {
	minDBFS float64
	maxZCR  float64
}

// Speech has energy well above the floor and a zero-crossing rate below
// that of broadband hiss.
var detectorLimits = [...]modeLimits{
	ModeQuality:        {minDBFS: -55, maxZCR: 0.50},
	ModeLowBitrate:     {minDBFS: -50, maxZCR: 0.45},
	ModeAggressive:     {minDBFS: -45, maxZCR: 0.40},
	ModeVeryAggressive: {minDBFS: -40, maxZCR: 0.35},
}

type heuristicEngine struct {
	limits modeLimits
}

func newDetectorEngine(mode Mode) (detectorEngine, error) {
	return &heuristicEngine{limits: detectorLimits[mode]}, nil
}

func (e *heuristicEngine) speech(samples []int16) (bool, error) {
	if DBFS(RMS(samples)) < e.limits.minDBFS {
		return false, nil
	}
	return ZeroCrossingRate(samples) <= e.limits.maxZCR, nil
}
