package audio

// InputDevice describes a capture device the microphone source can open.
type InputDevice struct {
	Index             int
	Name              string
	MaxInputChannels  int
	DefaultSampleRate float64
	Default           bool
}
