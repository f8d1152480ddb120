package worker

// Job is written to the worker's stdin as a single JSON object.
type Job struct {
	ID        string `json:"id"`
	Model     string `json:"model"`
	AudioPath string `json:"audio_path"`
	Language  string `json:"language,omitempty"`
}

// Result is the worker's single JSON answer on stdout. Error is set
// instead of Text when recognition failed.
type Result struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}
