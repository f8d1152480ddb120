package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"plant-voice/internal/domain"
)

// Metrics owns a private registry so several instances can coexist in
// tests.
type Metrics struct {
	registry *prometheus.Registry

	utterances           *prometheus.CounterVec
	utteranceDuration    prometheus.Histogram
	transcriptions       *prometheus.CounterVec
	transcriptionLatency prometheus.Histogram
	httpRequests         *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		utterances: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "plant_voice_utterances_total",
			Help: "Capture cycles by end reason",
		}, []string{"end"}),
		utteranceDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "plant_voice_utterance_duration_seconds",
			Help:    "Duration of captured utterances",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30},
		}),
		transcriptions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "plant_voice_transcriptions_total",
			Help: "Transcription attempts by outcome",
		}, []string{"outcome"}),
		transcriptionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "plant_voice_transcription_latency_seconds",
			Help:    "Wall-clock time spent waiting for the worker",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40},
		}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "plant_voice_http_requests_total",
			Help: "HTTP requests by route and status code",
		}, []string{"route", "code"}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) UtteranceCaptured(_ context.Context, utt domain.Utterance) {
	m.utterances.WithLabelValues(string(utt.End)).Inc()
	if !utt.IsEmpty() {
		m.utteranceDuration.Observe(utt.Duration.Seconds())
	}
}

// TranscriptionFinished counts every outcome. Latency is only observed for
// attempts that reached a worker.
func (m *Metrics) TranscriptionFinished(_ context.Context, outcome domain.Outcome, latency time.Duration, _ domain.Utterance) {
	m.transcriptions.WithLabelValues(outcome.Label()).Inc()
	if outcome.Reason != domain.FailureNoSpeech {
		m.transcriptionLatency.Observe(latency.Seconds())
	}
}

func (m *Metrics) ObserveHTTP(route string, code int) {
	m.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}
