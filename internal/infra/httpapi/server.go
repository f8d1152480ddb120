package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"plant-voice/internal/application"
	"plant-voice/internal/domain"
	"plant-voice/internal/infra/history"
	"plant-voice/internal/infra/metrics"
)

const tooManySentences = "Please enter no more than two sentences."

type Listener interface {
	Listen(ctx context.Context) (application.Result, error)
}

type Conversation interface {
	Converse(ctx context.Context, ownerText string) (domain.Reply, error)
}

type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]history.Entry, error)
}

type Config struct {
	Addr       string
	AuthToken  string
	RateLimit  int
	RateWindow time.Duration
}

// Deps are the collaborators behind the routes. Listener, History and
// Metrics may be nil; their routes then answer 404.
type Deps struct {
	Listener     Listener
	Conversation Conversation
	Speaker      application.Speaker
	History      HistoryReader
	Metrics      *metrics.Metrics
}

type Server struct {
	cfg    Config
	deps   Deps
	logger zerolog.Logger

	mux         *http.ServeMux
	rateLimiter *RateLimiter

	mu      sync.Mutex
	server  *http.Server
	running bool
}

func NewServer(cfg Config, deps Deps, logger zerolog.Logger) *Server {
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 30
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = time.Minute
	}
	if deps.Speaker == nil {
		deps.Speaker = application.NoopSpeaker{}
	}

	s := &Server{
		cfg:         cfg,
		deps:        deps,
		logger:      logger.With().Str("component", "httpapi").Logger(),
		mux:         http.NewServeMux(),
		rateLimiter: NewRateLimiter(cfg.RateLimit, cfg.RateWindow),
	}

	s.handle("POST /chat", s.protect(s.handleChat))
	s.handle("POST /hello", s.protect(s.handleHello))
	if deps.Listener != nil {
		s.handle("POST /listen", s.protect(s.handleListen))
	}
	if deps.History != nil {
		s.handle("GET /history", s.handleHistory)
	}
	s.handle("GET /health", s.handleHealth)
	if deps.Metrics != nil {
		s.mux.Handle("GET /metrics", deps.Metrics.Handler())
	}
	return s
}

func (s *Server) handle(pattern string, h http.HandlerFunc) {
	s.mux.HandleFunc(pattern, s.observe(pattern, h))
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	s.server = &http.Server{
		Addr:    s.cfg.Addr,
		Handler: s.mux,
		// /listen waits for speech and the worker deadline
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		s.logger.Info().Str("addr", s.cfg.Addr).Msg("HTTP server starting")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("HTTP server error")
		}
	}()

	s.running = true
	return nil
}

func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("graceful shutdown failed, forcing close")
		if err := s.server.Close(); err != nil {
			return fmt.Errorf("closing server: %w", err)
		}
	}

	s.running = false
	return nil
}

// protect applies token auth (header or query) and the per-IP rate limit.
func (s *Server) protect(next http.HandlerFunc) http.HandlerFunc {
	limited := s.rateLimiter.Middleware(next)
	if s.cfg.AuthToken == "" {
		return limited
	}
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("X-Auth-Token")
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		if token != s.cfg.AuthToken {
			s.logger.Warn().Str("remote_addr", r.RemoteAddr).Str("path", r.URL.Path).Msg("unauthorized request")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		limited(w, r)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) observe(route string, next http.HandlerFunc) http.HandlerFunc {
	if s.deps.Metrics == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		s.deps.Metrics.ObserveHTTP(route, rec.status)
	}
}

type chatRequest struct {
	UserInput string `json:"user_input"`
	Mode      string `json:"mode"`
	Lang      string `json:"lang"`
}

type replyResponse struct {
	Response string `json:"response"`
	Emoji    string `json:"emoji"`
	Mood     string `json:"mood"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user := strings.TrimSpace(req.UserInput)
	if len(strings.Split(user, ". ")) > 2 {
		writeError(w, http.StatusBadRequest, tooManySentences)
		return
	}

	s.reply(w, r, user, req.Mode)
}

func (s *Server) handleHello(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.reply(w, r, "", req.Mode)
}

func (s *Server) reply(w http.ResponseWriter, r *http.Request, ownerText, mode string) {
	reply, err := s.deps.Conversation.Converse(r.Context(), ownerText)
	if err != nil {
		s.logger.Error().Err(err).Msg("generating reply")
		writeError(w, http.StatusBadGateway, "the plant could not answer right now")
		return
	}

	if mode == "speak" {
		if err := s.deps.Speaker.Speak(r.Context(), reply.Text); err != nil {
			s.logger.Warn().Err(err).Msg("speaking reply")
		}
	}

	writeJSON(w, http.StatusOK, replyResponse{
		Response: reply.Text,
		Emoji:    reply.Emoji,
		Mood:     string(reply.Mood),
	})
}

type listenResponse struct {
	Text      string `json:"text"`
	Outcome   string `json:"outcome"`
	End       string `json:"end"`
	AudioMS   int64  `json:"audio_ms"`
	LatencyMS int64  `json:"latency_ms"`
}

func (s *Server) handleListen(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Listener.Listen(r.Context())
	if err != nil {
		var devErr *domain.DeviceError
		if errors.As(err, &devErr) {
			s.logger.Error().Err(err).Msg("audio device failed")
			writeError(w, http.StatusServiceUnavailable, "audio device unavailable")
			return
		}
		s.logger.Error().Err(err).Msg("listening")
		writeError(w, http.StatusInternalServerError, "listening failed")
		return
	}

	writeJSON(w, http.StatusOK, listenResponse{
		Text:      res.Text,
		Outcome:   res.Outcome.Label(),
		End:       string(res.Utterance.End),
		AudioMS:   res.Utterance.Duration.Milliseconds(),
		LatencyMS: res.Latency.Milliseconds(),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	entries, err := s.deps.History.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("reading history")
		writeError(w, http.StatusInternalServerError, "history unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decodeBody accepts an empty body as the zero request.
func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	err := json.NewDecoder(io.LimitReader(r.Body, 16*1024)).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
