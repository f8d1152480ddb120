package httpapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"plant-voice/internal/application"
	"plant-voice/internal/domain"
	"plant-voice/internal/infra/history"
	"plant-voice/internal/infra/httpapi"
	"plant-voice/internal/infra/metrics"
)

type mockConversation struct {
	got []string
	err error
}

func (m *mockConversation) Converse(_ context.Context, ownerText string) (domain.Reply, error) {
	m.got = append(m.got, ownerText)
	if m.err != nil {
		return domain.Reply{}, m.err
	}
	return domain.Reply{Text: "I am thriving.", Emoji: "🌿", Mood: domain.ConditionHappy}, nil
}

type mockListener struct {
	res application.Result
	err error
}

func (m *mockListener) Listen(_ context.Context) (application.Result, error) {
	return m.res, m.err
}

type mockHistory struct {
	limit int
}

func (m *mockHistory) Recent(_ context.Context, limit int) ([]history.Entry, error) {
	m.limit = limit
	return []history.Entry{{ID: "e1", Outcome: "text", Text: "hi"}}, nil
}

type mockSpeaker struct {
	spoken []string
}

func (m *mockSpeaker) Speak(_ context.Context, text string) error {
	m.spoken = append(m.spoken, text)
	return nil
}

func do(t *testing.T, h http.Handler, method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer_Chat(t *testing.T) {
	conv := &mockConversation{}
	speaker := &mockSpeaker{}
	srv := httpapi.NewServer(httpapi.Config{}, httpapi.Deps{Conversation: conv, Speaker: speaker}, zerolog.Nop())

	rec := do(t, srv.Handler(), http.MethodPost, "/chat", `{"user_input":"  Do you need water?  ","mode":"speak"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body.String())
	}

	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp["response"] != "I am thriving." || resp["emoji"] != "🌿" || resp["mood"] != "happy" {
		t.Errorf("unexpected response: %v", resp)
	}
	if len(conv.got) != 1 || conv.got[0] != "Do you need water?" {
		t.Errorf("owner text: %q", conv.got)
	}
	if len(speaker.spoken) != 1 {
		t.Errorf("speak mode should voice the reply, spoken %q", speaker.spoken)
	}
}

func TestServer_ChatSentenceLimit(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantStatus int
	}{
		{"one sentence", "How are you.", http.StatusOK},
		{"two sentences", "Hi there. How are you?", http.StatusOK},
		{"three sentences", "Hi. How are you. Need water?", http.StatusBadRequest},
		{"empty", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httpapi.NewServer(httpapi.Config{}, httpapi.Deps{Conversation: &mockConversation{}}, zerolog.Nop())
			body, _ := json.Marshal(map[string]string{"user_input": tt.input})

			rec := do(t, srv.Handler(), http.MethodPost, "/chat", string(body), nil)
			if rec.Code != tt.wantStatus {
				t.Errorf("status: got %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusBadRequest && !strings.Contains(rec.Body.String(), "no more than two sentences") {
				t.Errorf("body: %s", rec.Body.String())
			}
		})
	}
}

func TestServer_HelloAndReplyError(t *testing.T) {
	conv := &mockConversation{}
	srv := httpapi.NewServer(httpapi.Config{}, httpapi.Deps{Conversation: conv}, zerolog.Nop())

	if rec := do(t, srv.Handler(), http.MethodPost, "/hello", "", nil); rec.Code != http.StatusOK {
		t.Errorf("hello status: %d", rec.Code)
	}
	if len(conv.got) != 1 || conv.got[0] != "" {
		t.Errorf("hello should converse without owner text: %q", conv.got)
	}

	conv.err = errors.New("ollama down")
	if rec := do(t, srv.Handler(), http.MethodPost, "/hello", "{}", nil); rec.Code != http.StatusBadGateway {
		t.Errorf("status on reply error: got %d", rec.Code)
	}
}

func TestServer_Listen(t *testing.T) {
	listener := &mockListener{res: application.Result{
		Text:      domain.FallbackText,
		Outcome:   domain.FailedOutcome(domain.FailureTimeout, "no result within 10s"),
		Utterance: domain.Utterance{Duration: 1200 * time.Millisecond, End: domain.EndSilence},
		Latency:   10 * time.Second,
	}}
	srv := httpapi.NewServer(httpapi.Config{}, httpapi.Deps{Conversation: &mockConversation{}, Listener: listener}, zerolog.Nop())

	rec := do(t, srv.Handler(), http.MethodPost, "/listen", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{`"text":"could not understand"`, `"outcome":"timeout"`, `"audio_ms":1200`, `"latency_ms":10000`} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %s: %s", want, body)
		}
	}
	if strings.Contains(body, "no result within") {
		t.Error("failure detail must not reach clients")
	}

	listener.err = &domain.DeviceError{Op: "reading frame 0", Err: errors.New("unplugged")}
	if rec := do(t, srv.Handler(), http.MethodPost, "/listen", "", nil); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("device error status: got %d", rec.Code)
	}
}

func TestServer_AuthToken(t *testing.T) {
	srv := httpapi.NewServer(httpapi.Config{AuthToken: "secret"}, httpapi.Deps{Conversation: &mockConversation{}}, zerolog.Nop())
	h := srv.Handler()

	tests := []struct {
		name       string
		target     string
		header     map[string]string
		wantStatus int
	}{
		{"header", "/hello", map[string]string{"X-Auth-Token": "secret"}, http.StatusOK},
		{"query", "/hello?token=secret", nil, http.StatusOK},
		{"wrong", "/hello", map[string]string{"X-Auth-Token": "nope"}, http.StatusUnauthorized},
		{"missing", "/hello", nil, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(t, h, http.MethodPost, tt.target, "", tt.header); rec.Code != tt.wantStatus {
				t.Errorf("status: got %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}

	if rec := do(t, h, http.MethodGet, "/health", "", nil); rec.Code != http.StatusOK {
		t.Errorf("health should not require auth, got %d", rec.Code)
	}
}

func TestServer_RateLimit(t *testing.T) {
	srv := httpapi.NewServer(httpapi.Config{RateLimit: 2, RateWindow: time.Hour},
		httpapi.Deps{Conversation: &mockConversation{}}, zerolog.Nop())

	var codes []int
	for i := 0; i < 3; i++ {
		codes = append(codes, do(t, srv.Handler(), http.MethodPost, "/hello", "", nil).Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes: %v", codes)
	}
}

func TestServer_HistoryAndMetrics(t *testing.T) {
	hist := &mockHistory{}
	m := metrics.New()
	srv := httpapi.NewServer(httpapi.Config{}, httpapi.Deps{
		Conversation: &mockConversation{},
		History:      hist,
		Metrics:      m,
	}, zerolog.Nop())
	h := srv.Handler()

	rec := do(t, h, http.MethodGet, "/history?limit=5", "", nil)
	if rec.Code != http.StatusOK || hist.limit != 5 || !strings.Contains(rec.Body.String(), `"id":"e1"`) {
		t.Errorf("history: %d limit=%d body=%s", rec.Code, hist.limit, rec.Body.String())
	}
	if rec := do(t, h, http.MethodGet, "/history?limit=abc", "", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status: %d", rec.Code)
	}

	rec = do(t, h, http.MethodGet, "/metrics", "", nil)
	if !strings.Contains(rec.Body.String(), `plant_voice_http_requests_total{code="400",route="GET /history"} 1`) {
		t.Errorf("metrics missing http counter:\n%s", rec.Body.String())
	}
}

func TestServer_OptionalRoutesAbsent(t *testing.T) {
	srv := httpapi.NewServer(httpapi.Config{}, httpapi.Deps{Conversation: &mockConversation{}}, zerolog.Nop())

	for _, target := range []string{"/listen", "/history", "/metrics"} {
		method := http.MethodGet
		if target == "/listen" {
			method = http.MethodPost
		}
		if rec := do(t, srv.Handler(), method, target, "", nil); rec.Code != http.StatusNotFound {
			t.Errorf("%s: got %d, want 404", target, rec.Code)
		}
	}
}
