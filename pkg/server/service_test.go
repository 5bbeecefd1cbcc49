package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"chatlens/pkg/analytics"
	"chatlens/pkg/archive"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	tripShard1 = `{"title": "Trip", "participants": [{"name": "A"}, {"name": "B"}], "messages": [
		{"sender_name": "A", "timestamp_ms": 90000000, "content": "bye"},
		{"sender_name": "A", "timestamp_ms": 0, "content": "hi"}
	]}`
	tripShard2 = `{"title": "Trip", "participants": [{"name": "A"}, {"name": "B"}], "messages": [
		{"sender_name": "B", "timestamp_ms": 1000, "content": "hi there"}
	]}`
)

type testEnv struct {
	root    string
	service *Service
}

func writeShard(t *testing.T, root string, code string, conv string, name string, content string) {
	t.Helper()

	dir := filepath.Join(root, code, "inbox", conv)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	root := t.TempDir()
	writeShard(t, root, "code1", "trip_1", "message_1.json", tripShard1)
	writeShard(t, root, "code1", "trip_1", "message_2.json", tripShard2)
	writeShard(t, root, "code1", "broken_2", "message_1.json", `{"title": "Broken", "messages": [{"timestamp_ms": 5}]}`)

	log := slog.New(slog.DiscardHandler)
	guard, err := archive.NewGuard(root)
	require.NoError(t, err)
	engine := analytics.NewEngine(archive.NewStore(guard, log), analytics.Options{
		WordPasscodeThreshold: 2,
		ComputePasscode:       "sesame",
	}, log)

	service, err := NewService(engine, Options{DataRoot: guard.Root(), AllowOrigins: []string{"https://ui.example"}}, log)
	require.NoError(t, err)

	return &testEnv{root: guard.Root(), service: service}
}

func (e *testEnv) do(t *testing.T, method string, path string, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	e.service.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealthzAssignsRequestID(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	_, err := uuid.Parse(rec.Header().Get(requestIDHeader))
	require.NoError(t, err)
	require.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestRequestIDPropagated(t *testing.T) {
	env := newTestEnv(t)
	id := uuid.NewString()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, id)
	rec := httptest.NewRecorder()
	env.service.Handler().ServeHTTP(rec, req)

	require.Equal(t, id, rec.Header().Get(requestIDHeader))
}

func TestReadyzBeforeServe(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), "not_ready")
}

func TestListConversations(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/codes/code1/conversations", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Conversations []struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"conversations"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Conversations, 2)
	require.Equal(t, "broken_2", body.Conversations[0].ID)
	require.Equal(t, "Trip", body.Conversations[1].Title)
}

func TestListUnknownCode(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/codes/nobody/conversations", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeError(t, rec)
	require.Equal(t, "not_found", resp.Error.Category)
	require.Equal(t, rec.Header().Get(requestIDHeader), resp.RequestID)
}

func TestAnalyzeConversation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/codes/code1/conversations/trip_1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var result analytics.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Equal(t, 3, result.TotalMessages)
	require.Equal(t, "Trip", result.Conversation.Title)
	require.Equal(t, int64(89_999_000), result.Gaps.Max.TimeMs)
	require.Equal(t, 2, result.Responses.Count)
	require.True(t, result.Gaps.Min.IsDefined())
}

func TestAnalyzeMalformedConversation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/codes/code1/conversations/broken_2", "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Equal(t, "malformed_input", decodeError(t, rec).Error.Category)
}

func TestAnalyzeMissingConversation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/codes/code1/conversations/ghost_9", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAnalyzeVanishedShards(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.MkdirAll(filepath.Join(env.root, "code1", "inbox", "empty_3"), 0o755))

	rec := env.do(t, http.MethodGet, "/api/codes/code1/conversations/empty_3", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "storage_unavailable", decodeError(t, rec).Error.Category)
}

func TestWordsResourceGuard(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/codes/code1/conversations/trip_1/words", "")
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "resource_guard", decodeError(t, rec).Error.Category)

	rec = env.do(t, http.MethodPost, "/api/codes/code1/conversations/trip_1/words", `{"passcode": "sesame"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"words": [["hi", 2], ["there", 1], ["bye", 1]]}`, rec.Body.String())
}

func TestEmojis(t *testing.T) {
	env := newTestEnv(t)
	writeShard(t, env.root, "code1", "fun_4", "message_1.json", `{"title": "Fun", "messages": [
		{"sender_name": "A", "timestamp_ms": 1, "content": "😂 lol 😂"}
	]}`)

	rec := env.do(t, http.MethodPost, "/api/codes/code1/conversations/fun_4/emojis", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"emojis": [["😂", 2]]}`, rec.Body.String())
}

func TestCountSubstring(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/codes/code1/conversations/trip_1/count", `{"string": "HI"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"string": "hi", "count": 2}`, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/codes/code1/conversations/trip_1/count", `{"string": ""}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid_argument", decodeError(t, rec).Error.Category)

	rec = env.do(t, http.MethodPost, "/api/codes/code1/conversations/trip_1/count", `{"string": `)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestParticipantWindow(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/codes/code1/conversations/trip_1/participant-window", `{"participant": "A", "days": 1, "mode": "max"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var window analytics.ParticipantWindowResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &window))
	require.Equal(t, "A", window.Participant)
	require.Equal(t, 1, window.Count)

	rec = env.do(t, http.MethodPost, "/api/codes/code1/conversations/trip_1/participant-window", `{"participant": "A", "mode": "median"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/codes/code1/conversations/trip_1/participant-window", `{"participant": "A", "days": 99}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/nothing", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "not_found", decodeError(t, rec).Error.Category)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/codes/code1/conversations", nil)
	req.Header.Set("Origin", "https://ui.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	env.service.Handler().ServeHTTP(rec, req)

	require.Equal(t, "https://ui.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/api/codes/code1/conversations/trip_1", "")

	rec := env.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "chatlens_http_requests_total")
	require.Contains(t, rec.Body.String(), `chatlens_analyses_total{operation="analyze",outcome="ok"}`)
}

func TestServeAndShutdown(t *testing.T) {
	env := newTestEnv(t)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.service.Serve(ctx, listener) }()

	readyURL := fmt.Sprintf("http://%s/readyz", listener.Addr().String())
	require.Eventually(t, func() bool {
		resp, err := http.Get(readyURL)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("service did not stop")
	}
}

func TestServeListenerFailureReturnsWithoutCancel(t *testing.T) {
	env := newTestEnv(t)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, listener.Close())

	done := make(chan error, 1)
	go func() { done <- env.service.Serve(context.Background(), listener) }()

	select {
	case err := <-done:
		require.ErrorContains(t, err, "serve API")
	case <-time.After(10 * time.Second):
		t.Fatal("Serve did not return after the listener failed")
	}
	require.Error(t, env.service.readiness())
}

func TestNewServiceRequiresAnalyzer(t *testing.T) {
	_, err := NewService(nil, Options{}, nil)
	require.Error(t, err)
}

func TestStatusForCategory(t *testing.T) {
	tests := map[string]int{
		"malformed_input":     http.StatusUnprocessableEntity,
		"not_found":           http.StatusNotFound,
		"resource_guard":      http.StatusForbidden,
		"invalid_argument":    http.StatusBadRequest,
		"invalid_path":        http.StatusBadRequest,
		"storage_unavailable": http.StatusServiceUnavailable,
	}

	for category, want := range tests {
		if got := statusForCategory(category); got != want {
			t.Fatalf("statusForCategory(%q) = %d, want %d", category, got, want)
		}
	}
}

