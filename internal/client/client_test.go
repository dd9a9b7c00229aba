package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eduvia/internal/models"
)

type chatServer struct {
	mu       sync.Mutex
	requests []models.ChatRequest
	handle   func(w http.ResponseWriter, req models.ChatRequest)
}

func (s *chatServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	s.handle(w, req)
}

func newChatServer(t *testing.T, handle func(w http.ResponseWriter, req models.ChatRequest)) (*chatServer, *httptest.Server) {
	t.Helper()
	cs := &chatServer{handle: handle}
	mux := http.NewServeMux()
	mux.Handle("/api/chat", cs)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return cs, srv
}

func streamText(parts ...string) func(http.ResponseWriter, models.ChatRequest) {
	return func(w http.ResponseWriter, _ models.ChatRequest) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		for _, p := range parts {
			_, _ = w.Write([]byte(p))
			w.(http.Flusher).Flush()
		}
	}
}

func TestSendStreamsIntoTranscript(t *testing.T) {
	cs, srv := newChatServer(t, streamText("Hello", " there", "!"))
	tr := NewTranscript()
	var states []State
	c := New(srv.URL, tr, WithStateHook(func(sc StateChange) { states = append(states, sc.State) }))

	id, err := c.Send(context.Background(), "Hi")
	require.NoError(t, err)

	e, ok := tr.Entry(id)
	require.True(t, ok)
	assert.Equal(t, "Hello there!", e.Content)
	assert.Equal(t, StatusDone, e.Status)
	assert.Equal(t, StateSending, states[0])
	assert.Equal(t, StateDone, states[len(states)-1])
	assert.Contains(t, states, StateStreaming)

	require.Len(t, cs.requests, 1)
	assert.Equal(t, models.ChatSchemaVersion, cs.requests[0].Version)
	assert.Equal(t, "Hi", cs.requests[0].Message)
	assert.Equal(t, "normal", cs.requests[0].Mode)
	assert.Empty(t, cs.requests[0].History)
}

func TestSendCarriesLastKTurns(t *testing.T) {
	cs, srv := newChatServer(t, streamText("ok"))
	tr := NewTranscript()
	c := New(srv.URL, tr, WithHistoryWindow(3))
	c.SetMode(models.ModeAcademic)

	for _, msg := range []string{"one", "two", "three"} {
		_, err := c.Send(context.Background(), msg)
		require.NoError(t, err)
	}

	last := cs.requests[2]
	assert.Equal(t, "academic", last.Mode)
	assert.Equal(t, []models.ChatTurn{
		{Role: "ai", Content: "ok"},
		{Role: "user", Content: "two"},
		{Role: "ai", Content: "ok"},
	}, last.History)
}

func TestSendNonOKFailsEntry(t *testing.T) {
	_, srv := newChatServer(t, func(w http.ResponseWriter, _ models.ChatRequest) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Internal AI Error"}`))
	})
	tr := NewTranscript()
	c := New(srv.URL, tr)

	id, err := c.Send(context.Background(), "Hi")
	var serr *StatusError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, http.StatusInternalServerError, serr.Code)
	assert.Equal(t, "Internal AI Error", serr.Message)

	e, _ := tr.Entry(id)
	assert.Equal(t, FailureText, e.Content)
}

func TestSendAbortedStreamFailsEntry(t *testing.T) {
	_, srv := newChatServer(t, func(w http.ResponseWriter, _ models.ChatRequest) {
		_, _ = w.Write([]byte("partial"))
		w.(http.Flusher).Flush()
		panic(http.ErrAbortHandler)
	})
	tr := NewTranscript()
	c := New(srv.URL, tr)

	id, err := c.Send(context.Background(), "Hi")
	require.Error(t, err)
	e, _ := tr.Entry(id)
	assert.Equal(t, FailureText, e.Content)
	assert.Equal(t, StatusFailed, e.Status)
}

func TestSendUnreachableServer(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	tr := NewTranscript()
	id, err := New(url, tr).Send(context.Background(), "Hi")
	require.Error(t, err)
	e, _ := tr.Entry(id)
	assert.Equal(t, FailureText, e.Content)
}

func TestSendRejectsBlankMessage(t *testing.T) {
	tr := NewTranscript()
	_, err := New("http://127.0.0.1:1", tr).Send(context.Background(), "  ")
	require.Error(t, err)
	assert.Empty(t, tr.Entries())
}
