package modelapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"clipflow/internal/engine"
	"clipflow/internal/engine/jobs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============ Run ============

func TestRun_WaitsForPrediction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/models/openai/gpt-5/predictions", r.URL.Path)
		assert.Equal(t, "wait", r.Header.Get("Prefer"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]any{"prompt": "hello"}, body["input"])

		_, _ = w.Write([]byte(`{"id":"p1","status":"succeeded","output":["Hel","lo"]}`))
	}))
	defer srv.Close()

	out, err := NewClient(srv.URL, "secret").Run(context.Background(), "openai/gpt-5", map[string]any{"prompt": "hello"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []any{"Hel", "lo"}, out)
}

func TestRun_VersionedModelUsesPredictionsEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/predictions", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "abc123", body["version"])
		_, _ = w.Write([]byte(`{"id":"p1","status":"succeeded","output":"ok"}`))
	}))
	defer srv.Close()

	out, err := NewClient(srv.URL, "").Run(context.Background(), "stability-ai/sdxl:abc123", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}

func TestRun_PollsUnfinishedPrediction(t *testing.T) {
	var gets atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_, _ = w.Write([]byte(`{"id":"p1","status":"processing"}`))
			return
		}
		assert.Equal(t, "/predictions/p1", r.URL.Path)
		if gets.Add(1) < 2 {
			_, _ = w.Write([]byte(`{"id":"p1","status":"processing"}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"p1","status":"succeeded","output":"done"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", WithPollInterval(time.Millisecond))
	out, err := c.Run(context.Background(), "x/y", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "done", out)
	assert.Equal(t, int32(2), gets.Load())
}

func TestRun_FailedPrediction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"p1","status":"failed","error":"NSFW content detected"}`))
	}))
	defer srv.Close()

	accepted := false
	_, err := NewClient(srv.URL, "").Run(context.Background(), "x/y", nil, func() { accepted = true })
	var ne *engine.NodeError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, engine.CodeExternalCallFailed, ne.Code)
	assert.Equal(t, "NSFW content detected", ne.Message)
	assert.True(t, accepted, "a created prediction is charged even when it fails")
}

func TestRun_UpstreamErrorCarriesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"title":"Invalid input","detail":"prompt is required"}`))
	}))
	defer srv.Close()

	accepted := false
	_, err := NewClient(srv.URL, "").Run(context.Background(), "x/y", nil, func() { accepted = true })
	var ne *engine.NodeError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, engine.CodeExternalCallFailed, ne.Code)
	assert.Equal(t, http.StatusUnprocessableEntity, ne.StatusCode)
	assert.Equal(t, "prompt is required", ne.Message)
	assert.False(t, accepted)
}

func TestRun_ContextDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := NewClient(srv.URL, "").Run(ctx, "x/y", nil, nil)
	var ne *engine.NodeError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, engine.CodeExternalCallTimeout, ne.Code)
}

// ============ JobProvider ============

func TestJobProvider(t *testing.T) {
	var cancelled atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/models/google/veo-3.1/predictions":
			assert.Empty(t, r.Header.Get("Prefer"))
			_, _ = w.Write([]byte(`{"id":"p9","status":"starting"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/predictions/p9":
			_, _ = w.Write([]byte(`{"id":"p9","status":"succeeded","output":"https://cdn/v.mp4"}`))
		case r.Method == http.MethodPost && r.URL.Path == "/predictions/p9/cancel":
			cancelled.Store(true)
			_, _ = w.Write([]byte(`{"id":"p9","status":"canceled"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	p := JobProvider{Client: NewClient(srv.URL, "")}
	ctx := context.Background()

	id, err := p.Create(ctx, "google/veo-3.1", map[string]any{"prompt": "a cat"})
	require.NoError(t, err)
	assert.Equal(t, "p9", id)

	remote, err := p.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusSucceeded, remote.Status)
	assert.Equal(t, "https://cdn/v.mp4", remote.Output)

	require.NoError(t, p.Cancel(ctx, id))
	assert.True(t, cancelled.Load())
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		in   string
		want jobs.Status
	}{
		{"starting", jobs.StatusQueued},
		{"processing", jobs.StatusRunning},
		{"succeeded", jobs.StatusSucceeded},
		{"failed", jobs.StatusFailed},
		{"canceled", jobs.StatusCancelled},
		{"weird", jobs.StatusRunning},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, statusOf(tt.in))
		})
	}
}
