package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"clipflow/internal/engine/stream"
	"clipflow/pkg"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExecutionIDFromSubject(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		want    string
		wantErr bool
	}{
		{"published subject", stream.Subject("acme", "0b7c6a2e-5f1d-4a59-9d1e-3c2f7a8b9c01"), "0b7c6a2e-5f1d-4a59-9d1e-3c2f7a8b9c01", false},
		{"short", "tenant.acme.execution", "", true},
		{"job subject", "tenant.acme.job.12.progress", "", true},
		{"empty id", "tenant.acme.execution..events", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseExecutionIDFromSubject(tt.subject)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEnvelope(t *testing.T) {
	data, err := envelope("exec-1", []byte(`{"seq":3,"type":"node"}`))
	require.NoError(t, err)

	var msg map[string]any
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "execution.event", msg["type"])
	assert.Equal(t, "exec-1", msg["executionId"])
	assert.Equal(t, map[string]any{"seq": float64(3), "type": "node"}, msg["payload"])
}

func receive(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case msg := <-c.send:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no message delivered")
		return nil
	}
}

func TestHub_RoutesByExecution(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub(zerolog.Nop())
	go hub.Run(ctx)

	a := &Client{hub: hub, send: make(chan []byte, 4)}
	b := &Client{hub: hub, send: make(chan []byte, 4)}
	hub.register <- a
	hub.register <- b
	hub.subscribe <- subscribeMsg{client: a, executionID: "exec-1"}
	hub.subscribe <- subscribeMsg{client: b, executionID: "exec-2"}

	hub.Publish("exec-1", []byte("one"))
	hub.Publish("exec-2", []byte("two"))

	assert.Equal(t, []byte("one"), receive(t, a))
	assert.Equal(t, []byte("two"), receive(t, b))

	hub.unsubscribe <- subscribeMsg{client: a, executionID: "exec-1"}
	hub.Publish("exec-1", []byte("ignored"))
	hub.Publish("exec-2", []byte("three"))
	assert.Equal(t, []byte("three"), receive(t, b))
	assert.Empty(t, a.send)

	hub.unregister <- b
	_, open := <-b.send
	assert.False(t, open)
}

func TestAuthenticate(t *testing.T) {
	const secret = "realtime-secret"
	token, err := pkg.GenerateToken("user-7", "u7@example.com", "user", secret, time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name   string
		mode   string
		target string
		header string
		want   string
		ok     bool
	}{
		{"query token", "prod", "/ws?token=" + token, "", "user-7", true},
		{"bearer header", "prod", "/ws", "Bearer " + token, "user-7", true},
		{"bad token", "dev", "/ws?token=garbage", "", "", false},
		{"no token in prod", "prod", "/ws", "", "", false},
		{"no token in dev", "dev", "/ws", "", devUserID, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			userID, ok := authenticate(Config{Mode: tt.mode, JWTSecret: secret}, r)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, userID)
			}
		})
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr error
	}{
		{"subscribe", `{"action":"subscribe","executionId":"exec-1"}`, nil},
		{"unsubscribe", `{"action":"unsubscribe","executionId":"exec-1"}`, nil},
		{"unknown action", `{"action":"cancel","executionId":"exec-1"}`, errUnknownAction},
		{"missing execution", `{"action":"subscribe"}`, errMissingExecution},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := parseCommand([]byte(tt.raw))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "exec-1", msg.ExecutionID)
		})
	}

	_, err := parseCommand([]byte("not json"))
	assert.Error(t, err)
}
