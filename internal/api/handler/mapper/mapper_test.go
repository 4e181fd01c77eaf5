package mapper

import (
	"testing"
	"time"

	"clipflow/internal/engine"
	"clipflow/internal/engine/graph"
	"clipflow/internal/engine/node"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToExecutionResponse(t *testing.T) {
	created := time.UnixMilli(1_700_000_000_000)
	started := created.Add(time.Second)
	completed := started.Add(1500 * time.Millisecond)

	tests := []struct {
		name      string
		rec       engine.Record
		execMs    *int64
		errMsg    *string
		completed *int64
	}{
		{
			name: "running",
			rec:  engine.Record{ID: "e1", Status: engine.ExecutionRunning, CreatedAt: created, StartedAt: &started},
		},
		{
			name:      "failed",
			rec:       engine.Record{ID: "e2", Status: engine.ExecutionFailed, CreatedAt: created, StartedAt: &started, CompletedAt: &completed, ErrorMessage: "boom"},
			execMs:    ptr(int64(1500)),
			errMsg:    ptr("boom"),
			completed: ptr(completed.UnixMilli()),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ToExecutionResponse(tt.rec)
			assert.Equal(t, int64(1_700_000_000_000), resp.CreatedAt)
			require.NotNil(t, resp.StartedAt)
			assert.Equal(t, started.UnixMilli(), *resp.StartedAt)
			assert.Equal(t, tt.execMs, resp.ExecutionTimeMs)
			assert.Equal(t, tt.errMsg, resp.ErrorMessage)
			assert.Equal(t, tt.completed, resp.CompletedAt)
			assert.NotNil(t, resp.InputData)
			assert.NotNil(t, resp.NodeStates)
		})
	}
}

func TestToNodeTypeResponse(t *testing.T) {
	defs := node.NewRegistry(node.Deps{}).Definitions()
	resps := ToNodeTypeResponses(defs)
	require.Len(t, resps, len(defs))

	byID := map[string]int{}
	for i, r := range resps {
		byID[r.ID] = i
	}
	concat := resps[byID[string(graph.KindConcat)]]
	require.Len(t, concat.Inputs, 1)
	assert.True(t, concat.Inputs[0].Multi)
	assert.True(t, concat.Inputs[0].Required)
	assert.False(t, concat.Metered)
	assert.True(t, resps[byID[string(graph.KindModelCall)]].Metered)
}

func ptr[T any](v T) *T {
	return &v
}
