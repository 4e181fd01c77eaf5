package service

import (
	"context"
	"testing"
	"time"

	"clipflow/internal/api/models"
	"clipflow/internal/engine"
	"clipflow/internal/engine/jobs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeAsyncJobs map[string]models.AsyncJob

func (f fakeAsyncJobs) FindByID(id string) (models.AsyncJob, error) {
	j, ok := f[id]
	if !ok {
		return models.AsyncJob{}, gorm.ErrRecordNotFound
	}
	return j, nil
}

func TestJob_FindForUser(t *testing.T) {
	te := newTestEngine(t, 100)
	require.NoError(t, te.Store.Create(context.Background(), engine.Record{ID: "exec-1", UserID: "user-1", Status: engine.ExecutionSucceeded}))

	now := time.Now()
	rows := fakeAsyncJobs{
		"job-video": models.AsyncJobFromJob(jobs.Job{
			ID:          "job-video",
			ExternalID:  "pred-1",
			ExecutionID: "exec-1",
			NodeID:      "vid",
			Model:       "google/veo-3.1",
			Status:      jobs.StatusSucceeded,
			Input:       map[string]any{"prompt": "waves"},
			Result:      "https://cdn.example.com/v.mp4",
			CreatedAt:   now,
			UpdatedAt:   now,
		}),
		"job-custom": models.AsyncJobFromJob(jobs.Job{
			ID:          "job-custom",
			ExecutionID: "exec-1",
			Model:       "someone/custom-model",
			Status:      jobs.StatusFailed,
			Error:       "out of memory",
		}),
		"job-orphan": models.AsyncJobFromJob(jobs.Job{ID: "job-orphan", ExecutionID: "gone", Status: jobs.StatusQueued}),
	}
	svc := NewJobServiceWith(te.Engine, rows)
	ctx := context.Background()

	video, err := svc.FindForUser(ctx, "job-video", "user-1")
	require.NoError(t, err)
	assert.Equal(t, "video-generation", video.Type)
	assert.Equal(t, jobs.StatusSucceeded, video.Status)
	assert.Equal(t, "https://cdn.example.com/v.mp4", video.Result)
	assert.Equal(t, "waves", video.Input["prompt"])

	custom, err := svc.FindForUser(ctx, "job-custom", "user-1")
	require.NoError(t, err)
	assert.Equal(t, "prediction", custom.Type)
	assert.Equal(t, "out of memory", custom.Error)

	for _, tc := range []struct{ id, user string }{
		{"job-video", "user-2"},
		{"job-orphan", "user-1"},
		{"missing", "user-1"},
	} {
		_, err := svc.FindForUser(ctx, tc.id, tc.user)
		assert.ErrorIs(t, err, jobs.ErrJobNotFound, tc.id)
	}
}
