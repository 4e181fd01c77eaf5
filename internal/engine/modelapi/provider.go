package modelapi

import (
	"context"

	"clipflow/internal/engine/jobs"
)

// JobProvider exposes the client to the job poller.
type JobProvider struct {
	Client *Client
}

func (p JobProvider) Create(ctx context.Context, model string, input map[string]any) (string, error) {
	pred, err := p.Client.CreatePrediction(ctx, model, input)
	if err != nil {
		return "", err
	}
	return pred.ID, nil
}

func (p JobProvider) Get(ctx context.Context, externalID string) (jobs.Remote, error) {
	pred, err := p.Client.GetPrediction(ctx, externalID)
	if err != nil {
		return jobs.Remote{}, err
	}
	return jobs.Remote{Status: statusOf(pred.Status), Output: pred.Output, Error: pred.ErrorMessage()}, nil
}

func (p JobProvider) Cancel(ctx context.Context, externalID string) error {
	return p.Client.CancelPrediction(ctx, externalID)
}

func statusOf(s string) jobs.Status {
	switch s {
	case "starting":
		return jobs.StatusQueued
	case "processing":
		return jobs.StatusRunning
	case "succeeded":
		return jobs.StatusSucceeded
	case "failed":
		return jobs.StatusFailed
	case "canceled":
		return jobs.StatusCancelled
	}
	return jobs.StatusRunning
}
