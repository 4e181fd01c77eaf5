package jobs

import (
	"context"
	"errors"
	"time"
)

type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusTimedOut  Status = "timed_out"
	StatusCancelled Status = "cancelled"
)

func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusTimedOut, StatusCancelled:
		return true
	}
	return false
}

var ErrJobNotFound = errors.New("job not found")

// Request describes one long running prediction.
type Request struct {
	ExecutionID string
	NodeID      string
	Model       string
	Input       map[string]any
	Timeout     time.Duration
}

// Job is the poller's view of a submitted external task.
type Job struct {
	ID                string         `json:"id"`
	ExternalID        string         `json:"externalId"`
	ExecutionID       string         `json:"executionId"`
	NodeID            string         `json:"nodeId"`
	Model             string         `json:"model"`
	Status            Status         `json:"status"`
	PollIntervalMs    int64          `json:"pollIntervalMs"`
	AttemptsRemaining int            `json:"attemptsRemaining"`
	Input             map[string]any `json:"input,omitempty"`
	Result            any            `json:"result,omitempty"`
	Error             string         `json:"error,omitempty"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`
}

// Remote is what the provider reports about an external task.
type Remote struct {
	Status Status
	Output any
	Error  string
}

// Provider is the external system running the jobs.
type Provider interface {
	Create(ctx context.Context, model string, input map[string]any) (string, error)
	Get(ctx context.Context, externalID string) (Remote, error)
	Cancel(ctx context.Context, externalID string) error
}

// Observer is told about every job transition, typically to persist it.
type Observer interface {
	JobChanged(Job)
}

type ObserverFunc func(Job)

func (f ObserverFunc) JobChanged(j Job) {
	f(j)
}
