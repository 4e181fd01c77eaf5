package models

import (
	"time"

	"clipflow/internal/engine/jobs"
)

// AsyncJob is the durable trace of a polled prediction.
type AsyncJob struct {
	ID                string      `gorm:"primaryKey;type:uuid"`
	ExternalID        string      `gorm:"index"`
	ExecutionID       string      `gorm:"not null;index"`
	NodeID            string      `gorm:"not null"`
	Model             string      `gorm:"not null"`
	Status            jobs.Status `gorm:"not null;type:varchar(20)"`
	PollIntervalMs    int64
	AttemptsRemaining int
	Input             JSONMap `gorm:"type:jsonb"`
	Result            JSONAny `gorm:"type:jsonb"`
	Error             string  `gorm:"type:text"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func AsyncJobFromJob(j jobs.Job) AsyncJob {
	return AsyncJob{
		ID:                j.ID,
		ExternalID:        j.ExternalID,
		ExecutionID:       j.ExecutionID,
		NodeID:            j.NodeID,
		Model:             j.Model,
		Status:            j.Status,
		PollIntervalMs:    j.PollIntervalMs,
		AttemptsRemaining: j.AttemptsRemaining,
		Input:             j.Input,
		Result:            JSONAny{V: j.Result},
		Error:             j.Error,
		CreatedAt:         j.CreatedAt,
		UpdatedAt:         j.UpdatedAt,
	}
}

func (j AsyncJob) Job() jobs.Job {
	return jobs.Job{
		ID:                j.ID,
		ExternalID:        j.ExternalID,
		ExecutionID:       j.ExecutionID,
		NodeID:            j.NodeID,
		Model:             j.Model,
		Status:            j.Status,
		PollIntervalMs:    j.PollIntervalMs,
		AttemptsRemaining: j.AttemptsRemaining,
		Input:             j.Input,
		Result:            j.Result.V,
		Error:             j.Error,
		CreatedAt:         j.CreatedAt,
		UpdatedAt:         j.UpdatedAt,
	}
}
