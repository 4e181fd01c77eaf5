package service

import (
	"context"
	"errors"

	"clipflow"
	"clipflow/internal/api/models"
	"clipflow/internal/api/repo"
	"clipflow/internal/engine/jobs"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

type AsyncJobFinder interface {
	FindByID(id string) (models.AsyncJob, error)
}

// JobDetail is a job with the catalog category of its model, "prediction" for models outside
// the catalog.
type JobDetail struct {
	jobs.Job
	Type string
}

type JobService struct {
	engine  *Engine
	jobRepo AsyncJobFinder
	logger  zerolog.Logger
}

func NewJobService(e *Engine) *JobService {
	return NewJobServiceWith(e, repo.NewAsyncJobRepository())
}

func NewJobServiceWith(e *Engine, jobRepo AsyncJobFinder) *JobService {
	return &JobService{engine: e, jobRepo: jobRepo, logger: clipflow.Logger}
}

// FindForUser returns the live view of a job when the poller still tracks it, the persisted one
// otherwise. Jobs belong to the owner of their execution.
func (slf *JobService) FindForUser(ctx context.Context, id, userID string) (JobDetail, error) {
	job, err := slf.find(id)
	if err != nil {
		return JobDetail{}, err
	}
	rec, err := slf.engine.Store.Get(ctx, job.ExecutionID)
	if err != nil {
		slf.logger.Error().Err(err).Str("jobId", id).Str("executionId", job.ExecutionID).Msg("Error getting job execution")
		return JobDetail{}, jobs.ErrJobNotFound
	}
	if rec.UserID != userID {
		return JobDetail{}, jobs.ErrJobNotFound
	}

	detail := JobDetail{Job: job, Type: "prediction"}
	if m, ok := slf.engine.Catalog.Get(job.Model); ok {
		detail.Type = m.Category
	}
	return detail, nil
}

func (slf *JobService) find(id string) (jobs.Job, error) {
	if slf.engine.Poller != nil {
		if job, err := slf.engine.Poller.Poll(id); err == nil {
			return job, nil
		}
	}
	if slf.jobRepo == nil {
		return jobs.Job{}, jobs.ErrJobNotFound
	}
	row, err := slf.jobRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jobs.Job{}, jobs.ErrJobNotFound
		}
		slf.logger.Error().Err(err).Str("jobId", id).Msg("Error getting job")
		return jobs.Job{}, err
	}
	return row.Job(), nil
}
