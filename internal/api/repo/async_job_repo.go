package repo

import (
	"clipflow"
	"clipflow/internal/api/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AsyncJobRepository struct {
	Db *gorm.DB
}

func NewAsyncJobRepository() *AsyncJobRepository {
	return &AsyncJobRepository{Db: clipflow.DB}
}

// Save inserts the job or overwrites the stored row
func (slf *AsyncJobRepository) Save(job *models.AsyncJob) error {
	return slf.Db.Clauses(clause.OnConflict{UpdateAll: true}).Create(job).Error
}

func (slf *AsyncJobRepository) FindByID(id string) (models.AsyncJob, error) {
	var job models.AsyncJob
	err := slf.Db.Where("id = ?", id).First(&job).Error
	return job, err
}

func (slf *AsyncJobRepository) FindByExecution(executionID string) ([]models.AsyncJob, error) {
	var jobs []models.AsyncJob
	err := slf.Db.
		Where("execution_id = ?", executionID).
		Order("created_at").
		Find(&jobs).Error
	return jobs, err
}
