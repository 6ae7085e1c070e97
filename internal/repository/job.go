package repository

import (
	"smbsyncd/internal/db"
	"smbsyncd/internal/model"

	"gorm.io/gorm/clause"
)

type JobRepository struct{}

func NewJobRepository() *JobRepository {
	return &JobRepository{}
}

func (r *JobRepository) GetAll() ([]model.JobRecord, error) {
	var jobs []model.JobRecord
	return jobs, db.DB.Find(&jobs).Error
}

func (r *JobRepository) GetByID(jobID string) (model.JobRecord, error) {
	var job model.JobRecord
	return job, db.DB.Where("job_id = ?", jobID).First(&job).Error
}

// Upsert writes a record, inserting or replacing by job_id.
func (r *JobRepository) Upsert(rec model.JobRecord) error {
	return db.DB.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error
}

func (r *JobRepository) Delete(jobID string) error {
	return db.DB.Delete(&model.JobRecord{}, "job_id = ?", jobID).Error
}
