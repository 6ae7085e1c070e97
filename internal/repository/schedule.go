package repository

import (
	"smbsyncd/internal/db"
	"smbsyncd/internal/model"
)

type ScheduleRepository struct{}

func NewScheduleRepository() *ScheduleRepository {
	return &ScheduleRepository{}
}

func (r *ScheduleRepository) GetAll() ([]model.Schedule, error) {
	var schedules []model.Schedule
	return schedules, db.DB.Order("id").Find(&schedules).Error
}

func (r *ScheduleRepository) Get(server, name string) (model.Schedule, error) {
	var schedule model.Schedule
	return schedule, db.DB.
		Where("server = ? AND name = ?", server, name).
		First(&schedule).Error
}

type ActionRepository struct{}

func NewActionRepository() *ActionRepository {
	return &ActionRepository{}
}

// GetAll returns actions in configuration order, which fixes the launch
// order when several actions become due in the same tick.
func (r *ActionRepository) GetAll() ([]model.Action, error) {
	var actions []model.Action
	return actions, db.DB.Order("id").Find(&actions).Error
}
