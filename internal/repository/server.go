package repository

import (
	"smbsyncd/internal/db"
	"smbsyncd/internal/model"
)

type ServerRepository struct{}

func NewServerRepository() *ServerRepository {
	return &ServerRepository{}
}

func (r *ServerRepository) GetAll() ([]model.Server, error) {
	var servers []model.Server
	return servers, db.DB.Find(&servers).Error
}

func (r *ServerRepository) GetByName(name string) (model.Server, error) {
	var server model.Server
	return server, db.DB.Where("name = ?", name).First(&server).Error
}
