package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/CristhianMorales19/sistema-gestion-agricola-sub003/internal/model"
)

// WorkerRepository lectura de datos maestros de trabajadores
type WorkerRepository interface {
	GetActiveByID(ctx context.Context, id int64) (*model.Worker, error)
	ListActive(ctx context.Context) ([]model.Worker, error)
}

type workerRepo struct {
	db *gorm.DB
}

// NewWorkerRepo crea WorkerRepository
func NewWorkerRepo(db *gorm.DB) WorkerRepository {
	return &workerRepo{db: db}
}

func (r *workerRepo) GetActiveByID(ctx context.Context, id int64) (*model.Worker, error) {
	var w model.Worker
	err := r.db.WithContext(ctx).
		Where("worker_id = ? AND is_active = ?", id, true).
		First(&w).Error
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *workerRepo) ListActive(ctx context.Context) ([]model.Worker, error) {
	var workers []model.Worker
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("full_name ASC").
		Find(&workers).Error
	return workers, err
}
