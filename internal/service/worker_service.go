package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/CristhianMorales19/sistema-gestion-agricola-sub003/internal/dto"
	"github.com/CristhianMorales19/sistema-gestion-agricola-sub003/internal/repository"
)

// WorkerService lectura de trabajadores para los selectores de asistencia
type WorkerService interface {
	ListActive(ctx context.Context) ([]dto.ActiveWorkerResponse, error)
}

type workerService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewWorkerService crea WorkerService
func NewWorkerService(repo *repository.Repository, logger *zap.Logger) WorkerService {
	return &workerService{repo: repo, logger: logger}
}

func (s *workerService) ListActive(ctx context.Context) ([]dto.ActiveWorkerResponse, error) {
	workers, err := s.repo.Worker.ListActive(ctx)
	if err != nil {
		s.logger.Error("listado de trabajadores activos falló", zap.Error(err))
		return nil, err
	}

	result := make([]dto.ActiveWorkerResponse, 0, len(workers))
	for _, w := range workers {
		result = append(result, dto.ActiveWorkerResponse{
			Value:          w.WorkerID,
			Label:          fmt.Sprintf("%s - %s", w.Identification, w.FullName),
			WorkerID:       w.WorkerID,
			Identification: w.Identification,
			FullName:       w.FullName,
		})
	}
	return result, nil
}
