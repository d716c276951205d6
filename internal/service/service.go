package service

import (
	"go.uber.org/zap"

	"github.com/CristhianMorales19/sistema-gestion-agricola-sub003/config"
	"github.com/CristhianMorales19/sistema-gestion-agricola-sub003/internal/repository"
)

// Service punto de entrada de todos los servicios
type Service struct {
	Attendance AttendanceService
	Worker     WorkerService
	Export     ExportService
}

// NewService crea el agregado de servicios
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	logger *zap.Logger,
) (*Service, error) {
	attendance, err := NewAttendanceService(&cfg.Attendance, repo, logger)
	if err != nil {
		return nil, err
	}
	export, err := NewExportService(&cfg.Attendance, repo, logger)
	if err != nil {
		return nil, err
	}
	return &Service{
		Attendance: attendance,
		Worker:     NewWorkerService(repo, logger),
		Export:     export,
	}, nil
}
