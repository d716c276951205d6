package repository

import "gorm.io/gorm"

// Repository punto de acceso a todos los repositorios
type Repository struct {
	Attendance AttendanceRepository
	Worker     WorkerRepository
}

// NewRepository crea el agregado de repositorios
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		Attendance: NewAttendanceRepo(db),
		Worker:     NewWorkerRepo(db),
	}
}
