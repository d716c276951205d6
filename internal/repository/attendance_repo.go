package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/CristhianMorales19/sistema-gestion-agricola-sub003/internal/model"
	pkgerrors "github.com/CristhianMorales19/sistema-gestion-agricola-sub003/pkg/errors"
)

// AttendanceRepository acceso a datos de asistencias.
// Las fechas (date) se pasan como medianoche UTC del día calendario.
type AttendanceRepository interface {
	ExistsByWorkerAndDate(ctx context.Context, workerID int64, date time.Time) (bool, error)
	// CreateEntry inserta de forma atómica; ErrDuplicateKey si ya hay asistencia ese día.
	CreateEntry(ctx context.Context, rec *model.AttendanceRecord) error
	FindOpenByWorkerAndDate(ctx context.Context, workerID int64, date time.Time) (*model.AttendanceRecord, error)
	// CloseEntry registra la salida solo si sigue abierta; ErrOptimisticLock si no.
	CloseEntry(ctx context.Context, rec *model.AttendanceRecord) error
	ListByDate(ctx context.Context, date time.Time, limit int) ([]model.AttendanceRecord, error)
	ListOpenByDate(ctx context.Context, date time.Time, limit int) ([]model.AttendanceRecord, error)
	ListByWorker(ctx context.Context, workerID int64, from, to *time.Time, offset, limit int) ([]model.AttendanceRecord, int64, error)
}

type attendanceRepo struct {
	db *gorm.DB
}

// NewAttendanceRepo crea AttendanceRepository
func NewAttendanceRepo(db *gorm.DB) AttendanceRepository {
	return &attendanceRepo{db: db}
}

func (r *attendanceRepo) ExistsByWorkerAndDate(ctx context.Context, workerID int64, date time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.AttendanceRecord{}).
		Where("worker_id = ? AND date = ?", workerID, date).
		Count(&count).Error
	return count > 0, err
}

func (r *attendanceRepo) CreateEntry(ctx context.Context, rec *model.AttendanceRecord) error {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "worker_id"}, {Name: "date"}},
			DoNothing: true,
		}).
		Create(rec)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return pkgerrors.ErrDuplicateKey
		}
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrDuplicateKey
	}
	return nil
}

func (r *attendanceRepo) FindOpenByWorkerAndDate(ctx context.Context, workerID int64, date time.Time) (*model.AttendanceRecord, error) {
	var rec model.AttendanceRecord
	err := r.db.WithContext(ctx).
		Where("worker_id = ? AND date = ? AND exit_time IS NULL", workerID, date).
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *attendanceRepo) CloseEntry(ctx context.Context, rec *model.AttendanceRecord) error {
	result := r.db.WithContext(ctx).
		Model(&model.AttendanceRecord{}).
		Where("attendance_id = ? AND exit_time IS NULL", rec.AttendanceID).
		Updates(map[string]interface{}{
			"exit_time":    rec.ExitTime,
			"worked_hours": rec.WorkedHours,
			"observation":  rec.Observation,
			"status":       rec.Status,
			"updated_by":   rec.UpdatedBy,
			"updated_at":   gorm.Expr("NOW()"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	return nil
}

func (r *attendanceRepo) ListByDate(ctx context.Context, date time.Time, limit int) ([]model.AttendanceRecord, error) {
	var recs []model.AttendanceRecord
	err := r.withWorker(ctx).
		Where("date = ?", date).
		Order("created_at DESC, attendance_id DESC").
		Limit(limit).
		Find(&recs).Error
	return recs, err
}

func (r *attendanceRepo) ListOpenByDate(ctx context.Context, date time.Time, limit int) ([]model.AttendanceRecord, error) {
	var recs []model.AttendanceRecord
	err := r.withWorker(ctx).
		Where("date = ? AND exit_time IS NULL", date).
		Order("entry_time ASC, attendance_id ASC").
		Limit(limit).
		Find(&recs).Error
	return recs, err
}

func (r *attendanceRepo) ListByWorker(ctx context.Context, workerID int64, from, to *time.Time, offset, limit int) ([]model.AttendanceRecord, int64, error) {
	var recs []model.AttendanceRecord
	var total int64

	db := r.db.WithContext(ctx).Model(&model.AttendanceRecord{}).
		Where("worker_id = ?", workerID)
	if from != nil {
		db = db.Where("date >= ?", *from)
	}
	if to != nil {
		db = db.Where("date <= ?", *to)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.Offset(offset).Limit(limit).
		Order("date DESC").
		Find(&recs).Error
	return recs, total, err
}

// withWorker precarga la identidad del trabajador aunque esté dado de baja
func (r *attendanceRepo) withWorker(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Worker", func(db *gorm.DB) *gorm.DB {
		return db.Unscoped()
	})
}
