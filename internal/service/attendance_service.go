package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/CristhianMorales19/sistema-gestion-agricola-sub003/config"
	"github.com/CristhianMorales19/sistema-gestion-agricola-sub003/internal/dto"
	"github.com/CristhianMorales19/sistema-gestion-agricola-sub003/internal/model"
	"github.com/CristhianMorales19/sistema-gestion-agricola-sub003/internal/repository"
	pkgerrors "github.com/CristhianMorales19/sistema-gestion-agricola-sub003/pkg/errors"
)

// ── errores de negocio del módulo de asistencia ──

var (
	ErrInvalidWorkerID = errors.New("trabajadorId es obligatorio y debe ser un entero positivo")
	ErrInvalidDate     = errors.New("fecha inválida, se espera YYYY-MM-DD")
	ErrInvalidRange    = errors.New("el rango de fechas es inválido: desde es posterior a hasta")
	ErrFutureDate      = errors.New("No se puede registrar asistencia en una fecha futura")
	ErrInvalidTime     = errors.New("hora inválida, se espera HH:mm o HH:mm:ss")
	ErrWorkerNotFound  = errors.New("Trabajador no encontrado o inactivo")
	ErrDuplicateEntry  = errors.New("Ya existe una entrada registrada hoy para este trabajador")
	ErrNoOpenEntry     = errors.New("No existe registro de entrada pendiente de salida para hoy")
	ErrAlreadyClosed   = errors.New("Ya se registró la salida para este trabajador hoy")
	ErrInvalidExitTime = errors.New("La hora de salida no puede ser anterior a la hora de entrada")
)

const (
	dateLayout  = "2006-01-02"
	clockLayout = "15:04:05"
)

// texto libre (ubicación / observación) sin marcado
var freeText = bluemonday.StrictPolicy()

// AttendanceService reglas de entrada y salida diaria.
//
// Un trabajador tiene como máximo una asistencia por día; la salida solo
// cierra una entrada abierta del día en curso y nunca es anterior a ella.
// El "día" se evalúa en la zona horaria attendance.timezone.
type AttendanceService interface {
	// ExistsEntryToday date vacío = hoy
	ExistsEntryToday(ctx context.Context, workerID int64, date string) (bool, error)
	RegisterEntry(ctx context.Context, req *dto.RegisterEntryRequest, callerID string) (*dto.AttendanceResponse, error)
	// FindOpenEntry devuelve nil, nil si no hay entrada abierta
	FindOpenEntry(ctx context.Context, workerID int64, date string) (*dto.AttendanceResponse, error)
	RegisterExit(ctx context.Context, req *dto.RegisterExitRequest, callerID string) (*dto.AttendanceResponse, error)
	ListTodayEntries(ctx context.Context) ([]dto.TodayEntryResponse, error)
	ListPendingExits(ctx context.Context) ([]dto.PendingExitResponse, error)
	ListWorkerHistory(ctx context.Context, workerID int64, req *dto.WorkerHistoryRequest) ([]dto.AttendanceResponse, int64, error)
}

type attendanceService struct {
	repo     *repository.Repository
	logger   *zap.Logger
	loc      *time.Location
	pageSize int
	now      func() time.Time
}

// NewAttendanceService crea AttendanceService
func NewAttendanceService(cfg *config.AttendanceConfig, repo *repository.Repository, logger *zap.Logger) (AttendanceService, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	return &attendanceService{
		repo:     repo,
		logger:   logger,
		loc:      loc,
		pageSize: pageSize,
		now:      time.Now,
	}, nil
}

// ────────────────────── ExistsEntryToday ──────────────────────

func (s *attendanceService) ExistsEntryToday(ctx context.Context, workerID int64, date string) (bool, error) {
	if workerID <= 0 {
		return false, ErrInvalidWorkerID
	}
	day, err := s.resolveDate(date)
	if err != nil {
		return false, err
	}
	exists, err := s.repo.Attendance.ExistsByWorkerAndDate(ctx, workerID, day)
	if err != nil {
		s.logger.Error("consulta de entrada del día falló",
			zap.Int64("worker_id", workerID), zap.Time("date", day), zap.Error(err))
		return false, err
	}
	return exists, nil
}

// ────────────────────── RegisterEntry ──────────────────────

func (s *attendanceService) RegisterEntry(ctx context.Context, req *dto.RegisterEntryRequest, callerID string) (*dto.AttendanceResponse, error) {
	if req.WorkerID <= 0 {
		return nil, ErrInvalidWorkerID
	}

	day, err := s.resolveDate(req.Date)
	if err != nil {
		return nil, err
	}
	if day.After(s.today()) {
		return nil, ErrFutureDate
	}

	entry := s.now()
	if req.EntryTime != "" {
		entry, err = s.atClock(day, req.EntryTime)
		if err != nil {
			return nil, err
		}
	}

	if _, err := s.repo.Worker.GetActiveByID(ctx, req.WorkerID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWorkerNotFound
		}
		s.logger.Error("consulta de trabajador falló", zap.Int64("worker_id", req.WorkerID), zap.Error(err))
		return nil, err
	}

	// camino rápido; la restricción única cubre la carrera
	exists, err := s.repo.Attendance.ExistsByWorkerAndDate(ctx, req.WorkerID, day)
	if err != nil {
		s.logger.Error("consulta de entrada del día falló",
			zap.Int64("worker_id", req.WorkerID), zap.Time("date", day), zap.Error(err))
		return nil, err
	}
	if exists {
		return nil, ErrDuplicateEntry
	}

	rec := &model.AttendanceRecord{
		WorkerID:  req.WorkerID,
		Date:      day,
		EntryTime: entry,
		Location:  sanitizeText(req.Location),
		Status:    model.StatusIncomplete,
	}
	if callerID != "" {
		rec.CreatedBy = &callerID
		rec.UpdatedBy = &callerID
	}

	if err := s.repo.Attendance.CreateEntry(ctx, rec); err != nil {
		if errors.Is(err, pkgerrors.ErrDuplicateKey) {
			return nil, ErrDuplicateEntry
		}
		s.logger.Error("registro de entrada falló",
			zap.Int64("worker_id", req.WorkerID),
			zap.Time("date", day),
			zap.Time("entry_time", entry),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("entrada registrada",
		zap.Int64("attendance_id", rec.AttendanceID),
		zap.Int64("worker_id", rec.WorkerID),
		zap.String("date", rec.Date.Format(dateLayout)))

	return s.toAttendanceResponse(rec), nil
}

// ────────────────────── FindOpenEntry ──────────────────────

func (s *attendanceService) FindOpenEntry(ctx context.Context, workerID int64, date string) (*dto.AttendanceResponse, error) {
	if workerID <= 0 {
		return nil, ErrInvalidWorkerID
	}
	day, err := s.resolveDate(date)
	if err != nil {
		return nil, err
	}
	rec, err := s.findOpen(ctx, workerID, day)
	if err != nil || rec == nil {
		return nil, err
	}
	return s.toAttendanceResponse(rec), nil
}

func (s *attendanceService) findOpen(ctx context.Context, workerID int64, day time.Time) (*model.AttendanceRecord, error) {
	rec, err := s.repo.Attendance.FindOpenByWorkerAndDate(ctx, workerID, day)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		s.logger.Error("consulta de entrada abierta falló",
			zap.Int64("worker_id", workerID), zap.Time("date", day), zap.Error(err))
		return nil, err
	}
	return rec, nil
}

// ────────────────────── RegisterExit ──────────────────────

func (s *attendanceService) RegisterExit(ctx context.Context, req *dto.RegisterExitRequest, callerID string) (*dto.AttendanceResponse, error) {
	if req.WorkerID <= 0 {
		return nil, ErrInvalidWorkerID
	}

	day := s.today()
	open, err := s.findOpen(ctx, req.WorkerID, day)
	if err != nil {
		return nil, err
	}
	if open == nil {
		return nil, ErrNoOpenEntry
	}
	if !open.IsOpen() {
		return nil, ErrAlreadyClosed
	}

	exit := s.now()
	if req.ExitTime != "" {
		exit, err = s.atClock(open.Date, req.ExitTime)
		if err != nil {
			return nil, err
		}
	}
	if exit.Before(open.EntryTime) {
		return nil, ErrInvalidExitTime
	}

	hours := workedHours(open.EntryTime, exit)

	closed := *open
	closed.ExitTime = &exit
	closed.WorkedHours = &hours
	closed.Observation = sanitizeText(req.Observation)
	closed.Status = model.StatusComplete
	if callerID != "" {
		closed.UpdatedBy = &callerID
	}

	if err := s.repo.Attendance.CloseEntry(ctx, &closed); err != nil {
		if errors.Is(err, pkgerrors.ErrOptimisticLock) {
			return nil, ErrAlreadyClosed
		}
		s.logger.Error("registro de salida falló",
			zap.Int64("attendance_id", open.AttendanceID),
			zap.Int64("worker_id", req.WorkerID),
			zap.Time("entry_time", open.EntryTime),
			zap.Time("exit_time", exit),
			zap.Float64("worked_hours", hours),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("salida registrada",
		zap.Int64("attendance_id", closed.AttendanceID),
		zap.Int64("worker_id", closed.WorkerID),
		zap.Float64("worked_hours", hours))

	return s.toAttendanceResponse(&closed), nil
}

// ────────────────────── listados del día ──────────────────────

func (s *attendanceService) ListTodayEntries(ctx context.Context) ([]dto.TodayEntryResponse, error) {
	recs, err := s.repo.Attendance.ListByDate(ctx, s.today(), s.pageSize)
	if err != nil {
		s.logger.Error("listado de entradas del día falló", zap.Error(err))
		return nil, err
	}

	result := make([]dto.TodayEntryResponse, 0, len(recs))
	for i := range recs {
		item := dto.TodayEntryResponse{AttendanceResponse: *s.toAttendanceResponse(&recs[i])}
		if w := recs[i].Worker; w != nil {
			item.Identification = w.Identification
			item.FullName = w.FullName
		}
		result = append(result, item)
	}
	return result, nil
}

func (s *attendanceService) ListPendingExits(ctx context.Context) ([]dto.PendingExitResponse, error) {
	recs, err := s.repo.Attendance.ListOpenByDate(ctx, s.today(), s.pageSize)
	if err != nil {
		s.logger.Error("listado de salidas pendientes falló", zap.Error(err))
		return nil, err
	}

	result := make([]dto.PendingExitResponse, 0, len(recs))
	for i := range recs {
		item := dto.PendingExitResponse{
			AttendanceID: recs[i].AttendanceID,
			WorkerID:     recs[i].WorkerID,
			EntryTime:    s.formatClock(recs[i].EntryTime),
		}
		if w := recs[i].Worker; w != nil {
			item.Identification = w.Identification
			item.FullName = w.FullName
		}
		result = append(result, item)
	}
	return result, nil
}

// ────────────────────── ListWorkerHistory ──────────────────────

func (s *attendanceService) ListWorkerHistory(ctx context.Context, workerID int64, req *dto.WorkerHistoryRequest) ([]dto.AttendanceResponse, int64, error) {
	if workerID <= 0 {
		return nil, 0, ErrInvalidWorkerID
	}

	var from, to *time.Time
	if req.From != "" {
		d, err := parseDate(req.From)
		if err != nil {
			return nil, 0, err
		}
		from = &d
	}
	if req.To != "" {
		d, err := parseDate(req.To)
		if err != nil {
			return nil, 0, err
		}
		to = &d
	}
	if from != nil && to != nil && from.After(*to) {
		return nil, 0, ErrInvalidRange
	}

	recs, total, err := s.repo.Attendance.ListByWorker(ctx, workerID, from, to, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("historial de asistencia falló", zap.Int64("worker_id", workerID), zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.AttendanceResponse, 0, len(recs))
	for i := range recs {
		result = append(result, *s.toAttendanceResponse(&recs[i]))
	}
	return result, total, nil
}

// ── helpers de fecha y hora ──

// today día calendario actual en la zona configurada, como medianoche UTC
func (s *attendanceService) today() time.Time {
	return calendarDay(s.now().In(s.loc))
}

func (s *attendanceService) resolveDate(date string) (time.Time, error) {
	if date == "" {
		return s.today(), nil
	}
	return parseDate(date)
}

// atClock combina el día con HH:mm[:ss] en la zona configurada
func (s *attendanceService) atClock(day time.Time, clock string) (time.Time, error) {
	c, err := parseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), c.Hour(), c.Minute(), c.Second(), 0, s.loc), nil
}

func (s *attendanceService) formatClock(t time.Time) string {
	return t.In(s.loc).Format(clockLayout)
}

func (s *attendanceService) toAttendanceResponse(rec *model.AttendanceRecord) *dto.AttendanceResponse {
	resp := &dto.AttendanceResponse{
		ID:          rec.AttendanceID,
		WorkerID:    rec.WorkerID,
		Date:        rec.Date.Format(dateLayout),
		EntryTime:   s.formatClock(rec.EntryTime),
		WorkedHours: rec.WorkedHours,
		Location:    rec.Location,
		Observation: rec.Observation,
		Status:      rec.Status,
		CreatedAt:   rec.CreatedAt.UTC().Format(time.RFC3339),
	}
	if rec.ExitTime != nil {
		exit := s.formatClock(*rec.ExitTime)
		resp.ExitTime = &exit
	}
	return resp
}

func calendarDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func parseDate(s string) (time.Time, error) {
	d, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return d, nil
}

// parseClock acepta HH:mm y HH:mm:ss; HH:mm se completa con :00
func parseClock(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{clockLayout, "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ErrInvalidTime
}

// workedHours horas entre entrada y salida, redondeadas a 2 decimales
func workedHours(entry, exit time.Time) float64 {
	return math.Round(exit.Sub(entry).Hours()*100) / 100
}

// sanitizeText elimina marcado; vacío se guarda como NULL
func sanitizeText(s *string) *string {
	if s == nil {
		return nil
	}
	clean := strings.TrimSpace(freeText.Sanitize(*s))
	if clean == "" {
		return nil
	}
	return &clean
}
