package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/CristhianMorales19/sistema-gestion-agricola-sub003/internal/dto"
	"github.com/CristhianMorales19/sistema-gestion-agricola-sub003/internal/service"
	"github.com/CristhianMorales19/sistema-gestion-agricola-sub003/pkg/response"
)

// AttendanceHandler handler HTTP del módulo de asistencia
type AttendanceHandler struct {
	attendanceSvc service.AttendanceService
	workerSvc     service.WorkerService
}

// NewAttendanceHandler crea AttendanceHandler
func NewAttendanceHandler(attendanceSvc service.AttendanceService, workerSvc service.WorkerService) *AttendanceHandler {
	return &AttendanceHandler{attendanceSvc: attendanceSvc, workerSvc: workerSvc}
}

// Health sonda de disponibilidad usada por el resolvedor de endpoints
// GET /api/asistencia/health
func (h *AttendanceHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, dto.HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// ListActiveWorkers trabajadores activos para el selector
// GET /api/asistencia/trabajadores-activos
func (h *AttendanceHandler) ListActiveWorkers(c *gin.Context) {
	workers, err := h.workerSvc.ListActive(c.Request.Context())
	if err != nil {
		response.InternalError(c)
		return
	}
	response.List(c, workers)
}

// ListTodayEntries entradas del día, más recientes primero
// GET /api/asistencia/entradas-hoy
func (h *AttendanceHandler) ListTodayEntries(c *gin.Context) {
	entries, err := h.attendanceSvc.ListTodayEntries(c.Request.Context())
	if err != nil {
		response.InternalError(c)
		return
	}
	response.List(c, entries)
}

// ListPendingExits entradas del día sin salida, más antiguas primero
// GET /api/asistencia/pendientes-salida
func (h *AttendanceHandler) ListPendingExits(c *gin.Context) {
	pending, err := h.attendanceSvc.ListPendingExits(c.Request.Context())
	if err != nil {
		response.InternalError(c)
		return
	}
	response.List(c, pending)
}

// RegisterEntry registra la entrada
// POST /api/asistencia/entrada
func (h *AttendanceHandler) RegisterEntry(c *gin.Context) {
	var req dto.RegisterEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, response.CodeValidation, bindingMessage(err), err.Error())
		return
	}

	rec, err := h.attendanceSvc.RegisterEntry(c.Request.Context(), &req, CallerID(c))
	if err != nil {
		h.handleAttendanceError(c, err)
		return
	}

	response.Created(c, rec)
}

// RegisterExit registra la salida
// POST /api/asistencia/salida
func (h *AttendanceHandler) RegisterExit(c *gin.Context) {
	var req dto.RegisterExitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, response.CodeValidation, bindingMessage(err), err.Error())
		return
	}

	rec, err := h.attendanceSvc.RegisterExit(c.Request.Context(), &req, CallerID(c))
	if err != nil {
		h.handleAttendanceError(c, err)
		return
	}

	response.OK(c, rec)
}

// bindingMessage mensaje para un cuerpo que no pasó la validación;
// el de trabajadorId solo cuando es ese campo el que falta
func bindingMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			if fe.Field() == "WorkerID" && fe.Tag() == "required" {
				return "trabajadorId es obligatorio"
			}
		}
	}
	return "Datos de la solicitud inválidos"
}

// WorkerDayStatus indica si el trabajador ya marcó entrada y si sigue abierta
// GET /api/asistencia/estado/:trabajadorId?fecha=YYYY-MM-DD
func (h *AttendanceHandler) WorkerDayStatus(c *gin.Context) {
	workerID, ok := MustGetWorkerID(c)
	if !ok {
		return
	}

	var req dto.WorkerDayStatusRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, response.CodeValidation, "Parámetros inválidos", err.Error())
		return
	}

	ctx := c.Request.Context()
	hasEntry, err := h.attendanceSvc.ExistsEntryToday(ctx, workerID, req.Date)
	if err != nil {
		h.handleAttendanceError(c, err)
		return
	}
	open, err := h.attendanceSvc.FindOpenEntry(ctx, workerID, req.Date)
	if err != nil {
		h.handleAttendanceError(c, err)
		return
	}

	status := dto.WorkerDayStatusResponse{
		WorkerID:  workerID,
		Date:      req.Date,
		HasEntry:  hasEntry,
		OpenEntry: open,
	}
	if open != nil {
		status.Date = open.Date
	}
	response.OK(c, status)
}

// WorkerHistory historial paginado de un trabajador
// GET /api/asistencia/historial/:trabajadorId?desde=&hasta=&page=&page_size=
func (h *AttendanceHandler) WorkerHistory(c *gin.Context) {
	workerID, ok := MustGetWorkerID(c)
	if !ok {
		return
	}

	var req dto.WorkerHistoryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, response.CodeValidation, "Parámetros inválidos", err.Error())
		return
	}

	items, total, err := h.attendanceSvc.ListWorkerHistory(c.Request.Context(), workerID, &req)
	if err != nil {
		h.handleAttendanceError(c, err)
		return
	}

	response.OK(c, gin.H{
		"list":      items,
		"total":     total,
		"page":      req.GetPage(),
		"page_size": req.GetPageSize(),
	})
}

// handleAttendanceError traduce errores de negocio a HTTP
func (h *AttendanceHandler) handleAttendanceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidWorkerID):
		response.BadRequest(c, response.CodeInvalidWorker, err.Error())
	case errors.Is(err, service.ErrInvalidDate),
		errors.Is(err, service.ErrInvalidRange):
		response.BadRequest(c, response.CodeInvalidDate, err.Error())
	case errors.Is(err, service.ErrFutureDate):
		response.BadRequest(c, response.CodeFutureDate, err.Error())
	case errors.Is(err, service.ErrInvalidTime):
		response.BadRequest(c, response.CodeInvalidTime, err.Error())
	case errors.Is(err, service.ErrInvalidExitTime):
		response.BadRequest(c, response.CodeInvalidExit, err.Error())
	case errors.Is(err, service.ErrWorkerNotFound):
		response.NotFound(c, response.CodeWorkerNotFound, err.Error())
	case errors.Is(err, service.ErrNoOpenEntry):
		response.NotFound(c, response.CodeNoOpenEntry, err.Error())
	case errors.Is(err, service.ErrDuplicateEntry):
		response.Conflict(c, response.CodeDuplicateEntry, err.Error())
	case errors.Is(err, service.ErrAlreadyClosed):
		response.Conflict(c, response.CodeAlreadyClosed, err.Error())
	default:
		response.InternalError(c)
	}
}
