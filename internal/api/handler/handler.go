package handler

import "github.com/CristhianMorales19/sistema-gestion-agricola-sub003/internal/service"

// Handler punto de entrada de todos los handlers
type Handler struct {
	Attendance *AttendanceHandler
	Export     *ExportHandler
}

// NewHandler crea el agregado de handlers
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Attendance: NewAttendanceHandler(svc.Attendance, svc.Worker),
		Export:     NewExportHandler(svc.Export),
	}
}
