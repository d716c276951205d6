package dto

// ── solicitudes de asistencia ──

// RegisterEntryRequest cuerpo de POST /entrada (también el formato de la cola offline)
type RegisterEntryRequest struct {
	WorkerID  int64   `json:"trabajadorId"          binding:"required"`
	Date      string  `json:"fecha,omitempty"       binding:"omitempty,datetime=2006-01-02"`
	EntryTime string  `json:"horaEntrada,omitempty" binding:"omitempty,max=8"`
	Location  *string `json:"ubicacion,omitempty"   binding:"omitempty,max=255"`
}

// RegisterExitRequest cuerpo de POST /salida
type RegisterExitRequest struct {
	WorkerID    int64   `json:"trabajadorId"          binding:"required"`
	ExitTime    string  `json:"horaSalida,omitempty"  binding:"omitempty,max=8"`
	Observation *string `json:"observacion,omitempty" binding:"omitempty,max=1000"`
}

// WorkerHistoryRequest filtros de GET /historial/:trabajadorId
type WorkerHistoryRequest struct {
	PaginationRequest
	From string `form:"desde" binding:"omitempty,datetime=2006-01-02"`
	To   string `form:"hasta" binding:"omitempty,datetime=2006-01-02"`
}

// ExportRequest filtros de GET /export
type ExportRequest struct {
	Date string `form:"fecha" binding:"omitempty,datetime=2006-01-02"`
}

// ── respuestas de asistencia ──

// AttendanceResponse asistencia persistida
type AttendanceResponse struct {
	ID          int64    `json:"id"`
	WorkerID    int64    `json:"trabajadorId"`
	Date        string   `json:"fecha"`
	EntryTime   string   `json:"horaEntrada"`
	ExitTime    *string  `json:"horaSalida"`
	WorkedHours *float64 `json:"horasTrabajadas"`
	Location    *string  `json:"ubicacion"`
	Observation *string  `json:"observacion,omitempty"`
	Status      string   `json:"estado"`
	CreatedAt   string   `json:"creadoEn"`
}

// TodayEntryResponse fila de GET /entradas-hoy
type TodayEntryResponse struct {
	AttendanceResponse
	Identification string `json:"documento_identidad"`
	FullName       string `json:"nombre_completo"`
}

// PendingExitResponse fila de GET /pendientes-salida
type PendingExitResponse struct {
	AttendanceID   int64  `json:"asistenciaId"`
	WorkerID       int64  `json:"trabajadorId"`
	Identification string `json:"documento_identidad"`
	FullName       string `json:"nombre_completo"`
	EntryTime      string `json:"horaEntrada"`
}

// ActiveWorkerResponse fila de GET /trabajadores-activos (formato de opción de select)
type ActiveWorkerResponse struct {
	Value          int64  `json:"value"`
	Label          string `json:"label"`
	WorkerID       int64  `json:"trabajador_id"`
	Identification string `json:"documento_identidad"`
	FullName       string `json:"nombre_completo"`
}

// HealthResponse GET /health
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// WorkerDayStatusResponse GET /estado/:trabajadorId
type WorkerDayStatusResponse struct {
	WorkerID  int64               `json:"trabajadorId"`
	Date      string              `json:"fecha,omitempty"`
	HasEntry  bool                `json:"tieneEntrada"`
	OpenEntry *AttendanceResponse `json:"entradaAbierta"`
}

// WorkerDayStatusRequest filtros de GET /estado/:trabajadorId
type WorkerDayStatusRequest struct {
	Date string `form:"fecha" binding:"omitempty,datetime=2006-01-02"`
}
