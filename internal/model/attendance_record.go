package model

import "time"

// Estados de una asistencia
const (
	StatusIncomplete = "incompleta"
	StatusComplete   = "completa"
)

// AttendanceRecord asistencia diaria de un trabajador (tabla attendance_records)
type AttendanceRecord struct {
	AttendanceID int64      `gorm:"primaryKey;autoIncrement"                      json:"attendance_id"`
	WorkerID     int64      `gorm:"not null"                                      json:"worker_id"`
	Date         time.Time  `gorm:"type:date;not null"                            json:"date"`
	EntryTime    time.Time  `gorm:"not null"                                      json:"entry_time"`
	ExitTime     *time.Time `json:"exit_time,omitempty"`
	Location     *string    `gorm:"type:varchar(255)"                             json:"location,omitempty"`
	WorkedHours  *float64   `gorm:"type:numeric(5,2)"                             json:"worked_hours,omitempty"` // derivado en la salida
	Observation  *string    `gorm:"type:text"                                     json:"observation,omitempty"`
	Status       string     `gorm:"type:varchar(20);not null;default:'incompleta'" json:"status"`
	BaseModel

	Worker *Worker `gorm:"foreignKey:WorkerID;references:WorkerID" json:"worker,omitempty"`
}

// TableName nombre de la tabla
func (AttendanceRecord) TableName() string { return "attendance_records" }

// IsOpen entrada sin salida registrada
func (r *AttendanceRecord) IsOpen() bool {
	return r.ExitTime == nil && r.Status == StatusIncomplete
}
