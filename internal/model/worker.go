package model

import (
	"time"

	"gorm.io/gorm"
)

// Worker trabajador (tabla workers), propiedad de gestión de personal, solo lectura aquí
type Worker struct {
	WorkerID       int64          `gorm:"primaryKey"                  json:"worker_id"`
	Identification string         `gorm:"type:varchar(30);not null"   json:"identification"`
	FullName       string         `gorm:"type:varchar(200);not null"  json:"full_name"`
	IsActive       bool           `gorm:"not null;default:true"       json:"is_active"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index"                       json:"-"`
}

// TableName nombre de la tabla
func (Worker) TableName() string { return "workers" }
