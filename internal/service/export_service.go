package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/CristhianMorales19/sistema-gestion-agricola-sub003/config"
	"github.com/CristhianMorales19/sistema-gestion-agricola-sub003/internal/repository"
)

// ── errores del módulo de exportación ──

var (
	ErrExportNoRecords    = errors.New("No hay asistencias registradas para la fecha indicada")
	ErrExportGenerateFail = errors.New("No se pudo generar el archivo Excel")
)

// límite de filas de un reporte diario
const exportMaxRows = 5000

// ExportService reportes de asistencia.
// El reporte se devuelve en un bytes.Buffer; el handler fija las cabeceras HTTP.
type ExportService interface {
	// ExportDay asistencia de un día (vacío = hoy) en .xlsx
	ExportDay(ctx context.Context, date string) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo   *repository.Repository
	logger *zap.Logger
	loc    *time.Location
	now    func() time.Time
}

// NewExportService crea ExportService
func NewExportService(cfg *config.AttendanceConfig, repo *repository.Repository, logger *zap.Logger) (ExportService, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return &exportService{repo: repo, logger: logger, loc: loc, now: time.Now}, nil
}

// ═══════════════════════════════════════════════════════════
// ExportDay asistencia diaria a Excel
// ═══════════════════════════════════════════════════════════
//
// Formato:
//   - Hoja "Asistencia", fila 1 título, fila 2 encabezados
//   - Una fila por asistencia, ordenadas por hora de entrada
//   - Última fila: total de horas trabajadas

func (s *exportService) ExportDay(ctx context.Context, date string) (*bytes.Buffer, string, error) {
	day := calendarDay(s.now().In(s.loc))
	if date != "" {
		d, err := parseDate(date)
		if err != nil {
			return nil, "", err
		}
		day = d
	}

	recs, err := s.repo.Attendance.ListByDate(ctx, day, exportMaxRows)
	if err != nil {
		s.logger.Error("consulta de asistencias para exportar falló", zap.Time("date", day), zap.Error(err))
		return nil, "", err
	}
	if len(recs) == 0 {
		return nil, "", ErrExportNoRecords
	}

	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].EntryTime.Before(recs[j].EntryTime)
	})

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Asistencia"
	idx, _ := f.NewSheet(sheet)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	headers := []string{"Identificación", "Nombre", "Fecha", "Entrada", "Salida", "Horas", "Ubicación", "Observación", "Estado"}
	widths := []float64{16, 32, 12, 10, 10, 8, 24, 36, 12}
	for i, w := range widths {
		col := colName(i)
		f.SetColWidth(sheet, col, col, w)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#A9D08E"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	// título
	f.SetCellValue(sheet, "A1", fmt.Sprintf("Asistencia del %s", day.Format(dateLayout)))
	f.MergeCell(sheet, "A1", cell(colName(len(headers)-1), 1))
	f.SetCellStyle(sheet, "A1", "A1", headerStyle)

	// encabezados
	for i, h := range headers {
		f.SetCellValue(sheet, cell(colName(i), 2), h)
	}
	f.SetCellStyle(sheet, "A2", cell(colName(len(headers)-1), 2), headerStyle)

	// filas
	row := 3
	var total float64
	for _, r := range recs {
		ident, name := "", ""
		if r.Worker != nil {
			ident, name = r.Worker.Identification, r.Worker.FullName
		}
		values := []interface{}{
			ident,
			name,
			r.Date.Format(dateLayout),
			r.EntryTime.In(s.loc).Format(clockLayout),
			"-",
			"-",
			deref(r.Location),
			deref(r.Observation),
			r.Status,
		}
		if r.ExitTime != nil {
			values[4] = r.ExitTime.In(s.loc).Format(clockLayout)
		}
		if r.WorkedHours != nil {
			values[5] = *r.WorkedHours
			total += *r.WorkedHours
		}
		for i, v := range values {
			f.SetCellValue(sheet, cell(colName(i), row), v)
		}
		row++
	}

	f.SetCellValue(sheet, cell("E", row), "Total")
	f.SetCellValue(sheet, cell("F", row), math.Round(total*100)/100)
	f.SetCellStyle(sheet, cell("E", row), cell("F", row), headerStyle)

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("escritura de Excel falló", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("asistencia_%s.xlsx", day.Format(dateLayout))
	return buf, filename, nil
}

// ── helpers ──

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
