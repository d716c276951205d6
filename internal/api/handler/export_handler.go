package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/CristhianMorales19/sistema-gestion-agricola-sub003/internal/dto"
	"github.com/CristhianMorales19/sistema-gestion-agricola-sub003/internal/service"
	"github.com/CristhianMorales19/sistema-gestion-agricola-sub003/pkg/response"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportHandler handler HTTP de reportes
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler crea ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// ExportDay descarga la asistencia de un día en Excel
// GET /api/asistencia/export?fecha=YYYY-MM-DD
func (h *ExportHandler) ExportDay(c *gin.Context) {
	var req dto.ExportRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, response.CodeValidation, "fecha inválida, se espera YYYY-MM-DD", err.Error())
		return
	}

	buf, filename, err := h.exportSvc.ExportDay(c.Request.Context(), req.Date)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.QueryEscape(filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (h *ExportHandler) handleExportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidDate):
		response.BadRequest(c, response.CodeExportDate, err.Error())
	case errors.Is(err, service.ErrExportNoRecords):
		response.NotFound(c, response.CodeExportEmpty, err.Error())
	default:
		response.InternalError(c)
	}
}
