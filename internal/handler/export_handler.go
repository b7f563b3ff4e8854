package handler

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/referral-bot/internal/models"
	"github.com/noah-isme/referral-bot/pkg/response"
)

type leadExporter interface {
	Leads(ctx context.Context, format models.ExportFormat) (*models.ExportFile, error)
}

// ExportHandler streams lead exports.
type ExportHandler struct {
	service leadExporter
}

// NewExportHandler constructs an ExportHandler.
func NewExportHandler(svc leadExporter) *ExportHandler {
	return &ExportHandler{service: svc}
}

// Leads godoc
// @Summary Export leads
// @Description Every lead flattened with its participant, as CSV or PDF
// @Tags Exports
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /leads/export [get]
func (h *ExportHandler) Leads(c *gin.Context) {
	format := models.ExportFormat(strings.ToLower(c.DefaultQuery("format", string(models.ExportFormatCSV))))

	file, err := h.service.Leads(c.Request.Context(), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}
