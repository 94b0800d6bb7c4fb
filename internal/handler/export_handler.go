package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/slotwise/booking-api/internal/service"
	appErrors "github.com/slotwise/booking-api/pkg/errors"
	"github.com/slotwise/booking-api/pkg/response"
)

// ExportHandler streams provider day sheets.
type ExportHandler struct {
	exports *service.ExportService
}

// NewExportHandler constructs ExportHandler.
func NewExportHandler(exports *service.ExportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// DaySheet godoc
// @Summary Download a provider day sheet
// @Tags Exports
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Provider ID"
// @Param date query string true "Calendar day (YYYY-MM-DD)"
// @Param tz query string false "Timezone for the day boundary (IANA name)"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Security BearerAuth
// @Router /providers/{id}/day-sheet [get]
func (h *ExportHandler) DaySheet(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	providerID := c.Param("id")
	if providerID != claims.Subject {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "day sheet belongs to another provider"))
		return
	}
	date, err := time.Parse("2006-01-02", c.Query("date"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD"))
		return
	}
	format := service.DaySheetFormat(c.DefaultQuery("format", "csv"))

	sheet, err := h.exports.DaySheet(c.Request.Context(), providerID, date, c.Query("tz"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+sheet.Filename+`"`)
	c.Data(http.StatusOK, sheet.ContentType, sheet.Payload)
}
