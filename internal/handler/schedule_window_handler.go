package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/slotwise/booking-api/internal/models"
	"github.com/slotwise/booking-api/internal/service"
	appErrors "github.com/slotwise/booking-api/pkg/errors"
	"github.com/slotwise/booking-api/pkg/response"
)

// ScheduleWindowHandler exposes recurring availability window endpoints.
type ScheduleWindowHandler struct {
	schedules *service.ScheduleService
}

// NewScheduleWindowHandler constructs ScheduleWindowHandler.
func NewScheduleWindowHandler(schedules *service.ScheduleService) *ScheduleWindowHandler {
	return &ScheduleWindowHandler{schedules: schedules}
}

// Create godoc
// @Summary Define a recurring schedule window
// @Tags Schedule
// @Accept json
// @Produce json
// @Param payload body service.DefineWindowRequest true "Window payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /windows [post]
func (h *ScheduleWindowHandler) Create(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.DefineWindowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	window, err := h.schedules.DefineWindow(c.Request.Context(), claims.Subject, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, window)
}

// List godoc
// @Summary List the caller's schedule windows
// @Tags Schedule
// @Produce json
// @Param dayOfWeek query int false "Filter by weekday (0=Sunday)"
// @Param active query bool false "Only active windows"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /windows [get]
func (h *ScheduleWindowHandler) List(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	filter := models.ScheduleWindowFilter{ProviderID: claims.Subject}
	if raw := c.Query("dayOfWeek"); raw != "" {
		if day, err := strconv.Atoi(raw); err == nil {
			filter.DayOfWeek = &day
		}
	}
	if c.Query("active") == "true" {
		filter.ActiveOnly = true
	}
	windows, err := h.schedules.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, windows, nil)
}

// Deactivate godoc
// @Summary Deactivate a schedule window
// @Description Stops future generation from the window. Slots already
// @Description materialized from it are not touched.
// @Tags Schedule
// @Produce json
// @Param id path string true "Window ID"
// @Success 204
// @Security BearerAuth
// @Router /windows/{id} [delete]
func (h *ScheduleWindowHandler) Deactivate(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.schedules.Deactivate(c.Request.Context(), claims.Subject, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
