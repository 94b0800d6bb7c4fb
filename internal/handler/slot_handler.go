package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/slotwise/booking-api/internal/models"
	"github.com/slotwise/booking-api/internal/service"
	appErrors "github.com/slotwise/booking-api/pkg/errors"
	"github.com/slotwise/booking-api/pkg/response"
)

// SlotHandler exposes slot generation and availability endpoints.
type SlotHandler struct {
	generator    *service.SlotGeneratorService
	availability *service.AvailabilityService
}

// NewSlotHandler constructs SlotHandler.
func NewSlotHandler(generator *service.SlotGeneratorService, availability *service.AvailabilityService) *SlotHandler {
	return &SlotHandler{generator: generator, availability: availability}
}

// GenerateSlotsRequest bounds a generation run.
type GenerateSlotsRequest struct {
	From time.Time `json:"from" binding:"required"`
	To   time.Time `json:"to" binding:"required"`
}

// Generate godoc
// @Summary Materialize bookable slots from the provider's windows
// @Description Idempotent: re-running over an overlapping range never
// @Description duplicates or mutates existing slots.
// @Tags Slots
// @Accept json
// @Produce json
// @Param id path string true "Provider ID"
// @Param payload body GenerateSlotsRequest true "Generation range"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /providers/{id}/slots/generate [post]
func (h *SlotHandler) Generate(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	providerID := c.Param("id")
	if providerID != claims.Subject {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "cannot generate slots for another provider"))
		return
	}
	var req GenerateSlotsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.generator.Generate(c.Request.Context(), providerID, req.From, req.To)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Availability godoc
// @Summary List free slots for a provider
// @Tags Slots
// @Produce json
// @Param id path string true "Provider ID"
// @Param from query string true "Range start (RFC 3339)"
// @Param to query string true "Range end (RFC 3339)"
// @Param resourceId query string false "Filter by resource"
// @Success 200 {object} response.Envelope
// @Router /providers/{id}/availability [get]
func (h *SlotHandler) Availability(c *gin.Context) {
	from, err := time.Parse(time.RFC3339, c.Query("from"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "from must be RFC 3339"))
		return
	}
	to, err := time.Parse(time.RFC3339, c.Query("to"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "to must be RFC 3339"))
		return
	}
	filter := models.AvailabilityFilter{
		ProviderID: c.Param("id"),
		From:       from,
		To:         to,
		ResourceID: c.Query("resourceId"),
	}
	slots, err := h.availability.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, nil)
}
