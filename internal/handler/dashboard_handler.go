package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ssn-coe/rcms-api/internal/service"
	"github.com/ssn-coe/rcms-api/pkg/response"
)

// DashboardHandler wires HTTP endpoints to the dashboard service.
type DashboardHandler struct {
	service *service.DashboardService
}

// NewDashboardHandler creates a new handler.
func NewDashboardHandler(svc *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{service: svc}
}

// Stats godoc
// @Summary Dashboard statistics
// @Description Role-shaped compliance statistics for the caller
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /dashboard/stats [get]
func (h *DashboardHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, stats, nil)
}

// Accreditation godoc
// @Summary Accreditation readiness
// @Description Per-regulation readiness scores across the institution
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /dashboard/accreditation [get]
func (h *DashboardHandler) Accreditation(c *gin.Context) {
	report, err := h.service.Accreditation(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, report, nil)
}

// Activity godoc
// @Summary Activity feed
// @Description Recent activity log entries under the caller's scope
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number (default 1)"
// @Param page_size query int false "Page size (default 20)"
// @Success 200 {object} response.Envelope
// @Router /dashboard/activity [get]
func (h *DashboardHandler) Activity(c *gin.Context) {
	logs, pagination, err := h.service.Activity(
		c.Request.Context(),
		claimsFromContext(c),
		queryInt(c, "page", 1),
		queryInt(c, "page_size", 20),
	)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, logs, pagination)
}
