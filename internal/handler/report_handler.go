package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ssn-coe/rcms-api/internal/service"
	"github.com/ssn-coe/rcms-api/pkg/response"
)

// ReportHandler wires HTTP endpoints to the report service.
type ReportHandler struct {
	service *service.ReportService
}

// NewReportHandler creates a new handler.
func NewReportHandler(svc *service.ReportService) *ReportHandler {
	return &ReportHandler{service: svc}
}

// Data godoc
// @Summary Report data
// @Description Aggregated compliance figures for an academic year
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param academic_year query string false "Academic year, e.g. 2025-2026 (default current)"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /reports/data [get]
func (h *ReportHandler) Data(c *gin.Context) {
	data, err := h.service.Data(c.Request.Context(), claimsFromContext(c), c.Query("academic_year"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, data, nil)
}

// AnnualPDF godoc
// @Summary Annual PDF report
// @Description Render the annual compliance report as a PDF download
// @Tags Reports
// @Produce application/pdf
// @Security BearerAuth
// @Param academic_year query string false "Academic year (default current)"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /reports/annual/pdf [get]
func (h *ReportHandler) AnnualPDF(c *gin.Context) {
	payload, filename, err := h.service.AnnualPDF(c.Request.Context(), claimsFromContext(c), c.Query("academic_year"))
	if err != nil {
		response.Error(c, err)
		return
	}

	serveAttachment(c, "application/pdf", filename, payload)
}

// DepartmentPDF godoc
// @Summary Department PDF report
// @Description Render a single department's compliance report as a PDF download
// @Tags Reports
// @Produce application/pdf
// @Security BearerAuth
// @Param department path string true "Department name"
// @Param academic_year query string false "Academic year (default current)"
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /reports/department/{department}/pdf [get]
func (h *ReportHandler) DepartmentPDF(c *gin.Context) {
	payload, filename, err := h.service.DepartmentPDF(c.Request.Context(), claimsFromContext(c), c.Query("academic_year"), c.Param("department"))
	if err != nil {
		response.Error(c, err)
		return
	}

	serveAttachment(c, "application/pdf", filename, payload)
}

// CSV godoc
// @Summary CSV report export
// @Description Export per-department compliance figures as CSV
// @Tags Reports
// @Produce text/csv
// @Security BearerAuth
// @Param academic_year query string false "Academic year (default current)"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /reports/csv [get]
func (h *ReportHandler) CSV(c *gin.Context) {
	payload, filename, err := h.service.CSV(c.Request.Context(), claimsFromContext(c), c.Query("academic_year"))
	if err != nil {
		response.Error(c, err)
		return
	}

	serveAttachment(c, "text/csv", filename, payload)
}

func serveAttachment(c *gin.Context, contentType, filename string, payload []byte) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, payload)
}
