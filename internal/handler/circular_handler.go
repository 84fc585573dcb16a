package handler

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ssn-coe/rcms-api/internal/models"
	"github.com/ssn-coe/rcms-api/internal/service"
	appErrors "github.com/ssn-coe/rcms-api/pkg/errors"
	"github.com/ssn-coe/rcms-api/pkg/response"
)

// CircularHandler wires HTTP endpoints to the circular service.
type CircularHandler struct {
	service *service.CircularService
	files   *service.FileService
}

// NewCircularHandler creates a new handler.
func NewCircularHandler(svc *service.CircularService, files *service.FileService) *CircularHandler {
	return &CircularHandler{service: svc, files: files}
}

// Create godoc
// @Summary Publish circular
// @Description Publish a circular, fanning notifications out to the target departments
// @Tags Circulars
// @Accept mpfd
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.CreateCircularRequest true "Circular payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /circulars [post]
func (h *CircularHandler) Create(c *gin.Context) {
	req, err := h.bindCreate(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	circular, err := h.service.Create(c.Request.Context(), claimsFromContext(c), *req)
	if err != nil {
		if req.FilePath != nil {
			h.files.Delete(*req.FilePath)
		}
		response.Error(c, err)
		return
	}

	response.Created(c, circular)
}

func (h *CircularHandler) bindCreate(c *gin.Context) (*models.CreateCircularRequest, error) {
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		var req models.CreateCircularRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid circular payload")
		}
		return &req, nil
	}

	req := models.CreateCircularRequest{
		Title:          c.PostForm("title"),
		Description:    c.PostForm("description"),
		Category:       c.PostForm("category"),
		RegulationType: c.PostForm("regulation_type"),
		AcademicYear:   c.PostForm("academic_year"),
		Priority:       c.PostForm("priority"),
	}
	if targets := c.PostForm("target_departments"); targets != "" {
		req.TargetDepartments = strings.Split(targets, ",")
	}
	if deadline := c.PostForm("deadline"); deadline != "" {
		parsed, err := parseDate(deadline)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "deadline must be RFC3339 or YYYY-MM-DD")
		}
		req.Deadline = &parsed
	}

	header, err := c.FormFile("file")
	if err != nil {
		return &req, nil
	}
	file, err := header.Open()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to read upload")
	}
	defer file.Close() //nolint:errcheck

	relPath, err := h.files.Save("circulars", header.Filename, header.Size, file)
	if err != nil {
		return nil, err
	}
	name := header.Filename
	req.FilePath = &relPath
	req.FileName = &name
	return &req, nil
}

// List godoc
// @Summary List circulars
// @Description List circulars under the caller's scope with the caller's own submission attached
// @Tags Circulars
// @Produce json
// @Security BearerAuth
// @Param category query string false "Filter by category"
// @Param status query string false "Filter by status"
// @Param regulation_type query string false "Filter by regulation type"
// @Param academic_year query string false "Filter by academic year"
// @Param search query string false "Title or description substring"
// @Success 200 {object} response.Envelope
// @Router /circulars [get]
func (h *CircularHandler) List(c *gin.Context) {
	filter := models.CircularFilter{
		Category:       c.Query("category"),
		RegulationType: c.Query("regulation_type"),
		AcademicYear:   c.Query("academic_year"),
		Search:         c.Query("search"),
	}
	if status := c.Query("status"); status != "" {
		s := models.CircularStatus(status)
		filter.Status = &s
	}

	circulars, err := h.service.List(c.Request.Context(), claimsFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, circulars, nil)
}

// Get godoc
// @Summary Get one circular
// @Description Return a circular; reviewers additionally get its submissions
// @Tags Circulars
// @Produce json
// @Security BearerAuth
// @Param id path string true "Circular id"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /circulars/{id} [get]
func (h *CircularHandler) Get(c *gin.Context) {
	detail, err := h.service.Get(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, detail, nil)
}

// Update godoc
// @Summary Update circular
// @Tags Circulars
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Circular id"
// @Param payload body models.UpdateCircularRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /circulars/{id} [put]
func (h *CircularHandler) Update(c *gin.Context) {
	var req models.UpdateCircularRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid circular payload"))
		return
	}

	circular, err := h.service.Update(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, circular, nil)
}

// Delete godoc
// @Summary Delete circular
// @Description Remove a circular along with its submissions and notifications
// @Tags Circulars
// @Produce json
// @Security BearerAuth
// @Param id path string true "Circular id"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /circulars/{id} [delete]
func (h *CircularHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), claimsFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// CategorySummary godoc
// @Summary Category rollup
// @Description Per-category compliance rollup under the caller's scope
// @Tags Circulars
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /circulars/categories/summary [get]
func (h *CircularHandler) CategorySummary(c *gin.Context) {
	summary, err := h.service.CategorySummary(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, summary, nil)
}

// DownloadURL godoc
// @Summary Signed attachment URL
// @Description Issue a short-lived download token for the circular attachment
// @Tags Circulars
// @Produce json
// @Security BearerAuth
// @Param id path string true "Circular id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /circulars/{id}/download [get]
func (h *CircularHandler) DownloadURL(c *gin.Context) {
	detail, err := h.service.Get(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if detail.FilePath == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "circular has no attachment"))
		return
	}

	token, expiresAt, err := h.files.SignedURL(detail.ID, *detail.FilePath)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{
		"url":        fmt.Sprintf("/files/%s", token),
		"expires_at": expiresAt,
	}, nil)
}

func parseDate(value string) (time.Time, error) {
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return parsed, nil
	}
	return time.Parse("2006-01-02", value)
}
