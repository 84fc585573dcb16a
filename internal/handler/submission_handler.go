package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ssn-coe/rcms-api/internal/models"
	"github.com/ssn-coe/rcms-api/internal/service"
	appErrors "github.com/ssn-coe/rcms-api/pkg/errors"
	"github.com/ssn-coe/rcms-api/pkg/response"
)

// SubmissionHandler wires HTTP endpoints to the submission service.
type SubmissionHandler struct {
	service *service.SubmissionService
	files   *service.FileService
}

// NewSubmissionHandler creates a new handler.
func NewSubmissionHandler(svc *service.SubmissionService, files *service.FileService) *SubmissionHandler {
	return &SubmissionHandler{service: svc, files: files}
}

// Create godoc
// @Summary Submit compliance proof
// @Description Submit or resubmit against a circular; accepts multipart with an optional proof file
// @Tags Submissions
// @Accept mpfd
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.CreateSubmissionRequest true "Submission payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /submissions [post]
func (h *SubmissionHandler) Create(c *gin.Context) {
	req, err := h.bindCreate(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	submission, err := h.service.Create(c.Request.Context(), claimsFromContext(c), *req)
	if err != nil {
		if req.FilePath != nil {
			h.files.Delete(*req.FilePath)
		}
		response.Error(c, err)
		return
	}

	response.Created(c, submission)
}

func (h *SubmissionHandler) bindCreate(c *gin.Context) (*models.CreateSubmissionRequest, error) {
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		var req models.CreateSubmissionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid submission payload")
		}
		return &req, nil
	}

	req := models.CreateSubmissionRequest{
		CircularID: c.PostForm("circular_id"),
		Remarks:    c.PostForm("remarks"),
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

	relPath, err := h.files.Save("submissions", header.Filename, header.Size, file)
	if err != nil {
		return nil, err
	}
	name := header.Filename
	req.FilePath = &relPath
	req.FileName = &name
	return &req, nil
}

// List godoc
// @Summary List submissions
// @Description List submissions under the caller's scope
// @Tags Submissions
// @Produce json
// @Security BearerAuth
// @Param status query string false "Filter by status"
// @Param circular_id query string false "Filter by circular"
// @Param department query string false "Filter by submitter department"
// @Success 200 {object} response.Envelope
// @Router /submissions [get]
func (h *SubmissionHandler) List(c *gin.Context) {
	filter := models.SubmissionFilter{
		CircularID: c.Query("circular_id"),
		Department: c.Query("department"),
	}
	if status := c.Query("status"); status != "" {
		s := models.SubmissionStatus(status)
		filter.Status = &s
	}

	submissions, err := h.service.List(c.Request.Context(), claimsFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, submissions, nil)
}

// Mine godoc
// @Summary List own submissions
// @Tags Submissions
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /submissions/my [get]
func (h *SubmissionHandler) Mine(c *gin.Context) {
	submissions, err := h.service.Mine(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, submissions, nil)
}

// Get godoc
// @Summary Get one submission
// @Tags Submissions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Submission id"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /submissions/{id} [get]
func (h *SubmissionHandler) Get(c *gin.Context) {
	submission, err := h.service.Get(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, submission, nil)
}

// Review godoc
// @Summary Review submission
// @Description Approve or reject a pending submission
// @Tags Submissions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Submission id"
// @Param payload body models.ReviewRequest true "Review decision"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /submissions/{id}/review [patch]
func (h *SubmissionHandler) Review(c *gin.Context) {
	var req models.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid review payload"))
		return
	}

	submission, err := h.service.Review(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, submission, nil)
}

// DownloadURL godoc
// @Summary Signed proof URL
// @Description Issue a short-lived download token for the submission proof file
// @Tags Submissions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Submission id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /submissions/{id}/download [get]
func (h *SubmissionHandler) DownloadURL(c *gin.Context) {
	submission, err := h.service.Get(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if submission.FilePath == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "submission has no proof file"))
		return
	}

	token, expiresAt, err := h.files.SignedURL(submission.ID, *submission.FilePath)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{
		"url":        fmt.Sprintf("/files/%s", token),
		"expires_at": expiresAt,
	}, nil)
}
