package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ssn-coe/rcms-api/internal/service"
	appErrors "github.com/ssn-coe/rcms-api/pkg/errors"
	"github.com/ssn-coe/rcms-api/pkg/response"
)

// FileHandler streams uploaded files against signed download tokens.
type FileHandler struct {
	service *service.FileService
}

// NewFileHandler creates a new handler.
func NewFileHandler(svc *service.FileService) *FileHandler {
	return &FileHandler{service: svc}
}

// Download godoc
// @Summary Download file
// @Description Stream a file referenced by a signed download token
// @Tags Files
// @Produce application/octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /files/{token} [get]
func (h *FileHandler) Download(c *gin.Context) {
	file, name, err := h.service.OpenSigned(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to stat file"))
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.DataFromReader(http.StatusOK, info.Size(), "application/octet-stream", file, nil)
}
