package handler

import (
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ssn-coe/rcms-api/internal/models"
	"github.com/ssn-coe/rcms-api/internal/service"
	appErrors "github.com/ssn-coe/rcms-api/pkg/errors"
	"github.com/ssn-coe/rcms-api/pkg/response"
)

// ChatHandler wires HTTP endpoints to the chat service.
type ChatHandler struct {
	service *service.ChatService
	files   *service.FileService
}

// NewChatHandler creates a new handler.
func NewChatHandler(svc *service.ChatService, files *service.FileService) *ChatHandler {
	return &ChatHandler{service: svc, files: files}
}

// SendDirect godoc
// @Summary Send direct message
// @Description Send a text or file message to another user
// @Tags Chat
// @Accept mpfd
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.SendDirectMessageRequest true "Message payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /chat/direct [post]
func (h *ChatHandler) SendDirect(c *gin.Context) {
	var req models.SendDirectMessageRequest
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		req.ReceiverID = c.PostForm("receiver_id")
		req.Message = c.PostForm("message")
		if err := h.attachUpload(c, &req.FilePath, &req.FileName); err != nil {
			response.Error(c, err)
			return
		}
	} else if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid message payload"))
		return
	}

	message, err := h.service.SendDirect(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		if req.FilePath != nil {
			h.files.Delete(*req.FilePath)
		}
		response.Error(c, err)
		return
	}

	response.Created(c, message)
}

// SendGroup godoc
// @Summary Send group message
// @Description Post a message to one of the caller's chat groups
// @Tags Chat
// @Accept mpfd
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.SendGroupMessageRequest true "Message payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /chat/group [post]
func (h *ChatHandler) SendGroup(c *gin.Context) {
	var req models.SendGroupMessageRequest
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		req.GroupName = c.PostForm("group_name")
		req.Message = c.PostForm("message")
		if err := h.attachUpload(c, &req.FilePath, &req.FileName); err != nil {
			response.Error(c, err)
			return
		}
	} else if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid message payload"))
		return
	}

	message, err := h.service.SendGroup(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		if req.FilePath != nil {
			h.files.Delete(*req.FilePath)
		}
		response.Error(c, err)
		return
	}

	response.Created(c, message)
}

func (h *ChatHandler) attachUpload(c *gin.Context, filePath, fileName **string) error {
	header, err := c.FormFile("file")
	if err != nil {
		return nil
	}
	file, err := header.Open()
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to read upload")
	}
	defer func(f multipart.File) { _ = f.Close() }(file)

	relPath, err := h.files.Save("chat", header.Filename, header.Size, file)
	if err != nil {
		return err
	}
	name := header.Filename
	*filePath = &relPath
	*fileName = &name
	return nil
}

// DirectHistory godoc
// @Summary Direct message history
// @Description Conversation between the caller and a peer, oldest first
// @Tags Chat
// @Produce json
// @Security BearerAuth
// @Param id path string true "Peer user id"
// @Param limit query int false "Maximum messages (default 50)"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /chat/direct/{id} [get]
func (h *ChatHandler) DirectHistory(c *gin.Context) {
	messages, err := h.service.DirectHistory(c.Request.Context(), claimsFromContext(c), c.Param("id"), queryInt(c, "limit", 50))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, messages, nil)
}

// GroupHistory godoc
// @Summary Group message history
// @Tags Chat
// @Produce json
// @Security BearerAuth
// @Param name path string true "Group name"
// @Param limit query int false "Maximum messages (default 50)"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /chat/group/{name} [get]
func (h *ChatHandler) GroupHistory(c *gin.Context) {
	messages, err := h.service.GroupHistory(c.Request.Context(), claimsFromContext(c), c.Param("name"), queryInt(c, "limit", 50))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, messages, nil)
}

// Contacts godoc
// @Summary Chat contacts
// @Description Users the caller may message, with last-message previews
// @Tags Chat
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /chat/contacts [get]
func (h *ChatHandler) Contacts(c *gin.Context) {
	contacts, err := h.service.Contacts(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, contacts, nil)
}

// Groups godoc
// @Summary Chat groups
// @Description Groups the caller belongs to, with last-message previews
// @Tags Chat
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /chat/groups [get]
func (h *ChatHandler) Groups(c *gin.Context) {
	groups, err := h.service.Groups(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, groups, nil)
}
