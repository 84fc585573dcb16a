package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ssn-coe/rcms-api/internal/models"
	"github.com/ssn-coe/rcms-api/internal/notify"
	"github.com/ssn-coe/rcms-api/internal/policy"
	"github.com/ssn-coe/rcms-api/internal/repository"
	appErrors "github.com/ssn-coe/rcms-api/pkg/errors"
)

type chatRepository interface {
	CreateWithNotifications(ctx context.Context, message *models.ChatMessage, notifications []models.Notification) error
	DirectHistory(ctx context.Context, userA, userB string, limit int) ([]models.ChatMessage, error)
	GroupHistory(ctx context.Context, groupName string, limit int) ([]models.ChatMessage, error)
	LatestDirectPreviews(ctx context.Context, viewerID string) ([]repository.PeerPreview, error)
	LatestGroupPreviews(ctx context.Context, groups []string) ([]repository.GroupPreview, error)
}

type chatDirectory interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	ActiveInDepartments(ctx context.Context, departments []string) ([]models.User, error)
}

// ChatService provides direct and group messaging gated by the role
// permission matrix.
type ChatService struct {
	repo      chatRepository
	users     chatDirectory
	router    *notify.Router
	mailer    mailDispatcher
	validator *validator.Validate
	logger    *zap.Logger
}

// NewChatService constructs a ChatService instance.
func NewChatService(repo chatRepository, users chatDirectory, router *notify.Router, mailer mailDispatcher, validate *validator.Validate, logger *zap.Logger) *ChatService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ChatService{repo: repo, users: users, router: router, mailer: mailer, validator: validate, logger: logger}
}

// SendDirect delivers a direct message when the permission matrix
// allows the sender to address the receiver. The receiver gets an
// in-platform notification and an email.
func (s *ChatService) SendDirect(ctx context.Context, actor *models.JWTClaims, req models.SendDirectMessageRequest) (*models.ChatMessage, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid message payload")
	}
	if req.Message == "" && req.FilePath == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "message text or file is required")
	}

	sender, err := s.users.FindByID(ctx, actor.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sender")
	}
	receiver, err := s.users.FindByID(ctx, req.ReceiverID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "receiver not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load receiver")
	}
	if !receiver.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "receiver account is disabled")
	}
	if !policy.CanMessage(sender.Role, receiver.Role) {
		return nil, appErrors.PermissionDeniedf("%s accounts cannot message %s accounts", sender.Role, receiver.Role)
	}

	messageType := models.ChatMessageTypeText
	if req.FilePath != nil {
		messageType = models.ChatMessageTypeFile
	}
	message := &models.ChatMessage{
		SenderID:    sender.ID,
		ReceiverID:  &receiver.ID,
		Message:     req.Message,
		MessageType: messageType,
		FilePath:    req.FilePath,
		FileName:    req.FileName,
	}

	fanout := s.router.DirectMessage(sender, receiver, req.Message)
	if err := s.repo.CreateWithNotifications(ctx, message, fanout.Notifications); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to send message")
	}
	s.mailer.Dispatch(fanout.Emails...)

	message.SenderName = sender.Name
	message.SenderRole = sender.Role
	return message, nil
}

// SendGroup posts into a chat group the sender belongs to. Group
// messages carry no notification fan-out.
func (s *ChatService) SendGroup(ctx context.Context, actor *models.JWTClaims, req models.SendGroupMessageRequest) (*models.ChatMessage, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid message payload")
	}
	if req.Message == "" && req.FilePath == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "message text or file is required")
	}

	sender, err := s.users.FindByID(ctx, actor.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sender")
	}
	if !policy.CanPostToGroup(sender, req.GroupName) {
		return nil, appErrors.PermissionDeniedf("you are not a member of %q", req.GroupName)
	}

	messageType := models.ChatMessageTypeText
	if req.FilePath != nil {
		messageType = models.ChatMessageTypeFile
	}
	message := &models.ChatMessage{
		SenderID:    sender.ID,
		GroupName:   &req.GroupName,
		Message:     req.Message,
		MessageType: messageType,
		FilePath:    req.FilePath,
		FileName:    req.FileName,
	}

	if err := s.repo.CreateWithNotifications(ctx, message, nil); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to send message")
	}

	message.SenderName = sender.Name
	message.SenderRole = sender.Role
	return message, nil
}

// DirectHistory returns the conversation with one peer.
func (s *ChatService) DirectHistory(ctx context.Context, actor *models.JWTClaims, peerID string, limit int) ([]models.ChatMessage, error) {
	peer, err := s.users.FindByID(ctx, peerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if !policy.CanMessage(actor.Role, peer.Role) && !policy.CanMessage(peer.Role, actor.Role) {
		return nil, appErrors.PermissionDeniedf("%s accounts have no conversation with %s accounts", actor.Role, peer.Role)
	}

	messages, err := s.repo.DirectHistory(ctx, actor.UserID, peerID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load conversation")
	}
	return messages, nil
}

// GroupHistory returns a group's messages for a member.
func (s *ChatService) GroupHistory(ctx context.Context, actor *models.JWTClaims, groupName string, limit int) ([]models.ChatMessage, error) {
	viewer, err := s.users.FindByID(ctx, actor.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if !policy.CanPostToGroup(viewer, groupName) {
		return nil, appErrors.PermissionDeniedf("you are not a member of %q", groupName)
	}

	messages, err := s.repo.GroupHistory(ctx, groupName, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group")
	}
	return messages, nil
}

// Contacts lists the peers the viewer may message, with the latest
// exchanged message attached.
func (s *ChatService) Contacts(ctx context.Context, actor *models.JWTClaims) ([]models.Contact, error) {
	users, err := s.users.ActiveInDepartments(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load users")
	}

	previews, err := s.repo.LatestDirectPreviews(ctx, actor.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load conversations")
	}
	byPeer := make(map[string]repository.PeerPreview, len(previews))
	for _, p := range previews {
		byPeer[p.PeerID] = p
	}

	var contacts []models.Contact
	for _, u := range users {
		if u.ID == actor.UserID {
			continue
		}
		if !policy.CanMessage(actor.Role, u.Role) && !policy.CanMessage(u.Role, actor.Role) {
			continue
		}
		contact := models.Contact{ID: u.ID, Name: u.Name, Role: u.Role, Department: u.Department}
		if p, ok := byPeer[u.ID]; ok {
			msg := p.Message
			ts := p.CreatedAt
			contact.LastMessage = &msg
			contact.LastMessageTime = &ts
		}
		contacts = append(contacts, contact)
	}
	return contacts, nil
}

// Groups lists the viewer's chat groups with the latest message in
// each.
func (s *ChatService) Groups(ctx context.Context, actor *models.JWTClaims) ([]models.ChatGroup, error) {
	viewer, err := s.users.FindByID(ctx, actor.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	names := policy.ChatGroups(viewer)
	previews, err := s.repo.LatestGroupPreviews(ctx, names)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load groups")
	}
	byGroup := make(map[string]repository.GroupPreview, len(previews))
	for _, p := range previews {
		byGroup[p.GroupName] = p
	}

	groups := make([]models.ChatGroup, 0, len(names))
	for _, name := range names {
		group := models.ChatGroup{Name: name}
		if p, ok := byGroup[name]; ok {
			msg := p.Message
			ts := p.CreatedAt
			sender := p.SenderName
			group.LastMessage = &msg
			group.LastMessageTime = &ts
			group.SenderName = &sender
		}
		groups = append(groups, group)
	}
	return groups, nil
}
