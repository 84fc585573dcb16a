package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ssn-coe/rcms-api/internal/models"
	"github.com/ssn-coe/rcms-api/internal/policy"
	appErrors "github.com/ssn-coe/rcms-api/pkg/errors"
)

type userAdminRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	Create(ctx context.Context, user *models.User) error
	SetActive(ctx context.Context, id string, active bool) error
	DeleteWithCleanup(ctx context.Context, id string) error
}

// UserService provides account administration use cases.
type UserService struct {
	repo      userAdminRepository
	activity  activityRecorder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService constructs a UserService instance.
func NewUserService(repo userAdminRepository, activity activityRecorder, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{repo: repo, activity: activity, validator: validate, logger: logger}
}

// List returns users under the viewer's visibility scope. Faculty are
// denied outright; hods see their own department only.
func (s *UserService) List(ctx context.Context, viewer *models.JWTClaims, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	if !policy.CanListUsers(viewer.Role) {
		return nil, nil, appErrors.PermissionDeniedf("%s accounts cannot list users", viewer.Role)
	}
	if policy.VisibleScope(viewer.Role) == policy.ScopeDepartment {
		filter.Department = viewer.Department
	}

	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return users, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get returns one account.
func (s *UserService) Get(ctx context.Context, viewer *models.JWTClaims, id string) (*models.User, error) {
	if !policy.CanListUsers(viewer.Role) && viewer.UserID != id {
		return nil, appErrors.PermissionDeniedf("%s accounts cannot view other users", viewer.Role)
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// Create registers an account on behalf of an admin or principal. The
// account is verified immediately and skips the OTP flow.
func (s *UserService) Create(ctx context.Context, actor *models.JWTClaims, req models.CreateUserRequest) (*models.User, error) {
	if !policy.CanManageUsers(actor.Role) {
		return nil, appErrors.PermissionDeniedf("%s accounts cannot create users", actor.Role)
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid user payload")
	}

	department, err := departmentForRole(req.Role, req.Department)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.FindByEmail(ctx, req.Email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "an account with this email already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Name:         req.Name,
		Email:        normalizeEmail(req.Email),
		PasswordHash: string(hash),
		Role:         req.Role,
		Department:   department,
		Active:       true,
		Verified:     true,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	s.record(ctx, actor.UserID, models.ActivityActionCreateUser, "user", &user.ID, fmt.Sprintf("created %s account for %s", user.Role, user.Email))
	return user, nil
}

// Toggle flips an account's active flag. Actors cannot disable
// themselves.
func (s *UserService) Toggle(ctx context.Context, actor *models.JWTClaims, id string) (*models.User, error) {
	if !policy.CanManageUsers(actor.Role) {
		return nil, appErrors.PermissionDeniedf("%s accounts cannot toggle users", actor.Role)
	}
	if actor.UserID == id {
		return nil, appErrors.Clone(appErrors.ErrValidation, "you cannot disable your own account")
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	user.Active = !user.Active
	if err := s.repo.SetActive(ctx, id, user.Active); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to toggle user")
	}

	s.record(ctx, actor.UserID, models.ActivityActionToggleUser, "user", &id, fmt.Sprintf("set %s active=%t", user.Email, user.Active))
	return user, nil
}

// Delete removes an account and all records tied to it. Actors cannot
// delete themselves.
func (s *UserService) Delete(ctx context.Context, actor *models.JWTClaims, id string) error {
	if !policy.CanManageUsers(actor.Role) {
		return appErrors.PermissionDeniedf("%s accounts cannot delete users", actor.Role)
	}
	if actor.UserID == id {
		return appErrors.Clone(appErrors.ErrValidation, "you cannot delete your own account")
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	if err := s.repo.DeleteWithCleanup(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete user")
	}

	s.record(ctx, actor.UserID, models.ActivityActionDeleteUser, "user", &id, fmt.Sprintf("deleted %s account %s", user.Role, user.Email))
	return nil
}

func (s *UserService) record(ctx context.Context, userID, action, entityType string, entityID *string, details string) {
	if err := s.activity.Create(ctx, &models.ActivityLog{
		UserID:     userID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    details,
	}); err != nil {
		s.logger.Warn("failed to record activity", zap.String("action", action), zap.Error(err))
	}
}
