package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ssn-coe/rcms-api/internal/models"
	"github.com/ssn-coe/rcms-api/internal/notify"
	appErrors "github.com/ssn-coe/rcms-api/pkg/errors"
	"github.com/ssn-coe/rcms-api/pkg/mail"
)

type authUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	UpdateProfile(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

type activityRecorder interface {
	Create(ctx context.Context, entry *models.ActivityLog) error
}

type notificationInserter interface {
	InsertBatch(ctx context.Context, notifications []models.Notification) error
}

type mailDispatcher interface {
	Dispatch(msgs ...mail.Message)
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	TokenSecret string
	TokenExpiry time.Duration
	Issuer      string
}

// AuthService provides signup, login, and profile use cases.
type AuthService struct {
	repo          authUserRepository
	activity      activityRecorder
	notifications notificationInserter
	router        *notify.Router
	otp           *OTPStore
	mailer        mailDispatcher
	validator     *validator.Validate
	logger        *zap.Logger
	config        AuthConfig
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(repo authUserRepository, activity activityRecorder, notifications notificationInserter, router *notify.Router, otp *OTPStore, mailer mailDispatcher, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AuthService{
		repo:          repo,
		activity:      activity,
		notifications: notifications,
		router:        router,
		otp:           otp,
		mailer:        mailer,
		validator:     validate,
		logger:        logger,
		config:        config,
	}
}

// SendOTP emails a signup verification code. The email must not
// already belong to an account.
func (s *AuthService) SendOTP(ctx context.Context, req models.SendOTPRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid otp request")
	}

	if _, err := s.repo.FindByEmail(ctx, req.Email); err == nil {
		return appErrors.Clone(appErrors.ErrConflict, "an account with this email already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}

	code, err := s.otp.Issue(req.Email)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to issue verification code")
	}

	s.mailer.Dispatch(mail.OTPMessage(req.Email, req.Name, code, s.otp.TTL()))
	s.logger.Info("signup verification code issued", zap.String("email", normalizeEmail(req.Email)))
	return nil
}

// VerifyOTP consumes the emailed code and clears the email for one
// signup attempt.
func (s *AuthService) VerifyOTP(ctx context.Context, req models.VerifyOTPRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid otp payload")
	}
	return s.otp.Verify(req.Email, req.OTP)
}

// Signup registers a verified account, notifies admins, and issues a
// token.
func (s *AuthService) Signup(ctx context.Context, req models.SignupRequest) (*models.AuthResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid signup payload")
	}

	department, err := departmentForRole(req.Role, req.Department)
	if err != nil {
		return nil, err
	}

	if !s.otp.ConsumeVerified(req.Email) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "email is not verified, request a verification code first")
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
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create account")
	}

	if fanout, err := s.router.UserRegistered(ctx, user); err != nil {
		s.logger.Warn("failed to compute signup fan-out", zap.Error(err))
	} else if !fanout.Empty() {
		if err := s.notifications.InsertBatch(ctx, fanout.Notifications); err != nil {
			s.logger.Warn("failed to record signup notifications", zap.Error(err))
		}
		s.mailer.Dispatch(fanout.Emails...)
	}

	s.record(ctx, user.ID, models.ActivityActionSignup, "user", &user.ID, fmt.Sprintf("%s registered as %s", user.Name, user.Role))

	return s.authResponse(user)
}

// Login authenticates a user and returns an issued token. Unverified
// and disabled accounts are denied distinctly.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	user, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
	}
	if !user.Verified {
		return nil, appErrors.Clone(appErrors.ErrUnverifiedAccount, "")
	}
	if !user.Active {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "")
	}

	s.record(ctx, user.ID, models.ActivityActionLogin, "user", &user.ID, fmt.Sprintf("login from %s", req.IP))

	return s.authResponse(user)
}

// Me returns the caller's account.
func (s *AuthService) Me(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}
	return user, nil
}

// UpdateProfile updates the caller's name, department, or password.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, req models.UpdateProfileRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid profile payload")
	}

	user, err := s.Me(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.Name != "" {
		user.Name = req.Name
	}
	if req.Department != "" {
		if !user.Role.RequiresDepartment() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "this role has no department")
		}
		if !models.ValidDepartment(req.Department) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown department")
		}
		dept := req.Department
		user.Department = &dept
	}

	if err := s.repo.UpdateProfile(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update profile")
	}

	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
		}
		if err := s.repo.UpdatePassword(ctx, userID, string(hash)); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update password")
		}
	}

	return user, nil
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.TokenSecret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	return claims, nil
}

func (s *AuthService) authResponse(user *models.User) (*models.AuthResponse, error) {
	issuedAt := time.Now().UTC()
	claims := &models.JWTClaims{
		UserID:     user.ID,
		Email:      user.Email,
		Role:       user.Role,
		Department: user.Department,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.config.TokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.TokenSecret))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign token")
	}

	return &models.AuthResponse{
		Token:     signed,
		ExpiresIn: int64(s.config.TokenExpiry.Seconds()),
		IssuedAt:  issuedAt,
		User:      user,
	}, nil
}

func (s *AuthService) record(ctx context.Context, userID, action, entityType string, entityID *string, details string) {
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

// departmentForRole validates the role/department pairing: hod and
// faculty must name a known department, other roles carry none.
func departmentForRole(role models.Role, department string) (*string, error) {
	if !role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown role")
	}
	if !role.RequiresDepartment() {
		return nil, nil
	}
	if department == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("department is required for %s accounts", role))
	}
	if !models.ValidDepartment(department) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown department")
	}
	dept := department
	return &dept, nil
}
