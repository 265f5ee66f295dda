package service

import (
	"context"
	"strings"
	"time"

	"backoffice-api/internal/auth"
	"backoffice-api/internal/models"
	"backoffice-api/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const minPasswordLength = 6

// TokenIssuer signs bearer tokens for authenticated principals
type TokenIssuer interface {
	Issue(user *models.User) (string, time.Time, error)
}

// AuthService registers principals and exchanges credentials for tokens
type AuthService struct {
	store       UserStore
	issuer      TokenIssuer
	defaultRole string
	checkPass   func(hash, password string) (bool, error)
	logger      *zap.Logger
}

// NewAuthService creates a new auth service. New principals get defaultRole.
func NewAuthService(store UserStore, issuer TokenIssuer, defaultRole string) *AuthService {
	if defaultRole == "" {
		defaultRole = models.RoleUser
	}
	return &AuthService{
		store:       store,
		issuer:      issuer,
		defaultRole: defaultRole,
		checkPass:   auth.CheckPassword,
		logger:      util.GetLogger(),
	}
}

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=72"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Register creates a principal with the default role. No token is issued.
func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*models.User, error) {
	ctx, span := util.StartSpan(ctx, "AuthService.Register")
	defer span.End()

	user, err := s.createUser(ctx, req.Email, req.Password, s.defaultRole)
	if err != nil {
		util.AuthAttemptsTotal.WithLabelValues("register", "failure").Inc()
		return nil, err
	}

	util.AuthAttemptsTotal.WithLabelValues("register", "success").Inc()
	s.logger.Info("User registered", zap.String("user_id", user.ID))
	return user, nil
}

// Login verifies credentials and issues a token. Unknown emails and wrong
// passwords produce the same error.
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	ctx, span := util.StartSpan(ctx, "AuthService.Login")
	defer span.End()

	user, err := s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}
	if user == nil {
		// same bcrypt cost as a wrong password
		_, _ = s.checkPass(auth.DummyHash(), req.Password)
		util.AuthAttemptsTotal.WithLabelValues("login", "failure").Inc()
		return nil, models.ErrInvalidCredentials
	}

	ok, err := s.checkPass(user.PasswordHash, req.Password)
	if err != nil {
		return nil, err
	}
	if !ok {
		util.AuthAttemptsTotal.WithLabelValues("login", "failure").Inc()
		return nil, models.ErrInvalidCredentials
	}

	token, expiresAt, err := s.issuer.Issue(user)
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	util.AuthAttemptsTotal.WithLabelValues("login", "success").Inc()
	return &LoginResponse{Token: token, Email: user.Email, ExpiresAt: expiresAt}, nil
}

// EnsureAdmin makes sure a principal with email exists and holds the Admin role
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) error {
	user, err := s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return err
	}
	if user != nil {
		return s.store.AddUserRole(ctx, user.ID, models.RoleAdmin)
	}

	user, err = s.createUser(ctx, email, password, models.RoleAdmin)
	if err != nil {
		return err
	}
	s.logger.Info("Admin user created", zap.String("user_id", user.ID))
	return nil
}

func (s *AuthService) createUser(ctx context.Context, email, password, role string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, models.Validationf("email is required")
	}
	if len(password) < minPasswordLength {
		return nil, models.Validationf("password must be at least %d characters", minPasswordLength)
	}
	if len(password) > auth.MaxPasswordBytes {
		return nil, models.Validationf("password must be at most %d bytes", auth.MaxPasswordBytes)
	}

	existing, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.ErrDuplicateIdentity
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		Roles:        []string{role},
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
