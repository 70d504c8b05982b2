package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"invoicedesk/internal/apperror"
	"invoicedesk/internal/auth"
	"invoicedesk/internal/model"
	"invoicedesk/internal/repository"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// DTOs for Request validation
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role" binding:"required"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type TokenResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresAt    time.Time    `json:"expires_at"`
	User         UserResponse `json:"user"`
}

// UserResponse is a User without its password hash.
type UserResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
}

// UserService defines the interface for business logic related to User
type UserService interface {
	Login(ctx context.Context, req LoginRequest) (*TokenResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error)
	Logout(ctx context.Context, refreshToken string) error
	Register(ctx context.Context, p model.Principal, req RegisterRequest) (*UserResponse, error)
	Me(ctx context.Context, p model.Principal) (*UserResponse, error)
	Authenticate(accessToken string) (model.Principal, error)
}

type userService struct {
	repo       repository.UserRepository
	audit      repository.AuditRepository
	tx         repository.TransactionManager
	tokens     *auth.TokenManager
	refreshTTL time.Duration
	log        *zap.Logger
	now        func() time.Time
}

// NewUserService returns a new instance of UserService
func NewUserService(
	repo repository.UserRepository,
	audit repository.AuditRepository,
	tx repository.TransactionManager,
	tokens *auth.TokenManager,
	refreshTTL time.Duration,
	log *zap.Logger,
) UserService {
	if refreshTTL <= 0 {
		refreshTTL = 30 * 24 * time.Hour
	}
	return &userService{
		repo:       repo,
		audit:      audit,
		tx:         tx,
		tokens:     tokens,
		refreshTTL: refreshTTL,
		log:        log.Named("users"),
		now:        time.Now,
	}
}

func mapToResponse(user *model.User) *UserResponse {
	return &UserResponse{
		ID:        user.ID.String(),
		Username:  user.Username,
		Role:      user.Role,
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
	}
}

func (s *userService) Login(ctx context.Context, req LoginRequest) (*TokenResponse, error) {
	user, err := s.repo.GetByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		s.log.Info("login failed", zap.String("username", user.Username))
		return nil, apperror.ErrInvalidCredentials
	}

	res, err := s.issue(ctx, user)
	if err != nil {
		return nil, err
	}
	s.log.Info("login succeeded", zap.String("username", user.Username), zap.String("role", user.Role))
	return res, nil
}

// Refresh exchanges a stored refresh token for a new token pair. The presented
// token is consumed.
func (s *userService) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	var (
		res     *TokenResponse
		expired bool
	)
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		stored, err := s.repo.GetRefreshToken(txCtx, refreshToken)
		if err != nil {
			if errors.Is(err, apperror.ErrNotFound) {
				return apperror.ErrInvalidToken
			}
			return err
		}
		consumed, err := s.repo.DeleteRefreshToken(txCtx, refreshToken)
		if err != nil {
			return fmt.Errorf("consume refresh token: %w", err)
		}
		// A concurrent refresh already consumed it.
		if consumed == 0 {
			return apperror.ErrInvalidToken
		}
		// Commit the deletion of an expired token before refusing it.
		if !stored.ExpiresAt.After(s.now()) {
			expired = true
			return nil
		}
		res, err = s.issue(txCtx, &stored.User)
		return err
	})
	if err != nil {
		return nil, err
	}
	if expired {
		return nil, apperror.ErrInvalidToken
	}
	return res, nil
}

func (s *userService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	_, err := s.repo.DeleteRefreshToken(ctx, refreshToken)
	return err
}

// Register creates a user. Only admins may register, with any role name.
func (s *userService) Register(ctx context.Context, p model.Principal, req RegisterRequest) (*UserResponse, error) {
	if err := requireRole(p, "register users", model.RoleAdmin); err != nil {
		return nil, err
	}
	username := strings.TrimSpace(req.Username)
	role := strings.TrimSpace(req.Role)
	if username == "" || role == "" || req.Password == "" {
		return nil, fmt.Errorf("%w: username, password and role are required", apperror.ErrInvalidRequest)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &model.User{Username: username, Password: string(hashed), Role: role}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.Create(txCtx, user); err != nil {
			return err
		}
		details, _ := json.Marshal(map[string]string{"username": username, "role": role})
		return s.audit.Log(txCtx, &model.AuditLog{
			Username: p.Username,
			Action:   model.ActionRegisterUser,
			EntityID: user.ID.String(),
			Details:  details,
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("user registered", zap.String("username", username), zap.String("role", role), zap.String("by", p.Username))
	return mapToResponse(user), nil
}

func (s *userService) Me(ctx context.Context, p model.Principal) (*UserResponse, error) {
	if err := requireAuthenticated(p); err != nil {
		return nil, err
	}
	user, err := s.repo.GetByUsername(ctx, p.Username)
	if err != nil {
		return nil, err
	}
	return mapToResponse(user), nil
}

func (s *userService) Authenticate(accessToken string) (model.Principal, error) {
	return s.tokens.Parse(accessToken)
}

func (s *userService) issue(ctx context.Context, user *model.User) (*TokenResponse, error) {
	access, exp, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	refresh, err := auth.NewRefreshToken()
	if err != nil {
		return nil, err
	}
	if err := s.repo.SaveRefreshToken(ctx, &model.RefreshToken{
		UserID:    user.ID,
		Token:     refresh,
		ExpiresAt: s.now().Add(s.refreshTTL),
	}); err != nil {
		return nil, fmt.Errorf("save refresh token: %w", err)
	}
	return &TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    exp,
		User:         *mapToResponse(user),
	}, nil
}
