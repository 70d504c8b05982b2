package repository

import (
	"context"
	"fmt"
	"time"

	"invoicedesk/internal/apperror"
	"invoicedesk/internal/model"

	"gorm.io/gorm"
)

// UserRepository defines the interface for data access of User entities and their
// refresh tokens.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)

	SaveRefreshToken(ctx context.Context, token *model.RefreshToken) error
	GetRefreshToken(ctx context.Context, token string) (*model.RefreshToken, error)
	DeleteRefreshToken(ctx context.Context, token string) (int64, error)
	DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new instance of UserRepository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	if err := GetDB(ctx, r.db).Create(user).Error; err != nil {
		if isDuplicateKey(err) {
			return apperror.ErrUsernameTaken
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	if err := GetDB(ctx, r.db).First(&user, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	if err := GetDB(ctx, r.db).First(&user, "username = ?", username).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (r *userRepository) SaveRefreshToken(ctx context.Context, token *model.RefreshToken) error {
	return GetDB(ctx, r.db).Create(token).Error
}

// GetRefreshToken loads the token with its user.
func (r *userRepository) GetRefreshToken(ctx context.Context, token string) (*model.RefreshToken, error) {
	var rt model.RefreshToken
	if err := GetDB(ctx, r.db).Preload("User").First(&rt, "token = ?", token).Error; err != nil {
		return nil, notFound(err)
	}
	return &rt, nil
}

func (r *userRepository) DeleteRefreshToken(ctx context.Context, token string) (int64, error) {
	res := GetDB(ctx, r.db).Where("token = ?", token).Delete(&model.RefreshToken{})
	return res.RowsAffected, res.Error
}

func (r *userRepository) DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	res := GetDB(ctx, r.db).Where("expires_at < ?", now).Delete(&model.RefreshToken{})
	return res.RowsAffected, res.Error
}
