package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/lshigami/examdesk/internal/metrics"
	"github.com/lshigami/examdesk/internal/model"
	"gorm.io/gorm"
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, id uint) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindAll(ctx context.Context) ([]model.User, error)
	Update(ctx context.Context, user *model.User) error
	// DeleteNonAdmins permanently removes every student account and returns how many were removed.
	DeleteNonAdmins(ctx context.Context) (int64, error)
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	defer metrics.ObserveDB("insert", "users")()
	err := r.db.WithContext(ctx).Create(user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("user %s: %w", user.Email, ErrDuplicate)
	}
	return err
}

func (r *userRepository) FindByID(ctx context.Context, id uint) (*model.User, error) {
	defer metrics.ObserveDB("select", "users")()
	var user model.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	defer metrics.ObserveDB("select", "users")()
	var user model.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *userRepository) FindAll(ctx context.Context) ([]model.User, error) {
	defer metrics.ObserveDB("select", "users")()
	users := make([]model.User, 0)
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&users).Error
	return users, err
}

func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	defer metrics.ObserveDB("update", "users")()
	return r.db.WithContext(ctx).Save(user).Error
}

func (r *userRepository) DeleteNonAdmins(ctx context.Context) (int64, error) {
	defer metrics.ObserveDB("delete", "users")()
	res := r.db.WithContext(ctx).Unscoped().Where("role <> ?", model.RoleAdmin).Delete(&model.User{})
	return res.RowsAffected, res.Error
}
