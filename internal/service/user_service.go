package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jinzhu/copier"
	"github.com/lshigami/examdesk/internal/dto"
	"github.com/lshigami/examdesk/internal/model"
	"github.com/lshigami/examdesk/internal/repository"
	"github.com/rs/zerolog/log"
)

type UserService interface {
	GetProfile(ctx context.Context, actor Actor) (*dto.UserResponse, error)
	UpdateProfile(ctx context.Context, actor Actor, req dto.UpdateProfileRequest) (*dto.UserResponse, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	ListUsers(ctx context.Context) ([]dto.UserResponse, error)
	// ClearStudents deletes every non-admin account together with their attempts.
	ClearStudents(ctx context.Context) (int64, error)
}

type userService struct {
	userRepo repository.UserRepository
}

func NewUserService(userRepo repository.UserRepository) UserService {
	return &userService{userRepo: userRepo}
}

func (s *userService) GetProfile(ctx context.Context, actor Actor) (*dto.UserResponse, error) {
	user, err := s.loadUser(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	resp := toUserResponse(user)
	return &resp, nil
}

func (s *userService) UpdateProfile(ctx context.Context, actor Actor, req dto.UpdateProfileRequest) (*dto.UserResponse, error) {
	user, err := s.loadUser(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, newError(ErrValidation, "Name cannot be empty")
		}
		user.Name = name
	}
	if req.Password != nil {
		hash, err := hashPassword(*req.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}
	if err := s.userRepo.Update(ctx, user); err != nil {
		log.Error().Err(err).Uint("userID", user.ID).Msg("Failed to update profile")
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	resp := toUserResponse(user)
	return &resp, nil
}

func (s *userService) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := s.userRepo.FindByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *userService) ListUsers(ctx context.Context) ([]dto.UserResponse, error) {
	users, err := s.userRepo.FindAll(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list users")
		return nil, err
	}
	out := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		out = append(out, toUserResponse(&users[i]))
	}
	return out, nil
}

func (s *userService) ClearStudents(ctx context.Context) (int64, error) {
	n, err := s.userRepo.DeleteNonAdmins(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to clear student accounts")
		return 0, err
	}
	log.Warn().Int64("deleted", n).Msg("Cleared all student accounts")
	return n, nil
}

func (s *userService) loadUser(ctx context.Context, id uint) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errUserNotFound
		}
		return nil, fmt.Errorf("failed to load user %d: %w", id, err)
	}
	return user, nil
}

func toUserResponse(user *model.User) dto.UserResponse {
	var resp dto.UserResponse
	_ = copier.Copy(&resp, user)
	return resp
}
