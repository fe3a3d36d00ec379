package service

import (
	"context"
	"edumate_backend/internal/config"
	"edumate_backend/internal/model"
	"edumate_backend/internal/repository"
	"edumate_backend/internal/util"
	"edumate_backend/pkg/logger"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type AuthService struct {
	UserRepo *repository.UserRepository
	Activity *ActivityService
	Cfg      *config.Config
}

func NewAuthService(userRepo *repository.UserRepository, activity *ActivityService, cfg *config.Config) *AuthService {
	return &AuthService{
		UserRepo: userRepo,
		Activity: activity,
		Cfg:      cfg,
	}
}

type RegisterRequest struct {
	Name     string         `json:"name" binding:"required"`
	Email    string         `json:"email" binding:"required,email"`
	Password string         `json:"password" binding:"required,min=6"`
	Role     model.UserRole `json:"role"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// Register 自助注册只允许学生和教师角色
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*model.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	_, err := s.UserRepo.FindByEmail(ctx, email)
	if err == nil {
		return nil, util.ErrEmailRegistered
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	role := req.Role
	if role != model.Instructor {
		role = model.Student
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user := &model.User{
		Name:     req.Name,
		Email:    email,
		Password: string(hashedPassword),
		Role:     role,
		Level:    1,
	}
	if err := s.UserRepo.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, util.ErrEmailRegistered
		}
		return nil, err
	}
	logger.Ctx(ctx).Info("User registered", zap.Uint("userId", user.ID), zap.String("role", string(role)))
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	user, err := s.UserRepo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		return nil, util.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, util.ErrInvalidCredentials
	}

	token, err := util.GenerateJWT(user, s.Cfg.JWT.Secret, s.Cfg.JWT.ExpireTime)
	if err != nil {
		return nil, err
	}

	if err := s.UserRepo.UpdateLastLogin(ctx, user.ID); err != nil {
		logger.Ctx(ctx).Warn("Failed to update last login", zap.Error(err), zap.Uint("userId", user.ID))
	}
	s.Activity.logQuietly(ctx, user.ID, model.ActivityLogin, "user", user.ID, nil)
	return &LoginResponse{Token: token, User: user}, nil
}

func (s *AuthService) GetProfile(ctx context.Context, userID uint) (*model.User, error) {
	user, err := s.UserRepo.FindByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrUserNotFound
	}
	return user, err
}
