package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"

	"spark-go/internal/auth"
	"spark-go/internal/config"
	"spark-go/internal/models"
	"spark-go/internal/storage"
	"spark-go/internal/validate"
)

// RegisterRequest 是注册接口的输入。
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Age      int    `json:"age"`
}

// AuthResult 是注册/登录成功后的返回：令牌 + 用户本体。
type AuthResult struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// AuthService 定义了账户生命周期相关的操作。
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*AuthResult, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	// Logout 吊销当前令牌（加入黑名单直到其自然过期）并将用户标记为离线。
	Logout(ctx context.Context, claims *auth.Claims) error
}

type authService struct {
	userRepo  storage.UserRepository
	blacklist auth.TokenBlacklist
	authCfg   config.AuthConfig
	discovery config.DiscoveryConfig
}

// NewAuthService 创建一个新的 AuthService 实例。
func NewAuthService(userRepo storage.UserRepository, blacklist auth.TokenBlacklist, authCfg config.AuthConfig, discovery config.DiscoveryConfig) AuthService {
	return &authService{
		userRepo:  userRepo,
		blacklist: blacklist,
		authCfg:   authCfg,
		discovery: discovery,
	}
}

// Register 校验输入、创建用户并签发令牌。
// 新用户的资料进度为 0：必须完成资料步骤后才能进入发现流程。
func (s *authService) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Name = strings.TrimSpace(req.Name)

	if err := validate.Email(req.Email); err != nil {
		return nil, err
	}
	if err := validate.Password(req.Password); err != nil {
		return nil, err
	}
	if req.Name == "" {
		return nil, validate.NewError("name", "昵称不能为空")
	}
	if err := validate.Age(req.Age, s.discovery.MinAge, s.discovery.MaxAge); err != nil {
		return nil, err
	}

	// 先查重：唯一索引兜底，但先查可以给出友好错误
	if _, err := s.userRepo.GetByEmail(ctx, req.Email); err == nil {
		return nil, ErrUserAlreadyExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("查询邮箱失败: %w", err)
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("密码哈希失败: %w", err)
	}

	now := time.Now()
	user := &models.User{
		Email:        req.Email,
		PasswordHash: hash,
		Name:         req.Name,
		Age:          req.Age,
		Preferences: models.Preferences{
			MinAge:        18,
			MaxAge:        50,
			MaxDistanceKm: 50,
		},
		IsOnline:   true,
		LastSeenAt: &now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUserAlreadyExists
		}
		return nil, fmt.Errorf("创建用户失败: %w", err)
	}

	token, err := auth.GenerateToken(user.ID, user.Email, s.authCfg)
	if err != nil {
		return nil, fmt.Errorf("生成令牌失败: %w", err)
	}

	log.Printf("新用户注册成功: UserID %d, Email %s", user.ID, user.Email)
	return &AuthResult{Token: token, User: user}, nil
}

// Login 校验凭证、刷新在线状态并签发令牌。
func (s *authService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// 不区分"用户不存在"和"密码错误"，避免枚举邮箱
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}

	if !auth.CheckPasswordHash(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	user.IsOnline = true
	user.LastSeenAt = &now
	if err := s.userRepo.Update(ctx, user); err != nil {
		// 在线状态更新失败不阻塞登录
		log.Printf("警告: 更新用户 %d 在线状态失败: %v", user.ID, err)
	}

	token, err := auth.GenerateToken(user.ID, user.Email, s.authCfg)
	if err != nil {
		return nil, fmt.Errorf("生成令牌失败: %w", err)
	}

	return &AuthResult{Token: token, User: user}, nil
}

// Logout 把令牌的 JTI 加入黑名单，黑名单条目的 TTL 与令牌剩余有效期一致。
func (s *authService) Logout(ctx context.Context, claims *auth.Claims) error {
	if claims == nil {
		return errors.New("缺少令牌信息")
	}

	if s.blacklist != nil && claims.ID != "" && claims.ExpiresAt != nil {
		if err := s.blacklist.Add(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
			return fmt.Errorf("吊销令牌失败: %w", err)
		}
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil // 用户已不存在，令牌已吊销即可
		}
		return fmt.Errorf("查询用户失败: %w", err)
	}

	now := time.Now()
	user.IsOnline = false
	user.LastSeenAt = &now
	if err := s.userRepo.Update(ctx, user); err != nil {
		log.Printf("警告: 更新用户 %d 离线状态失败: %v", user.ID, err)
	}
	return nil
}
