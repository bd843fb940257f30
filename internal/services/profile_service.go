package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"spark-go/internal/config"
	"spark-go/internal/models"
	"spark-go/internal/storage"
	"spark-go/internal/validate"
)

// 资料完善的步骤编号。全部完成后 ProfileCompleted 置为 true，
// 用户才能进入发现流程。
const (
	StepBasics      = 1 // 性别 + 想认识的性别
	StepAbout       = 2 // 个人简介 + 兴趣
	StepLocation    = 3 // 地理位置
	StepPreferences = 4 // 匹配偏好
	StepsTotal      = 4
)

// LocationUpdate 是一次位置更新的输入。
type LocationUpdate struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

// UpdateProfileRequest 是部分更新资料的输入，nil 字段表示不修改。
type UpdateProfileRequest struct {
	Name        *string             `json:"name,omitempty"`
	Age         *int                `json:"age,omitempty"`
	Gender      *models.Gender      `json:"gender,omitempty"`
	LookingFor  *models.Gender      `json:"lookingFor,omitempty"`
	Bio         *string             `json:"bio,omitempty"`
	Interests   *models.StringList  `json:"interests,omitempty"`
	Photos      *models.StringList  `json:"photos,omitempty"`
	Religion    *string             `json:"religion,omitempty"`
	Smoking     *bool               `json:"smoking,omitempty"`
	Drugs       *bool               `json:"drugs,omitempty"`
	HasChildren *bool               `json:"hasChildren,omitempty"`
	WantsKids   *bool               `json:"wantsKids,omitempty"`
	Location    *LocationUpdate     `json:"location,omitempty"`
	Preferences *models.Preferences `json:"preferences,omitempty"`
}

// CompletionStatus 描述资料完善的当前进度。
type CompletionStatus struct {
	ProfileStep      int  `json:"profileStep"`
	StepsTotal       int  `json:"stepsTotal"`
	ProfileCompleted bool `json:"profileCompleted"`
	// NextStep 是下一个待完成的步骤；已完成时为 0。
	NextStep int `json:"nextStep"`
}

// ProfileService 定义了资料查询和完善相关的操作。
type ProfileService interface {
	GetProfile(ctx context.Context, userID uint) (*models.User, error)
	UpdateProfile(ctx context.Context, userID uint, req UpdateProfileRequest) (*models.User, error)
	// CompleteProfile 一次性提交全部资料段，等价于按顺序完成所有步骤。
	CompleteProfile(ctx context.Context, userID uint, req UpdateProfileRequest) (*models.User, error)
	Completion(ctx context.Context, userID uint) (*CompletionStatus, error)
}

type profileService struct {
	userRepo  storage.UserRepository
	discovery config.DiscoveryConfig
}

// NewProfileService 创建一个新的 ProfileService 实例。
func NewProfileService(userRepo storage.UserRepository, discovery config.DiscoveryConfig) ProfileService {
	return &profileService{userRepo: userRepo, discovery: discovery}
}

// GetProfile 返回用户自己的完整资料。
func (s *profileService) GetProfile(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}
	return user, nil
}

// UpdateProfile 应用部分更新并重新计算资料完善进度。
func (s *profileService) UpdateProfile(ctx context.Context, userID uint, req UpdateProfileRequest) (*models.User, error) {
	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.applyUpdate(user, req); err != nil {
		return nil, err
	}

	// 偏好一旦提交过即视为完成第 4 步
	prefsSubmitted := user.ProfileStep >= StepPreferences || req.Preferences != nil
	recomputeProgress(user, prefsSubmitted)

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("保存用户资料失败: %w", err)
	}
	return user, nil
}

// CompleteProfile 与 UpdateProfile 的区别仅在于语义：客户端在引导流程
// 结束时调用它提交全部资料段。
func (s *profileService) CompleteProfile(ctx context.Context, userID uint, req UpdateProfileRequest) (*models.User, error) {
	return s.UpdateProfile(ctx, userID, req)
}

// Completion 返回资料完善进度。
func (s *profileService) Completion(ctx context.Context, userID uint) (*CompletionStatus, error) {
	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	status := &CompletionStatus{
		ProfileStep:      user.ProfileStep,
		StepsTotal:       StepsTotal,
		ProfileCompleted: user.ProfileCompleted,
	}
	if !user.ProfileCompleted {
		status.NextStep = user.ProfileStep + 1
	}
	return status, nil
}

// applyUpdate 把请求中非 nil 的字段写入用户记录，并做字段级校验。
func (s *profileService) applyUpdate(user *models.User, req UpdateProfileRequest) error {
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return validate.NewError("name", "昵称不能为空")
		}
		user.Name = name
	}
	if req.Age != nil {
		if err := validate.Age(*req.Age, s.discovery.MinAge, s.discovery.MaxAge); err != nil {
			return err
		}
		user.Age = *req.Age
	}
	if req.Gender != nil {
		if err := validate.GenderValue("gender", *req.Gender); err != nil {
			return err
		}
		user.Gender = *req.Gender
	}
	if req.LookingFor != nil {
		if err := validate.GenderValue("lookingFor", *req.LookingFor); err != nil {
			return err
		}
		user.LookingFor = *req.LookingFor
	}
	if req.Bio != nil {
		user.Bio = strings.TrimSpace(*req.Bio)
	}
	if req.Interests != nil {
		user.Interests = *req.Interests
	}
	if req.Photos != nil {
		user.Photos = *req.Photos
	}
	if req.Religion != nil {
		user.Religion = strings.TrimSpace(*req.Religion)
	}
	if req.Smoking != nil {
		user.Smoking = *req.Smoking
	}
	if req.Drugs != nil {
		user.Drugs = *req.Drugs
	}
	if req.HasChildren != nil {
		user.HasChildren = *req.HasChildren
	}
	if req.WantsKids != nil {
		user.WantsKids = *req.WantsKids
	}
	if req.Location != nil {
		if err := validate.Coordinates(req.Location.Longitude, req.Location.Latitude); err != nil {
			return err
		}
		user.Longitude = req.Location.Longitude
		user.Latitude = req.Location.Latitude
	}
	if req.Preferences != nil {
		prefs := *req.Preferences
		if err := validate.AgeRange(prefs.MinAge, prefs.MaxAge); err != nil {
			return err
		}
		if prefs.MinAge < s.discovery.MinAge {
			return validate.NewError("preferences", fmt.Sprintf("最小年龄不能小于 %d 岁", s.discovery.MinAge))
		}
		if prefs.MaxDistanceKm <= 0 {
			return validate.NewError("preferences", "最大距离必须大于 0")
		}
		user.Preferences = prefs
	}
	return nil
}

// recomputeProgress 根据资料的实际内容重算完善进度。
// 已完成的资料不会因后续清空字段而回退：ProfileCompleted 是单向的。
func recomputeProgress(user *models.User, prefsSubmitted bool) {
	if user.ProfileCompleted {
		user.ProfileStep = StepPreferences
		return
	}

	step := 0
	if user.Gender != "" && user.LookingFor != "" {
		step = StepBasics
	}
	if step == StepBasics && user.Bio != "" && len(user.Interests) > 0 {
		step = StepAbout
	}
	if step == StepAbout && user.HasLocation() {
		step = StepLocation
	}
	if step == StepLocation && prefsSubmitted {
		step = StepPreferences
	}

	user.ProfileStep = step
	user.ProfileCompleted = step == StepPreferences
}
