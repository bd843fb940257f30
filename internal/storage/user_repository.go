package storage

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"spark-go/internal/models"
)

// UserRepository defines the interface for user data operations.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	// FindCandidates 返回满足硬性过滤条件的候选人：
	// 资料已完善、年龄在偏好区间内、性别/取向双向匹配、
	// 不在排除列表中、且不触发任何 deal-breaker。
	// 地理距离的排序和截断在服务层完成。
	FindCandidates(ctx context.Context, user *models.User, excludedIDs []uint, limit int) ([]models.User, error)
	GetPublicInfoByID(ctx context.Context, id uint) (*models.UserPublicInfo, error)
	GetMultiplePublicInfoByIDs(ctx context.Context, userIDs []uint) ([]*models.UserPublicInfo, error)
	GetDB() *gorm.DB
}

// gormUserRepository implements UserRepository using GORM.
type gormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository creates a new GORM-based UserRepository.
func NewGormUserRepository(db *gorm.DB) UserRepository {
	return &gormUserRepository{db: db}
}

// Create creates a new user record in the database.
func (r *gormUserRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// GetByID retrieves a user by their ID.
func (r *gormUserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).First(&user, id).Error
	if err != nil {
		return nil, err // Handles gorm.ErrRecordNotFound as well
	}
	return &user, nil
}

// GetByEmail retrieves a user by their email.
func (r *gormUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Update updates an existing user record in the database.
func (r *gormUserRepository) Update(ctx context.Context, user *models.User) error {
	if user.ID == 0 {
		return gorm.ErrMissingWhereClause
	}
	return r.db.WithContext(ctx).Save(user).Error
}

// FindCandidates implements the discovery pre-filter at the SQL level.
func (r *gormUserRepository) FindCandidates(ctx context.Context, user *models.User, excludedIDs []uint, limit int) ([]models.User, error) {
	var candidates []models.User
	prefs := user.Preferences

	query := r.db.WithContext(ctx).
		Where("profile_completed = ?", true).
		Where("age >= ? AND age <= ?", prefs.MinAge, prefs.MaxAge).
		// 双向的性别/取向匹配：候选人是我要找的，我也是候选人要找的
		Where("gender = ? AND looking_for = ?", user.LookingFor, user.Gender)

	if len(excludedIDs) > 0 {
		query = query.Where("id NOT IN ?", excludedIDs)
	}

	// Deal-breaker 过滤
	if prefs.NoSmoking {
		query = query.Where("smoking = ?", false)
	}
	if prefs.NoDrugs {
		query = query.Where("drugs = ?", false)
	}
	if prefs.WantsChildren {
		query = query.Where("wants_kids = ?", true)
	}
	if prefs.ReligionMatters && user.Religion != "" {
		query = query.Where("religion = ?", user.Religion)
	}

	// 按 ID 升序返回，保证无位置信息时的稳定顺序
	err := query.Order("id ASC").Limit(limit).Find(&candidates).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return candidates, nil
		}
		return nil, err
	}
	return candidates, nil
}

// GetPublicInfoByID retrieves the public profile subset for a user.
func (r *gormUserRepository) GetPublicInfoByID(ctx context.Context, id uint) (*models.UserPublicInfo, error) {
	var user models.User
	err := r.db.WithContext(ctx).First(&user, id).Error
	if err != nil {
		return nil, err
	}
	return user.PublicInfo(), nil
}

// GetMultiplePublicInfoByIDs retrieves public profiles for a list of user IDs.
func (r *gormUserRepository) GetMultiplePublicInfoByIDs(ctx context.Context, userIDs []uint) ([]*models.UserPublicInfo, error) {
	var infos []*models.UserPublicInfo
	if len(userIDs) == 0 {
		return infos, nil
	}

	var users []models.User
	err := r.db.WithContext(ctx).Where("id IN ?", userIDs).Find(&users).Error
	if err != nil {
		return nil, err
	}
	for i := range users {
		infos = append(infos, users[i].PublicInfo())
	}
	return infos, nil
}

// GetDB returns the underlying gorm.DB instance
func (r *gormUserRepository) GetDB() *gorm.DB {
	return r.db
}
