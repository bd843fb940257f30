package storage

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"spark-go/internal/models"
)

// MatchRepository 定义了配对记录数据操作的接口。
type MatchRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Match, error)
	// FindOrCreatePairWithTx 在事务中按规范顺序查找或创建两个用户之间的
	// 配对记录。并发时由 (user_id1, user_id2) 唯一索引兜底：重复创建会
	// 被解析为"更新已有记录"而不是报错给用户。
	FindOrCreatePairWithTx(ctx context.Context, tx *gorm.DB, userIDA, userIDB uint) (*models.Match, error)
	SaveWithTx(ctx context.Context, tx *gorm.DB, match *models.Match) error
	// CounterpartIDs 返回与指定用户存在任何配对记录（无论喜欢/匹配状态）
	// 的所有对方用户ID。这是发现流程的排除集。
	CounterpartIDs(ctx context.Context, userID uint) ([]uint, error)
	// ListMatchedByUser 返回该用户所有 isMatch=true 的配对，按创建时间倒序。
	ListMatchedByUser(ctx context.Context, userID uint) ([]*models.Match, error)
	// Transaction 在一个数据库事务中执行 fn，供滑动流程把
	// 定位/创建与保存做成原子操作。
	Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// gormMatchRepository 使用 GORM 实现 MatchRepository。
type gormMatchRepository struct {
	db *gorm.DB
}

// NewGormMatchRepository 创建一个新的基于 GORM 的 MatchRepository。
func NewGormMatchRepository(db *gorm.DB) MatchRepository {
	return &gormMatchRepository{db: db}
}

// GetByID 通过ID检索配对记录。
func (r *gormMatchRepository) GetByID(ctx context.Context, id uint) (*models.Match, error) {
	var match models.Match
	err := r.db.WithContext(ctx).First(&match, id).Error
	if err != nil {
		return nil, err
	}
	return &match, nil
}

// FindOrCreatePairWithTx 在提供的事务中查找或创建配对记录。
func (r *gormMatchRepository) FindOrCreatePairWithTx(ctx context.Context, tx *gorm.DB, userIDA, userIDB uint) (*models.Match, error) {
	// 确保 userID1 < userID2，使查找具有确定性，避免同一对出现两条记录
	userID1, userID2 := userIDA, userIDB
	if userID1 > userID2 {
		userID1, userID2 = userID2, userID1
	}

	// 使用行锁防止同一对的并发滑动互相覆盖喜欢标志
	var match models.Match
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id1 = ? AND user_id2 = ?", userID1, userID2).
		First(&match).Error

	if err == nil {
		return &match, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("查找配对记录失败: %w", err)
	}

	// 记录不存在，创建新的配对记录
	newMatch := &models.Match{UserID1: userID1, UserID2: userID2}
	if err := tx.WithContext(ctx).Create(newMatch).Error; err != nil {
		// 并发的另一次滑动可能刚刚创建了同一对的记录，
		// 唯一索引会让这里失败；此时重新加锁读取即可。
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			var existing models.Match
			retryErr := tx.WithContext(ctx).
				Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("user_id1 = ? AND user_id2 = ?", userID1, userID2).
				First(&existing).Error
			if retryErr != nil {
				return nil, fmt.Errorf("重复创建后重新读取配对记录失败: %w", retryErr)
			}
			return &existing, nil
		}
		return nil, fmt.Errorf("创建配对记录失败: %w", err)
	}

	return newMatch, nil
}

// SaveWithTx 在事务中保存配对记录。
func (r *gormMatchRepository) SaveWithTx(ctx context.Context, tx *gorm.DB, match *models.Match) error {
	return tx.WithContext(ctx).Save(match).Error
}

// CounterpartIDs 收集排除集：所有已经与该用户评估过的对方用户。
func (r *gormMatchRepository) CounterpartIDs(ctx context.Context, userID uint) ([]uint, error) {
	var matches []models.Match
	err := r.db.WithContext(ctx).
		Select("user_id1", "user_id2").
		Where("user_id1 = ? OR user_id2 = ?", userID, userID).
		Find(&matches).Error
	if err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.OtherParticipant(userID))
	}
	return ids, nil
}

// ListMatchedByUser 返回该用户的全部成功配对。
func (r *gormMatchRepository) ListMatchedByUser(ctx context.Context, userID uint) ([]*models.Match, error) {
	var matches []*models.Match
	err := r.db.WithContext(ctx).
		Where("(user_id1 = ? OR user_id2 = ?) AND is_match = ?", userID, userID, true).
		Order("created_at DESC").
		Find(&matches).Error
	if err != nil {
		return nil, err
	}
	return matches, nil
}

// Transaction 在事务中执行 fn，fn 返回错误时整体回滚。
func (r *gormMatchRepository) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}
