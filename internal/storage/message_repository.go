package storage

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"spark-go/internal/models"
)

// MessageRepository 定义了消息数据操作的接口。
type MessageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	GetByID(ctx context.Context, id uint) (*models.Message, error)
	// ListByMatchID 返回该配对的全部消息，按发送时间升序。
	ListByMatchID(ctx context.Context, matchID uint) ([]*models.Message, error)
	// MarkReadForReceiver 将该配对中发给 receiverID 的未读消息全部标记为已读。
	// 单条 UPDATE 语句，保证并发读取时不会重复计数。
	MarkReadForReceiver(ctx context.Context, matchID uint, receiverID uint) error
	// LatestByMatchID 返回该配对最新的一条消息；没有消息时返回 (nil, nil)。
	LatestByMatchID(ctx context.Context, matchID uint) (*models.Message, error)
	CountUnread(ctx context.Context, matchID uint, receiverID uint) (int64, error)
}

// gormMessageRepository 使用 GORM 实现 MessageRepository。
type gormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository 创建一个新的基于 GORM 的 MessageRepository。
func NewGormMessageRepository(db *gorm.DB) MessageRepository {
	return &gormMessageRepository{db: db}
}

// Create 在数据库中创建一条新的消息记录。
func (r *gormMessageRepository) Create(ctx context.Context, message *models.Message) error {
	return r.db.WithContext(ctx).Create(message).Error
}

// GetByID 通过ID检索消息。
func (r *gormMessageRepository) GetByID(ctx context.Context, id uint) (*models.Message, error) {
	var message models.Message
	// Preload Sender to get user information along with the message
	err := r.db.WithContext(ctx).Preload("Sender").First(&message, id).Error
	if err != nil {
		return nil, err
	}
	return &message, nil
}

// ListByMatchID 通过配对ID检索消息列表，按发送时间升序排列。
func (r *gormMessageRepository) ListByMatchID(ctx context.Context, matchID uint) ([]*models.Message, error) {
	var messages []*models.Message
	err := r.db.WithContext(ctx).
		Where("match_id = ?", matchID).
		Order("sent_at ASC").
		Preload("Sender").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// MarkReadForReceiver 批量标记已读。
func (r *gormMessageRepository) MarkReadForReceiver(ctx context.Context, matchID uint, receiverID uint) error {
	return r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("match_id = ? AND receiver_id = ? AND is_read = ?", matchID, receiverID, false).
		Update("is_read", true).Error
}

// LatestByMatchID 返回最新一条消息，用于会话列表预览。
func (r *gormMessageRepository) LatestByMatchID(ctx context.Context, matchID uint) (*models.Message, error) {
	var message models.Message
	err := r.db.WithContext(ctx).
		Where("match_id = ?", matchID).
		Order("sent_at DESC").
		First(&message).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil // 没有消息不是错误
		}
		return nil, err
	}
	return &message, nil
}

// CountUnread 统计发给 receiverID 的未读消息数。
func (r *gormMessageRepository) CountUnread(ctx context.Context, matchID uint, receiverID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("match_id = ? AND receiver_id = ? AND is_read = ?", matchID, receiverID, false).
		Count(&count).Error
	return count, err
}
