package models

import "time"

// MessageType 定义聊天消息的类型。
type MessageType string

const (
	TextMessageType  MessageType = "text"
	ImageMessageType MessageType = "image"
)

// Message 代表一条属于某个配对的聊天消息。
// 消息是追加写入的：没有编辑和删除；IsRead 只会从 false 变为 true。
type Message struct {
	BaseModel
	MatchID    uint        `gorm:"index;not null" json:"matchId"`
	SenderID   uint        `gorm:"index;not null" json:"senderId"`
	ReceiverID uint        `gorm:"index;not null" json:"receiverId"` // 配对中的另一方
	Type       MessageType `gorm:"type:varchar(20);not null;default:'text'" json:"type"`
	Body       string      `gorm:"type:text;not null" json:"message"`
	IsRead     bool        `gorm:"default:false" json:"isRead"`
	SentAt     time.Time   `gorm:"not null;index" json:"sentAt"`

	// 关联关系
	Sender User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
}

// TableName 指定 Message 模型的表名。
func (Message) TableName() string {
	return "messages"
}

// ConversationSummary is the per-match summary returned by the
// conversations API: the other participant, the latest message (if any)
// and the caller's unread count.
type ConversationSummary struct {
	MatchID       uint            `json:"matchId"`
	User          *UserPublicInfo `json:"user"`
	LatestMessage *Message        `json:"latestMessage,omitempty"`
	UnreadCount   int64           `json:"unreadCount"`
	MatchedAt     time.Time       `json:"matchedAt"`
}
