package models

import "time"

// Match 代表两个用户之间的一条配对记录。
// 每个无序用户对最多存在一条记录：UserID1 < UserID2 的规范顺序
// 加上 (user_id1, user_id2) 的唯一索引共同保证这一点。
type Match struct {
	BaseModel
	UserID1    uint       `gorm:"not null;uniqueIndex:idx_match_pair,priority:1" json:"userId1"`
	UserID2    uint       `gorm:"not null;uniqueIndex:idx_match_pair,priority:2" json:"userId2"`
	User1Liked bool       `gorm:"default:false" json:"user1Liked"`
	User2Liked bool       `gorm:"default:false" json:"user2Liked"`
	IsMatch    bool       `gorm:"default:false;index" json:"isMatch"` // 双方都喜欢后置为 true，且不再回退
	MatchedAt  *time.Time `json:"matchedAt,omitempty"`
}

// EnsureCanonicalOrder 保证 UserID1 < UserID2，使无序对具有确定的存储形式。
func (m *Match) EnsureCanonicalOrder() {
	if m.UserID1 > m.UserID2 {
		m.UserID1, m.UserID2 = m.UserID2, m.UserID1
		m.User1Liked, m.User2Liked = m.User2Liked, m.User1Liked
	}
}

// HasParticipant reports whether the given user is one side of this match.
func (m *Match) HasParticipant(userID uint) bool {
	return m.UserID1 == userID || m.UserID2 == userID
}

// OtherParticipant returns the counterpart of the given user in this match.
// 调用前必须确认 userID 是参与者之一。
func (m *Match) OtherParticipant(userID uint) uint {
	if m.UserID1 == userID {
		return m.UserID2
	}
	return m.UserID1
}

// SetLiked records the liked flag for the given participant's own side only.
func (m *Match) SetLiked(userID uint, liked bool) {
	if m.UserID1 == userID {
		m.User1Liked = liked
	} else if m.UserID2 == userID {
		m.User2Liked = liked
	}
}

// MatchWithUser is a DTO pairing a match with the other participant's
// public profile, for the match list API.
type MatchWithUser struct {
	MatchID   uint            `json:"matchId"`
	User      *UserPublicInfo `json:"user"`
	MatchedAt time.Time       `json:"matchedAt"`
}

// TableName 指定 Match 模型的表名。
func (Match) TableName() string {
	return "matches"
}
