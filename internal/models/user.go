package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Gender 定义用户性别取值。
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// StringList 是存储为 JSONB 的字符串切片（兴趣、照片 URL 等）。
type StringList []string

// Value implements driver.Valuer so gorm can persist the list as JSONB.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("无法将 %T 扫描为 StringList", src)
	}
}

// Preferences 是用户的匹配偏好子记录，嵌入在 users 表中。
// 硬性过滤项（deal-breaker）会把候选人直接排除出发现结果。
type Preferences struct {
	MinAge          int  `gorm:"default:18" json:"minAge"`
	MaxAge          int  `gorm:"default:50" json:"maxAge"`
	MaxDistanceKm   int  `gorm:"default:50" json:"maxDistance"` // 单位：公里
	ReligionMatters bool `gorm:"default:false" json:"religionMatters"`
	NoSmoking       bool `gorm:"default:false" json:"noSmoking"`
	NoDrugs         bool `gorm:"default:false" json:"noDrugs"`
	WantsChildren   bool `gorm:"default:false" json:"wantsChildren"` // 只接受想要孩子的候选人
}

// User 代表系统中的用户。
// 地理位置默认为 (0,0) 哨兵值，表示"未设置位置"。
type User struct {
	BaseModel
	Email        string     `gorm:"type:varchar(100);uniqueIndex;not null" json:"email"`
	PasswordHash string     `gorm:"type:varchar(255);not null" json:"-"` // 不暴露密码哈希
	Name         string     `gorm:"type:varchar(100);not null" json:"name"`
	Age          int        `gorm:"not null" json:"age"`
	Gender       Gender     `gorm:"type:varchar(10)" json:"gender,omitempty"`
	LookingFor   Gender     `gorm:"type:varchar(10)" json:"lookingFor,omitempty"`
	Bio          string     `gorm:"type:text" json:"bio,omitempty"`
	Interests    StringList `gorm:"type:jsonb" json:"interests,omitempty"`
	Photos       StringList `gorm:"type:jsonb" json:"photos,omitempty"`
	Religion     string     `gorm:"type:varchar(50)" json:"religion,omitempty"`
	Smoking      bool       `gorm:"default:false" json:"smoking"`
	Drugs        bool       `gorm:"default:false" json:"drugs"`
	HasChildren  bool       `gorm:"default:false" json:"hasChildren"`
	WantsKids    bool       `gorm:"default:false" json:"wantsKids"`

	// 地理位置 (经度, 纬度)，(0,0) 表示未设置。
	Longitude float64 `gorm:"default:0" json:"longitude"`
	Latitude  float64 `gorm:"default:0" json:"latitude"`

	Preferences Preferences `gorm:"embedded;embeddedPrefix:pref_" json:"preferences"`

	// 资料完善进度：ProfileStep 记录已完成到哪一步，
	// ProfileCompleted 为 true 后才能进入发现流程。
	ProfileStep      int  `gorm:"default:0" json:"profileStep"`
	ProfileCompleted bool `gorm:"default:false" json:"profileCompleted"`

	Verified   bool       `gorm:"default:false" json:"verified"`
	IsOnline   bool       `gorm:"default:false" json:"isOnline"`
	LastSeenAt *time.Time `json:"lastSeenAt,omitempty"`
}

// HasLocation reports whether the user has set a real geographic point.
// (0,0) 是"未设置位置"的哨兵值。
func (u *User) HasLocation() bool {
	return u.Longitude != 0 || u.Latitude != 0
}

// UserPublicInfo holds the public subset of a user's profile.
// Used for candidate cards, match lists and conversation summaries.
type UserPublicInfo struct {
	ID         uint       `json:"id"`
	Name       string     `json:"name"`
	Age        int        `json:"age"`
	Gender     Gender     `json:"gender,omitempty"`
	Bio        string     `json:"bio,omitempty"`
	Interests  StringList `json:"interests,omitempty"`
	Photos     StringList `json:"photos,omitempty"`
	IsOnline   bool       `json:"isOnline"`
	LastSeenAt *time.Time `json:"lastSeenAt,omitempty"`
}

// PublicInfo strips the user down to fields safe for display to other users.
func (u *User) PublicInfo() *UserPublicInfo {
	return &UserPublicInfo{
		ID:         u.ID,
		Name:       u.Name,
		Age:        u.Age,
		Gender:     u.Gender,
		Bio:        u.Bio,
		Interests:  u.Interests,
		Photos:     u.Photos,
		IsOnline:   u.IsOnline,
		LastSeenAt: u.LastSeenAt,
	}
}

// TableName 指定 User 模型的表名。
func (User) TableName() string {
	return "users"
}
