package model

import "time"

// 隐私级别
const (
	PrivacyPublic     = "public"
	PrivacyPrivate    = "private"
	PrivacyInviteOnly = "invite_only"
)

// ValidPrivacyLevel 校验隐私级别取值
func ValidPrivacyLevel(level string) bool {
	switch level {
	case PrivacyPublic, PrivacyPrivate, PrivacyInviteOnly:
		return true
	}
	return false
}

// Couple 情侣空间表，对应 couples
type Couple struct {
	CoupleID        string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"couple_id"`
	Name            string     `gorm:"type:varchar(255);not null"                     json:"name"`
	CoupleCode      string     `gorm:"type:char(6);not null;uniqueIndex"              json:"couple_code"`
	Description     *string    `gorm:"type:varchar(1000)"                             json:"description,omitempty"`
	AvatarURL       *string    `gorm:"type:text"                                      json:"avatar_url,omitempty"`
	AnniversaryDate *time.Time `gorm:"type:date"                                      json:"anniversary_date,omitempty"`
	PrivacyLevel    string     `gorm:"type:varchar(20);not null;default:'private'"    json:"privacy_level"`
	IsActive        bool       `gorm:"not null;default:true"                          json:"is_active"`
	CreatorID       string     `gorm:"type:uuid;not null;index"                       json:"creator_id"`
	BaseModel
}

// TableName 指定表名
func (Couple) TableName() string { return "couples" }
