package model

import "time"

// 成员角色
const (
	RoleCreator = "creator"
	RoleMember  = "member"
)

// 成员状态
const (
	MemberStatusActive  = "active"
	MemberStatusPending = "pending"
	MemberStatusLeft    = "left"
)

// CoupleMember 成员关系表，对应 couple_members
// 记录只做 active → left 的状态流转，不物理删除
type CoupleMember struct {
	MemberID string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"member_id"`
	CoupleID string     `gorm:"type:uuid;not null;index"                       json:"couple_id"`
	UserID   string     `gorm:"type:uuid;not null;index"                       json:"user_id"`
	Role     string     `gorm:"type:varchar(20);not null"                      json:"role"`
	Status   string     `gorm:"type:varchar(20);not null;default:'active'"     json:"status"`
	JoinedAt time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"joined_at"`
	LeftAt   *time.Time `json:"left_at,omitempty"`

	// 关联（读取时联表，用户已注销时为 nil）
	User *User `gorm:"foreignKey:UserID;references:UserID" json:"user,omitempty"`
}

// TableName 指定表名
func (CoupleMember) TableName() string { return "couple_members" }

// IsActive 成员关系是否处于活跃状态
func (m *CoupleMember) IsActive() bool { return m.Status == MemberStatusActive }
