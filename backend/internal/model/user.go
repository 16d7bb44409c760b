package model

// User 用户表，对应 users
// FirebaseUID 为身份提供方的 subject，创建后不可变
type User struct {
	UserID      string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"user_id"`
	FirebaseUID string  `gorm:"type:varchar(128);not null;uniqueIndex"         json:"-"`
	Email       string  `gorm:"type:varchar(255);not null;uniqueIndex"         json:"email"`
	Name        string  `gorm:"type:varchar(255);not null"                     json:"name"`
	AvatarURL   *string `gorm:"type:text"                                      json:"avatar_url,omitempty"`
	BaseModel
}

// TableName 指定表名
func (User) TableName() string { return "users" }
