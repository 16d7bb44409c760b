package dto

// ── 情侣空间模块 DTO ──

// CreateCoupleRequest 创建空间请求
type CreateCoupleRequest struct {
	Name            string  `json:"name"             binding:"required"`
	Description     *string `json:"description"`
	AnniversaryDate *string `json:"anniversary_date"` // YYYY-MM-DD
	PrivacyLevel    string  `json:"privacy_level"`    // 缺省为 private
	AvatarURL       *string `json:"avatar_url"`
}

// UpdateCoupleRequest 部分更新请求，只修改非 nil 字段
type UpdateCoupleRequest struct {
	Name            *string `json:"name"`
	Description     *string `json:"description"`
	AnniversaryDate *string `json:"anniversary_date"`
	PrivacyLevel    *string `json:"privacy_level"`
	AvatarURL       *string `json:"avatar_url"`
}

// JoinCoupleRequest 通过邀请码加入
type JoinCoupleRequest struct {
	Code string `json:"code" binding:"required"`
}

// CoupleResponse 空间基础信息
type CoupleResponse struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	CoupleCode      string  `json:"couple_code"`
	Description     *string `json:"description,omitempty"`
	AvatarURL       *string `json:"avatar_url,omitempty"`
	AnniversaryDate *string `json:"anniversary_date,omitempty"`
	PrivacyLevel    string  `json:"privacy_level"`
	IsActive        bool    `json:"is_active"`
	CreatorID       string  `json:"creator_id"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
}

// MemberResponse 成员关系
type MemberResponse struct {
	ID       string      `json:"id"`
	CoupleID string      `json:"couple_id"`
	UserID   string      `json:"user_id"`
	Role     string      `json:"role"`
	Status   string      `json:"status"`
	JoinedAt string      `json:"joined_at"`
	LeftAt   *string     `json:"left_at,omitempty"`
	User     *UserPublic `json:"user,omitempty"`
}

// CoupleWithMembersResponse 空间及其全部成员关系（任意状态）
type CoupleWithMembersResponse struct {
	CoupleResponse
	Members     []MemberResponse `json:"members"`
	MemberCount int              `json:"member_count"`
}
