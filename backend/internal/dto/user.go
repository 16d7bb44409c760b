package dto

// ── 用户模块 DTO ──

// UpdateProfileRequest 更新个人资料请求（仅更新非 nil 字段）
type UpdateProfileRequest struct {
	Name      *string `json:"name"`
	AvatarURL *string `json:"avatar_url"`
}

// DeleteAccountRequest 注销账号请求，confirmation 须为 DELETE
type DeleteAccountRequest struct {
	Confirmation string `json:"confirmation" binding:"required"`
}

// AvatarUploadRequest 头像上传地址申请
type AvatarUploadRequest struct {
	FileName    string `json:"file_name"    binding:"required,max=200"`
	ContentType string `json:"content_type" binding:"omitempty,max=100"`
}

// AvatarUploadResponse 头像预签名上传地址
type AvatarUploadResponse struct {
	UploadURL string `json:"upload_url"`
	ObjectKey string `json:"object_key"`
	PublicURL string `json:"public_url"`
	ExpiresAt string `json:"expires_at"`
}

// ProfileResponse 当前用户资料
type ProfileResponse struct {
	ID        string  `json:"id"`
	Email     string  `json:"email"`
	Name      string  `json:"name"`
	AvatarURL *string `json:"avatar_url,omitempty"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

// UserPublic 成员视图中的用户公开字段
type UserPublic struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Email     string  `json:"email"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}
