package service

import (
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"couple-app/backend/internal/model"
	apperrors "couple-app/backend/pkg/errors"
)

const (
	maxNameLength        = 255
	maxDescriptionLength = 1000
	dateLayout           = "2006-01-02"
)

func validateName(field, name string) error {
	n := utf8.RuneCountInString(name)
	if n < 1 || n > maxNameLength {
		return apperrors.Validationf("%s长度须在 1-%d 个字符之间", field, maxNameLength)
	}
	return nil
}

func validateDescription(desc string) error {
	if utf8.RuneCountInString(desc) > maxDescriptionLength {
		return apperrors.Validationf("描述不能超过 %d 个字符", maxDescriptionLength)
	}
	return nil
}

// validateAvatarURL 头像地址须为 http(s) 绝对地址
func validateAvatarURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return apperrors.Validationf("头像地址格式错误")
	}
	return nil
}

func validatePrivacyLevel(level string) error {
	if model.ValidPrivacyLevel(level) {
		return nil
	}
	return apperrors.Validationf("隐私级别须为 public、private 或 invite_only")
}

// parseDate 解析 YYYY-MM-DD；空字符串返回 nil 表示清空
func parseDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, apperrors.Validationf("纪念日格式错误，应为 YYYY-MM-DD")
	}
	return &t, nil
}

// validID 非 UUID 的路径参数不会命中任何记录
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
