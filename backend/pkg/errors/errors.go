// Package errors 定义跨层共享的错误类别。
// Service 层的具体业务错误通过 %w 包装其中之一，Handler 层据此映射 HTTP 状态码。
package errors

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// 错误类别
var (
	ErrValidation   = errors.New("参数校验失败")
	ErrNotFound     = errors.New("资源不存在")
	ErrConflict     = errors.New("资源冲突")
	ErrForbidden    = errors.New("无权操作")
	ErrAccessDenied = errors.New("拒绝访问")
	ErrTimeout      = errors.New("操作超时")
	ErrInternal     = errors.New("服务器内部错误")
)

// New 创建归属于指定类别的业务错误
func New(kind error, message string) error {
	return &kindError{kind: kind, msg: message}
}

// Validationf 创建参数校验错误
func Validationf(format string, args ...interface{}) error {
	return &kindError{kind: ErrValidation, msg: fmt.Sprintf(format, args...)}
}

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

// Kind 返回 err 所属的错误类别；无法识别的错误一律归为 ErrInternal
func Kind(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrValidation):
		return ErrValidation
	case errors.Is(err, ErrNotFound):
		return ErrNotFound
	case errors.Is(err, ErrConflict):
		return ErrConflict
	case errors.Is(err, ErrForbidden):
		return ErrForbidden
	case errors.Is(err, ErrAccessDenied):
		return ErrAccessDenied
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	default:
		return ErrInternal
	}
}

// FromStore 将存储层错误翻译为错误类别，保留原始错误链
func FromStore(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %w", ErrConflict, err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	default:
		return fmt.Errorf("%w: %w", ErrInternal, err)
	}
}
