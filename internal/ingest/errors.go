package ingest

import (
	"errors"
	"fmt"
)

// ValidationError 载荷不合法（损坏、类型不支持、哈希不匹配）
// 重试同样的字节不会成功，客户端不应自动重试
type ValidationError struct {
	msg string
	err error
}

func (e *ValidationError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

func (e *ValidationError) Unwrap() error { return e.err }

// TransientError 后端暂时不可用（存储、数据库、网络）
// 客户端可以稍后重试同一载荷
type TransientError struct {
	msg string
	err error
}

func (e *TransientError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

func (e *TransientError) Unwrap() error { return e.err }

func newValidationError(msg string, err error) error {
	return &ValidationError{msg: msg, err: err}
}

func newTransientError(msg string, err error) error {
	return &TransientError{msg: msg, err: err}
}

// IsValidation 判断是否为校验失败
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsTransient 判断是否为暂时性失败
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
