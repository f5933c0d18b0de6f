package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ErrorKind 业务错误分类，由接口层映射为 HTTP 状态码
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindBadRequest
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
)

// AppError 业务错误
type AppError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

func newError(kind ErrorKind, msg string) *AppError {
	return &AppError{Kind: kind, Message: msg}
}

func BadRequest(msg string) *AppError   { return newError(KindBadRequest, msg) }
func Unauthorized(msg string) *AppError { return newError(KindUnauthorized, msg) }
func Forbidden(msg string) *AppError    { return newError(KindForbidden, msg) }
func NotFound(msg string) *AppError     { return newError(KindNotFound, msg) }
func Conflict(msg string) *AppError     { return newError(KindConflict, msg) }

// Internal 包装底层错误
func Internal(msg string, err error) *AppError {
	return &AppError{Kind: KindInternal, Message: msg, Err: err}
}

// KindOf 取错误分类，非 AppError 视为内部错误
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// dbError 记录不存在映射为 NotFound，其余包装为内部错误
func dbError(err error, notFoundMsg, internalMsg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NotFound(notFoundMsg)
	}
	return Internal(internalMsg, err)
}
