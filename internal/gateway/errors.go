package gateway

import (
	"errors"
	"fmt"
	"strings"
)

// Code 封闭的错误分类
// 后端原始错误只作为诊断信息携带，绝不原样展示给终端用户
type Code string

const (
	CodeTokenExpired    Code = "TOKEN_EXPIRED"
	CodeTokenInvalid    Code = "TOKEN_INVALID"
	CodeUnauthorized    Code = "UNAUTHORIZED"
	CodeValidationError Code = "VALIDATION_ERROR"
	CodeNetworkError    Code = "NETWORK_ERROR"
	CodeRateLimited     Code = "RATE_LIMITED"
	CodeDatabaseError   Code = "DATABASE_ERROR"
	CodeUnknownError    Code = "UNKNOWN_ERROR"
)

// Error 网关层错误
type Error struct {
	Code    Code
	Message string // 后端原始文案（仅诊断用）
	Cause   error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError 构造网关错误
func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func wrapError(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf 提取错误分类，非网关错误归为UNKNOWN_ERROR
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Code
	}
	return CodeUnknownError
}

// ClassifyTokenError Token兑换错误的唯一翻译点
// 后端只通过错误文案的子串表达类别："expired" / "invalid"
// 措辞耦合集中在这一个函数里，由单元测试钉死
func ClassifyTokenError(err error) *Error {
	if err == nil {
		return nil
	}
	var ge *Error
	msg := err.Error()
	if errors.As(err, &ge) {
		msg = ge.Message
	}
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "expired"):
		return wrapError(CodeTokenExpired, msg, err)
	case strings.Contains(lower, "invalid"):
		return wrapError(CodeTokenInvalid, msg, err)
	default:
		return wrapError(CodeNetworkError, msg, err)
	}
}

// UserMessage 面向成人用户（社工/寄养人）的简短提示
func UserMessage(code Code) string {
	switch code {
	case CodeTokenExpired:
		return "This access link has expired. Please request a new one."
	case CodeTokenInvalid:
		return "This access link is no longer valid. Please request a new one."
	case CodeUnauthorized:
		return "You are not signed in, or your session has ended."
	case CodeValidationError:
		return "Please check what you entered and try again."
	case CodeRateLimited:
		return "Too many attempts. Please wait a moment and try again."
	case CodeNetworkError:
		return "We couldn't reach the server. Please check your connection."
	case CodeDatabaseError:
		return "Something went wrong saving your changes. Please try again."
	default:
		return "Something went wrong. Please try again."
	}
}

// ChildMessage 面向儿童界面的提示：更简短、非技术化，绝不包含后端原文
func ChildMessage(code Code) string {
	switch code {
	case CodeTokenExpired, CodeTokenInvalid:
		return "This link doesn't work anymore. Ask your social worker for a new one."
	case CodeNetworkError:
		return "We couldn't connect right now. Please try again in a bit."
	default:
		return "Something didn't work. Please try again."
	}
}
