// Package errors 提供统一的错误定义
package errors

import (
	"fmt"
	"net/http"
)

// ErrorCode 错误码类型
type ErrorCode string

// 预定义错误码
const (
	// 通用错误 (1xxx)
	CodeSuccess            ErrorCode = "0"
	CodeUnknown            ErrorCode = "1000"
	CodeInvalidParam       ErrorCode = "1001"
	CodeNotFound           ErrorCode = "1004"
	CodeTooManyRequests    ErrorCode = "1006"
	CodeInternalError      ErrorCode = "1007"
	CodeServiceUnavailable ErrorCode = "1008"

	// 配置错误 (41xx)：组件定义缺失/非法、排版配置缺失
	CodeConfigurationError  ErrorCode = "4101"
	CodeComponentNotFound   ErrorCode = "4102"
	CodeInvalidDefinition   ErrorCode = "4103"
	CodeTypographyMissing   ErrorCode = "4104"
	CodeRegistryLoadFailed  ErrorCode = "4105"

	// 校验错误 (42xx)：纯函数入参非法，立即同步返回
	CodeValidationFailed  ErrorCode = "4201"
	CodeInvalidCanvas     ErrorCode = "4202"
	CodeUnsupportedCount  ErrorCode = "4203"
	CodeSlotMismatch      ErrorCode = "4204"

	// 生成错误 (43xx)：LLM 调用失败/超时/输出不可解析
	CodeGenerationFailed ErrorCode = "4301"
	CodeLLMCallFailed    ErrorCode = "4302"
	CodeUnparseablePlan  ErrorCode = "4303"
	CodeFallbackFailed   ErrorCode = "4304"
)

// AppError 应用错误
type AppError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Detail     string    `json:"detail,omitempty"`
	HTTPStatus int       `json:"-"`
	Err        error     `json:"-"`
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 返回底层错误
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail 添加详细信息
func (e *AppError) WithDetail(detail string) *AppError {
	e.Detail = detail
	return e
}

// WithError 添加底层错误
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

// New 创建新的应用错误
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

// Wrap 包装错误
func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Err:        err,
	}
}

// Newf 创建带格式化消息的应用错误
func Newf(code ErrorCode, format string, args ...any) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// codeToHTTPStatus 错误码转 HTTP 状态码
func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case CodeSuccess:
		return http.StatusOK
	case CodeInvalidParam, CodeValidationFailed, CodeInvalidCanvas, CodeSlotMismatch:
		return http.StatusBadRequest
	case CodeUnsupportedCount:
		return http.StatusUnprocessableEntity
	case CodeNotFound, CodeComponentNotFound:
		return http.StatusNotFound
	case CodeTooManyRequests:
		return http.StatusTooManyRequests
	case CodeServiceUnavailable:
		return http.StatusServiceUnavailable
	case CodeGenerationFailed, CodeLLMCallFailed, CodeUnparseablePlan, CodeFallbackFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// 预定义错误
var (
	ErrInvalidParam       = New(CodeInvalidParam, "invalid parameter")
	ErrNotFound           = New(CodeNotFound, "resource not found")
	ErrInternalError      = New(CodeInternalError, "internal server error")
	ErrServiceUnavailable = New(CodeServiceUnavailable, "service unavailable")

	ErrComponentNotFound = New(CodeComponentNotFound, "component not found")
	ErrGenerationFailed  = New(CodeGenerationFailed, "content generation failed")
	ErrLLMCallFailed     = New(CodeLLMCallFailed, "LLM call failed")
)

// IsAppError 检查是否为 AppError
func IsAppError(err error) bool {
	_, ok := err.(*AppError)
	return ok
}

// AsAppError 将错误转换为 AppError
func AsAppError(err error) *AppError {
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return Wrap(err, CodeUnknown, "unknown error")
}

// IsCode 检查错误链上是否存在指定错误码
func IsCode(err error, code ErrorCode) bool {
	for err != nil {
		if appErr, ok := err.(*AppError); ok && appErr.Code == code {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// IsConfigurationError 是否为配置类错误 (41xx)
func IsConfigurationError(err error) bool {
	appErr, ok := err.(*AppError)
	if !ok {
		return false
	}
	switch appErr.Code {
	case CodeConfigurationError, CodeComponentNotFound, CodeInvalidDefinition, CodeTypographyMissing, CodeRegistryLoadFailed:
		return true
	}
	return false
}

// IsValidationError 是否为校验类错误 (42xx)
func IsValidationError(err error) bool {
	appErr, ok := err.(*AppError)
	if !ok {
		return false
	}
	switch appErr.Code {
	case CodeValidationFailed, CodeInvalidCanvas, CodeUnsupportedCount, CodeSlotMismatch:
		return true
	}
	return false
}

// IsGenerationError 是否为生成类错误 (43xx)
func IsGenerationError(err error) bool {
	for err != nil {
		if appErr, ok := err.(*AppError); ok {
			switch appErr.Code {
			case CodeGenerationFailed, CodeLLMCallFailed, CodeUnparseablePlan, CodeFallbackFailed:
				return true
			}
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
