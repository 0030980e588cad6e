package errors

import (
	"errors"
	"fmt"
	"sync"
)

/* ========================================================================
 * Edge Error Package - 统一错误处理
 * ========================================================================
 * 职责: 定义业务错误码，提供错误包装和 HTTP 映射工具
 * ======================================================================== */

// ========================================================================
// 错误码定义
// ========================================================================

// ErrorCode 业务错误码
type ErrorCode int

const (
	// 通用错误 (1xxx)
	ErrCodeUnknown          ErrorCode = 1000 // 未知错误
	ErrCodeInvalidArgument  ErrorCode = 1001 // 参数无效
	ErrCodeNotFound         ErrorCode = 1002 // 资源不存在
	ErrCodeAlreadyExists    ErrorCode = 1003 // 资源已存在
	ErrCodePermissionDenied ErrorCode = 1004 // 权限不足
	ErrCodeUnauthenticated  ErrorCode = 1005 // 未认证
	ErrCodeInternal         ErrorCode = 1006 // 内部错误
	ErrCodeUnavailable      ErrorCode = 1007 // 服务不可用
	ErrCodeTimeout          ErrorCode = 1008 // 超时

	// 租户/授权错误 (2xxx)
	ErrCodeUnknownTenant        ErrorCode = 2001 // 子域名或自定义域名无法解析
	ErrCodeNotAMember           ErrorCode = 2002 // 会话不属于该租户
	ErrCodeBillingInactive      ErrorCode = 2003 // 个人订阅未激活
	ErrCodeSubscriptionInactive ErrorCode = 2004 // 组织订阅未激活
	ErrCodePlanLocked           ErrorCode = 2005 // 功能需要更高套餐
	ErrCodeResolutionTimeout    ErrorCode = 2006 // 租户解析超时
)

// ========================================================================
// 业务错误类型
// ========================================================================

// BizError 业务错误
type BizError struct {
	Code    ErrorCode // 业务错误码
	Message string    // 错误消息
	Cause   error     // 原始错误
}

// Error 实现 error 接口
func (e *BizError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Is 支持 errors.Is：按业务错误码匹配
func (e *BizError) Is(target error) bool {
	t, ok := target.(*BizError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Unwrap 支持 errors.Is 和 errors.As
func (e *BizError) Unwrap() error {
	return e.Cause
}

// ========================================================================
// 错误构造函数
// ========================================================================

// New 创建业务错误
func New(code ErrorCode, message string) *BizError {
	return &BizError{
		Code:    code,
		Message: message,
	}
}

// Wrap 包装错误
func Wrap(code ErrorCode, message string, cause error) *BizError {
	return &BizError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Wrapf 格式化包装错误
func Wrapf(code ErrorCode, cause error, format string, args ...any) *BizError {
	return &BizError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// ========================================================================
// 预定义错误（便于 errors.Is 判断）
// ========================================================================

var (
	ErrInvalidArgument  = New(ErrCodeInvalidArgument, "invalid argument")
	ErrNotFound         = New(ErrCodeNotFound, "resource not found")
	ErrAlreadyExists    = New(ErrCodeAlreadyExists, "resource already exists")
	ErrPermissionDenied = New(ErrCodePermissionDenied, "permission denied")
	ErrUnauthenticated  = New(ErrCodeUnauthenticated, "unauthenticated")
	ErrInternal         = New(ErrCodeInternal, "internal error")
	ErrUnavailable      = New(ErrCodeUnavailable, "service unavailable")
	ErrTimeout          = New(ErrCodeTimeout, "timeout")

	ErrUnknownTenant        = New(ErrCodeUnknownTenant, "unknown tenant")
	ErrNotAMember           = New(ErrCodeNotAMember, "not a member of this organization")
	ErrBillingInactive      = New(ErrCodeBillingInactive, "billing inactive")
	ErrSubscriptionInactive = New(ErrCodeSubscriptionInactive, "subscription inactive")
	ErrPlanLocked           = New(ErrCodePlanLocked, "plan tier insufficient")
	ErrResolutionTimeout    = New(ErrCodeResolutionTimeout, "tenant resolution timed out")
)

// ========================================================================
// 错误判断辅助函数
// ========================================================================

// Is 判断错误是否为指定类型
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As 将错误转换为指定类型
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Code 获取错误码
func Code(err error) ErrorCode {
	var bizErr *BizError
	if errors.As(err, &bizErr) {
		return bizErr.Code
	}
	return ErrCodeUnknown
}

// IsNotFound 判断是否为 NotFound 错误
func IsNotFound(err error) bool {
	code := Code(err)
	return code == ErrCodeNotFound || code == ErrCodeUnknownTenant
}

// AsBizError 将错误转换为 BizError
func AsBizError(err error) (*BizError, bool) {
	if err == nil {
		return nil, false
	}
	var bizErr *BizError
	if errors.As(err, &bizErr) {
		return bizErr, true
	}
	return nil, false
}

// ========================================================================
// HTTP 错误转换
// ========================================================================

// httpStatusCode 业务错误码到 HTTP 状态码映射
var httpStatusCode = map[ErrorCode]int{
	ErrCodeUnknown:          500,
	ErrCodeInvalidArgument:  400,
	ErrCodeNotFound:         404,
	ErrCodeAlreadyExists:    409,
	ErrCodePermissionDenied: 403,
	ErrCodeUnauthenticated:  401,
	ErrCodeInternal:         500,
	ErrCodeUnavailable:      503,
	ErrCodeTimeout:          504,

	ErrCodeUnknownTenant:        404,
	ErrCodeNotAMember:           403,
	ErrCodeBillingInactive:      403,
	ErrCodeSubscriptionInactive: 503,
	ErrCodePlanLocked:           403,
	ErrCodeResolutionTimeout:    404, // degrades to unknown tenant
}

// apiCode 业务错误码到稳定 API error code 映射
var apiCode = map[ErrorCode]string{
	ErrCodeUnauthenticated:      "unauthenticated",
	ErrCodePermissionDenied:     "forbidden",
	ErrCodeUnknownTenant:        "unknown_tenant",
	ErrCodeNotAMember:           "not_a_member",
	ErrCodeBillingInactive:      "billing_required",
	ErrCodeSubscriptionInactive: "subscription_inactive",
	ErrCodePlanLocked:           "plan_locked",
	ErrCodeResolutionTimeout:    "unknown_tenant",
}

var (
	httpStatusMu         sync.RWMutex
	httpStatusOverrides  = make(map[ErrorCode]int)
	httpStatusResolverFn func(ErrorCode) (int, bool)
)

// RegisterHTTPStatus 注册业务错误码与 HTTP 状态码映射
func RegisterHTTPStatus(code ErrorCode, status int) {
	httpStatusMu.Lock()
	defer httpStatusMu.Unlock()
	httpStatusOverrides[code] = status
}

// SetHTTPStatusResolver 设置自定义的 HTTP 状态码解析器
// 解析器返回 (status, true) 表示命中，否则继续使用默认映射。
func SetHTTPStatusResolver(resolver func(ErrorCode) (int, bool)) {
	httpStatusMu.Lock()
	defer httpStatusMu.Unlock()
	httpStatusResolverFn = resolver
}

func resolveHTTPStatus(code ErrorCode) (int, bool) {
	httpStatusMu.RLock()
	if status, ok := httpStatusOverrides[code]; ok {
		httpStatusMu.RUnlock()
		return status, true
	}
	resolver := httpStatusResolverFn
	httpStatusMu.RUnlock()

	if resolver != nil {
		if status, ok := resolver(code); ok {
			return status, true
		}
	}
	return 0, false
}

// HTTPStatus 返回业务错误对应的 HTTP 状态码
func HTTPStatus(err error) int {
	if err == nil {
		return 200
	}
	var bizErr *BizError
	if errors.As(err, &bizErr) {
		if status, ok := resolveHTTPStatus(bizErr.Code); ok {
			return status
		}
		if status, ok := httpStatusCode[bizErr.Code]; ok {
			return status
		}
	}
	return 500
}

// APICode 返回业务错误对应的稳定 API error code，可能为空
func APICode(err error) string {
	var bizErr *BizError
	if errors.As(err, &bizErr) {
		return apiCode[bizErr.Code]
	}
	return ""
}
