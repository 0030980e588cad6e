package response

import (
	"net/http"

	"github.com/growtharena/edge/errors"

	"github.com/gofiber/fiber/v3"
)

/* ========================================================================
 * Response - 统一响应处理
 * ========================================================================
 * 职责: 提供统一的 HTTP 响应处理函数
 * 特性:
 *   - 错误响应固定为 { "error": "...", "code": "..." }
 *   - 与 errors 包集成，自动识别 BizError 的状态码和 API code
 *   - 支持分页响应
 * ======================================================================== */

/* ========================================================================
 * 成功响应
 * ======================================================================== */

// OK 返回 200 和数据
func OK(c fiber.Ctx, data interface{}) error {
	if data == nil {
		data = &struct{}{}
	}
	return c.Status(http.StatusOK).JSON(data)
}

// Created 返回 201 和数据
func Created(c fiber.Ctx, data interface{}) error {
	if data == nil {
		data = &struct{}{}
	}
	return c.Status(http.StatusCreated).JSON(data)
}

// PageData 返回分页数据
func PageData(c fiber.Ctx, list interface{}, total int64, page, pageSize int) error {
	return OK(c, &PageResult{
		List:     list,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

/* ========================================================================
 * 错误响应
 * ======================================================================== */

// Error 返回错误响应
// 自动识别 BizError 类型，使用其 HTTP 状态码和稳定 API code
func Error(c fiber.Ctx, err error) error {
	if err == nil {
		return OK(c, nil)
	}
	status := errors.HTTPStatus(err)
	body := ErrorBody{Error: err.Error(), Code: errors.APICode(err)}
	if bizErr, ok := errors.AsBizError(err); ok {
		body.Error = bizErr.Message
	}
	if status >= 500 && status != http.StatusServiceUnavailable {
		// 内部错误不向客户端泄漏细节
		body.Error = "internal server error"
	}
	return c.Status(status).JSON(body)
}

// ErrorWith 返回错误响应（显式状态码、消息和 API code）
func ErrorWith(c fiber.Ctx, status int, message, code string) error {
	if status < http.StatusContinue || status > http.StatusNetworkAuthenticationRequired {
		status = http.StatusInternalServerError
	}
	return c.Status(status).JSON(ErrorBody{Error: message, Code: code})
}

/* ========================================================================
 * 快捷响应
 * ======================================================================== */

// BadRequest 返回 400 错误
func BadRequest(c fiber.Ctx, msg string) error {
	return ErrorWith(c, http.StatusBadRequest, msg, "")
}

// Unauthorized 返回 401 错误
func Unauthorized(c fiber.Ctx, msg string) error {
	return ErrorWith(c, http.StatusUnauthorized, msg, "unauthenticated")
}

// Forbidden 返回 403 错误
func Forbidden(c fiber.Ctx, msg, code string) error {
	return ErrorWith(c, http.StatusForbidden, msg, code)
}

// NotFound 返回 404 错误
func NotFound(c fiber.Ctx, msg, code string) error {
	return ErrorWith(c, http.StatusNotFound, msg, code)
}

// InternalError 返回 500 错误
func InternalError(c fiber.Ctx, msg string) error {
	return ErrorWith(c, http.StatusInternalServerError, msg, "")
}

// ServiceUnavailable 返回 503 错误
func ServiceUnavailable(c fiber.Ctx, msg, code string) error {
	return ErrorWith(c, http.StatusServiceUnavailable, msg, code)
}
