package api

import (
	"net/http"
	"strconv"

	"bugmarket/middleware"
	"bugmarket/service"

	"github.com/gin-gonic/gin"
)

// Response 通用响应结构，成功时 code 为 0，失败时与 HTTP 状态码一致
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// PageResponse 分页响应结构
type PageResponse struct {
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
	List     interface{} `json:"list"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// SuccessWithMessage 带消息的成功响应
func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    0,
		Message: message,
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, code int, message string) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
	})
}

// BadRequest 400 错误响应
func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

// Unauthorized 401 错误响应
func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, message)
}

// Forbidden 403 错误响应
func Forbidden(c *gin.Context, message string) {
	Error(c, http.StatusForbidden, message)
}

// NotFound 404 错误响应
func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, message)
}

// Conflict 409 错误响应
func Conflict(c *gin.Context, message string) {
	Error(c, http.StatusConflict, message)
}

// InternalError 500 错误响应
func InternalError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, message)
}

// RespondError 按业务错误分类输出，内部错误在生产环境隐藏细节
func RespondError(c *gin.Context, err error) {
	var appErr *service.AppError
	if !asAppError(err, &appErr) {
		_ = c.Error(err)
		InternalError(c, SafeErrorMessage(err, "服务器内部错误"))
		return
	}

	switch appErr.Kind {
	case service.KindBadRequest:
		BadRequest(c, appErr.Message)
	case service.KindUnauthorized:
		Unauthorized(c, appErr.Message)
	case service.KindForbidden:
		Forbidden(c, appErr.Message)
	case service.KindNotFound:
		NotFound(c, appErr.Message)
	case service.KindConflict:
		Conflict(c, appErr.Message)
	default:
		_ = c.Error(err)
		InternalError(c, SafeErrorMessage(err, appErr.Message))
	}
}

// pagination 解析 page/page_size，默认 1/10，上限 100
func pagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.Query("page"))
	pageSize, _ := strconv.Atoi(c.Query("page_size"))
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 10
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}

// parseID 解析路径中的数字 ID
func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		BadRequest(c, "无效的ID")
		return 0, false
	}
	return uint(id), true
}

// currentOperator 当前登录用户作为操作人
func currentOperator(c *gin.Context) service.Operator {
	return service.Operator{
		ID:   middleware.GetCurrentUserID(c),
		Role: middleware.GetCurrentRole(c),
		IP:   c.ClientIP(),
	}
}
