// internal/api/response_helpers.go
package api

import (
	stderrors "errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/Corphon/SceneScribe/internal/errors"
	"github.com/Corphon/SceneScribe/internal/utils"
)

// APIResponse 统一的响应包装
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Message   string      `json:"message,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"`
}

// APIError 错误详情
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ResponseHelper 响应助手类
type ResponseHelper struct{}

// NewResponseHelper 创建响应助手
func NewResponseHelper() *ResponseHelper {
	return &ResponseHelper{}
}

// Success 成功响应
func (rh *ResponseHelper) Success(c *gin.Context, data interface{}, message ...string) {
	response := &APIResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
		RequestID: rh.getRequestID(c),
	}
	if len(message) > 0 {
		response.Message = message[0]
	}
	c.JSON(http.StatusOK, response)
}

// sanitizeErrorMessage 含有密钥类字样的消息整体替换
func sanitizeErrorMessage(message string) string {
	lower := strings.ToLower(message)
	for _, pattern := range []string{"api_key", "apikey", "secret", "token", "password"} {
		if strings.Contains(lower, pattern) {
			return "An internal error occurred"
		}
	}
	return message
}

// Error 错误响应
func (rh *ResponseHelper) Error(c *gin.Context, statusCode int, errorCode, message string, details ...string) {
	apiError := &APIError{
		Code:    errorCode,
		Message: sanitizeErrorMessage(message),
	}
	if len(details) > 0 {
		apiError.Details = sanitizeErrorMessage(details[0])
	}

	c.AbortWithStatusJSON(statusCode, &APIResponse{
		Success:   false,
		Error:     apiError,
		Timestamp: time.Now(),
		RequestID: rh.getRequestID(c),
	})
}

// BadRequest 400错误响应
func (rh *ResponseHelper) BadRequest(c *gin.Context, message string, details ...string) {
	rh.Error(c, http.StatusBadRequest, ErrorBadRequest, message, details...)
}

// Unauthorized 401错误响应
func (rh *ResponseHelper) Unauthorized(c *gin.Context, message string) {
	rh.Error(c, http.StatusUnauthorized, ErrorUnauthorized, message)
}

// NotFound 404错误响应
func (rh *ResponseHelper) NotFound(c *gin.Context, code, message string) {
	rh.Error(c, http.StatusNotFound, code, message)
}

// InternalError 500错误响应
func (rh *ResponseHelper) InternalError(c *gin.Context, message string, details ...string) {
	rh.Error(c, http.StatusInternalServerError, ErrorInternalError, message, details...)
}

// AppError 按错误类型映射状态码；传输类错误只返回通用描述，原始错误写入日志
func (rh *ResponseHelper) AppError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if !stderrors.As(err, &appErr) {
		utils.GetLogger().Error("未分类的处理错误", map[string]interface{}{"path": c.FullPath(), "err": err})
		rh.InternalError(c, "处理请求时发生错误")
		return
	}

	switch appErr.Type {
	case apperrors.ErrorTypeTransport:
		utils.GetLogger().Error("模型服务调用失败", map[string]interface{}{"path": c.FullPath(), "err": err})
		rh.Error(c, appErr.HTTPStatus(), ErrorLLMServiceUnavailable, "AI服务暂时不可用，请稍后重试")
	case apperrors.ErrorTypeTimeout:
		rh.Error(c, appErr.HTTPStatus(), ErrorModelTimeout, "AI服务响应超时")
	case apperrors.ErrorTypeModelFormat:
		utils.GetLogger().Warn("模型输出格式无效", map[string]interface{}{"path": c.FullPath(), "err": err})
		rh.Error(c, appErr.HTTPStatus(), ErrorModelFormat, "AI返回的内容格式无效")
	case apperrors.ErrorTypeError:
		utils.GetLogger().Error("请求处理失败", map[string]interface{}{"path": c.FullPath(), "err": err})
		rh.Error(c, appErr.HTTPStatus(), appErr.Code, appErr.Message)
	default:
		rh.Error(c, appErr.HTTPStatus(), appErr.Code, appErr.Message)
	}
}

// getRequestID 获取请求ID
func (rh *ResponseHelper) getRequestID(c *gin.Context) string {
	return c.GetString("request_id")
}
