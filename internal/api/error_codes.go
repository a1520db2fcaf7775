// internal/api/error_codes.go
package api

// API错误代码常量
const (
	// 通用错误
	ErrorBadRequest    = "BAD_REQUEST"
	ErrorNotFound      = "NOT_FOUND"
	ErrorInternalError = "INTERNAL_ERROR"
	ErrorUnauthorized  = "UNAUTHORIZED"
	ErrorRateLimited   = "RATE_LIMIT_EXCEEDED"

	// 模型相关错误
	ErrorModelFormat           = "MODEL_FORMAT_ERROR"
	ErrorLLMServiceUnavailable = "LLM_SERVICE_UNAVAILABLE"
	ErrorModelTimeout          = "MODEL_TIMEOUT"

	// 资源相关错误
	ErrorChapterNotFound = "CHAPTER_NOT_FOUND"
	ErrorTaskNotFound    = "TASK_NOT_FOUND"
)
