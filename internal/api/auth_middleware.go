// internal/api/auth_middleware.go
package api

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/SceneScribe/internal/auth"
	"github.com/Corphon/SceneScribe/internal/utils"
)

// 开发模式下的固定密钥，避免重启后令牌失效
const devAuthSecret = "dev_auth_key_for_testing_purposes_only_"

// TokenExpiration 令牌有效期
const TokenExpiration = 24 * time.Hour

// InitializeAuth 根据配置的密钥创建令牌配置
func InitializeAuth(secret string, debugMode bool) (*auth.TokenConfig, error) {
	var key []byte
	switch {
	case secret != "":
		key = []byte(secret)
	case debugMode:
		key = []byte(devAuthSecret)
		utils.GetLogger().Warn("⚠️ 开发模式下使用固定认证密钥，生产环境请设置 AUTH_SECRET_KEY", nil)
	default:
		generated, err := auth.GenerateSecureKey(32)
		if err != nil {
			return nil, fmt.Errorf("生成认证密钥失败: %w", err)
		}
		key = generated
		utils.GetLogger().Warn("未设置 AUTH_SECRET_KEY，已生成随机密钥，重启后已签发的令牌将失效", map[string]interface{}{
			"pid": os.Getpid(),
		})
	}

	return &auth.TokenConfig{
		Secret:     key,
		Expiration: TokenExpiration,
	}, nil
}

// AuthMiddleware 要求有效的 Bearer 令牌，否则返回401
func AuthMiddleware(tokenConfig *auth.TokenConfig) gin.HandlerFunc {
	rh := NewResponseHelper()
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			rh.Unauthorized(c, "缺少认证令牌")
			return
		}

		parsed, err := auth.ParseToken(token, tokenConfig)
		if err != nil {
			utils.GetLogger().Debug("拒绝无效令牌", map[string]interface{}{
				"path": c.Request.URL.Path,
				"err":  err,
			})
			rh.Unauthorized(c, "认证令牌无效或已过期")
			return
		}

		c.Set("user_id", parsed.UserID)
		c.Set("user_authenticated", true)
		c.Next()
	}
}

// extractToken 优先读取 Authorization 头；EventSource 和 WebSocket 无法设置请求头，退回到 token 查询参数
func extractToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		if !strings.HasPrefix(header, "Bearer ") {
			return ""
		}
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return strings.TrimSpace(c.Query("token"))
}

// GetUserFromContext retrieves the authenticated user from the context
func GetUserFromContext(c *gin.Context) (string, bool) {
	userID := c.GetString("user_id")
	if userID == "" {
		return "", false
	}
	return userID, c.GetBool("user_authenticated")
}
