// internal/api/settings_handlers.go
package api

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// UpdateLLMSettingsRequest 更新模型配置
type UpdateLLMSettingsRequest struct {
	Provider string            `json:"provider" binding:"required"`
	Config   map[string]string `json:"config" binding:"required"`
}

// GetLLMSettings 当前模型配置，不返回密钥明文
func (h *Handler) GetLLMSettings(c *gin.Context) {
	h.rh.Success(c, h.Settings.GetLLMSettings())
}

// UpdateLLMSettings 切换模型提供商
func (h *Handler) UpdateLLMSettings(c *gin.Context) {
	var req UpdateLLMSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.rh.BadRequest(c, "无效的请求格式", err.Error())
		return
	}

	userID, _ := GetUserFromContext(c)
	settings, err := h.Settings.UpdateLLMConfig(req.Provider, req.Config, userID)
	if err != nil {
		h.rh.AppError(c, err)
		return
	}
	h.rh.Success(c, settings, "模型配置已更新")
}

// GetSettingsHistory 配置变更历史
func (h *Handler) GetSettingsHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	h.rh.Success(c, h.Settings.GetChangeHistory(limit))
}
