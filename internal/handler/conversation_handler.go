package handler

import (
	"net/http"
	"visamate-go/internal/service"
	"visamate-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// ConversationHandler 处理对话快照缓存的读取接口。
type ConversationHandler struct {
	conversationService service.ConversationService
}

// NewConversationHandler 创建一个新的 ConversationHandler 实例。
func NewConversationHandler(conversationService service.ConversationService) *ConversationHandler {
	return &ConversationHandler{conversationService: conversationService}
}

// GetConversation 返回指定会话的对话快照。
func (h *ConversationHandler) GetConversation(c *gin.Context) {
	sessionID := c.Query("sessionId")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing sessionId parameter"})
		return
	}

	messages, err := h.conversationService.GetConversation(c.Request.Context(), sessionID)
	if err != nil {
		log.Errorf("[ConversationHandler] 读取对话快照失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": messages})
}
