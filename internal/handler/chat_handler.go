// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"encoding/json"
	"net/http"
	"visamate-go/internal/model"
	"visamate-go/internal/service"
	"visamate-go/pkg/log"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源
	},
}

// ChatHandler 负责对话接口的两种传输：HTTP SSE 与 WebSocket。
type ChatHandler struct {
	chatService service.ChatService
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(chatService service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// Chat 以 SSE 流式返回一次对话轮。请求体缺失 messages 或 messages
// 不是数组时返回 400；流开始前的内部故障返回通用 500，流开始后的
// 故障以 error 事件结束流，不泄漏内部细节。
func (h *ChatHandler) Chat(c *gin.Context) {
	var req model.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Messages == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing or invalid 'messages' field"})
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	sink := &sseSink{c: c}
	if err := h.chatService.StreamConversation(c.Request.Context(), req, sink); err != nil {
		log.Errorf("[ChatHandler] 对话流处理失败: %v", err)
		if !sink.started {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
		// 已经开始流式输出：以 error 事件收尾，已发送的内容保持不变
		_ = sink.SendEvent(model.StreamEvent{
			Type:  model.EventError,
			Error: "Internal server error",
		})
	}
}

// ChatWS 处理 WebSocket 传输的对话：每条客户端消息是一个完整的
// 对话请求，响应为与 SSE 相同的事件对象序列。
func (h *ChatHandler) ChatWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	log.Info("WebSocket 对话连接已建立")

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Warnf("从 WebSocket 读取消息失败: %v", err)
			break
		}

		var req model.ChatRequest
		if err := json.Unmarshal(message, &req); err != nil || req.Messages == nil {
			errEvent, _ := json.Marshal(model.StreamEvent{
				Type:  model.EventError,
				Error: "Missing or invalid 'messages' field",
			})
			_ = conn.WriteMessage(websocket.TextMessage, errEvent)
			continue
		}

		sink := &wsSink{conn: conn}
		if err := h.chatService.StreamConversation(c.Request.Context(), req, sink); err != nil {
			log.Errorf("[ChatHandler] WebSocket 对话流处理失败: %v", err)
			errEvent, _ := json.Marshal(model.StreamEvent{
				Type:  model.EventError,
				Error: "Internal server error",
			})
			if wErr := conn.WriteMessage(websocket.TextMessage, errEvent); wErr != nil {
				break
			}
		}
	}
}

// sseSink 把流事件编码为 SSE data 帧并立即冲刷。
type sseSink struct {
	c       *gin.Context
	started bool
}

// SendEvent 满足 service.EventSink 接口。
func (s *sseSink) SendEvent(event model.StreamEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := s.c.Writer.Write([]byte("data: ")); err != nil {
		return err
	}
	if _, err := s.c.Writer.Write(payload); err != nil {
		return err
	}
	if _, err := s.c.Writer.Write([]byte("\n\n")); err != nil {
		return err
	}
	s.c.Writer.Flush()
	s.started = true
	return nil
}

// wsSink 把流事件作为文本帧写入 WebSocket 连接。
type wsSink struct {
	conn *websocket.Conn
}

// SendEvent 满足 service.EventSink 接口。
func (s *wsSink) SendEvent(event model.StreamEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}
