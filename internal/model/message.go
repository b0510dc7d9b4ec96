// Package model 定义了应用的数据模型与 DTO。
package model

import (
	"strings"
	"time"
)

// MessagePart 是消息内容的一个类型化片段。
type MessagePart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// IncomingMessage 是对话接口收到的一条消息。content 与 parts 二选一，
// 前端（useChat 风格）可能只提供 parts 数组。
type IncomingMessage struct {
	Role    string        `json:"role"`
	Content string        `json:"content,omitempty"`
	Parts   []MessagePart `json:"parts,omitempty"`
}

// PlainText 将消息内容归约为纯文本：优先使用 content，
// 否则拼接 parts 中的全部文本片段。
func (m IncomingMessage) PlainText() string {
	if m.Content != "" {
		return m.Content
	}
	var texts []string
	for _, p := range m.Parts {
		if p.Type == "text" && p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// ChatRequest 是对话接口的请求体。
type ChatRequest struct {
	Messages    []IncomingMessage `json:"messages"`
	UserProfile *UserProfile      `json:"userProfile,omitempty"`
	SessionID   string            `json:"sessionId,omitempty"`
}

// ChatMessage 是对话快照缓存中的一条消息。
type ChatMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
