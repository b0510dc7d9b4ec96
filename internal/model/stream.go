package model

import "encoding/json"

// 对话流事件类型。
const (
	EventTextDelta  = "text-delta"
	EventToolCall   = "tool-call"
	EventToolResult = "tool-result"
	EventError      = "error"
	EventDone       = "done"
)

// StreamEvent 是对话输出流中的一个事件，按模型产出顺序下发：
// 文本增量、工具调用、工具结果在一轮内保持原始交错顺序。
type StreamEvent struct {
	Type       string          `json:"type"`
	Delta      string          `json:"delta,omitempty"`
	ToolCallID string          `json:"toolCallId,omitempty"`
	ToolName   string          `json:"toolName,omitempty"`
	Input      json.RawMessage `json:"input,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
}
