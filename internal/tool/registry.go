// Package tool 定义了模型可调用的工具注册表。每个工具是一个携带
// 强类型输入契约的变体，按名称分发；输入校验失败只使当前步骤失败，
// 校验错误会作为工具结果反馈给模型。
package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"visamate-go/pkg/llm"
)

// Tool 是一个模型可调用的能力：名称、用途说明、输入 JSON Schema，
// 以及执行函数。Run 返回的 error 由编排器转换为 {success:false,error}
// 工具结果，不会中断整个对话。
type Tool struct {
	Name        string
	Description string
	InputSchema json.RawMessage
	Run         func(ctx context.Context, input json.RawMessage) (interface{}, error)
}

// Registry 按名称保存全部已注册的工具，并保持注册顺序。
type Registry struct {
	order []string
	tools map[string]Tool
}

// NewRegistry 创建一个包含给定工具的注册表。
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool)}
	for _, t := range tools {
		r.order = append(r.order, t.Name)
		r.tools[t.Name] = t
	}
	return r
}

// Get 按名称查找工具。
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Specs 将注册表转换为发送给模型的工具声明列表（注册顺序）。
func (r *Registry) Specs() []llm.Tool {
	specs := make([]llm.Tool, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		specs = append(specs, llm.Tool{
			Type: "function",
			Function: llm.ToolFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema,
			},
		})
	}
	return specs
}

// decodeInput 解析工具入参，空入参按空对象处理。
func decodeInput(input json.RawMessage, v interface{}) error {
	if len(input) == 0 {
		input = json.RawMessage("{}")
	}
	if err := json.Unmarshal(input, v); err != nil {
		return fmt.Errorf("invalid tool input: %v", err)
	}
	return nil
}
