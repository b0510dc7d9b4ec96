package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"visamate-go/internal/config"
	"visamate-go/internal/model"
	"visamate-go/internal/repository"
	"visamate-go/internal/tool"
	"visamate-go/pkg/llm"
	"visamate-go/pkg/log"
)

// EventSink 接收对话输出流中的事件。SSE 处理器、WebSocket 处理器
// 以及测试中的收集器都实现该接口。
type EventSink interface {
	SendEvent(event model.StreamEvent) error
}

// ChatService 定义了对话编排操作的接口。
type ChatService interface {
	StreamConversation(ctx context.Context, req model.ChatRequest, sink EventSink) error
}

// 每次请求最多允许的"模型生成 → 工具执行"往返次数。超出预算时
// 以已有的部分输出强制结束，防止模型陷入工具调用循环拖垮时延与成本。
const maxToolRoundTrips = 3

// defaultSystemPrompt 是内置的顾问人设与数据库结构说明，
// 可通过 llm.prompt.rules 配置整体覆盖。
const defaultSystemPrompt = `You are a knowledgeable immigration advisor specializing in U.S. immigration law for visa holders (F-1, H-1B, L-1, O-1, J-1, B-1/B-2, TN, E-2). You can help with travel risk assessments, visa status questions, work authorization, OPT/CPT guidance, visa transfers, change of status, and general immigration compliance.

You have access to a PostgreSQL database with the following tables:
- uscis_pages: Scraped USCIS web pages with raw content
- uscis_alerts: USCIS alerts extracted from pages (alert_title, alert_type, alert_content, is_critical)
- immigration_forms: Immigration forms with filing addresses, fees, processing times (form_number, form_title, filing_addresses, filing_fees, processing_times)
- content_changes: Tracked changes to page content (change_type, change_summary, detected_at, notified)
- page_topics: Topics extracted from pages (topic, relevance_score)
- notification_subscriptions: User notification preferences (user_id, subscription_type, subscription_value, notification_method)

When the user asks about traveling to a specific destination, use the assessTravelRisk tool to present a structured risk assessment card. Add a brief conversational message before or after the tool call.

When the user asks about data in the database (forms, alerts, pages, changes), use the queryDatabase tool with action "query" to retrieve it.

When the user asks a conceptual question about immigration topics, policies, or procedures, use the semanticSearch tool to find the most relevant USCIS content. This searches through embedded page chunks using vector similarity.

For general immigration questions, visa status inquiries, work authorization, or follow-ups, respond with helpful text directly.

When assessing travel risk, consider:
1. Current U.S. State Department travel advisories for the destination
2. Potential impact on the traveler's U.S. visa status and re-entry
3. Whether the traveler may need a new visa stamp to return
4. Risks of visa revocation, administrative processing, or port-of-entry issues
5. Country-specific entry/exit requirements
6. Current geopolitical factors that may affect travel

Always err on the side of caution. If you are uncertain, use "unknown" as the risk level.

Important: Do NOT provide legal advice. Frame your responses as general information and always recommend consulting a DSO (Designated School Official) or immigration attorney.`

type chatService struct {
	llmClient        llm.Client
	registry         *tool.Registry
	conversationRepo repository.ConversationRepository
}

// NewChatService 创建一个新的 ChatService 实例。conversationRepo
// 可以为 nil，此时不写对话快照缓存。
func NewChatService(llmClient llm.Client, registry *tool.Registry, conversationRepo repository.ConversationRepository) ChatService {
	return &chatService{
		llmClient:        llmClient,
		registry:         registry,
		conversationRepo: conversationRepo,
	}
}

// StreamConversation 驱动一次完整的对话轮：
// Idle → ModelGenerating → {ToolRequested → ToolExecuting → ToolResolved
// → ModelGenerating}* → Completed。
// 文本增量、工具调用与工具结果按产出顺序写入 sink；工具失败作为
// 结果反馈给模型；模型流失败作为错误返回（编排级故障）。
func (s *chatService) StreamConversation(ctx context.Context, req model.ChatRequest, sink EventSink) error {
	messages := s.composeMessages(req)
	specs := s.registry.Specs()
	gen := buildGenerationParams()

	answerBuilder := &strings.Builder{}
	writer := &sinkTextWriter{sink: sink, answer: answerBuilder}

	roundTrips := 0
	for {
		// ModelGenerating：文本增量经 writer 实时下发
		turn, err := s.llmClient.StreamChat(ctx, messages, specs, gen, writer)
		if err != nil {
			return fmt.Errorf("model stream failed: %w", err)
		}

		if len(turn.ToolCalls) == 0 {
			// Completed：模型没有进一步的工具请求
			break
		}

		if roundTrips >= maxToolRoundTrips {
			// 预算耗尽：带着已产出的部分输出强制结束
			log.Warnf("[ChatService] 工具往返预算已耗尽 (%d)，强制结束对话轮", maxToolRoundTrips)
			break
		}

		// ToolRequested：把本轮 assistant 消息（含工具调用）加入历史
		messages = append(messages, llm.Message{
			Role:      "assistant",
			Content:   turn.Content,
			ToolCalls: turn.ToolCalls,
		})

		// ToolExecuting → ToolResolved：按模型发起顺序同步执行，
		// 结果按同样的顺序追加进历史
		for _, call := range turn.ToolCalls {
			if err := sink.SendEvent(model.StreamEvent{
				Type:       model.EventToolCall,
				ToolCallID: call.ID,
				ToolName:   call.Function.Name,
				Input:      json.RawMessage(call.Function.Arguments),
			}); err != nil {
				return fmt.Errorf("failed to emit tool-call event: %w", err)
			}

			resultPayload := s.runTool(ctx, call)

			if err := sink.SendEvent(model.StreamEvent{
				Type:       model.EventToolResult,
				ToolCallID: call.ID,
				ToolName:   call.Function.Name,
				Result:     resultPayload,
			}); err != nil {
				return fmt.Errorf("failed to emit tool-result event: %w", err)
			}

			messages = append(messages, llm.Message{
				Role:       "tool",
				ToolCallID: call.ID,
				Name:       call.Function.Name,
				Content:    string(resultPayload),
			})
		}
		roundTrips++
	}

	if err := sink.SendEvent(model.StreamEvent{Type: model.EventDone}); err != nil {
		return fmt.Errorf("failed to emit done event: %w", err)
	}

	// 尽力而为地写对话快照缓存；失败只记日志，流式响应已经完成。
	// 使用后台上下文：即使原始请求被取消也保留成功生成的答案。
	s.saveSnapshot(context.Background(), req, answerBuilder.String())
	return nil
}

// runTool 查找并执行一个工具调用，任何失败（未知工具、输入校验
// 失败、执行错误）都转换为 {success:false,error} 负载反馈给模型。
func (s *chatService) runTool(ctx context.Context, call llm.ToolCall) json.RawMessage {
	t, ok := s.registry.Get(call.Function.Name)
	if !ok {
		log.Warnf("[ChatService] 模型请求了未注册的工具: %s", call.Function.Name)
		return errorPayload(fmt.Sprintf("unknown tool: %s", call.Function.Name))
	}

	log.Infof("[ChatService] 执行工具: %s, input: %.300s", call.Function.Name, call.Function.Arguments)
	out, err := t.Run(ctx, json.RawMessage(call.Function.Arguments))
	if err != nil {
		log.Warnf("[ChatService] 工具执行失败: %s, error: %v", call.Function.Name, err)
		return errorPayload(err.Error())
	}

	payload, err := json.Marshal(out)
	if err != nil {
		log.Errorf("[ChatService] 序列化工具结果失败: %s, error: %v", call.Function.Name, err)
		return errorPayload(fmt.Sprintf("failed to encode tool result: %v", err))
	}
	return payload
}

// composeMessages 归一化入站消息并装配系统提示词。
func (s *chatService) composeMessages(req model.ChatRequest) []llm.Message {
	messages := make([]llm.Message, 0, len(req.Messages)+1)
	messages = append(messages, llm.Message{
		Role:    "system",
		Content: buildSystemPrompt(req.UserProfile),
	})
	for _, m := range req.Messages {
		if m.Role == "" {
			continue
		}
		text := m.PlainText()
		if text == "" {
			continue
		}
		messages = append(messages, llm.Message{Role: m.Role, Content: text})
	}
	return messages
}

// buildSystemPrompt 装配系统提示词：内置人设（可被配置覆盖），
// 加上可选的用户画像块。画像字段按 onboarding 顺序确定性序列化。
func buildSystemPrompt(profile *model.UserProfile) string {
	prompt := defaultSystemPrompt
	if rules := config.Conf.LLM.Prompt.Rules; rules != "" {
		prompt = rules
	}

	if profile == nil {
		return prompt
	}

	lines := []string{
		"\n\n--- USER PROFILE (from onboarding) ---",
		"Citizenship: " + profile.Citizenship,
		"Visa Status: " + profile.VisaStatus,
		"Affiliation Type: " + profile.AffiliationType,
		"Affiliation: " + profile.Affiliation,
	}
	if profile.HasTravelPlans {
		lines = append(lines, "Has Travel Plans: Yes")
		if profile.TravelDestination != "" {
			lines = append(lines, "Travel Destination: "+profile.TravelDestination)
		}
		if profile.TravelDepartureDate != "" {
			lines = append(lines, "Departure Date: "+profile.TravelDepartureDate)
		}
		if profile.TravelReturnDate != "" {
			lines = append(lines, "Return Date: "+profile.TravelReturnDate)
		}
	}
	lines = append(lines, "---")
	lines = append(lines, "Use this profile to personalize your responses. You already know the user's visa type, citizenship, and affiliation — reference them naturally without asking again.")
	return prompt + strings.Join(lines, "\n")
}

// saveSnapshot 把本轮的问答追加进对话快照缓存。
func (s *chatService) saveSnapshot(ctx context.Context, req model.ChatRequest, answer string) {
	if s.conversationRepo == nil || req.SessionID == "" || answer == "" {
		return
	}
	var question string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			question = req.Messages[i].PlainText()
			break
		}
	}

	history, err := s.conversationRepo.GetConversationHistory(ctx, req.SessionID)
	if err != nil {
		log.Errorf("[ChatService] 读取对话快照失败: %v", err)
		return
	}
	now := time.Now()
	if question != "" {
		history = append(history, model.ChatMessage{Role: "user", Content: question, Timestamp: now})
	}
	history = append(history, model.ChatMessage{Role: "assistant", Content: answer, Timestamp: now})
	if err := s.conversationRepo.UpdateConversationHistory(ctx, req.SessionID, history); err != nil {
		log.Errorf("[ChatService] 写入对话快照失败: %v", err)
	}
}

func errorPayload(message string) json.RawMessage {
	payload, _ := json.Marshal(map[string]interface{}{
		"success": false,
		"error":   message,
	})
	return payload
}

// sinkTextWriter 把模型的文本增量转发为流事件，同时拦截累计完整
// 答案用于写缓存（与 WebSocket 写入器同构）。
type sinkTextWriter struct {
	sink   EventSink
	answer *strings.Builder
}

// WriteText 满足 llm.TextWriter 接口。
func (w *sinkTextWriter) WriteText(delta string) error {
	w.answer.WriteString(delta)
	return w.sink.SendEvent(model.StreamEvent{Type: model.EventTextDelta, Delta: delta})
}

func buildGenerationParams() *llm.GenerationParams {
	var gp llm.GenerationParams
	if config.Conf.LLM.Generation.Temperature != 0 {
		t := config.Conf.LLM.Generation.Temperature
		gp.Temperature = &t
	}
	if config.Conf.LLM.Generation.TopP != 0 {
		p := config.Conf.LLM.Generation.TopP
		gp.TopP = &p
	}
	if config.Conf.LLM.Generation.MaxTokens != 0 {
		m := config.Conf.LLM.Generation.MaxTokens
		gp.MaxTokens = &m
	}
	if gp.Temperature == nil && gp.TopP == nil && gp.MaxTokens == nil {
		return nil
	}
	return &gp
}
