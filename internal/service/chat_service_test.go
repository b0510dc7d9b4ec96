package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"visamate-go/internal/model"
	"visamate-go/internal/tool"
	"visamate-go/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedTurn 是脚本化模型的一轮预设输出。
type scriptedTurn struct {
	text      string
	toolCalls []llm.ToolCall
	err       error
}

// scriptedLLM 按脚本回放模型输出；脚本耗尽后重复最后一轮，
// 用于模拟"始终请求工具"的模型。
type scriptedLLM struct {
	turns []scriptedTurn
	calls [][]llm.Message
}

func (s *scriptedLLM) StreamChat(ctx context.Context, messages []llm.Message, tools []llm.Tool, gen *llm.GenerationParams, writer llm.TextWriter) (*llm.Turn, error) {
	copied := make([]llm.Message, len(messages))
	copy(copied, messages)
	s.calls = append(s.calls, copied)

	idx := len(s.calls) - 1
	if idx >= len(s.turns) {
		idx = len(s.turns) - 1
	}
	turn := s.turns[idx]
	if turn.err != nil {
		return nil, turn.err
	}
	if turn.text != "" && writer != nil {
		if err := writer.WriteText(turn.text); err != nil {
			return nil, err
		}
	}
	return &llm.Turn{Content: turn.text, ToolCalls: turn.toolCalls}, nil
}

type eventCollector struct {
	events []model.StreamEvent
}

func (c *eventCollector) SendEvent(e model.StreamEvent) error {
	c.events = append(c.events, e)
	return nil
}

func (c *eventCollector) types() []string {
	types := make([]string, 0, len(c.events))
	for _, e := range c.events {
		types = append(types, e.Type)
	}
	return types
}

// countingSearchBackend 记录被调用次数的搜索后端。
type countingSearchBackend struct {
	calls   int
	matches []model.SimilarityMatch
	err     error
}

func (b *countingSearchBackend) Search(ctx context.Context, query string, limit int, table string) ([]model.SimilarityMatch, error) {
	b.calls++
	return b.matches, b.err
}

type stubDatabaseBackend struct{}

func (stubDatabaseBackend) ExecuteQuery(ctx context.Context, sql string, params []string) model.QueryResult {
	return model.QueryResult{Success: true, RowCount: 0, Rows: []map[string]interface{}{}}
}

func (stubDatabaseBackend) ExtractSchema(ctx context.Context) model.SchemaResult {
	return model.SchemaResult{Success: true, Schema: map[string][]model.ColumnInfo{}}
}

func (stubDatabaseBackend) GetTableInfo(ctx context.Context, tableName string) model.TableInfoResult {
	return model.TableInfoResult{Success: true, Table: tableName, Columns: []model.TableColumn{}}
}

func newTestRegistry(search tool.SearchBackend) *tool.Registry {
	return tool.NewRegistry(
		tool.NewAssessTravelRiskTool(),
		tool.NewSemanticSearchTool(search),
		tool.NewQueryDatabaseTool(stubDatabaseBackend{}),
	)
}

func userRequest(text string) model.ChatRequest {
	return model.ChatRequest{
		Messages: []model.IncomingMessage{{Role: "user", Content: text}},
	}
}

func searchCall(id, query string) llm.ToolCall {
	return llm.ToolCall{
		ID:   id,
		Type: "function",
		Function: llm.FunctionCall{
			Name:      "semanticSearch",
			Arguments: `{"query":"` + query + `"}`,
		},
	}
}

func TestStreamPlainTextTurn(t *testing.T) {
	client := &scriptedLLM{turns: []scriptedTurn{{text: "You can travel freely."}}}
	svc := NewChatService(client, newTestRegistry(&countingSearchBackend{}), nil)
	sink := &eventCollector{}

	err := svc.StreamConversation(context.Background(), userRequest("Can I travel?"), sink)

	require.NoError(t, err)
	assert.Equal(t, []string{model.EventTextDelta, model.EventDone}, sink.types())
	assert.Equal(t, "You can travel freely.", sink.events[0].Delta)
	require.Len(t, client.calls, 1)
	assert.Equal(t, "system", client.calls[0][0].Role)
	assert.Equal(t, "user", client.calls[0][1].Role)
}

func TestToolRoundTripOrdering(t *testing.T) {
	backend := &countingSearchBackend{matches: []model.SimilarityMatch{
		{ID: 1, ChunkText: "OPT extensions take 3-5 months.", Similarity: 0.91},
	}}
	client := &scriptedLLM{turns: []scriptedTurn{
		{text: "Let me look that up.", toolCalls: []llm.ToolCall{searchCall("call_1", "OPT extension")}},
		{text: "Processing usually takes 3-5 months."},
	}}
	svc := NewChatService(client, newTestRegistry(backend), nil)
	sink := &eventCollector{}

	err := svc.StreamConversation(context.Background(), userRequest("How long does an OPT extension take?"), sink)

	require.NoError(t, err)
	// 一轮内的交错顺序：文本 → 工具调用 → 工具结果 → 文本 → 结束
	assert.Equal(t, []string{
		model.EventTextDelta,
		model.EventToolCall,
		model.EventToolResult,
		model.EventTextDelta,
		model.EventDone,
	}, sink.types())
	assert.Equal(t, 1, backend.calls)

	// 工具结果按调用顺序进入第二次模型调用的历史
	require.Len(t, client.calls, 2)
	secondCall := client.calls[1]
	last := secondCall[len(secondCall)-1]
	assert.Equal(t, "tool", last.Role)
	assert.Equal(t, "call_1", last.ToolCallID)
	assert.Equal(t, "semanticSearch", last.Name)

	var result model.SearchResult
	require.NoError(t, json.Unmarshal([]byte(last.Content), &result))
	assert.True(t, result.Success)
	require.Len(t, result.Results, 1)

	assistant := secondCall[len(secondCall)-2]
	assert.Equal(t, "assistant", assistant.Role)
	require.Len(t, assistant.ToolCalls, 1)
	assert.Equal(t, "call_1", assistant.ToolCalls[0].ID)
}

func TestToolRoundTripBudget(t *testing.T) {
	// 模型每轮都请求工具：第 3 次往返后必须被强制终止
	backend := &countingSearchBackend{}
	client := &scriptedLLM{turns: []scriptedTurn{
		{toolCalls: []llm.ToolCall{searchCall("call_1", "a")}},
	}}
	svc := NewChatService(client, newTestRegistry(backend), nil)
	sink := &eventCollector{}

	err := svc.StreamConversation(context.Background(), userRequest("loop"), sink)

	require.NoError(t, err)
	assert.Equal(t, 3, backend.calls, "工具往返不得超过 3 次")
	assert.Len(t, client.calls, 4, "3 次往返后允许最后一次生成，再请求工具即终止")
	assert.Equal(t, model.EventDone, sink.events[len(sink.events)-1].Type)
}

func TestToolValidationErrorFedBack(t *testing.T) {
	client := &scriptedLLM{turns: []scriptedTurn{
		{toolCalls: []llm.ToolCall{{
			ID:   "call_1",
			Type: "function",
			Function: llm.FunctionCall{
				Name:      "queryDatabase",
				Arguments: `{"action":"query"}`, // 缺 sql：输入校验失败
			},
		}}},
		{text: "I could not run that query."},
	}}
	svc := NewChatService(client, newTestRegistry(&countingSearchBackend{}), nil)
	sink := &eventCollector{}

	err := svc.StreamConversation(context.Background(), userRequest("query the db"), sink)

	require.NoError(t, err, "工具输入违例只使该步骤失败，不中断对话")

	var toolResult map[string]interface{}
	found := false
	for _, e := range sink.events {
		if e.Type == model.EventToolResult {
			require.NoError(t, json.Unmarshal(e.Result, &toolResult))
			found = true
		}
	}
	require.True(t, found)
	assert.Equal(t, false, toolResult["success"])
	assert.Contains(t, toolResult["error"], "missing SQL query")
	require.Len(t, client.calls, 2, "校验错误作为工具结果反馈后模型可以继续")
}

func TestUnknownToolFedBack(t *testing.T) {
	client := &scriptedLLM{turns: []scriptedTurn{
		{toolCalls: []llm.ToolCall{{
			ID:       "call_1",
			Type:     "function",
			Function: llm.FunctionCall{Name: "launchMissiles", Arguments: `{}`},
		}}},
		{text: "Sorry, I cannot do that."},
	}}
	svc := NewChatService(client, newTestRegistry(&countingSearchBackend{}), nil)
	sink := &eventCollector{}

	err := svc.StreamConversation(context.Background(), userRequest("do something"), sink)

	require.NoError(t, err)
	var toolResult map[string]interface{}
	for _, e := range sink.events {
		if e.Type == model.EventToolResult {
			require.NoError(t, json.Unmarshal(e.Result, &toolResult))
		}
	}
	assert.Equal(t, false, toolResult["success"])
	assert.Contains(t, toolResult["error"], "unknown tool")
}

func TestSearchBackendFailureFedBack(t *testing.T) {
	backend := &countingSearchBackend{err: errors.New("embedding provider unavailable")}
	client := &scriptedLLM{turns: []scriptedTurn{
		{toolCalls: []llm.ToolCall{searchCall("call_1", "OPT")}},
		{text: "Search is temporarily unavailable."},
	}}
	svc := NewChatService(client, newTestRegistry(backend), nil)
	sink := &eventCollector{}

	err := svc.StreamConversation(context.Background(), userRequest("tell me about OPT"), sink)

	require.NoError(t, err, "上游失败作为工具结果反馈，不中断对话轮")
	var result model.SearchResult
	for _, e := range sink.events {
		if e.Type == model.EventToolResult {
			require.NoError(t, json.Unmarshal(e.Result, &result))
		}
	}
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "Semantic search failed")
}

func TestModelStreamFailureIsFatal(t *testing.T) {
	client := &scriptedLLM{turns: []scriptedTurn{{err: errors.New("connection reset")}}}
	svc := NewChatService(client, newTestRegistry(&countingSearchBackend{}), nil)
	sink := &eventCollector{}

	err := svc.StreamConversation(context.Background(), userRequest("hello"), sink)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "model stream failed")
}

func TestComposeMessagesNormalizesParts(t *testing.T) {
	client := &scriptedLLM{turns: []scriptedTurn{{text: "ok"}}}
	svc := NewChatService(client, newTestRegistry(&countingSearchBackend{}), nil)

	req := model.ChatRequest{Messages: []model.IncomingMessage{
		{Role: "user", Parts: []model.MessagePart{
			{Type: "text", Text: "I would like to travel to Russia,"},
			{Type: "tool-call"},
			{Type: "text", Text: "can I?"},
		}},
		{Role: "", Content: "dropped: no role"},
		{Role: "assistant"}, // 无内容，丢弃
	}}

	err := svc.StreamConversation(context.Background(), req, &eventCollector{})

	require.NoError(t, err)
	require.Len(t, client.calls, 1)
	msgs := client.calls[0]
	require.Len(t, msgs, 2, "system + 归一化后的 user 消息")
	assert.Equal(t, "I would like to travel to Russia,\ncan I?", msgs[1].Content)
}

func TestSystemPromptProfileBlock(t *testing.T) {
	t.Run("无画像时不输出画像块", func(t *testing.T) {
		prompt := buildSystemPrompt(nil)
		assert.NotContains(t, prompt, "USER PROFILE")
		assert.Contains(t, prompt, "immigration advisor")
	})

	t.Run("画像字段确定性序列化", func(t *testing.T) {
		profile := &model.UserProfile{
			Citizenship:         "India",
			VisaStatus:          "F-1",
			AffiliationType:     "university",
			Affiliation:         "Stanford",
			HasTravelPlans:      true,
			TravelDestination:   "Russia",
			TravelDepartureDate: "2026-09-10",
			TravelReturnDate:    "2026-09-24",
		}
		prompt := buildSystemPrompt(profile)
		assert.Contains(t, prompt, "--- USER PROFILE (from onboarding) ---")
		assert.Contains(t, prompt, "Citizenship: India")
		assert.Contains(t, prompt, "Visa Status: F-1")
		assert.Contains(t, prompt, "Has Travel Plans: Yes")
		assert.Contains(t, prompt, "Travel Destination: Russia")

		// 两次序列化完全一致
		assert.Equal(t, prompt, buildSystemPrompt(profile))
	})

	t.Run("无旅行计划时省略旅行字段", func(t *testing.T) {
		profile := &model.UserProfile{Citizenship: "Brazil", VisaStatus: "H-1B"}
		prompt := buildSystemPrompt(profile)
		assert.NotContains(t, prompt, "Has Travel Plans")
		assert.NotContains(t, prompt, "Travel Destination")
	})
}

func TestRiskAssessmentToolRoundTrip(t *testing.T) {
	input := `{
		"riskLevel": "high",
		"destination": "Russia",
		"keyReasons": ["State Department Level 4 advisory"],
		"clarifyingQuestions": ["What is your visa status?"],
		"sources": [{"title": "Travel Advisory", "url": "https://travel.state.gov/russia", "publishedDate": "2026-06-01", "publisher": "U.S. State Department"}],
		"nextSteps": ["Consult your DSO before booking"]
	}`
	client := &scriptedLLM{turns: []scriptedTurn{
		{text: "Here is the assessment.", toolCalls: []llm.ToolCall{{
			ID:       "call_risk",
			Type:     "function",
			Function: llm.FunctionCall{Name: "assessTravelRisk", Arguments: input},
		}}},
		{text: "Please consult your DSO."},
	}}
	svc := NewChatService(client, newTestRegistry(&countingSearchBackend{}), nil)
	sink := &eventCollector{}

	err := svc.StreamConversation(context.Background(),
		userRequest("I would like to travel to Russia, can I?"), sink)

	require.NoError(t, err)

	var assessment model.RiskAssessment
	for _, e := range sink.events {
		if e.Type == model.EventToolResult && e.ToolName == "assessTravelRisk" {
			require.NoError(t, json.Unmarshal(e.Result, &assessment))
		}
	}
	assert.Equal(t, "Russia", assessment.Destination)
	assert.Contains(t, []string{"low", "medium", "high", "unknown"}, assessment.RiskLevel)
	require.NotEmpty(t, assessment.Sources)
	assert.NotEmpty(t, assessment.Sources[0].URL)
}
