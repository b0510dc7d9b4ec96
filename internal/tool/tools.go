package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"visamate-go/internal/model"
)

// SearchBackend 是语义搜索工具的后端。编排器与搜索服务在进程内
// 直接调用，错误隔离由工具边界保证。
type SearchBackend interface {
	Search(ctx context.Context, query string, limit int, table string) ([]model.SimilarityMatch, error)
}

// DatabaseBackend 是数据库查询工具的后端。
type DatabaseBackend interface {
	ExecuteQuery(ctx context.Context, sql string, params []string) model.QueryResult
	ExtractSchema(ctx context.Context) model.SchemaResult
	GetTableInfo(ctx context.Context, tableName string) model.TableInfoResult
}

// NewAssessTravelRiskTool 创建旅行风险评估工具。执行是纯校验透传：
// 工具的全部价值在于强制模型产出符合 RiskAssessment 结构的数据。
func NewAssessTravelRiskTool() Tool {
	return Tool{
		Name: "assessTravelRisk",
		Description: "Present a structured travel risk assessment card to the user. " +
			"Use this when the user asks about traveling to a specific destination.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"riskLevel": {"type": "string", "enum": ["low", "medium", "high", "unknown"], "description": "Overall risk level: low, medium, high, or unknown"},
				"destination": {"type": "string", "description": "The destination country or region"},
				"keyReasons": {"type": "array", "items": {"type": "string"}, "description": "Key reasons for the risk assessment"},
				"clarifyingQuestions": {"type": "array", "items": {"type": "string"}, "description": "Follow-up questions for clarification"},
				"sources": {"type": "array", "items": {"type": "object", "properties": {"title": {"type": "string"}, "url": {"type": "string"}, "publishedDate": {"type": "string"}, "publisher": {"type": "string"}}, "required": ["title", "url", "publishedDate", "publisher"]}, "description": "Relevant sources"},
				"nextSteps": {"type": "array", "items": {"type": "string"}, "description": "Recommended actions to take"}
			},
			"required": ["riskLevel", "destination", "keyReasons", "clarifyingQuestions", "sources", "nextSteps"]
		}`),
		Run: func(ctx context.Context, input json.RawMessage) (interface{}, error) {
			var assessment model.RiskAssessment
			if err := decodeInput(input, &assessment); err != nil {
				return nil, err
			}
			if !model.RiskLevels[assessment.RiskLevel] {
				return nil, fmt.Errorf("invalid riskLevel: %q", assessment.RiskLevel)
			}
			if assessment.Destination == "" {
				return nil, fmt.Errorf("missing destination")
			}
			return assessment, nil
		},
	}
}

type semanticSearchInput struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
	Table string `json:"table"`
}

// NewSemanticSearchTool 创建语义搜索工具。
func NewSemanticSearchTool(backend SearchBackend) Tool {
	return Tool{
		Name: "semanticSearch",
		Description: "Search USCIS content semantically. Use this when the user asks conceptual " +
			"questions about immigration topics, policies, or procedures. Returns the most " +
			"relevant page chunks ranked by similarity.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query": {"type": "string", "description": "The search query text"},
				"limit": {"type": "integer", "description": "Number of results to return", "default": 5},
				"table": {"type": "string", "enum": ["chunks", "pages"], "description": "Search chunks (detailed) or full pages", "default": "chunks"}
			},
			"required": ["query"]
		}`),
		Run: func(ctx context.Context, input json.RawMessage) (interface{}, error) {
			var in semanticSearchInput
			if err := decodeInput(input, &in); err != nil {
				return nil, err
			}
			if in.Query == "" {
				return nil, fmt.Errorf("missing query")
			}
			if in.Table == "" {
				in.Table = "chunks"
			}
			if in.Table != "chunks" && in.Table != "pages" {
				return nil, fmt.Errorf("invalid table: %q", in.Table)
			}

			results, err := backend.Search(ctx, in.Query, in.Limit, in.Table)
			if err != nil {
				// 上游失败作为工具结果反馈给模型，而不是中断对话
				return model.SearchResult{
					Success: false,
					Error:   fmt.Sprintf("Semantic search failed: %v", err),
				}, nil
			}
			return model.SearchResult{
				Success: true,
				Query:   in.Query,
				Table:   in.Table,
				Results: results,
			}, nil
		},
	}
}

type queryDatabaseInput struct {
	Action    string   `json:"action"`
	SQL       string   `json:"sql"`
	TableName string   `json:"tableName"`
	Params    []string `json:"params"`
}

// NewQueryDatabaseTool 创建数据库查询工具，支持 schema / table-info /
// query 三种动作。
func NewQueryDatabaseTool(backend DatabaseBackend) Tool {
	return Tool{
		Name: "queryDatabase",
		Description: "Query the PostgreSQL database for schema, table info, or execute SELECT " +
			"queries.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"action": {"type": "string", "enum": ["schema", "query", "table-info"], "description": "Database action to perform"},
				"sql": {"type": "string", "description": "SQL query to execute"},
				"tableName": {"type": "string", "description": "Table name"},
				"params": {"type": "array", "items": {"type": "string"}, "description": "Query parameters"}
			},
			"required": ["action"]
		}`),
		Run: func(ctx context.Context, input json.RawMessage) (interface{}, error) {
			var in queryDatabaseInput
			if err := decodeInput(input, &in); err != nil {
				return nil, err
			}

			switch in.Action {
			case "schema":
				return backend.ExtractSchema(ctx), nil
			case "table-info":
				if in.TableName == "" {
					return nil, fmt.Errorf("missing tableName for table-info action")
				}
				return backend.GetTableInfo(ctx, in.TableName), nil
			case "query":
				if in.SQL == "" {
					return nil, fmt.Errorf("missing SQL query")
				}
				return backend.ExecuteQuery(ctx, in.SQL, in.Params), nil
			default:
				return nil, fmt.Errorf("unknown action: %s", in.Action)
			}
		},
	}
}
