// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"strings"
	"visamate-go/internal/model"
	"visamate-go/internal/repository"
	"visamate-go/pkg/log"
)

// DBQueryService 定义了受保护的数据库访问操作：schema 提取、
// 单表信息与只读查询执行。所有失败都以 {success:false,error}
// 结果返回，绝不向调用方抛出。
type DBQueryService interface {
	ExecuteQuery(ctx context.Context, sql string, params []string) model.QueryResult
	ExtractSchema(ctx context.Context) model.SchemaResult
	GetTableInfo(ctx context.Context, tableName string) model.TableInfoResult
}

// 返回行数上限。超过时截断返回但仍上报真实行数。
const maxQueryRows = 1000

type dbQueryService struct {
	executor   repository.QueryExecutor
	schemaRepo repository.SchemaRepository
}

// NewDBQueryService 创建一个新的 DBQueryService 实例。
func NewDBQueryService(executor repository.QueryExecutor, schemaRepo repository.SchemaRepository) DBQueryService {
	return &dbQueryService{
		executor:   executor,
		schemaRepo: schemaRepo,
	}
}

// ExecuteQuery 执行一条受保护的查询。准入检查是唯一的门禁：
// 修剪后前缀不是 SELECT（不区分大小写）的语句直接拒绝，不做
// 子查询 / CTE 级别的语法分析——这是一个窄门，不是完整的 SQL 清洗器。
func (s *dbQueryService) ExecuteQuery(ctx context.Context, sqlText string, params []string) model.QueryResult {
	trimmed := strings.ToUpper(strings.TrimSpace(sqlText))
	if !strings.HasPrefix(trimmed, "SELECT") {
		log.Warnf("[DBQueryService] 拒绝非 SELECT 查询: %.120s", sqlText)
		return model.QueryResult{
			Success: false,
			Error:   "Only SELECT queries are allowed",
		}
	}

	rows, err := s.executor.RunScoped(ctx, sqlText, params)
	if err != nil {
		// 语法错误、权限错误、语句超时等统一转为失败结果
		log.Errorf("[DBQueryService] 查询执行失败: %v", err)
		return model.QueryResult{Success: false, Error: err.Error()}
	}

	result := model.QueryResult{
		Success:  true,
		RowCount: len(rows),
		Rows:     rows,
	}
	if len(rows) > maxQueryRows {
		result.Rows = rows[:maxQueryRows]
		result.WasTruncated = true
		result.TruncatedAt = maxQueryRows
	}
	return result
}

// ExtractSchema 提取 public schema 下全部基础表的结构。
func (s *dbQueryService) ExtractSchema(ctx context.Context) model.SchemaResult {
	schema, err := s.schemaRepo.ExtractSchema(ctx)
	if err != nil {
		log.Errorf("[DBQueryService] 提取 schema 失败: %v", err)
		return model.SchemaResult{Success: false, Error: err.Error()}
	}
	return model.SchemaResult{Success: true, Schema: schema}
}

// GetTableInfo 返回单表的列信息。表不存在时返回成功与空列表——
// 缺表沿用"无行"的宽容语义，不是 not-found 错误。
func (s *dbQueryService) GetTableInfo(ctx context.Context, tableName string) model.TableInfoResult {
	columns, err := s.schemaRepo.GetTableInfo(ctx, tableName)
	if err != nil {
		log.Errorf("[DBQueryService] 查询表信息失败, table: %s, error: %v", tableName, err)
		return model.TableInfoResult{Success: false, Error: err.Error()}
	}
	if columns == nil {
		columns = []model.TableColumn{}
	}
	return model.TableInfoResult{Success: true, Table: tableName, Columns: columns}
}
