package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"visamate-go/internal/model"
	"visamate-go/internal/repository"
	"visamate-go/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubExecutor 让端到端的守卫测试不依赖真实数据库。
type stubExecutor struct {
	rows   []map[string]interface{}
	called int
}

func (s *stubExecutor) RunScoped(ctx context.Context, sql string, params []string) ([]map[string]interface{}, error) {
	s.called++
	return s.rows, nil
}

var _ repository.QueryExecutor = (*stubExecutor)(nil)

type stubSchemaRepo struct {
	schema  map[string][]model.ColumnInfo
	columns []model.TableColumn
}

func (s *stubSchemaRepo) ExtractSchema(ctx context.Context) (map[string][]model.ColumnInfo, error) {
	return s.schema, nil
}

func (s *stubSchemaRepo) GetTableInfo(ctx context.Context, tableName string) ([]model.TableColumn, error) {
	return s.columns, nil
}

func newDBQueryRouter(executor *stubExecutor, schemaRepo *stubSchemaRepo) *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := service.NewDBQueryService(executor, schemaRepo)
	r := gin.New()
	r.POST("/api/v1/db-query", NewDBQueryHandler(svc).Query)
	return r
}

func postDBQuery(r *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/db-query", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestDBQueryValidation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{"缺失 action", `{}`, "Missing action parameter"},
		{"table-info 缺表名", `{"action": "table-info"}`, "Missing tableName for table-info action"},
		{"query 缺 SQL", `{"action": "query"}`, "Missing SQL query"},
		{"未知 action", `{"action": "drop"}`, "Unknown action: drop"},
		{"非法 JSON", `{action`, "Invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			executor := &stubExecutor{}
			w := postDBQuery(newDBQueryRouter(executor, &stubSchemaRepo{}), tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantMsg)
			assert.Zero(t, executor.called)
		})
	}
}

func TestDBQueryRejectsMutationEndToEnd(t *testing.T) {
	// 守卫拒绝是 200 + success:false：请求本身合法，被拒的是语句
	executor := &stubExecutor{}
	body := `{"action": "query", "sql": "DELETE FROM uscis_pages"}`

	w := postDBQuery(newDBQueryRouter(executor, &stubSchemaRepo{}), body)

	assert.Equal(t, http.StatusOK, w.Code)

	var result model.QueryResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.False(t, result.Success)
	assert.Equal(t, "Only SELECT queries are allowed", result.Error)
	assert.Zero(t, executor.called, "被拒绝的语句不应接触数据库")
}

func TestDBQuerySelectEndToEnd(t *testing.T) {
	executor := &stubExecutor{rows: []map[string]interface{}{
		{"form_number": "I-765", "form_title": "Application for Employment Authorization"},
	}}
	body := `{"action": "query", "sql": "SELECT form_number, form_title FROM immigration_forms", "params": []}`

	w := postDBQuery(newDBQueryRouter(executor, &stubSchemaRepo{}), body)

	assert.Equal(t, http.StatusOK, w.Code)

	var result model.QueryResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.RowCount)
	assert.False(t, result.WasTruncated)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "I-765", result.Rows[0]["form_number"])
}

func TestDBQuerySchemaAction(t *testing.T) {
	schemaRepo := &stubSchemaRepo{schema: map[string][]model.ColumnInfo{
		"uscis_alerts": {{Name: "alert_title", Type: "text"}},
	}}

	w := postDBQuery(newDBQueryRouter(&stubExecutor{}, schemaRepo), `{"action": "schema"}`)

	assert.Equal(t, http.StatusOK, w.Code)

	var result model.SchemaResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.True(t, result.Success)
	assert.Contains(t, result.Schema, "uscis_alerts")
}

func TestDBQueryTableInfoAction(t *testing.T) {
	schemaRepo := &stubSchemaRepo{columns: []model.TableColumn{
		{ColumnName: "id", DataType: "bigint", IsNullable: "NO"},
	}}
	body := `{"action": "table-info", "tableName": "uscis_pages"}`

	w := postDBQuery(newDBQueryRouter(&stubExecutor{}, schemaRepo), body)

	assert.Equal(t, http.StatusOK, w.Code)

	var result model.TableInfoResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.True(t, result.Success)
	assert.Equal(t, "uscis_pages", result.Table)
	require.Len(t, result.Columns, 1)
	assert.Equal(t, "id", result.Columns[0].ColumnName)
}
