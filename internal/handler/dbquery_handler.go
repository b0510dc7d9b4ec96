package handler

import (
	"fmt"
	"net/http"
	"visamate-go/internal/service"
	"visamate-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// DBQueryHandler 处理受保护的数据库查询接口。
type DBQueryHandler struct {
	dbQueryService service.DBQueryService
}

// NewDBQueryHandler 创建一个新的 DBQueryHandler 实例。
func NewDBQueryHandler(dbQueryService service.DBQueryService) *DBQueryHandler {
	return &DBQueryHandler{dbQueryService: dbQueryService}
}

type dbQueryRequest struct {
	Action    string   `json:"action"`
	SQL       string   `json:"sql"`
	TableName string   `json:"tableName"`
	Params    []string `json:"params"`
}

// Query 按 action 分发：schema / table-info / query。缺失必填字段与
// 未知 action 返回 400；服务结果直接序列化返回。
func (h *DBQueryHandler) Query(c *gin.Context) {
	var req dbQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	log.Infof("[DBQueryHandler] action: %s, sql: %.200s, tableName: %s", req.Action, req.SQL, req.TableName)

	if req.Action == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing action parameter"})
		return
	}

	ctx := c.Request.Context()
	switch req.Action {
	case "schema":
		c.JSON(http.StatusOK, h.dbQueryService.ExtractSchema(ctx))
	case "table-info":
		if req.TableName == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing tableName for table-info action"})
			return
		}
		c.JSON(http.StatusOK, h.dbQueryService.GetTableInfo(ctx, req.TableName))
	case "query":
		if req.SQL == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing SQL query"})
			return
		}
		c.JSON(http.StatusOK, h.dbQueryService.ExecuteQuery(ctx, req.SQL, req.Params))
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Unknown action: %s", req.Action)})
	}
}
