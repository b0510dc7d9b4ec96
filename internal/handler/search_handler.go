package handler

import (
	"net/http"
	"visamate-go/internal/model"
	"visamate-go/internal/service"
	"visamate-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// SearchHandler 结构体定义了语义搜索相关的处理器。
type SearchHandler struct {
	searchService service.SearchService
}

// NewSearchHandler 创建一个新的 SearchHandler 实例。
func NewSearchHandler(searchService service.SearchService) *SearchHandler {
	return &SearchHandler{searchService: searchService}
}

// Search 是处理语义搜索请求的 Gin 处理函数。
func (h *SearchHandler) Search(c *gin.Context) {
	var req model.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	log.Infof("[SearchHandler] 收到语义搜索请求, query: '%.100s', table: %s, limit: %d", req.Query, req.Table, req.Limit)

	if req.Query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing query parameter"})
		return
	}
	if req.Table != "" && req.Table != "chunks" && req.Table != "pages" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid table parameter"})
		return
	}
	if req.Table == "" {
		req.Table = "chunks"
	}

	results, err := h.searchService.Search(c.Request.Context(), req.Query, req.Limit, req.Table)
	if err != nil {
		log.Errorf("[SearchHandler] 语义搜索服务返回错误, error: %v", err)
		c.JSON(http.StatusInternalServerError, model.SearchResult{
			Success: false,
			Error:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, model.SearchResult{
		Success: true,
		Query:   req.Query,
		Table:   req.Table,
		Results: results,
	})
}
