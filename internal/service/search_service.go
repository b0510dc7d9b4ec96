package service

import (
	"context"
	"fmt"
	"sort"
	"visamate-go/internal/config"
	"visamate-go/internal/model"
	"visamate-go/internal/repository"
	"visamate-go/pkg/embedding"
	"visamate-go/pkg/log"
)

// SearchService 接口定义了语义检索操作。
type SearchService interface {
	Search(ctx context.Context, query string, limit int, table string) ([]model.SimilarityMatch, error)
}

type searchService struct {
	embeddingClient embedding.Client
	vectorRepo      repository.VectorRepository
}

// NewSearchService 创建一个新的 SearchService 实例。
func NewSearchService(embeddingClient embedding.Client, vectorRepo repository.VectorRepository) SearchService {
	return &searchService{
		embeddingClient: embeddingClient,
		vectorRepo:      vectorRepo,
	}
}

// Search 将查询文本向量化后在语料库中按余弦相似度检索 top-limit。
// table 取 "chunks"（分块，回联父页面）或 "pages"（整页预览）。
func (s *searchService) Search(ctx context.Context, query string, limit int, table string) ([]model.SimilarityMatch, error) {
	if query == "" {
		return nil, fmt.Errorf("missing query")
	}
	if limit <= 0 {
		limit = config.Conf.Search.DefaultLimit
		if limit <= 0 {
			limit = 5
		}
	}
	if table == "" {
		table = "chunks"
	}

	log.Infof("[SearchService] 开始语义检索, query: '%.100s', table: %s, limit: %d", query, table, limit)

	queryVector, err := s.embeddingClient.CreateEmbedding(ctx, query)
	if err != nil {
		log.Errorf("[SearchService] 向量化查询失败: %v", err)
		return nil, fmt.Errorf("failed to create query embedding: %w", err)
	}

	var matches []model.SimilarityMatch
	switch table {
	case "chunks":
		matches, err = s.vectorRepo.SearchChunks(ctx, queryVector, limit)
	case "pages":
		matches, err = s.vectorRepo.SearchPages(ctx, queryVector, limit)
	default:
		return nil, fmt.Errorf("invalid table: %q", table)
	}
	if err != nil {
		log.Errorf("[SearchService] 向量检索失败: %v", err)
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	// 排序契约由服务层兜底：相似度降序，相等时保持输入顺序
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}

	log.Infof("[SearchService] 语义检索完成, 返回 %d 条结果", len(matches))
	return matches, nil
}
