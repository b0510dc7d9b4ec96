package repository

import (
	"context"
	"strconv"
	"strings"
	"visamate-go/internal/model"

	"gorm.io/gorm"
)

// VectorRepository 定义了对 pgvector 语料库的相似度检索接口。
// 相似度 = 1 − 余弦距离（<=> 算子），未存储向量的行不参与排序。
type VectorRepository interface {
	SearchChunks(ctx context.Context, queryVector []float32, limit int) ([]model.SimilarityMatch, error)
	SearchPages(ctx context.Context, queryVector []float32, limit int) ([]model.SimilarityMatch, error)
}

type vectorRepository struct {
	db *gorm.DB
}

// NewVectorRepository 创建一个新的 VectorRepository 实例。
func NewVectorRepository(db *gorm.DB) VectorRepository {
	return &vectorRepository{db: db}
}

// SearchChunks 在页面分块上做余弦相似度检索，并回联父页面以得到
// 可读的来源 URL。
func (r *vectorRepository) SearchChunks(ctx context.Context, queryVector []float32, limit int) ([]model.SimilarityMatch, error) {
	const query = `
		SELECT
			c.id,
			c.chunk_index,
			c.chunk_text,
			p.url AS source_url,
			1 - (c.embedding <=> ?::vector) AS similarity
		FROM uscis_page_chunks c
		JOIN uscis_pages p ON c.page_id = p.id
		WHERE c.embedding IS NOT NULL
		ORDER BY c.embedding <=> ?::vector
		LIMIT ?`

	literal := vectorLiteral(queryVector)
	var matches []model.SimilarityMatch
	if err := r.db.WithContext(ctx).Raw(query, literal, literal, limit).Scan(&matches).Error; err != nil {
		return nil, err
	}
	return matches, nil
}

// SearchPages 在整页上做余弦相似度检索，正文截取前 500 字符作为预览，
// 以约束响应体大小。
func (r *vectorRepository) SearchPages(ctx context.Context, queryVector []float32, limit int) ([]model.SimilarityMatch, error) {
	const query = `
		SELECT
			p.id,
			p.url,
			LEFT(p.raw_content, 500) AS content_preview,
			1 - (p.embedding <=> ?::vector) AS similarity
		FROM uscis_pages p
		WHERE p.embedding IS NOT NULL
		ORDER BY p.embedding <=> ?::vector
		LIMIT ?`

	literal := vectorLiteral(queryVector)
	var matches []model.SimilarityMatch
	if err := r.db.WithContext(ctx).Raw(query, literal, literal, limit).Scan(&matches).Error; err != nil {
		return nil, err
	}
	return matches, nil
}

// vectorLiteral 将向量格式化为 pgvector 的文本字面量 "[x1,x2,...]"。
func vectorLiteral(vector []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range vector {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
