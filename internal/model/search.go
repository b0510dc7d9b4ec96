package model

// SimilarityMatch 是一条语义检索命中。chunks 检索填充 ChunkIndex /
// ChunkText / SourceURL；pages 检索填充 URL / ContentPreview。
// Similarity = 1 − 余弦距离，约在 [0,1] 区间内，降序排列。
type SimilarityMatch struct {
	ID             int64   `json:"id"`
	ChunkIndex     *int    `json:"chunk_index,omitempty"`
	ChunkText      string  `json:"chunk_text,omitempty"`
	SourceURL      string  `json:"source_url,omitempty"`
	URL            string  `json:"url,omitempty"`
	ContentPreview string  `json:"content_preview,omitempty"`
	Similarity     float64 `json:"similarity"`
}

// SearchRequest 是语义搜索接口的请求体。
type SearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
	Table string `json:"table,omitempty"`
}

// SearchResult 是语义搜索接口的响应体。
type SearchResult struct {
	Success bool              `json:"success"`
	Query   string            `json:"query,omitempty"`
	Table   string            `json:"table,omitempty"`
	Results []SimilarityMatch `json:"results,omitempty"`
	Error   string            `json:"error,omitempty"`
}
