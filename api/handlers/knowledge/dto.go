package knowledge

import "knowbase/internal/rag/vectorstore"

// ProcessResponse 摄取任务提交响应
type ProcessResponse struct {
	JobID      string `json:"job_id"`
	DocumentID int64  `json:"document_id"`
}

// JobStatusResponse 摄取任务状态响应
type JobStatusResponse struct {
	JobID       string `json:"job_id"`
	State       string `json:"state"`
	Progress    int    `json:"progress"`
	ChunksCount int    `json:"chunks_count,omitempty"`
	Error       string `json:"error,omitempty"`
}

// SearchRequest 检索请求
// CategoryID 和 UserID 二选一决定检索的命名空间
type SearchRequest struct {
	Query      string `json:"query" binding:"required,min=1"`
	CategoryID *int64 `json:"category_id"`
	UserID     int64  `json:"user_id"`
	TopK       int    `json:"top_k"`
	Filter     string `json:"filter"`
}

// SearchResponse 检索响应
type SearchResponse struct {
	Query   string            `json:"query"`
	Results []vectorstore.Hit `json:"results"`
	Total   int               `json:"total"`
}

// ChunkListResponse 文档分块列表响应
type ChunkListResponse struct {
	DocumentID int64                       `json:"document_id"`
	Chunks     []vectorstore.DocumentChunk `json:"chunks"`
	Total      int                         `json:"total"`
}
