package vectorstore

import (
	"context"
	"fmt"
	"unicode/utf8"
)

// MaxTextLength 存储字段 text 的长度上限 (字节)
const MaxTextLength = 65535

// truncateText 按字节上限截断, 回退到 rune 边界, 不产生残缺的 UTF-8 序列
func truncateText(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	for limit > 0 && !utf8.RuneStart(text[limit]) {
		limit--
	}
	return text[:limit]
}

// StoreError 向量存储操作失败。
// 与空结果严格区分: 无命中返回 nil error 和空切片。
type StoreError struct {
	Op         string // ensure_collection, ensure_index, insert, search, query, drop
	Collection string
	Err        error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("向量存储操作失败 [%s %s]: %v", e.Op, e.Collection, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Record 一条待写入的知识片段。
// ChunkID 是文档内的顺序索引, 与 DocumentID 一起构成全局唯一键。
type Record struct {
	ChunkID    int64
	DocumentID int64
	Text       string
	Vector     []float32
}

// Hit 一次相似度检索的单条命中, 距离越小越相近
type Hit struct {
	ChunkID    int64   `json:"chunk_id"`
	DocumentID int64   `json:"document_id"`
	Text       string  `json:"text"`
	Distance   float64 `json:"distance"`
}

// DocumentChunk 按文档精确查询返回的分块
type DocumentChunk struct {
	ChunkID    int64  `json:"chunk_id"`
	DocumentID int64  `json:"document_id"`
	Text       string `json:"text"`
}

// Store 以命名集合 (知识库命名空间) 为单位的向量存储。
// 所有方法显式返回错误, 不吞错。
type Store interface {
	// EnsureCollection 幂等建集合: 不存在则按维度建 schema
	EnsureCollection(ctx context.Context, name string, dim int) error

	// EnsureIndex 幂等建 ANN 索引并把集合加载到可服务状态
	EnsureIndex(ctx context.Context, name string) error

	// Insert 追加数据并触发重载, 保证新行立即可检索
	Insert(ctx context.Context, name string, records []Record) error

	// Search 近邻检索, filterExpr 可选 (如 "document_id in [1,2]")
	Search(ctx context.Context, name string, vector []float32, topK int, filterExpr string) ([]Hit, error)

	// GetByDocument 精确返回一个文档的全部分块, 无需查询向量
	GetByDocument(ctx context.Context, name string, documentID int64) ([]DocumentChunk, error)

	// DropCollection 删除整个命名空间
	DropCollection(ctx context.Context, name string) error

	// Close 显式释放连接, 由持有者在生命周期结束时调用
	Close() error
}
