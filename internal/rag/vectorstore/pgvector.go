package vectorstore

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

// 集合名只允许出现在 SQL 标识符里的字符 (category_3, user_7 等)
var identRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PGVectorStore 基于 PostgreSQL pgvector 扩展的向量存储实现。
// 每个集合一张表, ivfflat 索引提供 L2 近邻检索。
// 数据库连接由外部持有并负责关闭。
type PGVectorStore struct {
	db    *gorm.DB
	lists int // ivfflat 分区数
}

// NewPGVectorStore 创建 pgvector 存储实例并确保扩展可用
func NewPGVectorStore(db *gorm.DB, lists int) (*PGVectorStore, error) {
	if lists <= 0 {
		lists = 1024
	}

	store := &PGVectorStore{db: db, lists: lists}
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return nil, &StoreError{Op: "init", Err: fmt.Errorf("启用 pgvector 扩展失败: %w", err)}
	}

	return store, nil
}

// EnsureCollection 幂等建表
func (s *PGVectorStore) EnsureCollection(ctx context.Context, name string, dim int) error {
	if err := validateIdent(name); err != nil {
		return &StoreError{Op: "ensure_collection", Collection: name, Err: err}
	}
	if dim <= 0 {
		return &StoreError{Op: "ensure_collection", Collection: name, Err: fmt.Errorf("非法维度 %d", dim)}
	}

	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id bigserial PRIMARY KEY,
		chunk_id bigint NOT NULL,
		document_id bigint NOT NULL,
		text varchar(%d),
		embedding vector(%d)
	)`, name, MaxTextLength, dim)

	if err := s.db.WithContext(ctx).Exec(stmt).Error; err != nil {
		return &StoreError{Op: "ensure_collection", Collection: name, Err: err}
	}
	return nil
}

// EnsureIndex 幂等建 ivfflat L2 索引
func (s *PGVectorStore) EnsureIndex(ctx context.Context, name string) error {
	if err := validateIdent(name); err != nil {
		return &StoreError{Op: "ensure_index", Collection: name, Err: err}
	}

	stmt := fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s USING ivfflat (embedding vector_l2_ops) WITH (lists = %d)",
		name, name, s.lists,
	)
	if err := s.db.WithContext(ctx).Exec(stmt).Error; err != nil {
		return &StoreError{Op: "ensure_index", Collection: name, Err: err}
	}
	return nil
}

// Insert 事务内批量写入
func (s *PGVectorStore) Insert(ctx context.Context, name string, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := validateIdent(name); err != nil {
		return &StoreError{Op: "insert", Collection: name, Err: err}
	}

	stmt := fmt.Sprintf(
		"INSERT INTO %s (chunk_id, document_id, text, embedding) VALUES (?, ?, ?, ?)", name,
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, rec := range records {
			text := truncateText(rec.Text, MaxTextLength)
			if err := tx.Exec(stmt, rec.ChunkID, rec.DocumentID, text, pgvector.NewVector(rec.Vector)).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &StoreError{Op: "insert", Collection: name, Err: err}
	}
	return nil
}

// Search L2 近邻检索, <-> 是 pgvector 的 L2 距离操作符
func (s *PGVectorStore) Search(ctx context.Context, name string, vector []float32, topK int, filterExpr string) ([]Hit, error) {
	if err := validateIdent(name); err != nil {
		return nil, &StoreError{Op: "search", Collection: name, Err: err}
	}
	if len(vector) == 0 {
		return nil, &StoreError{Op: "search", Collection: name, Err: fmt.Errorf("查询向量不能为空")}
	}
	if topK <= 0 {
		topK = 5
	}

	where := ""
	args := []any{pgvector.NewVector(vector)}
	if filterExpr != "" {
		clause, filterArgs, err := parseFilter(filterExpr)
		if err != nil {
			return nil, &StoreError{Op: "search", Collection: name, Err: err}
		}
		where = "WHERE " + clause
		args = append(args, filterArgs...)
	}
	args = append(args, topK)

	query := fmt.Sprintf(`SELECT chunk_id, document_id, text, embedding <-> ? AS distance
		FROM %s %s ORDER BY distance LIMIT ?`, name, where)

	var hits []Hit
	if err := s.db.WithContext(ctx).Raw(query, args...).Scan(&hits).Error; err != nil {
		return nil, &StoreError{Op: "search", Collection: name, Err: err}
	}
	return hits, nil
}

// GetByDocument 精确返回一个文档的全部分块
func (s *PGVectorStore) GetByDocument(ctx context.Context, name string, documentID int64) ([]DocumentChunk, error) {
	if err := validateIdent(name); err != nil {
		return nil, &StoreError{Op: "query", Collection: name, Err: err}
	}

	query := fmt.Sprintf(
		"SELECT chunk_id, document_id, text FROM %s WHERE document_id = ? ORDER BY chunk_id", name,
	)

	var chunks []DocumentChunk
	if err := s.db.WithContext(ctx).Raw(query, documentID).Scan(&chunks).Error; err != nil {
		return nil, &StoreError{Op: "query", Collection: name, Err: err}
	}
	return chunks, nil
}

// DropCollection 删除整个命名空间
func (s *PGVectorStore) DropCollection(ctx context.Context, name string) error {
	if err := validateIdent(name); err != nil {
		return &StoreError{Op: "drop", Collection: name, Err: err}
	}
	if err := s.db.WithContext(ctx).Exec("DROP TABLE IF EXISTS " + name).Error; err != nil {
		return &StoreError{Op: "drop", Collection: name, Err: err}
	}
	return nil
}

// Close 连接由外部持有, 这里无需释放
func (s *PGVectorStore) Close() error { return nil }

// validateIdent 拒绝不能作为 SQL 标识符的集合名
func validateIdent(name string) error {
	if !identRegex.MatchString(name) {
		return fmt.Errorf("非法集合名: %q", name)
	}
	return nil
}

// 过滤表达式里允许引用的列
var filterColumns = map[string]bool{
	"chunk_id":    true,
	"document_id": true,
}

var (
	filterEqRegex = regexp.MustCompile(`^([a-zA-Z_][a-zA-Z0-9_]*)\s*==\s*(-?\d+)$`)
	filterInRegex = regexp.MustCompile(`^([a-zA-Z_][a-zA-Z0-9_]*)\s+in\s+\[([^\[\]]*)\]$`)
)

// parseFilter 把 Milvus 风格的过滤表达式解析为参数化 SQL 谓词。
// 表达式来自请求方, 绝不直接拼进 SQL: 只接受
// `col == N` 与 `col in [N, ...]` 及其 and 连接, 列名限定为
// chunk_id / document_id, 其余一律拒绝。
func parseFilter(expr string) (string, []any, error) {
	parts := strings.Split(expr, " and ")
	clauses := make([]string, 0, len(parts))
	args := make([]any, 0, len(parts))

	for _, part := range parts {
		part = strings.TrimSpace(part)

		if m := filterEqRegex.FindStringSubmatch(part); m != nil {
			if !filterColumns[m[1]] {
				return "", nil, fmt.Errorf("过滤表达式不支持列 %q", m[1])
			}
			val, err := strconv.ParseInt(m[2], 10, 64)
			if err != nil {
				return "", nil, fmt.Errorf("非法过滤值 %q: %w", m[2], err)
			}
			clauses = append(clauses, m[1]+" = ?")
			args = append(args, val)
			continue
		}

		if m := filterInRegex.FindStringSubmatch(part); m != nil {
			if !filterColumns[m[1]] {
				return "", nil, fmt.Errorf("过滤表达式不支持列 %q", m[1])
			}
			items := strings.Split(m[2], ",")
			placeholders := make([]string, 0, len(items))
			for _, item := range items {
				val, err := strconv.ParseInt(strings.TrimSpace(item), 10, 64)
				if err != nil {
					return "", nil, fmt.Errorf("非法过滤值 %q: %w", item, err)
				}
				placeholders = append(placeholders, "?")
				args = append(args, val)
			}
			if len(placeholders) == 0 {
				return "", nil, fmt.Errorf("in 列表不能为空: %q", part)
			}
			clauses = append(clauses, m[1]+" IN ("+strings.Join(placeholders, ", ")+")")
			continue
		}

		return "", nil, fmt.Errorf("无法解析过滤表达式: %q", part)
	}

	return strings.Join(clauses, " AND "), args, nil
}
