package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MilvusOptions 初始化 Milvus 向量存储的配置
type MilvusOptions struct {
	Endpoint       string
	Token          string
	IndexType      string // 默认 IVF_FLAT
	Metric         string // 默认 L2
	NList          int    // 默认 1024
	NProbe         int    // 默认 10
	TimeoutSeconds int
	HTTPClient     *http.Client
}

// MilvusStore 基于 Milvus RESTful v2 接口的向量存储实现。
// 进程内持有一个 HTTP 客户端, 由创建者负责 Close。
type MilvusStore struct {
	client    *http.Client
	baseURL   string
	token     string
	indexType string
	metric    string
	nlist     int
	nprobe    int

	mu   sync.Mutex
	dims map[string]int // 已确认集合的维度
}

// NewMilvusStore 创建 Milvus 向量存储实例
func NewMilvusStore(opts MilvusOptions) (*MilvusStore, error) {
	baseURL := strings.TrimSpace(opts.Endpoint)
	if baseURL == "" {
		return nil, fmt.Errorf("milvus endpoint 不能为空")
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	indexType := opts.IndexType
	if indexType == "" {
		indexType = "IVF_FLAT"
	}
	metric := opts.Metric
	if metric == "" {
		metric = "L2"
	}
	nlist := opts.NList
	if nlist <= 0 {
		nlist = 1024
	}
	nprobe := opts.NProbe
	if nprobe <= 0 {
		nprobe = 10
	}

	client := opts.HTTPClient
	if client == nil {
		timeout := opts.TimeoutSeconds
		if timeout <= 0 {
			timeout = 30
		}
		client = &http.Client{Timeout: time.Duration(timeout) * time.Second}
	}

	return &MilvusStore{
		client:    client,
		baseURL:   baseURL,
		token:     opts.Token,
		indexType: indexType,
		metric:    metric,
		nlist:     nlist,
		nprobe:    nprobe,
		dims:      make(map[string]int),
	}, nil
}

// milvusResponse Milvus REST 通用响应体
type milvusResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// EnsureCollection 幂等创建集合。
// Schema: id 自增主键, chunk_id/document_id Int64,
// text VarChar(65535), vector FloatVector(dim)。
func (s *MilvusStore) EnsureCollection(ctx context.Context, name string, dim int) error {
	if dim <= 0 {
		return &StoreError{Op: "ensure_collection", Collection: name, Err: fmt.Errorf("非法维度 %d", dim)}
	}

	has, err := s.hasCollection(ctx, name)
	if err != nil {
		return err
	}
	if has {
		s.rememberDim(name, dim)
		return nil
	}

	body := map[string]any{
		"collectionName": name,
		"schema": map[string]any{
			"autoID": true,
			"fields": []map[string]any{
				{"fieldName": "id", "dataType": "Int64", "isPrimary": true},
				{"fieldName": "chunk_id", "dataType": "Int64"},
				{"fieldName": "document_id", "dataType": "Int64"},
				{"fieldName": "text", "dataType": "VarChar",
					"elementTypeParams": map[string]string{"max_length": strconv.Itoa(MaxTextLength)}},
				{"fieldName": "vector", "dataType": "FloatVector",
					"elementTypeParams": map[string]string{"dim": strconv.Itoa(dim)}},
			},
		},
	}

	if _, err := s.doRequest(ctx, "/v2/vectordb/collections/create", body); err != nil {
		return &StoreError{Op: "ensure_collection", Collection: name, Err: err}
	}

	s.rememberDim(name, dim)
	return nil
}

// EnsureIndex 幂等创建 ANN 索引并加载集合
func (s *MilvusStore) EnsureIndex(ctx context.Context, name string) error {
	body := map[string]any{
		"collectionName": name,
		"indexParams": []map[string]any{
			{
				"fieldName":  "vector",
				"indexName":  "vector_idx",
				"metricType": s.metric,
				"params": map[string]any{
					"index_type": s.indexType,
					"nlist":      s.nlist,
				},
			},
		},
	}

	if _, err := s.doRequest(ctx, "/v2/vectordb/indexes/create", body); err != nil {
		return &StoreError{Op: "ensure_index", Collection: name, Err: err}
	}

	return s.loadCollection(ctx, name)
}

// Insert 写入一批记录并触发重载, 使新行立即可检索
func (s *MilvusStore) Insert(ctx context.Context, name string, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	dim := s.knownDim(name)
	rows := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		if dim > 0 && len(rec.Vector) != dim {
			return &StoreError{
				Op:         "insert",
				Collection: name,
				Err:        fmt.Errorf("向量维度不匹配: 期望 %d 实际 %d", dim, len(rec.Vector)),
			}
		}
		rows = append(rows, map[string]any{
			"chunk_id":    rec.ChunkID,
			"document_id": rec.DocumentID,
			"text":        truncateText(rec.Text, MaxTextLength),
			"vector":      rec.Vector,
		})
	}

	body := map[string]any{
		"collectionName": name,
		"data":           rows,
	}
	if _, err := s.doRequest(ctx, "/v2/vectordb/entities/insert", body); err != nil {
		return &StoreError{Op: "insert", Collection: name, Err: err}
	}

	return s.loadCollection(ctx, name)
}

// Search 近邻检索, 距离升序返回
func (s *MilvusStore) Search(ctx context.Context, name string, vector []float32, topK int, filterExpr string) ([]Hit, error) {
	if len(vector) == 0 {
		return nil, &StoreError{Op: "search", Collection: name, Err: fmt.Errorf("查询向量不能为空")}
	}
	if topK <= 0 {
		topK = 5
	}

	body := map[string]any{
		"collectionName": name,
		"data":           [][]float32{vector},
		"annsField":      "vector",
		"limit":          topK,
		"outputFields":   []string{"chunk_id", "document_id", "text"},
		"searchParams": map[string]any{
			"metricType": s.metric,
			"params":     map[string]any{"nprobe": s.nprobe},
		},
	}
	if filterExpr != "" {
		body["filter"] = filterExpr
	}

	data, err := s.doRequest(ctx, "/v2/vectordb/entities/search", body)
	if err != nil {
		return nil, &StoreError{Op: "search", Collection: name, Err: err}
	}

	var rows []struct {
		ChunkID    int64   `json:"chunk_id"`
		DocumentID int64   `json:"document_id"`
		Text       string  `json:"text"`
		Distance   float64 `json:"distance"`
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, &StoreError{Op: "search", Collection: name, Err: fmt.Errorf("解析响应失败: %w", err)}
	}

	hits := make([]Hit, 0, len(rows))
	for _, r := range rows {
		hits = append(hits, Hit{
			ChunkID:    r.ChunkID,
			DocumentID: r.DocumentID,
			Text:       r.Text,
			Distance:   r.Distance,
		})
	}
	return hits, nil
}

// GetByDocument 按 document_id 精确查询全部分块
func (s *MilvusStore) GetByDocument(ctx context.Context, name string, documentID int64) ([]DocumentChunk, error) {
	body := map[string]any{
		"collectionName": name,
		"filter":         fmt.Sprintf("document_id == %d", documentID),
		"outputFields":   []string{"chunk_id", "document_id", "text"},
	}

	data, err := s.doRequest(ctx, "/v2/vectordb/entities/query", body)
	if err != nil {
		return nil, &StoreError{Op: "query", Collection: name, Err: err}
	}

	var chunks []DocumentChunk
	if err := json.Unmarshal(data, &chunks); err != nil {
		return nil, &StoreError{Op: "query", Collection: name, Err: fmt.Errorf("解析响应失败: %w", err)}
	}
	return chunks, nil
}

// DropCollection 删除整个集合
func (s *MilvusStore) DropCollection(ctx context.Context, name string) error {
	body := map[string]any{"collectionName": name}
	if _, err := s.doRequest(ctx, "/v2/vectordb/collections/drop", body); err != nil {
		return &StoreError{Op: "drop", Collection: name, Err: err}
	}

	s.mu.Lock()
	delete(s.dims, name)
	s.mu.Unlock()
	return nil
}

// Close 释放空闲连接
func (s *MilvusStore) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// hasCollection 查询集合是否存在
func (s *MilvusStore) hasCollection(ctx context.Context, name string) (bool, error) {
	data, err := s.doRequest(ctx, "/v2/vectordb/collections/has", map[string]any{"collectionName": name})
	if err != nil {
		return false, &StoreError{Op: "ensure_collection", Collection: name, Err: err}
	}

	var result struct {
		Has bool `json:"has"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return false, &StoreError{Op: "ensure_collection", Collection: name, Err: fmt.Errorf("解析响应失败: %w", err)}
	}
	return result.Has, nil
}

// loadCollection 把集合加载到内存使其可服务
func (s *MilvusStore) loadCollection(ctx context.Context, name string) error {
	if _, err := s.doRequest(ctx, "/v2/vectordb/collections/load", map[string]any{"collectionName": name}); err != nil {
		return &StoreError{Op: "load", Collection: name, Err: err}
	}
	return nil
}

// doRequest 发送一次 REST 请求并解包通用响应
func (s *MilvusStore) doRequest(ctx context.Context, path string, body any) (json.RawMessage, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("编码请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("构造请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求失败: %w", err)
	}
	defer resp.Body.Close()

	var parsed milvusResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("解析响应失败: %w", err)
	}

	if resp.StatusCode != http.StatusOK || parsed.Code != 0 {
		return nil, fmt.Errorf("milvus 返回错误: http=%d code=%d message=%s",
			resp.StatusCode, parsed.Code, parsed.Message)
	}

	return parsed.Data, nil
}

func (s *MilvusStore) rememberDim(name string, dim int) {
	s.mu.Lock()
	s.dims[name] = dim
	s.mu.Unlock()
}

func (s *MilvusStore) knownDim(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dims[name]
}
