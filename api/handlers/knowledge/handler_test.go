package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"knowbase/internal/document"
	"knowbase/internal/rag"
	"knowbase/internal/rag/vectorstore"
	"knowbase/internal/worker/jobs"
	"knowbase/internal/worker/tasks"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type stubQueue struct {
	enqueued []tasks.ProcessDocumentPayload
	fail     bool
}

func (q *stubQueue) EnqueueProcessDocument(payload tasks.ProcessDocumentPayload) error {
	if q.fail {
		return fmt.Errorf("broker 不可用")
	}
	q.enqueued = append(q.enqueued, payload)
	return nil
}

func (q *stubQueue) Close() error { return nil }

type stubEmbedder struct{}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 2, 3}, nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i := range vectors {
		vectors[i] = []float32{1, 2, 3}
	}
	return vectors, nil
}

func (s *stubEmbedder) Dimension(ctx context.Context) (int, error) { return 3, nil }
func (s *stubEmbedder) Model() string                              { return "stub" }
func (s *stubEmbedder) ProviderName() string                       { return "stub" }

type stubVectorStore struct {
	hits    []vectorstore.Hit
	chunks  []vectorstore.DocumentChunk
	dropped []string
}

func (s *stubVectorStore) EnsureCollection(ctx context.Context, name string, dim int) error {
	return nil
}
func (s *stubVectorStore) EnsureIndex(ctx context.Context, name string) error { return nil }
func (s *stubVectorStore) Insert(ctx context.Context, name string, records []vectorstore.Record) error {
	return nil
}

func (s *stubVectorStore) Search(ctx context.Context, name string, vector []float32, topK int, filterExpr string) ([]vectorstore.Hit, error) {
	return s.hits, nil
}

func (s *stubVectorStore) GetByDocument(ctx context.Context, name string, documentID int64) ([]vectorstore.DocumentChunk, error) {
	return s.chunks, nil
}

func (s *stubVectorStore) DropCollection(ctx context.Context, name string) error {
	s.dropped = append(s.dropped, name)
	return nil
}

func (s *stubVectorStore) Close() error { return nil }

type apiFixture struct {
	router *gin.Engine
	docs   *document.Store
	queue  *stubQueue
	store  *stubVectorStore
}

func setupAPI(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	docs := document.NewStore(db)
	require.NoError(t, docs.AutoMigrate())

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	tracker := jobs.NewTracker(rdb, time.Hour)

	q := &stubQueue{}
	store := &stubVectorStore{}
	service := rag.NewService(docs, q, tracker, &stubEmbedder{}, store, zap.NewNop())

	router := gin.New()
	group := router.Group("/api/v1")
	documentHandler := NewDocumentHandler(service)
	jobHandler := NewJobHandler(service)
	searchHandler := NewSearchHandler(service)
	group.POST("/documents/:id/process", documentHandler.Process)
	group.GET("/documents/:id/chunks", documentHandler.GetChunks)
	group.GET("/jobs/:id", jobHandler.GetStatus)
	group.POST("/knowledge/search", searchHandler.Search)
	group.DELETE("/collections/:name", searchHandler.DeleteCollection)

	return &apiFixture{router: router, docs: docs, queue: q, store: store}
}

func (fx *apiFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	fx.router.ServeHTTP(w, req)
	return w
}

func seedDocument(t *testing.T, fx *apiFixture) *document.Document {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("文档内容。"), 0o644))
	doc := &document.Document{
		Name:     "doc.txt",
		UserID:   3,
		FilePath: path,
		FileType: "txt",
		Status:   document.StatusPending,
	}
	require.NoError(t, fx.docs.Create(context.Background(), doc))
	return doc
}

func TestProcessDocument_Accepted(t *testing.T) {
	fx := setupAPI(t)
	doc := seedDocument(t, fx)

	w := fx.do(t, http.MethodPost, fmt.Sprintf("/api/v1/documents/%d/process", doc.ID), nil)
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp ProcessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.JobID)
	assert.Equal(t, doc.ID, resp.DocumentID)

	require.Len(t, fx.queue.enqueued, 1)
	assert.Equal(t, resp.JobID, fx.queue.enqueued[0].JobID)

	// 入队后任务处于 PENDING
	jw := fx.do(t, http.MethodGet, "/api/v1/jobs/"+resp.JobID, nil)
	require.Equal(t, http.StatusOK, jw.Code)
	var status JobStatusResponse
	require.NoError(t, json.Unmarshal(jw.Body.Bytes(), &status))
	assert.Equal(t, jobs.StatePending, status.State)
}

func TestProcessDocument_NotFound(t *testing.T) {
	fx := setupAPI(t)

	w := fx.do(t, http.MethodPost, "/api/v1/documents/9999/process", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProcessDocument_BadID(t *testing.T) {
	fx := setupAPI(t)

	w := fx.do(t, http.MethodPost, "/api/v1/documents/abc/process", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProcessDocument_EnqueueFailure(t *testing.T) {
	fx := setupAPI(t)
	fx.queue.fail = true
	doc := seedDocument(t, fx)

	w := fx.do(t, http.MethodPost, fmt.Sprintf("/api/v1/documents/%d/process", doc.ID), nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestGetJobStatus_NotFound(t *testing.T) {
	fx := setupAPI(t)

	w := fx.do(t, http.MethodGet, "/api/v1/jobs/unknown-job", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSearch(t *testing.T) {
	fx := setupAPI(t)
	fx.store.hits = []vectorstore.Hit{
		{ChunkID: 0, DocumentID: 7, Text: "命中文本", Distance: 0.2},
	}

	w := fx.do(t, http.MethodPost, "/api/v1/knowledge/search", SearchRequest{
		Query:  "查询内容",
		UserID: 3,
		TopK:   5,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp SearchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Total)
	assert.Equal(t, "命中文本", resp.Results[0].Text)
}

func TestSearch_MissingScope(t *testing.T) {
	fx := setupAPI(t)

	// category_id 和 user_id 都缺失
	w := fx.do(t, http.MethodPost, "/api/v1/knowledge/search", SearchRequest{Query: "查询"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSearch_EmptyQuery(t *testing.T) {
	fx := setupAPI(t)

	w := fx.do(t, http.MethodPost, "/api/v1/knowledge/search", map[string]any{"user_id": 3})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetChunks(t *testing.T) {
	fx := setupAPI(t)
	doc := seedDocument(t, fx)
	fx.store.chunks = []vectorstore.DocumentChunk{
		{ChunkID: 0, DocumentID: doc.ID, Text: "第一块"},
		{ChunkID: 1, DocumentID: doc.ID, Text: "第二块"},
	}

	w := fx.do(t, http.MethodGet, fmt.Sprintf("/api/v1/documents/%d/chunks", doc.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp ChunkListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, doc.ID, resp.DocumentID)
}

func TestDeleteCollection(t *testing.T) {
	fx := setupAPI(t)

	w := fx.do(t, http.MethodDelete, "/api/v1/collections/user_3", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"user_3"}, fx.store.dropped)
}
