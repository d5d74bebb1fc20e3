package rag

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"knowbase/internal/config"
	"knowbase/internal/document"
	"knowbase/internal/rag/loader"
	"knowbase/internal/rag/vectorstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeEmbedder 可编程的向量化桩
type fakeEmbedder struct {
	mu       sync.Mutex
	dim      int
	failures int // 前 N 次调用失败
	calls    int
	short    bool // 返回比输入少一条, 制造数量不一致
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return nil, fmt.Errorf("向量化服务暂时不可用")
	}
	n := len(texts)
	if f.short {
		n--
	}
	vectors := make([][]float32, n)
	for i := range vectors {
		vectors[i] = make([]float32, f.dim)
	}
	return vectors, nil
}

func (f *fakeEmbedder) Dimension(ctx context.Context) (int, error) { return f.dim, nil }
func (f *fakeEmbedder) Model() string                              { return "fake-embed" }
func (f *fakeEmbedder) ProviderName() string                       { return "fake" }

// fakeStore 记录调用顺序的向量存储桩
type fakeStore struct {
	mu         sync.Mutex
	calls      []string
	inserted   map[string][]vectorstore.Record
	failInsert int // 前 N 次 Insert 失败
	insertTry  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{inserted: make(map[string][]vectorstore.Record)}
}

func (f *fakeStore) record(op string) {
	f.calls = append(f.calls, op)
}

func (f *fakeStore) EnsureCollection(ctx context.Context, name string, dim int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ensure_collection:" + name)
	return nil
}

func (f *fakeStore) EnsureIndex(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ensure_index:" + name)
	return nil
}

func (f *fakeStore) Insert(ctx context.Context, name string, records []vectorstore.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insertTry++
	if f.insertTry <= f.failInsert {
		return &vectorstore.StoreError{Op: "insert", Collection: name, Err: fmt.Errorf("连接被拒绝")}
	}
	f.record("insert:" + name)
	f.inserted[name] = append(f.inserted[name], records...)
	return nil
}

func (f *fakeStore) Search(ctx context.Context, name string, vector []float32, topK int, filterExpr string) ([]vectorstore.Hit, error) {
	return nil, nil
}

func (f *fakeStore) GetByDocument(ctx context.Context, name string, documentID int64) ([]vectorstore.DocumentChunk, error) {
	return nil, nil
}

func (f *fakeStore) DropCollection(ctx context.Context, name string) error { return nil }
func (f *fakeStore) Close() error                                          { return nil }

func writeDocFixture(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testSplitterDefaults() config.SplitterConfig {
	return config.SplitterConfig{Mode: "auto", MaxSize: 100, OverlapRatio: 0.2}
}

func TestPipeline_ProcessAndStore(t *testing.T) {
	store := newFakeStore()
	embedder := &fakeEmbedder{dim: 4}
	pipeline := NewPipeline(loader.New(), embedder, store, testSplitterDefaults(), zap.NewNop())

	doc := &document.Document{
		ID:       7,
		UserID:   3,
		FilePath: writeDocFixture(t, strings.Repeat("知识内容。", 60)),
	}

	var milestones []int
	result, err := pipeline.ProcessAndStore(context.Background(), doc, nil, func(stage string, percent int) {
		milestones = append(milestones, percent)
	})
	require.NoError(t, err)
	require.NotNil(t, result)

	// 阶段进度固定为 10/30/60/90/100
	assert.Equal(t, []int{10, 30, 60, 90, 100}, milestones)

	records := store.inserted["user_3"]
	require.NotEmpty(t, records)
	assert.Equal(t, result.ChunksStored, len(records))
	assert.Equal(t, 4, result.Dimension)

	// chunk_id 按分块序号递增, document_id 一致
	for i, rec := range records {
		assert.Equal(t, int64(i), rec.ChunkID)
		assert.Equal(t, int64(7), rec.DocumentID)
		assert.Len(t, rec.Vector, 4)
	}

	// 入库前必须先确认集合和索引
	require.True(t, len(store.calls) >= 3)
	assert.Equal(t, "ensure_collection:user_3", store.calls[0])
	assert.Equal(t, "ensure_index:user_3", store.calls[1])
	assert.Equal(t, "insert:user_3", store.calls[2])
}

func TestPipeline_CategoryCollection(t *testing.T) {
	store := newFakeStore()
	pipeline := NewPipeline(loader.New(), &fakeEmbedder{dim: 2}, store, testSplitterDefaults(), zap.NewNop())

	categoryID := int64(42)
	doc := &document.Document{
		ID:         8,
		UserID:     3,
		CategoryID: &categoryID,
		FilePath:   writeDocFixture(t, "分类空间的文档内容。"),
	}

	_, err := pipeline.ProcessAndStore(context.Background(), doc, nil, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, store.inserted["category_42"])
	assert.Empty(t, store.inserted["user_3"])
}

func TestPipeline_DocumentSettingsOverride(t *testing.T) {
	store := newFakeStore()
	pipeline := NewPipeline(loader.New(), &fakeEmbedder{dim: 2}, store, testSplitterDefaults(), zap.NewNop())

	doc := &document.Document{
		ID:       9,
		UserID:   3,
		FilePath: writeDocFixture(t, "# 标题\n\n正文第一段。\n\n## 小节\n\n正文第二段。"),
	}
	settings := &document.Settings{Mode: "hierarchical", MaxSize: 1000}

	result, err := pipeline.ProcessAndStore(context.Background(), doc, settings, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.ChunksStored)
}

func TestPipeline_InvalidSettings(t *testing.T) {
	store := newFakeStore()
	pipeline := NewPipeline(loader.New(), &fakeEmbedder{dim: 2}, store, testSplitterDefaults(), zap.NewNop())

	doc := &document.Document{
		ID:       10,
		UserID:   3,
		FilePath: writeDocFixture(t, "内容。"),
	}
	settings := &document.Settings{Mode: "bogus"}

	_, err := pipeline.ProcessAndStore(context.Background(), doc, settings, nil)
	assert.Error(t, err)
	assert.Empty(t, store.calls)
}

func TestPipeline_LoadFailure(t *testing.T) {
	store := newFakeStore()
	pipeline := NewPipeline(loader.New(), &fakeEmbedder{dim: 2}, store, testSplitterDefaults(), zap.NewNop())

	doc := &document.Document{
		ID:       11,
		UserID:   3,
		FilePath: filepath.Join(t.TempDir(), "missing.txt"),
	}

	_, err := pipeline.ProcessAndStore(context.Background(), doc, nil, nil)
	assert.ErrorIs(t, err, loader.ErrNotFound)
	assert.Empty(t, store.calls)
}

func TestPipeline_CountMismatchRejectedBeforeStore(t *testing.T) {
	store := newFakeStore()
	embedder := &fakeEmbedder{dim: 2, short: true}
	pipeline := NewPipeline(loader.New(), embedder, store, testSplitterDefaults(), zap.NewNop())

	doc := &document.Document{
		ID:       12,
		UserID:   3,
		FilePath: writeDocFixture(t, strings.Repeat("第一段。\n\n", 40)),
	}

	_, err := pipeline.ProcessAndStore(context.Background(), doc, nil, nil)
	var mismatch *CountMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, mismatch.Chunks-1, mismatch.Embeddings)

	// 数量不一致必须发生在任何存储调用之前
	assert.Empty(t, store.calls)
}

func TestPipeline_EmbedRetrySucceeds(t *testing.T) {
	store := newFakeStore()
	embedder := &fakeEmbedder{dim: 2, failures: 2}
	pipeline := NewPipeline(loader.New(), embedder, store, testSplitterDefaults(), zap.NewNop())

	doc := &document.Document{
		ID:       13,
		UserID:   3,
		FilePath: writeDocFixture(t, "重试后成功的内容。"),
	}

	_, err := pipeline.ProcessAndStore(context.Background(), doc, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, embedder.calls)
}

func TestPipeline_StoreRetryExhausted(t *testing.T) {
	store := newFakeStore()
	store.failInsert = 10 // 永远失败
	pipeline := NewPipeline(loader.New(), &fakeEmbedder{dim: 2}, store, testSplitterDefaults(), zap.NewNop())

	doc := &document.Document{
		ID:       14,
		UserID:   3,
		FilePath: writeDocFixture(t, "存储一直失败的内容。"),
	}

	_, err := pipeline.ProcessAndStore(context.Background(), doc, nil, nil)
	var storeErr *vectorstore.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, 3, store.insertTry)
}

func TestPipeline_ContextCancelledDuringRetry(t *testing.T) {
	store := newFakeStore()
	embedder := &fakeEmbedder{dim: 2, failures: 10}
	pipeline := NewPipeline(loader.New(), embedder, store, testSplitterDefaults(), zap.NewNop())

	doc := &document.Document{
		ID:       15,
		UserID:   3,
		FilePath: writeDocFixture(t, "取消期间的内容。"),
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := pipeline.ProcessAndStore(ctx, doc, nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
