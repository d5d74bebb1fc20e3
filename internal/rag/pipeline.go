package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"knowbase/internal/config"
	"knowbase/internal/document"
	"knowbase/internal/metrics"
	"knowbase/internal/rag/embedding"
	"knowbase/internal/rag/loader"
	"knowbase/internal/rag/splitter"
	"knowbase/internal/rag/vectorstore"

	"go.uber.org/zap"
)

// CountMismatchError 分块数与向量数不一致, 该批次整体拒绝入库
type CountMismatchError struct {
	Chunks     int
	Embeddings int
}

func (e *CountMismatchError) Error() string {
	return fmt.Sprintf("分块数与向量数不一致: chunks=%d embeddings=%d", e.Chunks, e.Embeddings)
}

// ProgressFunc 各阶段进度回调, percent 取值 0-100。
// 回调失败不中断流水线。
type ProgressFunc func(stage string, percent int)

// 各阶段进度里程碑
const (
	progressLoading   = 10
	progressSplitting = 30
	progressEmbedding = 60
	progressStoring   = 90
	progressDone      = 100
)

// 远程调用 (向量化/入库) 的重试次数与基础退避
const (
	maxAttempts    = 3
	retryBaseDelay = 500 * time.Millisecond
)

// Result 摄取结果
type Result struct {
	ChunksStored int `json:"chunks_stored"`
	Dimension    int `json:"dimension"`
}

// Pipeline 文档摄取流水线: 加载 -> 分块 -> 向量化 -> 入库。
// 所有阶段同步执行, 失败即终止并原样上抛各阶段的错误类型。
type Pipeline struct {
	loader   *loader.Loader
	embedder embedding.Provider
	store    vectorstore.Store
	defaults config.SplitterConfig
	logger   *zap.Logger
}

// NewPipeline 创建摄取流水线
func NewPipeline(
	ld *loader.Loader,
	embedder embedding.Provider,
	store vectorstore.Store,
	defaults config.SplitterConfig,
	log *zap.Logger,
) *Pipeline {
	return &Pipeline{
		loader:   ld,
		embedder: embedder,
		store:    store,
		defaults: defaults,
		logger:   log,
	}
}

// ProcessAndStore 处理单个文档并写入其所属命名空间。
// settings 为空时使用全局默认分块配置。
func (p *Pipeline) ProcessAndStore(
	ctx context.Context,
	doc *document.Document,
	settings *document.Settings,
	onProgress ProgressFunc,
) (*Result, error) {
	report := func(stage string, percent int) {
		if onProgress != nil {
			onProgress(stage, percent)
		}
	}

	start := time.Now()
	collection := doc.Collection()

	// 1. 加载
	report("loading", progressLoading)
	loaded, err := p.loader.Load(doc.FilePath)
	if err != nil {
		return nil, fmt.Errorf("加载文档失败: %w", err)
	}

	// 2. 分块
	report("splitting", progressSplitting)
	cfg, err := p.splitterConfig(settings)
	if err != nil {
		return nil, err
	}
	sp, err := splitter.New(cfg)
	if err != nil {
		return nil, err
	}
	chunks, err := sp.Split(loaded.Content)
	if err != nil {
		return nil, fmt.Errorf("文档分块失败: %w", err)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("文档内容为空, 没有可入库的分块")
	}
	p.logger.Info("文档分块完成",
		zap.Int64("document_id", doc.ID),
		zap.Int("chunks", len(chunks)),
	)

	// 3. 向量化
	report("embedding", progressEmbedding)
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	var vectors [][]float32
	err = withRetry(ctx, p.logger, "embed", func() error {
		var embedErr error
		vectors, embedErr = p.embedder.EmbedBatch(ctx, texts)
		return embedErr
	})
	if err != nil {
		return nil, err
	}

	// 分块与向量必须一一对应, 否则拒绝整批入库
	if len(vectors) != len(chunks) {
		return nil, &CountMismatchError{Chunks: len(chunks), Embeddings: len(vectors)}
	}

	// 4. 组装入库记录, chunk_id 用分块序号
	records := make([]vectorstore.Record, len(chunks))
	for i, c := range chunks {
		records[i] = vectorstore.Record{
			ChunkID:    int64(i),
			DocumentID: doc.ID,
			Text:       c.Content,
			Vector:     vectors[i],
		}
	}

	// 5. 入库
	report("storing", progressStoring)
	dim := len(vectors[0])
	err = withRetry(ctx, p.logger, "store", func() error {
		if err := p.store.EnsureCollection(ctx, collection, dim); err != nil {
			return err
		}
		if err := p.store.EnsureIndex(ctx, collection); err != nil {
			return err
		}
		return p.store.Insert(ctx, collection, records)
	})
	if err != nil {
		return nil, err
	}

	report("completed", progressDone)

	metrics.ChunksStoredTotal.WithLabelValues(collection).Add(float64(len(records)))
	metrics.IngestDuration.WithLabelValues(collection).Observe(time.Since(start).Seconds())

	p.logger.Info("文档摄取完成",
		zap.Int64("document_id", doc.ID),
		zap.String("collection", collection),
		zap.Int("chunks_stored", len(records)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return &Result{ChunksStored: len(records), Dimension: dim}, nil
}

// splitterConfig 合并文档级配置和全局默认值
func (p *Pipeline) splitterConfig(settings *document.Settings) (splitter.Config, error) {
	cfg := splitter.Config{
		Mode:         p.defaults.Mode,
		MaxSize:      p.defaults.MaxSize,
		OverlapRatio: p.defaults.OverlapRatio,
	}
	if settings == nil {
		return cfg, nil
	}

	if settings.Mode != "" {
		cfg.Mode = settings.Mode
	}
	if settings.MaxSize > 0 {
		cfg.MaxSize = settings.MaxSize
	}
	if settings.OverlapRatio > 0 {
		cfg.OverlapRatio = settings.OverlapRatio
	}
	if settings.Separators != "" {
		var seps []string
		if err := json.Unmarshal([]byte(settings.Separators), &seps); err != nil {
			return cfg, fmt.Errorf("解析自定义分隔符失败: %w", err)
		}
		cfg.Separators = seps
	}
	return cfg, nil
}

// withRetry 对远程调用做有限次重试, 指数退避
func withRetry(ctx context.Context, log *zap.Logger, op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt == maxAttempts {
			break
		}
		delay := retryBaseDelay * time.Duration(1<<(attempt-1))
		log.Warn("操作失败, 准备重试",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(lastErr),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return lastErr
}
