package rag

import (
	"context"
	"fmt"
	"time"

	"knowbase/internal/document"
	"knowbase/internal/infra/queue"
	"knowbase/internal/metrics"
	"knowbase/internal/rag/embedding"
	"knowbase/internal/rag/vectorstore"
	"knowbase/internal/worker/jobs"
	"knowbase/internal/worker/tasks"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service 知识库服务: 接收摄取请求、检索、分块查询和集合管理。
// 摄取本身在 worker 进程异步执行, 这里只负责入队和状态初始化。
type Service struct {
	docs     *document.Store
	queue    queue.Client
	tracker  *jobs.Tracker
	embedder embedding.Provider
	store    vectorstore.Store
	logger   *zap.Logger
}

// NewService 创建知识库服务
func NewService(
	docs *document.Store,
	q queue.Client,
	tracker *jobs.Tracker,
	embedder embedding.Provider,
	store vectorstore.Store,
	log *zap.Logger,
) *Service {
	return &Service{
		docs:     docs,
		queue:    q,
		tracker:  tracker,
		embedder: embedder,
		store:    store,
		logger:   log,
	}
}

// SubmitIngestion 提交文档摄取任务, 返回任务 ID。
// 入队成功即返回, 调用方凭任务 ID 轮询进度。
func (s *Service) SubmitIngestion(ctx context.Context, documentID int64) (string, error) {
	doc, err := s.docs.GetByID(ctx, documentID)
	if err != nil {
		return "", err
	}

	jobID := uuid.NewString()
	if err := s.tracker.Create(ctx, jobID); err != nil {
		return "", err
	}

	if err := s.docs.UpdateStatus(ctx, doc.ID, document.StatusPending, ""); err != nil {
		return "", err
	}

	err = s.queue.EnqueueProcessDocument(tasks.ProcessDocumentPayload{
		JobID:      jobID,
		DocumentID: doc.ID,
		UserID:     doc.UserID,
	})
	if err != nil {
		// 入队失败时把任务状态一并标失败, 避免悬挂的 PENDING
		_ = s.tracker.Fail(ctx, jobID, "任务入队失败")
		return "", fmt.Errorf("任务入队失败: %w", err)
	}

	s.logger.Info("文档摄取任务已入队",
		zap.String("job_id", jobID),
		zap.Int64("document_id", doc.ID),
	)
	return jobID, nil
}

// GetJobStatus 查询摄取任务状态
func (s *Service) GetJobStatus(ctx context.Context, jobID string) (*jobs.Status, error) {
	return s.tracker.Get(ctx, jobID)
}

// SearchRequest 检索请求
type SearchRequest struct {
	Collection string // 目标命名空间
	Query      string
	TopK       int
	FilterExpr string // 可选的标量过滤表达式
}

// Search 向量检索: 查询文本向量化后在指定命名空间内做近邻搜索
func (s *Service) Search(ctx context.Context, req SearchRequest) ([]vectorstore.Hit, error) {
	if req.TopK <= 0 {
		req.TopK = 5
	}

	start := time.Now()
	vector, err := s.embedder.Embed(ctx, req.Query)
	if err != nil {
		metrics.SearchesTotal.WithLabelValues(req.Collection, "error").Inc()
		return nil, err
	}

	hits, err := s.store.Search(ctx, req.Collection, vector, req.TopK, req.FilterExpr)
	if err != nil {
		metrics.SearchesTotal.WithLabelValues(req.Collection, "error").Inc()
		return nil, err
	}

	metrics.SearchesTotal.WithLabelValues(req.Collection, "ok").Inc()
	metrics.SearchDuration.WithLabelValues(req.Collection).Observe(time.Since(start).Seconds())
	return hits, nil
}

// GetDocumentChunks 列出某文档已入库的全部分块
func (s *Service) GetDocumentChunks(ctx context.Context, documentID int64) ([]vectorstore.DocumentChunk, error) {
	doc, err := s.docs.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return s.store.GetByDocument(ctx, doc.Collection(), doc.ID)
}

// DeleteCollection 删除整个命名空间及其全部向量
func (s *Service) DeleteCollection(ctx context.Context, name string) error {
	if err := s.store.DropCollection(ctx, name); err != nil {
		return err
	}
	s.logger.Info("命名空间已删除", zap.String("collection", name))
	return nil
}
