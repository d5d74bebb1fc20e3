package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"knowbase/internal/document"
	"knowbase/internal/metrics"
	"knowbase/internal/rag"
	"knowbase/internal/worker/jobs"
	"knowbase/internal/worker/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// IngestHandler 文档摄取任务处理器。
// 业务失败通过任务状态和文档状态暴露, 对 asynq 一律返回 nil,
// 避免传输层重试导致向量重复入库。
type IngestHandler struct {
	docs     *document.Store
	pipeline *rag.Pipeline
	tracker  *jobs.Tracker
	logger   *zap.Logger
}

// NewIngestHandler 创建摄取任务处理器
func NewIngestHandler(
	docs *document.Store,
	pipeline *rag.Pipeline,
	tracker *jobs.Tracker,
	log *zap.Logger,
) *IngestHandler {
	return &IngestHandler{
		docs:     docs,
		pipeline: pipeline,
		tracker:  tracker,
		logger:   log,
	}
}

// HandleProcessDocument 执行单个文档的摄取
func (h *IngestHandler) HandleProcessDocument(ctx context.Context, t *asynq.Task) error {
	var p tasks.ProcessDocumentPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		// 载荷损坏无法定位任务, 只能丢弃
		return fmt.Errorf("json unmarshal failed: %w", err)
	}

	log := h.logger.With(
		zap.String("job_id", p.JobID),
		zap.Int64("document_id", p.DocumentID),
	)
	log.Info("开始处理文档摄取任务")

	if err := h.tracker.Start(ctx, p.JobID); err != nil {
		log.Error("更新任务状态失败", zap.Error(err))
	}

	if err := h.process(ctx, p); err != nil {
		log.Error("文档摄取失败", zap.Error(err))
		h.markFailed(ctx, p, err)
		metrics.DocumentsProcessedTotal.WithLabelValues("failed").Inc()
		return nil
	}

	metrics.DocumentsProcessedTotal.WithLabelValues("success").Inc()
	log.Info("文档摄取任务完成")
	return nil
}

func (h *IngestHandler) process(ctx context.Context, p tasks.ProcessDocumentPayload) error {
	doc, err := h.docs.GetByID(ctx, p.DocumentID)
	if err != nil {
		return err
	}

	if err := h.docs.UpdateStatus(ctx, doc.ID, document.StatusProcessing, ""); err != nil {
		return err
	}

	settings, err := h.docs.GetSettings(ctx, doc.ID)
	if err != nil {
		return err
	}

	result, err := h.pipeline.ProcessAndStore(ctx, doc, settings, func(stage string, percent int) {
		if percent >= 100 {
			return // 终态由 Succeed 统一写入
		}
		if err := h.tracker.SetProgress(ctx, p.JobID, percent); err != nil {
			h.logger.Warn("更新任务进度失败",
				zap.String("job_id", p.JobID),
				zap.String("stage", stage),
				zap.Error(err),
			)
		}
	})
	if err != nil {
		return err
	}

	if err := h.docs.UpdateStatus(ctx, doc.ID, document.StatusReady, ""); err != nil {
		return err
	}
	return h.tracker.Succeed(ctx, p.JobID, result.ChunksStored)
}

// markFailed 尽力写回失败状态, 写回自身的失败只记日志
func (h *IngestHandler) markFailed(ctx context.Context, p tasks.ProcessDocumentPayload, cause error) {
	if err := h.docs.UpdateStatus(ctx, p.DocumentID, document.StatusFailed, cause.Error()); err != nil {
		h.logger.Error("写回文档失败状态失败", zap.Int64("document_id", p.DocumentID), zap.Error(err))
	}
	if err := h.tracker.Fail(ctx, p.JobID, cause.Error()); err != nil {
		h.logger.Error("写回任务失败状态失败", zap.String("job_id", p.JobID), zap.Error(err))
	}
}
