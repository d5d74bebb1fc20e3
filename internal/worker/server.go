package worker

import (
	"context"
	"fmt"

	"knowbase/internal/config"
	"knowbase/internal/document"
	"knowbase/internal/rag"
	"knowbase/internal/worker/handlers"
	"knowbase/internal/worker/jobs"
	"knowbase/internal/worker/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Server 摄取 worker 服务器, 和 API 进程共享一个二进制
type Server struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *zap.Logger
}

// NewServer 创建 worker 服务器并注册摄取处理器
func NewServer(
	redisCfg config.RedisConfig,
	workerCfg config.WorkerConfig,
	docs *document.Store,
	pipeline *rag.Pipeline,
	tracker *jobs.Tracker,
	logger *zap.Logger,
) *Server {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     fmt.Sprintf("%s:%d", redisCfg.Host, redisCfg.Port),
			Password: redisCfg.Password,
			DB:       redisCfg.DB,
		},
		asynq.Config{
			Concurrency: workerCfg.Concurrency,
			Queues: map[string]int{
				"ingest": 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				// 这里只会收到传输层错误 (载荷损坏/超时), 业务失败不经过此处
				logger.Error("任务执行失败",
					zap.String("type", task.Type()),
					zap.Error(err),
				)
			}),
		},
	)

	mux := asynq.NewServeMux()

	ingestHandler := handlers.NewIngestHandler(docs, pipeline, tracker, logger)
	mux.HandleFunc(tasks.TypeProcessDocument, ingestHandler.HandleProcessDocument)

	return &Server{
		server: srv,
		mux:    mux,
		logger: logger,
	}
}

// Run 阻塞启动 Worker 服务器
func (s *Server) Run() error {
	s.logger.Info("Worker 服务器启动中...")
	return s.server.Run(s.mux)
}

// Start 非阻塞启动
func (s *Server) Start() error {
	s.logger.Info("Worker 服务器启动中 (后台)...")
	return s.server.Start(s.mux)
}

// Shutdown 停止 Worker 服务器
func (s *Server) Shutdown() {
	s.logger.Info("Worker 服务器停止中...")
	s.server.Shutdown()
}
