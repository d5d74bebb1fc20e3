package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"knowbase/api"
	"knowbase/internal/config"
	"knowbase/internal/document"
	"knowbase/internal/infra"
	"knowbase/internal/infra/queue"
	"knowbase/internal/logger"
	"knowbase/internal/rag"
	"knowbase/internal/rag/embedding"
	"knowbase/internal/rag/loader"
	"knowbase/internal/rag/vectorstore"
	"knowbase/internal/worker"
	"knowbase/internal/worker/jobs"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// 0. 统一加载 .env，便于集中管理 APP_* 环境变量
	loadEnvFile()

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}

	// 1. 加载配置
	cfg, err := config.Load(env, "")
	if err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath); err != nil {
		fmt.Printf("初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.String("env", env),
		zap.String("mode", cfg.Server.Mode),
	)

	// 3. 初始化数据库
	db, err := infra.InitDatabase(&cfg.Database)
	if err != nil {
		logger.Fatal("初始化数据库失败", zap.Error(err))
	}
	defer infra.CloseDatabase()

	docStore := document.NewStore(db)
	if cfg.Database.AutoMigrate {
		if err := docStore.AutoMigrate(); err != nil {
			logger.Fatal("数据库迁移失败", zap.Error(err))
		}
	}

	// 4. 初始化 Redis (队列 broker + 任务状态)
	rdb, err := infra.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Fatal("初始化 Redis 失败", zap.Error(err))
	}
	defer infra.CloseRedis()

	tracker := jobs.NewTracker(rdb, time.Duration(cfg.Worker.JobTTLHours)*time.Hour)

	// 5. 向量化服务
	embedder := embedding.NewOpenAIProvider(embedding.OpenAIOptions{
		APIKey:  cfg.Embedding.APIKey,
		BaseURL: cfg.Embedding.BaseURL,
		Model:   cfg.Embedding.Model,
		Timeout: time.Duration(cfg.Embedding.TimeoutSeconds) * time.Second,
	})

	// 6. 向量存储
	store, err := buildVectorStore(cfg)
	if err != nil {
		logger.Fatal("初始化向量存储失败", zap.Error(err))
	}
	defer store.Close()

	// 7. 任务队列客户端
	queueClient := queue.NewClient(cfg.Redis, cfg.Worker)
	defer queueClient.Close()

	// 8. 组装流水线和服务
	pipeline := rag.NewPipeline(loader.New(), embedder, store, cfg.Splitter, logger.Get())
	service := rag.NewService(docStore, queueClient, tracker, embedder, store, logger.Get())

	// 9. Worker 服务器
	workerServer := worker.NewServer(cfg.Redis, cfg.Worker, docStore, pipeline, tracker, logger.Get())
	go func() {
		if err := workerServer.Run(); err != nil {
			logger.Fatal("Worker 服务器启动失败", zap.Error(err))
		}
	}()

	// 10. HTTP 服务器
	router := api.NewRouter(cfg.Server.Mode, service)
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}
	go func() {
		logger.Info("HTTP 服务器启动", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP 服务器启动失败", zap.Error(err))
		}
	}()

	gracefulShutdown(server, workerServer)
}

// buildVectorStore 按配置选择向量存储后端
func buildVectorStore(cfg *config.Config) (vectorstore.Store, error) {
	switch cfg.VectorStore.Type {
	case "milvus":
		return vectorstore.NewMilvusStore(vectorstore.MilvusOptions{
			Endpoint:       cfg.VectorStore.Milvus.Endpoint,
			Token:          cfg.VectorStore.Milvus.Token,
			TimeoutSeconds: cfg.VectorStore.Milvus.TimeoutSeconds,
			IndexType:      cfg.VectorStore.Milvus.IndexType,
			Metric:         cfg.VectorStore.Milvus.Metric,
			NList:          cfg.VectorStore.Milvus.NList,
			NProbe:         cfg.VectorStore.Milvus.NProbe,
		})
	case "pgvector":
		return vectorstore.NewPGVectorStore(infra.GetDB(), cfg.VectorStore.PGVector.Lists)
	default:
		return nil, fmt.Errorf("不支持的向量存储类型: %s (可选: milvus, pgvector)", cfg.VectorStore.Type)
	}
}

// gracefulShutdown 优雅关闭: 先停 worker 再停 HTTP
func gracefulShutdown(server *http.Server, workerServer *worker.Server) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("收到退出信号, 开始优雅关闭...")

	workerServer.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("HTTP 服务器关闭异常", zap.Error(err))
	}

	logger.Info("应用已退出")
}

// loadEnvFile 依次尝试加载当前目录及上级目录的 .env 文件
func loadEnvFile() {
	if path := resolveEnvPath(); path != "" {
		if err := godotenv.Load(path); err != nil {
			fmt.Printf("加载环境变量文件 %s 失败: %v\n", path, err)
		}
	}
}

// resolveEnvPath 从当前工作目录和可执行文件目录向上查找 .env
func resolveEnvPath() string {
	var candidates []string
	traverse := func(start string) {
		dir := filepath.Clean(start)
		for i := 0; i < 8; i++ {
			if dir == "" || dir == string(filepath.Separator) || dir == "." {
				break
			}
			candidates = append(candidates, filepath.Join(dir, ".env"))
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	if wd, err := os.Getwd(); err == nil {
		traverse(wd)
	}
	if exe, err := os.Executable(); err == nil {
		traverse(filepath.Dir(exe))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
