package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"knowbase/internal/config"
	"knowbase/internal/worker/tasks"

	"github.com/hibiken/asynq"
)

// Client 任务队列客户端接口
type Client interface {
	EnqueueProcessDocument(payload tasks.ProcessDocumentPayload) error
	Close() error
}

type asynqClient struct {
	client  *asynq.Client
	timeout time.Duration
}

// NewClient 创建任务队列客户端
func NewClient(redisCfg config.RedisConfig, workerCfg config.WorkerConfig) Client {
	client := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     fmt.Sprintf("%s:%d", redisCfg.Host, redisCfg.Port),
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
	})

	timeout := time.Duration(workerCfg.TimeoutMinutes) * time.Minute
	if timeout <= 0 {
		timeout = 60 * time.Minute
	}

	return &asynqClient{client: client, timeout: timeout}
}

func (c *asynqClient) EnqueueProcessDocument(payload tasks.ProcessDocumentPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload failed: %w", err)
	}

	task := asynq.NewTask(tasks.TypeProcessDocument, data)

	// 传输层不重试: 业务失败会记进任务状态, 重复执行会产生重复向量
	_, err = c.client.Enqueue(task,
		asynq.MaxRetry(0),
		asynq.Timeout(c.timeout),
		asynq.Queue("ingest"),
	)
	if err != nil {
		return fmt.Errorf("enqueue task failed: %w", err)
	}
	return nil
}

func (c *asynqClient) Close() error {
	return c.client.Close()
}
