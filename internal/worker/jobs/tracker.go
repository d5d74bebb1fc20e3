package jobs

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// 任务状态机: PENDING -> STARTED -> PROGRESS* -> SUCCESS | FAILURE
// 终态之后的任何写入都会被拒绝
const (
	StatePending  = "PENDING"
	StateStarted  = "STARTED"
	StateProgress = "PROGRESS"
	StateSuccess  = "SUCCESS"
	StateFailure  = "FAILURE"
)

// ErrJobNotFound 任务状态不存在 (未创建或已过期)
var ErrJobNotFound = errors.New("job not found")

// Status 任务状态快照
type Status struct {
	JobID       string `json:"job_id"`
	State       string `json:"state"`
	Progress    int    `json:"progress"` // 0-100
	ChunksCount int    `json:"chunks_count,omitempty"`
	Error       string `json:"error,omitempty"`
	UpdatedAt   int64  `json:"updated_at"` // unix 秒
}

// Terminal 是否已到终态
func (s *Status) Terminal() bool {
	return s.State == StateSuccess || s.State == StateFailure
}

// Tracker 任务状态跟踪器, 状态落在 Redis hash 上并带 TTL。
// 状态由 API 进程和 worker 进程共同读写, 故不走进程内缓存。
type Tracker struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

// NewTracker 创建任务状态跟踪器
func NewTracker(rdb redis.UniversalClient, ttl time.Duration) *Tracker {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Tracker{rdb: rdb, ttl: ttl}
}

func jobKey(jobID string) string {
	return "knowbase:job:" + jobID
}

// Create 初始化任务状态为 PENDING
func (t *Tracker) Create(ctx context.Context, jobID string) error {
	return t.write(ctx, jobID, Status{
		JobID:    jobID,
		State:    StatePending,
		Progress: 0,
	})
}

// Start 标记任务开始执行
func (t *Tracker) Start(ctx context.Context, jobID string) error {
	return t.transition(ctx, jobID, Status{State: StateStarted, Progress: 0})
}

// SetProgress 更新执行进度 (0-100)
func (t *Tracker) SetProgress(ctx context.Context, jobID string, progress int) error {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	return t.transition(ctx, jobID, Status{State: StateProgress, Progress: progress})
}

// Succeed 标记任务成功, chunksCount 为最终入库的分块数
func (t *Tracker) Succeed(ctx context.Context, jobID string, chunksCount int) error {
	return t.transition(ctx, jobID, Status{State: StateSuccess, Progress: 100, ChunksCount: chunksCount})
}

// Fail 标记任务失败并记录原因
func (t *Tracker) Fail(ctx context.Context, jobID string, reason string) error {
	return t.transition(ctx, jobID, Status{State: StateFailure, Error: reason})
}

// Get 读取任务状态
func (t *Tracker) Get(ctx context.Context, jobID string) (*Status, error) {
	fields, err := t.rdb.HGetAll(ctx, jobKey(jobID)).Result()
	if err != nil {
		return nil, fmt.Errorf("读取任务状态失败: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrJobNotFound
	}

	status := &Status{
		JobID: jobID,
		State: fields["state"],
		Error: fields["error"],
	}
	status.Progress, _ = strconv.Atoi(fields["progress"])
	status.ChunksCount, _ = strconv.Atoi(fields["chunks_count"])
	status.UpdatedAt, _ = strconv.ParseInt(fields["updated_at"], 10, 64)
	return status, nil
}

// transition 在非终态任务上应用一次状态变更
func (t *Tracker) transition(ctx context.Context, jobID string, next Status) error {
	current, err := t.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if current.Terminal() {
		// 终态冻结: 迟到的进度/结果写入直接丢弃
		return nil
	}
	if next.State == StateFailure {
		// 失败时进度停留在最后一次上报的值
		next.Progress = current.Progress
	}
	next.JobID = jobID
	return t.write(ctx, jobID, next)
}

func (t *Tracker) write(ctx context.Context, jobID string, status Status) error {
	key := jobKey(jobID)
	fields := map[string]interface{}{
		"state":        status.State,
		"progress":     status.Progress,
		"chunks_count": status.ChunksCount,
		"error":        status.Error,
		"updated_at":   time.Now().Unix(),
	}
	pipe := t.rdb.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, t.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("写入任务状态失败: %w", err)
	}
	return nil
}
