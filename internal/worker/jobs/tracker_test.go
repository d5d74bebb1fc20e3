package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTracker(t *testing.T) *Tracker {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewTracker(rdb, time.Hour)
}

func TestTracker_Lifecycle(t *testing.T) {
	tracker := setupTracker(t)
	ctx := context.Background()

	require.NoError(t, tracker.Create(ctx, "job-1"))

	status, err := tracker.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, StatePending, status.State)
	assert.Equal(t, 0, status.Progress)

	require.NoError(t, tracker.Start(ctx, "job-1"))
	require.NoError(t, tracker.SetProgress(ctx, "job-1", 30))

	status, err = tracker.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, StateProgress, status.State)
	assert.Equal(t, 30, status.Progress)

	require.NoError(t, tracker.Succeed(ctx, "job-1", 12))

	status, err = tracker.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, StateSuccess, status.State)
	assert.Equal(t, 100, status.Progress)
	assert.Equal(t, 12, status.ChunksCount)
	assert.True(t, status.Terminal())
}

func TestTracker_Failure(t *testing.T) {
	tracker := setupTracker(t)
	ctx := context.Background()

	require.NoError(t, tracker.Create(ctx, "job-2"))
	require.NoError(t, tracker.Start(ctx, "job-2"))
	require.NoError(t, tracker.Fail(ctx, "job-2", "embedding 服务不可用"))

	status, err := tracker.Get(ctx, "job-2")
	require.NoError(t, err)
	assert.Equal(t, StateFailure, status.State)
	assert.Equal(t, "embedding 服务不可用", status.Error)
	assert.True(t, status.Terminal())
}

func TestTracker_FailureKeepsLastProgress(t *testing.T) {
	tracker := setupTracker(t)
	ctx := context.Background()

	require.NoError(t, tracker.Create(ctx, "job-6"))
	require.NoError(t, tracker.Start(ctx, "job-6"))
	require.NoError(t, tracker.SetProgress(ctx, "job-6", 60))
	require.NoError(t, tracker.Fail(ctx, "job-6", "向量化阶段失败"))

	// 失败不把进度归零, 停在最后上报的里程碑
	status, err := tracker.Get(ctx, "job-6")
	require.NoError(t, err)
	assert.Equal(t, StateFailure, status.State)
	assert.Equal(t, 60, status.Progress)
	assert.Equal(t, "向量化阶段失败", status.Error)
}

func TestTracker_TerminalStateFrozen(t *testing.T) {
	tracker := setupTracker(t)
	ctx := context.Background()

	require.NoError(t, tracker.Create(ctx, "job-3"))
	require.NoError(t, tracker.Succeed(ctx, "job-3", 5))

	// 终态之后的写入被静默丢弃
	require.NoError(t, tracker.SetProgress(ctx, "job-3", 10))
	require.NoError(t, tracker.Fail(ctx, "job-3", "迟到的失败"))

	status, err := tracker.Get(ctx, "job-3")
	require.NoError(t, err)
	assert.Equal(t, StateSuccess, status.State)
	assert.Equal(t, 100, status.Progress)
	assert.Empty(t, status.Error)
}

func TestTracker_ProgressClamped(t *testing.T) {
	tracker := setupTracker(t)
	ctx := context.Background()

	require.NoError(t, tracker.Create(ctx, "job-4"))
	require.NoError(t, tracker.SetProgress(ctx, "job-4", 150))

	status, err := tracker.Get(ctx, "job-4")
	require.NoError(t, err)
	assert.Equal(t, 100, status.Progress)
}

func TestTracker_NotFound(t *testing.T) {
	tracker := setupTracker(t)

	_, err := tracker.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)

	err = tracker.SetProgress(context.Background(), "missing", 10)
	assert.ErrorIs(t, err, ErrJobNotFound)
}
