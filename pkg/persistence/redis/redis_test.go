package redis

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/checkpoint"
	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/logger"
	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/persistence"
	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/persistence/persistencetest"
	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/testutil"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ persistence.ICheckpointPersistence = (*RedisPersistence)(nil)

// getTestRedisAddress returns the Redis address for testing.
// Uses REDIS_TEST_ADDRESS env var if set, otherwise defaults to localhost:6379.
func getTestRedisAddress() string {
	if addr := os.Getenv("REDIS_TEST_ADDRESS"); addr != "" {
		return addr
	}
	return "localhost:6379"
}

// requireRedis returns a store isolated under a fresh key prefix, skipping when Redis is down
func requireRedis(t *testing.T) *RedisPersistence {
	t.Helper()

	testLogger, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	cfg := &RedisConfig{
		Address:   getTestRedisAddress(),
		DB:        15, // Use DB 15 for tests to avoid conflicts
		KeyPrefix: "test-" + uuid.NewString() + ":",
	}

	rp, err := NewRedisPersistence(cfg, testLogger)
	if err != nil {
		t.Skipf("Redis not available at %s: %v", cfg.Address, err)
		return nil
	}

	t.Cleanup(func() { cleanupRedis(t, cfg) })
	return rp
}

// cleanupRedis removes every key written under the test prefix
func cleanupRedis(t *testing.T, cfg *RedisConfig) {
	t.Helper()

	testLogger, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	rp, err := NewRedisPersistence(cfg, testLogger)
	if err != nil {
		return
	}
	defer func() { _ = rp.Close() }()

	ctx := context.Background()
	iter := rp.client.Scan(ctx, 0, cfg.KeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		rp.client.Del(ctx, iter.Val())
	}
}

func TestRedisPersistence_Conformance(t *testing.T) {
	persistencetest.RunConformanceTests(t, func(t *testing.T) persistence.ICheckpointPersistence {
		return requireRedis(t)
	})
}

func TestRedisPersistence_KeyPrefixIsolation(t *testing.T) {
	a := requireRedis(t)
	defer func() { _ = a.Close() }()
	b := requireRedis(t)
	defer func() { _ = b.Close() }()

	require.NoError(t, a.AppendCheckpoint(testutil.CreateTestCheckpoint(t, 1, "a.txt", "hello")))

	loaded, err := b.LoadCheckpoint(1)
	require.NoError(t, err)
	assert.Nil(t, loaded)

	// same sequence is free under another prefix
	require.NoError(t, b.AppendCheckpoint(testutil.CreateTestCheckpoint(t, 1, "a.txt", "other")))
}

func TestRedisPersistence_LargeSequencesOrdered(t *testing.T) {
	rp := requireRedis(t)
	defer func() { _ = rp.Close() }()

	seqs := []uint64{1 << 60, 9, 1 << 40}
	for _, seq := range seqs {
		require.NoError(t, rp.AppendCheckpoint(testutil.CreateNumberedCheckpoint(t, seq, 1)))
	}

	records, err := rp.ListCheckpoints()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, uint64(9), records[0].Sequence)
	assert.Equal(t, uint64(1<<40), records[1].Sequence)
	assert.Equal(t, uint64(1<<60), records[2].Sequence)

	latest, err := rp.LatestCheckpoint()
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<60), latest.Sequence)
}

// failingPipelineHook fails every MULTI/EXEC while enabled
type failingPipelineHook struct {
	enabled atomic.Bool
}

func (h *failingPipelineHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (h *failingPipelineHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return next
}

func (h *failingPipelineHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		if h.enabled.Load() {
			return errors.New("connection reset by peer")
		}
		return next(ctx, cmds)
	}
}

func TestRedisPersistence_FailedAppendLeavesNothing(t *testing.T) {
	rp := requireRedis(t)
	defer func() { _ = rp.Close() }()

	hook := &failingPipelineHook{}
	rp.client.AddHook(hook)

	record := testutil.CreateTestCheckpoint(t, 7, "a.txt", "hello")

	hook.enabled.Store(true)
	require.Error(t, rp.AppendCheckpoint(record))
	hook.enabled.Store(false)

	loaded, err := rp.LoadCheckpoint(7)
	require.NoError(t, err)
	assert.Nil(t, loaded, "record must not exist without its indexes")

	// the retry is not blocked by a half-written append
	require.NoError(t, rp.AppendCheckpoint(record))

	records, err := rp.ListCheckpoints()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, uint64(7), records[0].Sequence)

	byRoot, err := rp.LoadCheckpointsByRoot(record.Root)
	require.NoError(t, err)
	require.Len(t, byRoot, 1)
}

func TestRedisPersistence_ConcurrentAppendSameSequence(t *testing.T) {
	rp := requireRedis(t)
	defer func() { _ = rp.Close() }()

	const writers = 8
	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		conflicts atomic.Int32
	)
	candidates := make([]*checkpoint.CheckpointRecord, writers)
	for i := range candidates {
		candidates[i] = testutil.CreateNumberedCheckpoint(t, 1, i+1)
	}
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := rp.AppendCheckpoint(candidates[i])
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, persistence.ErrCheckpointExists):
				conflicts.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), succeeded.Load())
	assert.Equal(t, int32(writers-1), conflicts.Load())

	records, err := rp.ListCheckpoints()
	require.NoError(t, err)
	require.Len(t, records, 1)

	byRoot, err := rp.LoadCheckpointsByRoot(records[0].Root)
	require.NoError(t, err)
	assert.Len(t, byRoot, 1)
}

func TestRedisPersistence_Config_Nil(t *testing.T) {
	testLogger, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})

	_, err := NewRedisPersistence(nil, testLogger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil")
}

func TestRedisPersistence_Config_EmptyAddress(t *testing.T) {
	testLogger, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})

	_, err := NewRedisPersistence(&RedisConfig{Address: ""}, testLogger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}
