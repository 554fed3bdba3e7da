package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/checkpoint"
	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/persistence"
	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/types"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Key prefixes for namespacing in Redis
const (
	keyPrefixCheckpoint  = "ckpt:checkpoint:"
	keyPrefixRoot        = "ckpt:root:"
	keyPendingCommit     = "ckpt:pending:main"
	keySchemaVersion     = "ckpt:metadata:schema_version"
	currentSchemaVersion = "v1"

	// Every member has score 0 and is a zero-padded sequence, so ZRANGE yields
	// lexical and therefore numeric order.
	keySequenceIndex = "ckpt:checkpoints:index"

	maxWatchRetries = 3
)

// RedisPersistence stores checkpoints in Redis so several processes can share history
type RedisPersistence struct {
	client    *redis.Client
	logger    *zap.Logger
	keyPrefix string
	timeout   time.Duration
	mu        sync.RWMutex
	closed    bool
}

// RedisConfig holds the configuration for connecting to Redis
type RedisConfig struct {
	// Address is the Redis server address (host:port)
	Address string
	// Password is the optional Redis password
	Password string
	// DB is the Redis database number (0-15)
	DB int
	// KeyPrefix is prepended to every key, e.g. "tenant-a:" gives
	// "tenant-a:ckpt:checkpoint:...". Empty means no extra prefix.
	KeyPrefix string
	// OperationTimeout bounds each call; defaults to 5s
	OperationTimeout time.Duration
}

// NewRedisPersistence connects and validates the schema version
func NewRedisPersistence(cfg *RedisConfig, logger *zap.Logger) (*RedisPersistence, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}

	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	timeout := cfg.OperationTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	rp := &RedisPersistence{
		client:    client,
		logger:    logger,
		keyPrefix: cfg.KeyPrefix,
		timeout:   timeout,
	}

	if err := rp.initSchema(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Sugar().Infow("Redis checkpoint store initialized",
		"address", cfg.Address,
		"db", cfg.DB,
		"key_prefix", cfg.KeyPrefix,
	)

	return rp, nil
}

func (r *RedisPersistence) prefixKey(key string) string {
	return r.keyPrefix + key
}

func (r *RedisPersistence) checkpointKey(sequence uint64) string {
	return r.prefixKey(keyPrefixCheckpoint + persistence.SequenceKey(sequence))
}

func (r *RedisPersistence) rootKey(root types.Digest) string {
	return r.prefixKey(keyPrefixRoot + root.String())
}

func (r *RedisPersistence) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), r.timeout)
}

func (r *RedisPersistence) initSchema(ctx context.Context) error {
	schemaKey := r.prefixKey(keySchemaVersion)

	existingVersion, err := r.client.Get(ctx, schemaKey).Result()
	if errors.Is(err, redis.Nil) {
		return r.client.Set(ctx, schemaKey, currentSchemaVersion, 0).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if existingVersion != currentSchemaVersion {
		return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
	}

	return nil
}

// AppendCheckpoint writes the record and both indexes in one MULTI/EXEC, guarded by
// WATCH on the sequence key, so an append is either fully visible or absent.
func (r *RedisPersistence) AppendCheckpoint(record *checkpoint.CheckpointRecord) error {
	if record == nil {
		return fmt.Errorf("cannot save nil CheckpointRecord")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return persistence.ErrClosed
	}

	data, err := persistence.MarshalCheckpoint(record)
	if err != nil {
		return fmt.Errorf("failed to marshal CheckpointRecord: %w", err)
	}

	ctx, cancel := r.context()
	defer cancel()

	key := r.checkpointKey(record.Sequence)
	member := persistence.SequenceKey(record.Sequence)
	appendTx := func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if exists > 0 {
			return fmt.Errorf("%w: sequence %d", persistence.ErrCheckpointExists, record.Sequence)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.ZAdd(ctx, r.prefixKey(keySequenceIndex), redis.Z{Score: 0, Member: member})
			pipe.SAdd(ctx, r.rootKey(record.Root), member)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxWatchRetries; attempt++ {
		err = r.client.Watch(ctx, appendTx, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
		// another writer touched the key; the next pass sees it and reports a conflict
	}
	if errors.Is(err, persistence.ErrCheckpointExists) {
		return err
	}
	if err != nil {
		return fmt.Errorf("failed to append checkpoint %d: %w", record.Sequence, err)
	}
	return nil
}

// LoadCheckpoint retrieves a record by sequence
func (r *RedisPersistence) LoadCheckpoint(sequence uint64) (*checkpoint.CheckpointRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, persistence.ErrClosed
	}

	ctx, cancel := r.context()
	defer cancel()

	data, err := r.client.Get(ctx, r.checkpointKey(sequence)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint %d: %w", sequence, err)
	}

	record, err := persistence.UnmarshalCheckpoint(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint %d: %w", sequence, err)
	}
	return record, nil
}

// fetchCheckpoints loads the given index members with a single MGET
func (r *RedisPersistence) fetchCheckpoints(ctx context.Context, members []string) ([]*checkpoint.CheckpointRecord, error) {
	records := make([]*checkpoint.CheckpointRecord, 0, len(members))
	if len(members) == 0 {
		return records, nil
	}

	keys := make([]string, len(members))
	for i, member := range members {
		keys[i] = r.prefixKey(keyPrefixCheckpoint + member)
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch checkpoints: %w", err)
	}

	for i, val := range values {
		if val == nil {
			r.logger.Sugar().Warnw("Index references missing checkpoint", "key", keys[i])
			continue
		}

		data, ok := val.(string)
		if !ok {
			r.logger.Sugar().Warnw("Unexpected value type for CheckpointRecord", "key", keys[i])
			continue
		}

		record, err := persistence.UnmarshalCheckpoint([]byte(data))
		if err != nil {
			r.logger.Sugar().Warnw("Failed to unmarshal CheckpointRecord, skipping",
				"key", keys[i], "error", err)
			continue
		}
		records = append(records, record)
	}

	return records, nil
}

// LoadCheckpointsByRoot returns every record committed with root, ascending by sequence
func (r *RedisPersistence) LoadCheckpointsByRoot(root types.Digest) ([]*checkpoint.CheckpointRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, persistence.ErrClosed
	}

	ctx, cancel := r.context()
	defer cancel()

	members, err := r.client.SMembers(ctx, r.rootKey(root)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read root index for %s: %w", root, err)
	}
	sort.Strings(members)

	return r.fetchCheckpoints(ctx, members)
}

// ListCheckpoints returns all records sorted by sequence
func (r *RedisPersistence) ListCheckpoints() ([]*checkpoint.CheckpointRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, persistence.ErrClosed
	}

	ctx, cancel := r.context()
	defer cancel()

	members, err := r.client.ZRange(ctx, r.prefixKey(keySequenceIndex), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoint sequences: %w", err)
	}

	return r.fetchCheckpoints(ctx, members)
}

// LatestCheckpoint returns the highest-sequence record, or nil
func (r *RedisPersistence) LatestCheckpoint() (*checkpoint.CheckpointRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, persistence.ErrClosed
	}

	ctx, cancel := r.context()
	defer cancel()

	members, err := r.client.ZRevRange(ctx, r.prefixKey(keySequenceIndex), 0, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read latest sequence: %w", err)
	}

	records, err := r.fetchCheckpoints(ctx, members)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

// SavePendingCommit replaces the pending slot
func (r *RedisPersistence) SavePendingCommit(pending *persistence.PendingCommit) error {
	if pending == nil {
		return fmt.Errorf("cannot save nil PendingCommit")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return persistence.ErrClosed
	}

	data, err := persistence.MarshalPendingCommit(pending)
	if err != nil {
		return fmt.Errorf("failed to marshal PendingCommit: %w", err)
	}

	ctx, cancel := r.context()
	defer cancel()

	if err := r.client.Set(ctx, r.prefixKey(keyPendingCommit), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save PendingCommit: %w", err)
	}
	return nil
}

// LoadPendingCommit returns the pending slot or nil
func (r *RedisPersistence) LoadPendingCommit() (*persistence.PendingCommit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, persistence.ErrClosed
	}

	ctx, cancel := r.context()
	defer cancel()

	data, err := r.client.Get(ctx, r.prefixKey(keyPendingCommit)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load PendingCommit: %w", err)
	}

	pending, err := persistence.UnmarshalPendingCommit(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal PendingCommit: %w", err)
	}
	return pending, nil
}

// DeletePendingCommit clears the pending slot
func (r *RedisPersistence) DeletePendingCommit() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return persistence.ErrClosed
	}

	ctx, cancel := r.context()
	defer cancel()

	if err := r.client.Del(ctx, r.prefixKey(keyPendingCommit)).Err(); err != nil {
		return fmt.Errorf("failed to delete PendingCommit: %w", err)
	}
	return nil
}

// Close shuts down the persistence layer
func (r *RedisPersistence) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	if err := r.client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis client: %w", err)
	}

	r.logger.Sugar().Info("Redis checkpoint store closed")
	return nil
}

// HealthCheck pings Redis and checks the schema key
func (r *RedisPersistence) HealthCheck() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return persistence.ErrClosed
	}

	ctx, cancel := r.context()
	defer cancel()

	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}

	_, err := r.client.Get(ctx, r.prefixKey(keySchemaVersion)).Result()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("schema version not found - database may not be properly initialized")
	}
	if err != nil {
		return fmt.Errorf("failed to verify schema version: %w", err)
	}

	return nil
}
