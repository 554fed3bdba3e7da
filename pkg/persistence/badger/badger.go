package badger

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/checkpoint"
	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/persistence"
	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/types"
	badgerdb "github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"
)

// Key prefixes for namespacing
const (
	keyPrefixCheckpoint  = "checkpoint:"
	keyPrefixRoot        = "root:"
	keyPendingCommit     = "pending:main"
	keySchemaVersion     = "metadata:schema_version"
	currentSchemaVersion = "v1"
)

// BadgerPersistence is the durable checkpoint store.
// Records are written with SyncWrites so an acknowledged append survives a crash.
type BadgerPersistence struct {
	db       *badgerdb.DB
	logger   *zap.Logger
	gcCancel context.CancelFunc
	gcWg     sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
}

func checkpointKey(sequence uint64) []byte {
	return []byte(keyPrefixCheckpoint + persistence.SequenceKey(sequence))
}

func rootIndexPrefix(root types.Digest) []byte {
	return []byte(keyPrefixRoot + root.String() + ":")
}

func rootIndexKey(root types.Digest, sequence uint64) []byte {
	return append(rootIndexPrefix(root), persistence.SequenceKey(sequence)...)
}

// NewBadgerPersistence opens (or creates) the store at dataPath and starts value-log GC
func NewBadgerPersistence(dataPath string, logger *zap.Logger) (*BadgerPersistence, error) {
	absPath, err := filepath.Abs(dataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	opts := badgerdb.DefaultOptions(absPath)
	opts.Logger = newBadgerLoggerAdapter(logger)
	opts.SyncWrites = true
	opts.CompactL0OnClose = true
	opts.NumVersionsToKeep = 1

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database at %s: %w", absPath, err)
	}

	bp := &BadgerPersistence{
		db:     db,
		logger: logger,
	}

	if err := bp.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	bp.gcCancel = cancel
	bp.gcWg.Add(1)
	go bp.runGC(ctx)

	logger.Sugar().Infow("Badger checkpoint store initialized", "path", absPath)

	return bp, nil
}

// initSchema initializes or validates the schema version
func (b *BadgerPersistence) initSchema() error {
	return b.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(keySchemaVersion))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return txn.Set([]byte(keySchemaVersion), []byte(currentSchemaVersion))
		}
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}

		var existingVersion string
		err = item.Value(func(val []byte) error {
			existingVersion = string(val)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to read schema version value: %w", err)
		}

		if existingVersion != currentSchemaVersion {
			return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
		}

		return nil
	})
}

func (b *BadgerPersistence) runGC(ctx context.Context) {
	defer b.gcWg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			err := b.db.RunValueLogGC(0.5)
			if err != nil && !errors.Is(err, badgerdb.ErrNoRewrite) {
				b.logger.Sugar().Warnw("Badger GC error", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// AppendCheckpoint writes the record and its root index entry in one transaction
func (b *BadgerPersistence) AppendCheckpoint(record *checkpoint.CheckpointRecord) error {
	if record == nil {
		return fmt.Errorf("cannot save nil CheckpointRecord")
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return persistence.ErrClosed
	}

	data, err := persistence.MarshalCheckpoint(record)
	if err != nil {
		return fmt.Errorf("failed to marshal CheckpointRecord: %w", err)
	}

	key := checkpointKey(record.Sequence)
	err = b.db.Update(func(txn *badgerdb.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return fmt.Errorf("%w: sequence %d", persistence.ErrCheckpointExists, record.Sequence)
		}
		if !errors.Is(err, badgerdb.ErrKeyNotFound) {
			return err
		}

		if err := txn.Set(key, data); err != nil {
			return err
		}
		return txn.Set(rootIndexKey(record.Root, record.Sequence), nil)
	})
	if err != nil {
		return fmt.Errorf("failed to append checkpoint %d: %w", record.Sequence, err)
	}

	b.logger.Sugar().Debugw("Checkpoint appended",
		"sequence", record.Sequence,
		"root", record.Root.String(),
		"leaves", record.Metadata.LeafCount,
	)
	return nil
}

// getValue copies the value at key, returning nil when absent
func getValue(txn *badgerdb.Txn, key []byte) ([]byte, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

// LoadCheckpoint retrieves a record by sequence
func (b *BadgerPersistence) LoadCheckpoint(sequence uint64) (*checkpoint.CheckpointRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, persistence.ErrClosed
	}

	var data []byte
	err := b.db.View(func(txn *badgerdb.Txn) error {
		var err error
		data, err = getValue(txn, checkpointKey(sequence))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint %d: %w", sequence, err)
	}
	if data == nil {
		return nil, nil
	}

	record, err := persistence.UnmarshalCheckpoint(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint %d: %w", sequence, err)
	}
	return record, nil
}

// LoadCheckpointsByRoot walks the root index and loads each referenced record
func (b *BadgerPersistence) LoadCheckpointsByRoot(root types.Digest) ([]*checkpoint.CheckpointRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, persistence.ErrClosed
	}

	records := make([]*checkpoint.CheckpointRecord, 0)
	prefix := rootIndexPrefix(root)

	err := b.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			seqText := strings.TrimPrefix(string(it.Item().Key()), string(prefix))
			sequence, err := strconv.ParseUint(seqText, 10, 64)
			if err != nil {
				b.logger.Sugar().Warnw("Malformed root index key, skipping",
					"key", string(it.Item().Key()), "error", err)
				continue
			}

			data, err := getValue(txn, checkpointKey(sequence))
			if err != nil {
				return err
			}
			if data == nil {
				return fmt.Errorf("root index references missing checkpoint %d", sequence)
			}

			record, err := persistence.UnmarshalCheckpoint(data)
			if err != nil {
				return err
			}
			records = append(records, record)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoints for root %s: %w", root, err)
	}

	return records, nil
}

// ListCheckpoints returns all records; zero-padded keys keep iteration in sequence order
func (b *BadgerPersistence) ListCheckpoints() ([]*checkpoint.CheckpointRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, persistence.ErrClosed
	}

	records := make([]*checkpoint.CheckpointRecord, 0)

	err := b.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefixCheckpoint)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()

			data, err := item.ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("failed to read value: %w", err)
			}

			record, err := persistence.UnmarshalCheckpoint(data)
			if err != nil {
				b.logger.Sugar().Warnw("Failed to unmarshal CheckpointRecord, skipping",
					"key", string(item.Key()), "error", err)
				continue
			}
			records = append(records, record)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}

	return records, nil
}

// LatestCheckpoint returns the highest-sequence record using a reverse scan
func (b *BadgerPersistence) LatestCheckpoint() (*checkpoint.CheckpointRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, persistence.ErrClosed
	}

	var data []byte
	err := b.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefixCheckpoint)
		opts.Reverse = true

		it := txn.NewIterator(opts)
		defer it.Close()

		it.Seek(append([]byte(keyPrefixCheckpoint), 0xFF))
		if !it.Valid() {
			return nil
		}

		var err error
		data, err = it.Item().ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load latest checkpoint: %w", err)
	}
	if data == nil {
		return nil, nil
	}

	return persistence.UnmarshalCheckpoint(data)
}

// SavePendingCommit replaces the pending slot
func (b *BadgerPersistence) SavePendingCommit(pending *persistence.PendingCommit) error {
	if pending == nil {
		return fmt.Errorf("cannot save nil PendingCommit")
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return persistence.ErrClosed
	}

	data, err := persistence.MarshalPendingCommit(pending)
	if err != nil {
		return fmt.Errorf("failed to marshal PendingCommit: %w", err)
	}

	return b.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set([]byte(keyPendingCommit), data)
	})
}

// LoadPendingCommit returns the pending slot or nil
func (b *BadgerPersistence) LoadPendingCommit() (*persistence.PendingCommit, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, persistence.ErrClosed
	}

	var data []byte
	err := b.db.View(func(txn *badgerdb.Txn) error {
		var err error
		data, err = getValue(txn, []byte(keyPendingCommit))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load PendingCommit: %w", err)
	}
	if data == nil {
		return nil, nil
	}

	pending, err := persistence.UnmarshalPendingCommit(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal PendingCommit: %w", err)
	}
	return pending, nil
}

// DeletePendingCommit clears the pending slot
func (b *BadgerPersistence) DeletePendingCommit() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return persistence.ErrClosed
	}

	return b.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Delete([]byte(keyPendingCommit))
	})
}

// Close stops GC and closes the database
func (b *BadgerPersistence) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	if b.gcCancel != nil {
		b.gcCancel()
	}
	b.gcWg.Wait()

	if err := b.db.Close(); err != nil {
		return fmt.Errorf("failed to close badger database: %w", err)
	}

	b.logger.Sugar().Info("Badger checkpoint store closed")
	return nil
}

// HealthCheck verifies the persistence layer is operational
func (b *BadgerPersistence) HealthCheck() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return persistence.ErrClosed
	}

	return b.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get([]byte(keySchemaVersion))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return fmt.Errorf("schema version not found - database may be corrupted")
		}
		return err
	})
}
