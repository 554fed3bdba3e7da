package memory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/checkpoint"
	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/persistence"
	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/types"
)

// MemoryPersistence is an in-memory implementation of ICheckpointPersistence.
// This implementation is intended for TESTING ONLY.
//
// All data is stored in memory and will be lost when the process exits.
// Thread-safe using sync.RWMutex for concurrent access.
// Deep copies data to prevent external mutation.
type MemoryPersistence struct {
	mu sync.RWMutex

	// Checkpoint storage: sequence -> record
	checkpoints map[uint64]*checkpoint.CheckpointRecord

	// Secondary index: root -> sequences
	byRoot map[types.Digest][]uint64

	pending *persistence.PendingCommit

	// Closed flag
	closed bool
}

// NewMemoryPersistence creates a new in-memory persistence layer.
// Prints a loud warning since this should only be used for testing.
func NewMemoryPersistence() *MemoryPersistence {
	fmt.Println("⚠️  WARNING: Using in-memory persistence - ALL CHECKPOINTS WILL BE LOST ON RESTART")
	fmt.Println("⚠️  This should ONLY be used for testing. Set CHECKPOINT_PERSISTENCE_TYPE=badger for production")

	return &MemoryPersistence{
		checkpoints: make(map[uint64]*checkpoint.CheckpointRecord),
		byRoot:      make(map[types.Digest][]uint64),
	}
}

// AppendCheckpoint stores a sealed record under its sequence
func (m *MemoryPersistence) AppendCheckpoint(record *checkpoint.CheckpointRecord) error {
	if record == nil {
		return fmt.Errorf("cannot save nil CheckpointRecord")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return persistence.ErrClosed
	}

	if _, exists := m.checkpoints[record.Sequence]; exists {
		return fmt.Errorf("%w: sequence %d", persistence.ErrCheckpointExists, record.Sequence)
	}

	m.checkpoints[record.Sequence] = record.Clone()
	m.byRoot[record.Root] = append(m.byRoot[record.Root], record.Sequence)
	return nil
}

// LoadCheckpoint retrieves a record by sequence
func (m *MemoryPersistence) LoadCheckpoint(sequence uint64) (*checkpoint.CheckpointRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrClosed
	}

	record, exists := m.checkpoints[sequence]
	if !exists {
		return nil, nil
	}
	return record.Clone(), nil
}

// LoadCheckpointsByRoot returns every record committed with root
func (m *MemoryPersistence) LoadCheckpointsByRoot(root types.Digest) ([]*checkpoint.CheckpointRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrClosed
	}

	sequences := append([]uint64(nil), m.byRoot[root]...)
	sort.Slice(sequences, func(i, j int) bool { return sequences[i] < sequences[j] })

	records := make([]*checkpoint.CheckpointRecord, 0, len(sequences))
	for _, seq := range sequences {
		records = append(records, m.checkpoints[seq].Clone())
	}
	return records, nil
}

// ListCheckpoints returns all records sorted by sequence
func (m *MemoryPersistence) ListCheckpoints() ([]*checkpoint.CheckpointRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrClosed
	}

	records := make([]*checkpoint.CheckpointRecord, 0, len(m.checkpoints))
	for _, record := range m.checkpoints {
		records = append(records, record.Clone())
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Sequence < records[j].Sequence
	})
	return records, nil
}

// LatestCheckpoint returns the record with the highest sequence
func (m *MemoryPersistence) LatestCheckpoint() (*checkpoint.CheckpointRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrClosed
	}

	var latest *checkpoint.CheckpointRecord
	for _, record := range m.checkpoints {
		if latest == nil || record.Sequence > latest.Sequence {
			latest = record
		}
	}
	return latest.Clone(), nil
}

// SavePendingCommit replaces the pending commit
func (m *MemoryPersistence) SavePendingCommit(pending *persistence.PendingCommit) error {
	if pending == nil || pending.Record == nil {
		return fmt.Errorf("cannot save nil PendingCommit")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return persistence.ErrClosed
	}

	m.pending = persistence.ClonePendingCommit(pending)
	return nil
}

// LoadPendingCommit returns the pending commit, if any
func (m *MemoryPersistence) LoadPendingCommit() (*persistence.PendingCommit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrClosed
	}

	return persistence.ClonePendingCommit(m.pending), nil
}

// DeletePendingCommit clears the pending commit
func (m *MemoryPersistence) DeletePendingCommit() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return persistence.ErrClosed
	}

	m.pending = nil
	return nil
}

// Close marks the persistence layer as closed
func (m *MemoryPersistence) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

// HealthCheck verifies the persistence layer is operational
func (m *MemoryPersistence) HealthCheck() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return persistence.ErrClosed
	}
	return nil
}
