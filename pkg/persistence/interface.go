package persistence

import (
	"errors"

	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/checkpoint"
	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/types"
)

// ErrCheckpointExists is returned when appending a sequence that is already stored
var ErrCheckpointExists = errors.New("checkpoint already exists")

// ErrClosed is returned by every operation after Close
var ErrClosed = errors.New("persistence layer is closed")

// ICheckpointPersistence is the append-only local checkpoint store.
// All implementations must be thread-safe.
//
// The interface supports:
// - Appending sealed checkpoints keyed by their sequence reference
// - Lookup by sequence (primary) and by root (secondary, possibly many records)
// - A single pending-commit slot so an interrupted commit can resume without rebuilding
// - Lifecycle management (close, health check)
type ICheckpointPersistence interface {
	// Checkpoint History

	// AppendCheckpoint stores a sealed record under its sequence.
	// Returns ErrCheckpointExists if the sequence is already stored; records are never overwritten.
	AppendCheckpoint(record *checkpoint.CheckpointRecord) error

	// LoadCheckpoint retrieves a record by sequence.
	// Returns nil if it doesn't exist, error only on storage failure.
	LoadCheckpoint(sequence uint64) (*checkpoint.CheckpointRecord, error)

	// LoadCheckpointsByRoot returns every record committed with the given root, ascending by sequence.
	// Returns empty slice if none exist.
	LoadCheckpointsByRoot(root types.Digest) ([]*checkpoint.CheckpointRecord, error)

	// ListCheckpoints returns all records sorted by sequence (ascending).
	ListCheckpoints() ([]*checkpoint.CheckpointRecord, error)

	// LatestCheckpoint returns the record with the highest sequence, or nil if the store is empty.
	LatestCheckpoint() (*checkpoint.CheckpointRecord, error)

	// Pending Commit

	// SavePendingCommit stores the build currently being committed, replacing any previous one.
	SavePendingCommit(pending *PendingCommit) error

	// LoadPendingCommit returns the stored pending commit, or nil if there is none.
	LoadPendingCommit() (*PendingCommit, error)

	// DeletePendingCommit clears the pending slot. Idempotent.
	DeletePendingCommit() error

	// Lifecycle Management

	// Close cleanly shuts down the persistence layer.
	// Idempotent - safe to call multiple times.
	// After Close(), all other operations return ErrClosed.
	Close() error

	// HealthCheck verifies the persistence layer is operational.
	HealthCheck() error
}

// PendingCommit is a built checkpoint whose root has not yet been accepted by the
// authoritative store. Record.Sequence is zero until the commit succeeds.
type PendingCommit struct {
	Record *checkpoint.CheckpointRecord `json:"record"`

	// Attempts counts submissions made so far across restarts
	Attempts int `json:"attempts"`

	// FirstAttemptAt is the Unix timestamp of the first submission attempt
	FirstAttemptAt int64 `json:"firstAttemptAt"`

	// LastError is the message of the most recent failed submission
	LastError string `json:"lastError,omitempty"`
}
