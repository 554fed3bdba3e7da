package persistence

import (
	"encoding/json"
	"fmt"

	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/checkpoint"
)

// MarshalCheckpoint serializes a CheckpointRecord to JSON bytes.
func MarshalCheckpoint(rec *checkpoint.CheckpointRecord) ([]byte, error) {
	if rec == nil {
		return nil, fmt.Errorf("cannot marshal nil CheckpointRecord")
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal CheckpointRecord to JSON: %w", err)
	}

	return data, nil
}

// UnmarshalCheckpoint deserializes a CheckpointRecord from JSON bytes.
func UnmarshalCheckpoint(data []byte) (*checkpoint.CheckpointRecord, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var rec checkpoint.CheckpointRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to CheckpointRecord: %w", err)
	}

	return &rec, nil
}

// MarshalPendingCommit serializes PendingCommit to JSON bytes.
func MarshalPendingCommit(pc *PendingCommit) ([]byte, error) {
	if pc == nil {
		return nil, fmt.Errorf("cannot marshal nil PendingCommit")
	}
	if pc.Record == nil {
		return nil, fmt.Errorf("cannot marshal PendingCommit without a record")
	}

	return json.Marshal(pc)
}

// UnmarshalPendingCommit deserializes PendingCommit from JSON bytes.
func UnmarshalPendingCommit(data []byte) (*PendingCommit, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var pc PendingCommit
	if err := json.Unmarshal(data, &pc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to PendingCommit: %w", err)
	}

	return &pc, nil
}

// ClonePendingCommit returns a deep copy
func ClonePendingCommit(pc *PendingCommit) *PendingCommit {
	if pc == nil {
		return nil
	}
	out := *pc
	out.Record = pc.Record.Clone()
	return &out
}

// SequenceKey formats a sequence so that lexical key order equals numeric order
func SequenceKey(sequence uint64) string {
	return fmt.Sprintf("%020d", sequence)
}
