package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/leafSource"
	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/merkle"
	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/types"
	"github.com/google/uuid"
)

// Build is a fully computed, not yet committed checkpoint. It is created once per
// commit cycle and reused verbatim on every submission attempt.
type Build struct {
	BuildID   string
	Timestamp time.Time
	Hasher    merkle.Hasher
	Tree      *merkle.MerkleTree
	Leaves    []types.LeafRecord
	Proofs    []types.Proof
	Metadata  types.CheckpointMetadata
}

// Root returns the root of the built tree
func (b *Build) Root() types.Digest {
	return b.Tree.Root
}

// NewBuild captures a complete snapshot from source, then hashes it and derives
// the tree and every leaf's proof.
//
// The snapshot is taken before any hashing, so content changes that happen while the
// tree is built cannot leak into it. Any source failure aborts the build.
func NewBuild(ctx context.Context, h merkle.Hasher, source leafSource.ILeafSource, now time.Time) (*Build, error) {
	if h == nil {
		return nil, fmt.Errorf("hasher cannot be nil")
	}
	if source == nil {
		return nil, fmt.Errorf("leaf source cannot be nil")
	}

	snapshot, err := source.Leaves(ctx)
	if err != nil {
		var readErr *leafSource.LeafReadError
		if errors.As(err, &readErr) {
			return nil, err
		}
		return nil, &leafSource.LeafReadError{Err: err}
	}

	return BuildFromSnapshot(h, snapshot, now)
}

// BuildFromSnapshot builds a checkpoint from already captured content
func BuildFromSnapshot(h merkle.Hasher, snapshot []*types.LeafContent, now time.Time) (*Build, error) {
	leaves := make([]types.LeafRecord, len(snapshot))
	digests := make([][32]byte, len(snapshot))
	seen := make(map[string]int, len(snapshot))

	var totalBytes int64
	for i, item := range snapshot {
		if item == nil {
			return nil, &leafSource.LeafReadError{Err: fmt.Errorf("leaf %d is nil", i)}
		}
		if prev, dup := seen[item.LogicalPath]; dup {
			return nil, fmt.Errorf("duplicate logical path %q at positions %d and %d", item.LogicalPath, prev, i)
		}
		seen[item.LogicalPath] = i

		digest := merkle.HashLeaf(h, item.Content)
		digests[i] = digest
		leaves[i] = types.LeafRecord{
			LogicalPath: item.LogicalPath,
			ContentHash: digest,
			Size:        int64(len(item.Content)),
			ObservedAt:  item.ObservedAt,
		}
		totalBytes += int64(len(item.Content))
	}

	tree := merkle.BuildMerkleTree(h, digests)

	proofs := make([]types.Proof, len(leaves))
	for i := range leaves {
		proof, err := tree.GenerateProof(i)
		if err != nil {
			return nil, fmt.Errorf("failed to generate proof for leaf %d: %w", i, err)
		}
		proofs[i] = types.ProofFromBytes32(proof.Proof)
	}

	return &Build{
		BuildID:   uuid.New().String(),
		Timestamp: now.UTC(),
		Hasher:    h,
		Tree:      tree,
		Leaves:    leaves,
		Proofs:    proofs,
		Metadata: types.CheckpointMetadata{
			LeafCount:     len(leaves),
			TotalBytes:    totalBytes,
			HashAlgorithm: h.Name(),
		},
	}, nil
}

// Pending returns the build as a record that has not been assigned a sequence yet.
// It carries everything needed to resume the commit without recomputing the tree.
func (b *Build) Pending() *CheckpointRecord {
	rec := &CheckpointRecord{
		Root:      b.Tree.Root,
		Timestamp: b.Timestamp,
		BuildID:   b.BuildID,
		Metadata:  b.Metadata,
		Leaves:    b.Leaves,
		Proofs:    b.Proofs,
	}
	// Detach from the build so the record shares no memory with it
	return rec.Clone()
}

// Seal turns the build into an immutable record under the sequence reference assigned
// by the authoritative store
func (b *Build) Seal(sequence uint64) *CheckpointRecord {
	return b.Pending().WithSequence(sequence)
}
