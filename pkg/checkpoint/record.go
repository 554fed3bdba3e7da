package checkpoint

import (
	"errors"
	"fmt"
	"time"

	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/merkle"
	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/types"
)

// ErrLeafNotFound is returned when a logical path is not part of a checkpoint
var ErrLeafNotFound = errors.New("leaf not found in checkpoint")

// ErrHasherMismatch is returned when a record is verified with a hash primitive other
// than the one it was built with
var ErrHasherMismatch = errors.New("hasher does not match checkpoint hash algorithm")

// CheckpointRecord is everything needed to replay an inclusion check for any leaf of
// one commit cycle without contacting the authoritative store. Leaves and Proofs are
// parallel: Proofs[i] proves Leaves[i].ContentHash against Root.
//
// A record is never modified once sealed; accessors hand out copies.
type CheckpointRecord struct {
	// Sequence is the reference assigned by the authoritative store on commit and the
	// primary key in the local store
	Sequence uint64 `json:"sequence" yaml:"sequence"`

	Root      types.Digest `json:"root" yaml:"root"`
	Timestamp time.Time    `json:"timestamp" yaml:"timestamp"`

	// BuildID identifies the build that produced this record, which stays stable across
	// commit retries
	BuildID string `json:"buildId" yaml:"buildId"`

	Metadata types.CheckpointMetadata `json:"metadata" yaml:"metadata"`
	Leaves   []types.LeafRecord       `json:"leaves" yaml:"leaves"`
	Proofs   []types.Proof            `json:"proofs" yaml:"proofs"`
}

// Clone returns a deep copy of the record
func (r *CheckpointRecord) Clone() *CheckpointRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.Leaves = append([]types.LeafRecord(nil), r.Leaves...)
	out.Proofs = make([]types.Proof, len(r.Proofs))
	for i, p := range r.Proofs {
		out.Proofs[i] = p.Clone()
	}
	return &out
}

// WithSequence returns a copy of the record carrying the given sequence reference
func (r *CheckpointRecord) WithSequence(sequence uint64) *CheckpointRecord {
	out := r.Clone()
	out.Sequence = sequence
	return out
}

// LeafIndex returns the position of path in the leaf order, or -1
func (r *CheckpointRecord) LeafIndex(path string) int {
	for i, leaf := range r.Leaves {
		if leaf.LogicalPath == path {
			return i
		}
	}
	return -1
}

// ProofFor returns the leaf record and inclusion proof for a logical path
func (r *CheckpointRecord) ProofFor(path string) (types.LeafRecord, types.Proof, error) {
	idx := r.LeafIndex(path)
	if idx < 0 {
		return types.LeafRecord{}, nil, fmt.Errorf("%w: %s", ErrLeafNotFound, path)
	}
	if idx >= len(r.Proofs) {
		return types.LeafRecord{}, nil, fmt.Errorf("checkpoint %d has no proof for leaf %d", r.Sequence, idx)
	}
	return r.Leaves[idx], r.Proofs[idx].Clone(), nil
}

// checkHasher rejects h when the record names a different algorithm. Records without
// an algorithm accept any hasher.
func (r *CheckpointRecord) checkHasher(h merkle.Hasher) error {
	if h == nil {
		return fmt.Errorf("%w: nil hasher", ErrHasherMismatch)
	}
	if algo := r.Metadata.HashAlgorithm; algo != "" && algo != h.Name() {
		return fmt.Errorf("%w: checkpoint %d uses %s, got %s", ErrHasherMismatch, r.Sequence, algo, h.Name())
	}
	return nil
}

// VerifyLeaf replays the inclusion check for path using only this record.
// A proof that does not reproduce the root is reported as false with a nil error;
// a hasher other than the record's algorithm is an error.
func (r *CheckpointRecord) VerifyLeaf(h merkle.Hasher, path string) (bool, error) {
	if err := r.checkHasher(h); err != nil {
		return false, err
	}
	leaf, proof, err := r.ProofFor(path)
	if err != nil {
		return false, err
	}
	return merkle.VerifyProof(h, leaf.ContentHash, proof.Bytes32(), r.Root), nil
}

// VerifyAll replays every leaf's inclusion check and reports the first failure
func (r *CheckpointRecord) VerifyAll(h merkle.Hasher) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if err := r.checkHasher(h); err != nil {
		return err
	}
	for i, leaf := range r.Leaves {
		if !merkle.VerifyProof(h, leaf.ContentHash, r.Proofs[i].Bytes32(), r.Root) {
			return fmt.Errorf("inclusion proof for leaf %q (index %d) does not match root %s", leaf.LogicalPath, i, r.Root)
		}
	}
	if len(r.Leaves) == 0 && r.Root != types.Digest(merkle.SentinelRoot) {
		return fmt.Errorf("empty checkpoint must have the sentinel root, got %s", r.Root)
	}
	return nil
}

// Validate checks the structural invariants of the record
func (r *CheckpointRecord) Validate() error {
	if r == nil {
		return fmt.Errorf("checkpoint record is nil")
	}
	if len(r.Leaves) != len(r.Proofs) {
		return fmt.Errorf("checkpoint has %d leaves but %d proofs", len(r.Leaves), len(r.Proofs))
	}
	if r.Metadata.LeafCount != len(r.Leaves) {
		return fmt.Errorf("metadata leaf count %d does not match %d leaves", r.Metadata.LeafCount, len(r.Leaves))
	}

	var total int64
	seen := make(map[string]struct{}, len(r.Leaves))
	for _, leaf := range r.Leaves {
		if _, dup := seen[leaf.LogicalPath]; dup {
			return fmt.Errorf("duplicate logical path %q", leaf.LogicalPath)
		}
		seen[leaf.LogicalPath] = struct{}{}
		total += leaf.Size
	}
	if r.Metadata.TotalBytes != total {
		return fmt.Errorf("metadata total bytes %d does not match leaf sizes %d", r.Metadata.TotalBytes, total)
	}
	return nil
}
