// Package authority defines the boundary to the authoritative store: the external
// system that holds the canonical copy of published roots and the reference verifier.
package authority

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/types"
)

// ErrRootNotFound is returned by Get when no root is committed under a sequence
var ErrRootNotFound = errors.New("no root committed under sequence")

// CommittedRoot is what the authoritative store holds for one sequence reference
type CommittedRoot struct {
	Sequence  uint64                   `json:"sequence"`
	Root      types.Digest             `json:"root"`
	Metadata  types.CheckpointMetadata `json:"metadata"`
	Timestamp time.Time                `json:"timestamp"`
}

// IAuthoritativeStore publishes roots and verifies proofs against them.
//
// Submit must be idempotent for a resubmission of the payload most recently accepted:
// the existing sequence is returned and nothing new is recorded. This lets a caller
// retry after an ambiguous failure without creating a duplicate entry.
type IAuthoritativeStore interface {
	// Submit publishes root with its metadata and returns the assigned sequence reference
	Submit(ctx context.Context, root types.Digest, metadata types.CheckpointMetadata) (uint64, error)

	// Get returns the committed root for a sequence, or an error wrapping ErrRootNotFound
	Get(ctx context.Context, sequence uint64) (*CommittedRoot, error)

	// VerifyProof runs the store's own inclusion check for leaf against the root under sequence
	VerifyProof(ctx context.Context, sequence uint64, leaf types.Digest, proof types.Proof) (bool, error)
}

// NotFound builds the error returned for an unknown sequence
func NotFound(sequence uint64) error {
	return fmt.Errorf("%w: %d", ErrRootNotFound, sequence)
}

// SameMetadata reports whether two payloads would be considered the same submission.
// The hash algorithm is not published on every store, so an empty name matches any.
func SameMetadata(a, b types.CheckpointMetadata) bool {
	if a.LeafCount != b.LeafCount || a.TotalBytes != b.TotalBytes {
		return false
	}
	return a.HashAlgorithm == "" || b.HashAlgorithm == "" || a.HashAlgorithm == b.HashAlgorithm
}
