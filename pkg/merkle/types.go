package merkle

import (
	"errors"
	"fmt"
)

// SentinelRoot is the root of a tree built from zero leaves
var SentinelRoot = [32]byte{}

// ErrProofIndexOutOfRange is matched by every ProofIndexOutOfRangeError
var ErrProofIndexOutOfRange = errors.New("leaf index out of range")

// ProofIndexOutOfRangeError is returned when a proof is requested for a leaf
// index the tree does not have. It is a caller error and no partial proof is produced.
type ProofIndexOutOfRangeError struct {
	Index     int
	LeafCount int
}

func (e *ProofIndexOutOfRangeError) Error() string {
	return fmt.Sprintf("leaf index %d out of bounds (tree has %d leaves)", e.Index, e.LeafCount)
}

func (e *ProofIndexOutOfRangeError) Is(target error) bool {
	return target == ErrProofIndexOutOfRange
}

// MerkleTree is a binary merkle tree over an ordered list of leaf digests.
//
// Pairs are hashed as H(min(a,b) || max(a,b)) so proofs carry no left/right flags.
// An unpaired trailing node is promoted to the next level unchanged.
// The tree is immutable once built.
type MerkleTree struct {
	// Leaves contains the leaf digests in build order
	Leaves [][32]byte

	// Root is the merkle root hash
	Root [32]byte

	// levels stores all tree levels for proof generation
	// levels[0] = leaves, levels[len-1] = root
	levels [][][32]byte
}

// MerkleProof represents a proof that a leaf is included in the tree.
type MerkleProof struct {
	// LeafIndex is the index of the leaf in build order
	LeafIndex int

	// Leaf is the digest of the leaf being proven
	Leaf [32]byte

	// Proof contains the sibling hashes from leaf to root.
	// Levels where the node was promoted without a sibling contribute nothing.
	Proof [][32]byte
}
