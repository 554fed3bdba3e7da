package merkle

import (
	"bytes"
)

// BuildMerkleTree folds pre-hashed leaf digests into a tree.
//
// Adjacent entries are paired in order and hashed with HashPair. When a level has an
// odd number of entries the last one is carried up unchanged; it is neither hashed with
// itself nor paired with anything else. Zero leaves yield SentinelRoot and a single
// leaf is its own root, both without hashing.
//
// The root depends on the multiset of pairings, not on which side of a pair a node
// sat. Reordering the two members of any pair therefore yields the same root, and a
// proof only attests that the leaf digest is in the tree, not its index.
func BuildMerkleTree(h Hasher, leaves [][32]byte) *MerkleTree {
	leafCopy := make([][32]byte, len(leaves))
	copy(leafCopy, leaves)

	if len(leafCopy) == 0 {
		return &MerkleTree{
			Leaves: leafCopy,
			Root:   SentinelRoot,
			levels: [][][32]byte{leafCopy},
		}
	}

	levels := [][][32]byte{leafCopy}
	currentLevel := leafCopy
	for len(currentLevel) > 1 {
		nextLevel := make([][32]byte, 0, (len(currentLevel)+1)/2)

		for i := 0; i < len(currentLevel); i += 2 {
			if i+1 < len(currentLevel) {
				nextLevel = append(nextLevel, HashPair(h, currentLevel[i], currentLevel[i+1]))
			} else {
				// Odd node out is promoted as-is
				nextLevel = append(nextLevel, currentLevel[i])
			}
		}

		levels = append(levels, nextLevel)
		currentLevel = nextLevel
	}

	return &MerkleTree{
		Leaves: leafCopy,
		Root:   currentLevel[0],
		levels: levels,
	}
}

// GenerateProof collects the sibling digests for the leaf at leafIndex, bottom level first.
func (mt *MerkleTree) GenerateProof(leafIndex int) (*MerkleProof, error) {
	if leafIndex < 0 || leafIndex >= len(mt.Leaves) {
		return nil, &ProofIndexOutOfRangeError{Index: leafIndex, LeafCount: len(mt.Leaves)}
	}

	proof := make([][32]byte, 0, len(mt.levels))
	index := leafIndex

	for level := 0; level < len(mt.levels)-1; level++ {
		currentLevel := mt.levels[level]

		siblingIndex := index ^ 1
		if siblingIndex < len(currentLevel) {
			proof = append(proof, currentLevel[siblingIndex])
		}

		index = index / 2
	}

	return &MerkleProof{
		LeafIndex: leafIndex,
		Leaf:      mt.Leaves[leafIndex],
		Proof:     proof,
	}, nil
}

// Levels returns a copy of every level of the tree, leaves first and root last
func (mt *MerkleTree) Levels() [][][32]byte {
	out := make([][][32]byte, len(mt.levels))
	for i, level := range mt.levels {
		out[i] = make([][32]byte, len(level))
		copy(out[i], level)
	}
	return out
}

// LeafCount returns the number of leaves in the tree
func (mt *MerkleTree) LeafCount() int {
	return len(mt.Leaves)
}

// VerifyProof recomputes a root from a leaf digest and its siblings and compares it to
// root. It needs nothing from the tree that produced the proof and mirrors the on-chain
// verifier: each step is HashPair over the running hash and the next sibling.
// A mismatch is reported as false, never as an error.
func VerifyProof(h Hasher, leaf [32]byte, proof [][32]byte, root [32]byte) bool {
	currentHash := leaf
	for _, sibling := range proof {
		currentHash = HashPair(h, currentHash, sibling)
	}
	return currentHash == root
}

// Verify checks the proof against root using hasher h
func (p *MerkleProof) Verify(h Hasher, root [32]byte) bool {
	if p == nil {
		return false
	}
	return VerifyProof(h, p.Leaf, p.Proof, root)
}

// HashPair hashes two nodes in ascending unsigned byte order: H(min || max)
func HashPair(h Hasher, a, b [32]byte) [32]byte {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	return h.Hash(a[:], b[:])
}
