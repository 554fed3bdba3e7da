package merkle

import (
	"fmt"
	"testing"
)

// BenchmarkMerkleTreeBuild benchmarks merkle tree construction with various sizes
func BenchmarkMerkleTreeBuild(b *testing.B) {
	sizes := []int{10, 100, 1000, 10000}

	for _, size := range sizes {
		b.Run(fmt.Sprintf("Leaves_%d", size), func(b *testing.B) {
			leaves := createTestLeaves(size)
			h := DefaultHasher()
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				_ = BuildMerkleTree(h, leaves)
			}
		})
	}
}

// BenchmarkMerkleProofGeneration benchmarks proof generation
func BenchmarkMerkleProofGeneration(b *testing.B) {
	sizes := []int{10, 100, 1000, 10000}

	for _, size := range sizes {
		tree := BuildMerkleTree(DefaultHasher(), createTestLeaves(size))

		b.Run(fmt.Sprintf("Leaves_%d", size), func(b *testing.B) {
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				_, _ = tree.GenerateProof(i % size)
			}
		})
	}
}

// BenchmarkMerkleProofVerification benchmarks proof verification
func BenchmarkMerkleProofVerification(b *testing.B) {
	sizes := []int{10, 100, 1000, 10000}

	for _, size := range sizes {
		h := DefaultHasher()
		tree := BuildMerkleTree(h, createTestLeaves(size))
		proof, _ := tree.GenerateProof(0)

		b.Run(fmt.Sprintf("Leaves_%d", size), func(b *testing.B) {
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				_ = proof.Verify(h, tree.Root)
			}
		})
	}
}

// BenchmarkHashLeaf benchmarks leaf hashing for a 4KiB payload
func BenchmarkHashLeaf(b *testing.B) {
	content := make([]byte, 4096)
	h := DefaultHasher()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = HashLeaf(h, content)
	}
}
