package merkle

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func FuzzProofSoundness(f *testing.F) {
	f.Add(uint8(1), uint8(0), uint64(7))
	f.Add(uint8(3), uint8(2), uint64(11))
	f.Add(uint8(33), uint8(32), uint64(99))

	h := DefaultHasher()
	f.Fuzz(func(t *testing.T, n uint8, index uint8, seed uint64) {
		if n == 0 {
			return
		}
		leaves := make([][32]byte, n)
		for i := range leaves {
			var buf [16]byte
			binary.BigEndian.PutUint64(buf[:8], seed)
			binary.BigEndian.PutUint64(buf[8:], uint64(i))
			leaves[i] = HashLeaf(h, buf[:])
		}

		tree := BuildMerkleTree(h, leaves)
		idx := int(index) % int(n)
		proof, err := tree.GenerateProof(idx)
		require.NoError(t, err)
		require.True(t, VerifyProof(h, leaves[idx], proof.Proof, tree.Root))

		_, err = tree.GenerateProof(int(n))
		require.ErrorIs(t, err, ErrProofIndexOutOfRange)
	})
}
