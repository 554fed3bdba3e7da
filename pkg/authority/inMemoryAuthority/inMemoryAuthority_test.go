package inMemoryAuthority

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/authority"
	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/merkle"
	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/testutil"
	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ authority.IAuthoritativeStore = (*InMemoryAuthority)(nil)

func Test_InMemoryAuthority(t *testing.T) {
	ctx := context.Background()
	meta := types.CheckpointMetadata{LeafCount: 2, TotalBytes: 10, HashAlgorithm: merkle.HashKeccak256}

	t.Run("sequences start at one and increase", func(t *testing.T) {
		a := NewInMemoryAuthority(nil, nil).WithClock(func() time.Time { return testutil.TestTime })

		seq1, err := a.Submit(ctx, types.Digest{1}, meta)
		require.NoError(t, err)
		seq2, err := a.Submit(ctx, types.Digest{2}, meta)
		require.NoError(t, err)

		assert.Equal(t, uint64(1), seq1)
		assert.Equal(t, uint64(2), seq2)

		got, err := a.Get(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, types.Digest{2}, got.Root)
		assert.Equal(t, meta, got.Metadata)
		assert.Equal(t, testutil.TestTime, got.Timestamp)
	})

	t.Run("resubmitting the latest payload is idempotent", func(t *testing.T) {
		a := NewInMemoryAuthority(nil, nil)

		seq1, err := a.Submit(ctx, types.Digest{7}, meta)
		require.NoError(t, err)
		seq2, err := a.Submit(ctx, types.Digest{7}, meta)
		require.NoError(t, err)

		assert.Equal(t, seq1, seq2)
		assert.Equal(t, 1, a.Len())
	})

	t.Run("same root after a different one gets a new sequence", func(t *testing.T) {
		a := NewInMemoryAuthority(nil, nil)

		_, err := a.Submit(ctx, types.Digest{7}, meta)
		require.NoError(t, err)
		_, err = a.Submit(ctx, types.Digest{8}, meta)
		require.NoError(t, err)
		seq3, err := a.Submit(ctx, types.Digest{7}, meta)
		require.NoError(t, err)

		assert.Equal(t, uint64(3), seq3)
	})

	t.Run("different metadata is a different payload", func(t *testing.T) {
		a := NewInMemoryAuthority(nil, nil)

		_, err := a.Submit(ctx, types.Digest{7}, meta)
		require.NoError(t, err)
		other := meta
		other.TotalBytes++
		seq, err := a.Submit(ctx, types.Digest{7}, other)
		require.NoError(t, err)
		assert.Equal(t, uint64(2), seq)
	})

	t.Run("unknown sequence", func(t *testing.T) {
		a := NewInMemoryAuthority(nil, nil)

		_, err := a.Get(ctx, 0)
		require.ErrorIs(t, err, authority.ErrRootNotFound)
		_, err = a.Get(ctx, 5)
		require.ErrorIs(t, err, authority.ErrRootNotFound)

		_, err = a.VerifyProof(ctx, 5, types.Digest{}, nil)
		require.ErrorIs(t, err, authority.ErrRootNotFound)
	})

	t.Run("fault injection", func(t *testing.T) {
		a := NewInMemoryAuthority(nil, nil)
		boom := errors.New("connection reset")
		a.FailNextSubmits(2, boom)

		_, err := a.Submit(ctx, types.Digest{1}, meta)
		require.ErrorIs(t, err, boom)
		_, err = a.Submit(ctx, types.Digest{1}, meta)
		require.ErrorIs(t, err, boom)

		seq, err := a.Submit(ctx, types.Digest{1}, meta)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), seq)
		assert.Equal(t, 3, a.SubmitCalls())
	})

	t.Run("seed continues history", func(t *testing.T) {
		a := NewInMemoryAuthority(nil, nil)
		require.NoError(t, a.Seed([]*authority.CommittedRoot{
			{Sequence: 1, Root: types.Digest{1}, Metadata: meta},
			{Sequence: 2, Root: types.Digest{2}, Metadata: meta},
		}))

		seq, err := a.Submit(ctx, types.Digest{2}, meta)
		require.NoError(t, err)
		assert.Equal(t, uint64(2), seq, "latest seeded payload is deduplicated")

		seq, err = a.Submit(ctx, types.Digest{3}, meta)
		require.NoError(t, err)
		assert.Equal(t, uint64(3), seq)

		err = a.Seed([]*authority.CommittedRoot{{Sequence: 9, Root: types.Digest{9}}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "out of order")
	})

	t.Run("cancelled context", func(t *testing.T) {
		a := NewInMemoryAuthority(nil, nil)
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := a.Submit(cctx, types.Digest{1}, meta)
		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 0, a.Len())
	})
}

func Test_InMemoryAuthority_VerifyProofLockStep(t *testing.T) {
	ctx := context.Background()
	h := merkle.DefaultHasher()
	a := NewInMemoryAuthority(h, nil)

	record := testutil.CreateTestCheckpoint(t, 0, "a.txt", "hello", "b.txt", "world", "c.txt", "!")
	seq, err := a.Submit(ctx, record.Root, record.Metadata)
	require.NoError(t, err)

	for i, leaf := range record.Leaves {
		remote, err := a.VerifyProof(ctx, seq, leaf.ContentHash, record.Proofs[i])
		require.NoError(t, err)
		local := merkle.VerifyProof(h, leaf.ContentHash, record.Proofs[i].Bytes32(), record.Root)
		assert.True(t, remote)
		assert.Equal(t, local, remote, "leaf %s", leaf.LogicalPath)

		tampered := record.Proofs[i].Clone()
		if len(tampered) > 0 {
			tampered[0][0] ^= 0x01
			remote, err = a.VerifyProof(ctx, seq, leaf.ContentHash, tampered)
			require.NoError(t, err)
			assert.False(t, remote)
			assert.Equal(t, merkle.VerifyProof(h, leaf.ContentHash, tampered.Bytes32(), record.Root), remote)
		}
	}
}
