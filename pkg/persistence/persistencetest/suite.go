// Package persistencetest holds the behaviour every ICheckpointPersistence backend
// must share. Backend tests call RunConformanceTests with a constructor.
package persistencetest

import (
	"sync"
	"testing"

	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/merkle"
	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/persistence"
	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/testutil"
	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) persistence.ICheckpointPersistence

// RunConformanceTests exercises the full ICheckpointPersistence contract
func RunConformanceTests(t *testing.T, newStore Factory) {
	t.Run("AppendAndLoad", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		record := testutil.CreateTestCheckpoint(t, 1, "a.txt", "hello", "b.txt", "world")
		require.NoError(t, store.AppendCheckpoint(record))

		loaded, err := store.LoadCheckpoint(1)
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, record.Root, loaded.Root)
		assert.Equal(t, record.Leaves, loaded.Leaves)
		assert.Equal(t, record.Proofs, loaded.Proofs)
		require.NoError(t, loaded.VerifyAll(merkle.DefaultHasher()))
	})

	t.Run("LoadNotFound", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		loaded, err := store.LoadCheckpoint(9999999)
		require.NoError(t, err)
		assert.Nil(t, loaded)

		latest, err := store.LatestCheckpoint()
		require.NoError(t, err)
		assert.Nil(t, latest)
	})

	t.Run("AppendNil", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		err := store.AppendCheckpoint(nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "nil CheckpointRecord")
	})

	t.Run("AppendOnly", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		first := testutil.CreateTestCheckpoint(t, 5, "a.txt", "v1")
		require.NoError(t, store.AppendCheckpoint(first))

		second := testutil.CreateTestCheckpoint(t, 5, "a.txt", "v2")
		err := store.AppendCheckpoint(second)
		require.ErrorIs(t, err, persistence.ErrCheckpointExists)

		loaded, err := store.LoadCheckpoint(5)
		require.NoError(t, err)
		assert.Equal(t, first.Root, loaded.Root, "existing record must not be overwritten")
	})

	t.Run("SharedRootKeptAsDistinctRecords", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		build := testutil.CreateTestBuild(t, "a.txt", "same", "b.txt", "content")
		require.NoError(t, store.AppendCheckpoint(build.Seal(3)))
		require.NoError(t, store.AppendCheckpoint(build.Seal(8)))
		require.NoError(t, store.AppendCheckpoint(testutil.CreateTestCheckpoint(t, 4, "other", "x")))

		records, err := store.LoadCheckpointsByRoot(build.Root())
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, uint64(3), records[0].Sequence)
		assert.Equal(t, uint64(8), records[1].Sequence)

		none, err := store.LoadCheckpointsByRoot(types.Digest{0xde, 0xad})
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("ListAndLatest", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		for _, seq := range []uint64{10, 2, 7, 100} {
			require.NoError(t, store.AppendCheckpoint(testutil.CreateNumberedCheckpoint(t, seq, 3)))
		}

		records, err := store.ListCheckpoints()
		require.NoError(t, err)
		require.Len(t, records, 4)
		for i, expected := range []uint64{2, 7, 10, 100} {
			assert.Equal(t, expected, records[i].Sequence)
		}

		latest, err := store.LatestCheckpoint()
		require.NoError(t, err)
		require.NotNil(t, latest)
		assert.Equal(t, uint64(100), latest.Sequence)
	})

	t.Run("ReturnedRecordsAreCopies", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		record := testutil.CreateTestCheckpoint(t, 1, "a.txt", "hello", "b.txt", "world")
		require.NoError(t, store.AppendCheckpoint(record))

		record.Leaves[0].LogicalPath = "mutated-after-append"
		loaded, err := store.LoadCheckpoint(1)
		require.NoError(t, err)
		loaded.Leaves[1].LogicalPath = "mutated-after-load"

		again, err := store.LoadCheckpoint(1)
		require.NoError(t, err)
		assert.Equal(t, "a.txt", again.Leaves[0].LogicalPath)
		assert.Equal(t, "b.txt", again.Leaves[1].LogicalPath)
	})

	t.Run("PendingCommit", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		loaded, err := store.LoadPendingCommit()
		require.NoError(t, err)
		assert.Nil(t, loaded)

		pending := &persistence.PendingCommit{
			Record:         testutil.CreateTestBuild(t, "a.txt", "hello").Pending(),
			Attempts:       2,
			FirstAttemptAt: 1700000000,
			LastError:      "timeout",
		}
		require.NoError(t, store.SavePendingCommit(pending))

		loaded, err = store.LoadPendingCommit()
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, 2, loaded.Attempts)
		assert.Equal(t, pending.Record.Root, loaded.Record.Root)
		assert.Equal(t, pending.Record.BuildID, loaded.Record.BuildID)

		pending.Attempts = 3
		require.NoError(t, store.SavePendingCommit(pending))
		loaded, err = store.LoadPendingCommit()
		require.NoError(t, err)
		assert.Equal(t, 3, loaded.Attempts)

		require.NoError(t, store.DeletePendingCommit())
		require.NoError(t, store.DeletePendingCommit())
		loaded, err = store.LoadPendingCommit()
		require.NoError(t, err)
		assert.Nil(t, loaded)

		require.Error(t, store.SavePendingCommit(nil))
	})

	t.Run("ConcurrentAccess", func(t *testing.T) {
		store := newStore(t)
		defer func() { _ = store.Close() }()

		var wg sync.WaitGroup
		for i := 1; i <= 10; i++ {
			wg.Add(1)
			go func(seq uint64) {
				defer wg.Done()
				record := testutil.CreateNumberedCheckpoint(t, seq, 2)
				assert.NoError(t, store.AppendCheckpoint(record))
				_, err := store.LoadCheckpoint(seq)
				assert.NoError(t, err)
			}(uint64(i))
		}
		wg.Wait()

		records, err := store.ListCheckpoints()
		require.NoError(t, err)
		assert.Len(t, records, 10)
	})

	t.Run("Closed", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.HealthCheck())

		require.NoError(t, store.Close())
		require.NoError(t, store.Close(), "close must be idempotent")

		require.ErrorIs(t, store.HealthCheck(), persistence.ErrClosed)
		require.ErrorIs(t, store.AppendCheckpoint(testutil.CreateTestCheckpoint(t, 1, "a", "b")), persistence.ErrClosed)
		_, err := store.LoadCheckpoint(1)
		require.ErrorIs(t, err, persistence.ErrClosed)
		_, err = store.ListCheckpoints()
		require.ErrorIs(t, err, persistence.ErrClosed)
	})
}
