package committer

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/authority"
	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/authority/inMemoryAuthority"
	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/leafSource"
	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/merkle"
	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/persistence"
	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/persistence/memory"
	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/testutil"
	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testRetry = RetryConfig{
	MaxAttempts:     3,
	BackoffMultiple: 2,
}

// countingSource counts snapshots so tests can prove a retry never rebuilds
type countingSource struct {
	inner leafSource.ILeafSource
	calls atomic.Int32
}

func (s *countingSource) Leaves(ctx context.Context) ([]*types.LeafContent, error) {
	s.calls.Add(1)
	return s.inner.Leaves(ctx)
}

type fixture struct {
	source    *countingSource
	authority *inMemoryAuthority.InMemoryAuthority
	store     persistence.ICheckpointPersistence
	committer *Committer
}

func newFixture(t *testing.T, pairs ...string) *fixture {
	t.Helper()

	f := &fixture{
		source:    &countingSource{inner: testutil.NewStaticSource(pairs...)},
		authority: inMemoryAuthority.NewInMemoryAuthority(nil, nil),
		store:     memory.NewMemoryPersistence(),
	}
	f.committer = f.newCommitter(t)
	return f
}

func (f *fixture) newCommitter(t *testing.T) *Committer {
	t.Helper()
	c, err := NewCommitter(&CommitterConfig{
		Retry: testRetry,
		Now:   func() time.Time { return testutil.TestTime },
	}, f.source, f.authority, f.store, nil)
	require.NoError(t, err)
	return c
}

func (f *fixture) setContent(pairs ...string) {
	f.source.inner = testutil.NewStaticSource(pairs...)
}

func Test_RunCycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "a.txt", "hello", "b.txt", "world")

	record, err := f.committer.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), record.Sequence)
	assert.Equal(t, "0x817f9cf412e48771da9077a54e99b92c920c5a08b06477d97fcc2b64ad9eea8f", record.Root.String())
	require.NoError(t, record.VerifyAll(merkle.DefaultHasher()))

	stored, err := f.store.LoadCheckpoint(1)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, record.Root, stored.Root)

	committed, err := f.authority.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, record.Root, committed.Root)
	assert.Equal(t, record.Metadata, committed.Metadata)

	pending, err := f.store.LoadPendingCommit()
	require.NoError(t, err)
	assert.Nil(t, pending)
}

func Test_Commit_RetriesTransientFailures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "a.txt", "hello", "b.txt", "world")
	f.authority.FailNextSubmits(2, errors.New("connection refused"))

	build, err := f.committer.Prepare(ctx)
	require.NoError(t, err)

	record, err := f.committer.Commit(ctx, build)
	require.NoError(t, err)
	assert.Equal(t, build.Root(), record.Root)
	assert.Equal(t, build.BuildID, record.BuildID)
	assert.Equal(t, 3, f.authority.SubmitCalls())
	assert.Equal(t, int32(1), f.source.calls.Load(), "retries must not rebuild")
}

func Test_Commit_ExhaustionKeepsBuildPending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "a.txt", "hello", "b.txt", "world")
	boom := errors.New("rpc timeout")
	f.authority.FailNextSubmits(100, boom)

	build, err := f.committer.Prepare(ctx)
	require.NoError(t, err)

	_, err = f.committer.Commit(ctx, build)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrStoreUnavailable)
	require.ErrorIs(t, err, boom)

	var unavailable *StoreUnavailableError
	require.True(t, errors.As(err, &unavailable))
	assert.Equal(t, 3, unavailable.Attempts)
	assert.Equal(t, build.Root(), unavailable.Root)

	pending, err := f.store.LoadPendingCommit()
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.Equal(t, 3, pending.Attempts)
	assert.Equal(t, build.BuildID, pending.Record.BuildID)
	assert.Contains(t, pending.LastError, "rpc timeout")

	// attempts accumulate across calls for the same build
	_, err = f.committer.Commit(ctx, build)
	require.True(t, errors.As(err, &unavailable))
	assert.Equal(t, 6, unavailable.Attempts)

	records, err := f.store.ListCheckpoints()
	require.NoError(t, err)
	assert.Empty(t, records)

	f.authority.FailNextSubmits(0, nil)
	record, err := f.committer.Commit(ctx, build)
	require.NoError(t, err)
	assert.Equal(t, build.Root(), record.Root)
	assert.Equal(t, int32(1), f.source.calls.Load())

	pending, err = f.store.LoadPendingCommit()
	require.NoError(t, err)
	assert.Nil(t, pending)
}

func Test_Resume_AfterRestart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "a.txt", "hello")
	f.authority.FailNextSubmits(3, errors.New("down"))

	build, err := f.committer.Prepare(ctx)
	require.NoError(t, err)
	_, err = f.committer.Commit(ctx, build)
	require.ErrorIs(t, err, ErrStoreUnavailable)

	// a new process sharing the store picks up the same build
	restarted := f.newCommitter(t)
	record, err := restarted.Resume(ctx)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, build.BuildID, record.BuildID)
	assert.Equal(t, build.Root(), record.Root)
	assert.Equal(t, int32(1), f.source.calls.Load())

	record, err = restarted.Resume(ctx)
	require.NoError(t, err)
	assert.Nil(t, record, "nothing left to resume")
}

func Test_RunCycle_ResumesPendingFirst(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "a.txt", "v1")
	f.authority.FailNextSubmits(3, errors.New("down"))

	_, err := f.committer.RunCycle(ctx)
	require.ErrorIs(t, err, ErrStoreUnavailable)

	f.setContent("a.txt", "v2")
	record, err := f.committer.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), record.Sequence)

	first, err := f.store.LoadCheckpoint(1)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, testutil.CreateTestBuild(t, "a.txt", "v1").Root(), first.Root)
}

func Test_Commit_RefusesToReplacePendingBuild(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "a.txt", "v1")
	f.authority.FailNextSubmits(3, errors.New("down"))

	stuck, err := f.committer.Prepare(ctx)
	require.NoError(t, err)
	_, err = f.committer.Commit(ctx, stuck)
	require.ErrorIs(t, err, ErrStoreUnavailable)

	f.setContent("a.txt", "v2")
	next, err := f.committer.Prepare(ctx)
	require.NoError(t, err)

	_, err = f.committer.Commit(ctx, next)
	require.ErrorIs(t, err, ErrPendingCommit)
	var pendingErr *PendingCommitError
	require.True(t, errors.As(err, &pendingErr))
	assert.Equal(t, stuck.BuildID, pendingErr.BuildID)
	assert.Equal(t, stuck.Root(), pendingErr.Root)
	assert.Equal(t, 3, pendingErr.Attempts)

	pending, err := f.store.LoadPendingCommit()
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.Equal(t, stuck.BuildID, pending.Record.BuildID, "pending build must survive")

	resumed, err := f.committer.Resume(ctx)
	require.NoError(t, err)
	assert.Equal(t, stuck.Root(), resumed.Root)

	record, err := f.committer.Commit(ctx, next)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), record.Sequence)
}

func Test_RunCycle_UnchangedSnapshot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "a.txt", "hello", "b.txt", "world")

	first, err := f.committer.RunCycle(ctx)
	require.NoError(t, err)

	second, err := f.committer.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.Sequence, second.Sequence)
	assert.Equal(t, first.BuildID, second.BuildID, "existing record is returned")
	assert.Equal(t, 1, f.authority.Len())

	f.setContent("a.txt", "hello", "b.txt", "World")
	third, err := f.committer.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), third.Sequence)
	assert.Equal(t, "0xea50fe62fd742b87949d02069c0dff12a33cc6a79d1d567ce1126cc86e614994", third.Root.String())

	diff, err := f.committer.Diff(1, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.txt"}, diff.Modified)

	// reverting yields a new sequence sharing the first root
	f.setContent("a.txt", "hello", "b.txt", "world")
	fourth, err := f.committer.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), fourth.Sequence)

	byRoot, err := f.store.LoadCheckpointsByRoot(first.Root)
	require.NoError(t, err)
	assert.Len(t, byRoot, 2)
}

func Test_RunCycle_SourceFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.source.inner = &failingSource{}

	_, err := f.committer.RunCycle(ctx)
	require.Error(t, err)
	require.ErrorIs(t, err, leafSource.ErrLeafRead)
	assert.Equal(t, 0, f.authority.SubmitCalls())

	pending, err := f.store.LoadPendingCommit()
	require.NoError(t, err)
	assert.Nil(t, pending)
}

type failingSource struct{}

func (failingSource) Leaves(ctx context.Context) ([]*types.LeafContent, error) {
	return nil, &leafSource.LeafReadError{Path: "b.txt", Err: errors.New("permission denied")}
}

func Test_Commit_ContextCancelledDuringBackoff(t *testing.T) {
	f := newFixture(t, "a.txt", "hello")
	f.authority.FailNextSubmits(100, errors.New("down"))

	c, err := NewCommitter(&CommitterConfig{
		Retry: RetryConfig{MaxAttempts: 10, InitialBackoff: time.Hour, MaxBackoff: time.Hour, BackoffMultiple: 2},
	}, f.source, f.authority, f.store, nil)
	require.NoError(t, err)

	build, err := c.Prepare(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = c.Commit(ctx, build)
	require.ErrorIs(t, err, ErrStoreUnavailable)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	var unavailable *StoreUnavailableError
	require.True(t, errors.As(err, &unavailable))
	assert.Equal(t, 1, unavailable.Attempts)
}

// fixedAuthority always returns the same sequence
type fixedAuthority struct {
	authority.IAuthoritativeStore
	sequence uint64
}

func (a *fixedAuthority) Submit(ctx context.Context, root types.Digest, metadata types.CheckpointMetadata) (uint64, error) {
	return a.sequence, nil
}

func Test_Commit_SequenceConflict(t *testing.T) {
	ctx := context.Background()
	store := memory.NewMemoryPersistence()
	require.NoError(t, store.AppendCheckpoint(testutil.CreateTestCheckpoint(t, 7, "x", "y")))

	c, err := NewCommitter(&CommitterConfig{Retry: testRetry}, testutil.NewStaticSource("a.txt", "hello"), &fixedAuthority{sequence: 7}, store, nil)
	require.NoError(t, err)

	_, err = c.RunCycle(ctx)
	require.ErrorIs(t, err, ErrSequenceConflict)

	pending, err := store.LoadPendingCommit()
	require.NoError(t, err)
	assert.NotNil(t, pending, "build stays pending after a conflict")
}

func Test_NewCommitter_Validation(t *testing.T) {
	store := memory.NewMemoryPersistence()
	auth := inMemoryAuthority.NewInMemoryAuthority(nil, nil)

	_, err := NewCommitter(nil, nil, nil, store, nil)
	require.Error(t, err)
	_, err = NewCommitter(nil, nil, auth, nil, nil)
	require.Error(t, err)

	c, err := NewCommitter(nil, nil, auth, store, nil)
	require.NoError(t, err)
	_, err = c.Prepare(context.Background())
	require.Error(t, err)
	_, err = c.Commit(context.Background(), nil)
	require.Error(t, err)
}

func Test_Commit_Hashers(t *testing.T) {
	for _, name := range merkle.SupportedHashers() {
		t.Run(name, func(t *testing.T) {
			h, err := merkle.HasherByName(name)
			require.NoError(t, err)

			store := memory.NewMemoryPersistence()
			auth := inMemoryAuthority.NewInMemoryAuthority(h, nil)
			c, err := NewCommitter(&CommitterConfig{Hasher: h, Retry: testRetry},
				testutil.NewStaticSource("a.txt", "hello", "b.txt", "world", "c.txt", "!"), auth, store, nil)
			require.NoError(t, err)

			record, err := c.RunCycle(context.Background())
			require.NoError(t, err)
			assert.Equal(t, name, record.Metadata.HashAlgorithm)

			result, err := c.VerifyRemote(context.Background(), record.Sequence, "c.txt")
			require.NoError(t, err)
			assert.True(t, result.LocalValid)
			require.NotNil(t, result.RemoteValid)
			assert.True(t, *result.RemoteValid)
		})
	}
}
