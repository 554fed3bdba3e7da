// Package committer runs commit cycles: snapshot the leaf source, build the tree,
// publish the root to the authoritative store and append the sealed record locally.
package committer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/authority"
	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/checkpoint"
	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/leafSource"
	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/merkle"
	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/persistence"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RetryConfig configures submission retry behavior
type RetryConfig struct {
	MaxAttempts     int
	InitialBackoff  time.Duration
	MaxBackoff      time.Duration
	BackoffMultiple float64

	// SubmitsPerSecond caps submission rate across retries and cycles; 0 disables
	SubmitsPerSecond float64
}

// DefaultRetryConfig provides default retry settings
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:     5,
	InitialBackoff:  500 * time.Millisecond,
	MaxBackoff:      30 * time.Second,
	BackoffMultiple: 2.0,
}

// CommitterConfig holds the optional knobs of a Committer
type CommitterConfig struct {
	// Hasher builds new checkpoints; nil means keccak256
	Hasher merkle.Hasher
	Retry  RetryConfig
	// Now is the clock used for build timestamps; nil means time.Now
	Now func() time.Time
}

// Committer owns one checkpoint history. Commits are serialized; each history has a
// single writer.
type Committer struct {
	source    leafSource.ILeafSource
	hasher    merkle.Hasher
	authority authority.IAuthoritativeStore
	store     persistence.ICheckpointPersistence
	retry     RetryConfig
	limiter   *rate.Limiter
	now       func() time.Time
	logger    *zap.Logger

	mu sync.Mutex
}

// NewCommitter wires a committer. source may be nil for proof-only use.
func NewCommitter(
	cfg *CommitterConfig,
	source leafSource.ILeafSource,
	auth authority.IAuthoritativeStore,
	store persistence.ICheckpointPersistence,
	logger *zap.Logger,
) (*Committer, error) {
	if auth == nil {
		return nil, fmt.Errorf("authoritative store cannot be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("checkpoint store cannot be nil")
	}
	if cfg == nil {
		cfg = &CommitterConfig{Retry: DefaultRetryConfig}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	hasher := cfg.Hasher
	if hasher == nil {
		hasher = merkle.DefaultHasher()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	retry := cfg.Retry
	if retry.MaxAttempts < 1 {
		retry.MaxAttempts = 1
	}
	if retry.BackoffMultiple < 1 {
		retry.BackoffMultiple = 1
	}

	limit := rate.Inf
	if retry.SubmitsPerSecond > 0 {
		limit = rate.Limit(retry.SubmitsPerSecond)
	}

	return &Committer{
		source:    source,
		hasher:    hasher,
		authority: auth,
		store:     store,
		retry:     retry,
		limiter:   rate.NewLimiter(limit, 1),
		now:       now,
		logger:    logger,
	}, nil
}

// Prepare snapshots the leaf source and builds the checkpoint. Nothing is published.
func (c *Committer) Prepare(ctx context.Context) (*checkpoint.Build, error) {
	if c.source == nil {
		return nil, fmt.Errorf("committer has no leaf source")
	}

	build, err := checkpoint.NewBuild(ctx, c.hasher, c.source, c.now())
	if err != nil {
		return nil, err
	}

	c.logger.Sugar().Infow("Checkpoint built",
		"buildId", build.BuildID,
		"root", build.Root().String(),
		"leafCount", build.Metadata.LeafCount,
		"totalBytes", build.Metadata.TotalBytes,
		"hash", build.Metadata.HashAlgorithm,
	)
	return build, nil
}

// Commit publishes build's root and appends the sealed record to the local store.
// On a *StoreUnavailableError the build remains pending and Commit may be called
// again with the same build. A different build is refused with *PendingCommitError
// until the pending one is finished through Resume.
func (c *Committer) Commit(ctx context.Context, build *checkpoint.Build) (*checkpoint.CheckpointRecord, error) {
	if build == nil {
		return nil, fmt.Errorf("build cannot be nil")
	}
	return c.commitRecord(ctx, build.Pending())
}

// Resume retries a commit left pending by an earlier failure or restart.
// Returns nil when nothing is pending.
func (c *Committer) Resume(ctx context.Context) (*checkpoint.CheckpointRecord, error) {
	pending, err := c.store.LoadPendingCommit()
	if err != nil {
		return nil, fmt.Errorf("failed to load pending commit: %w", err)
	}
	if pending == nil {
		return nil, nil
	}

	c.logger.Sugar().Infow("Resuming pending commit",
		"buildId", pending.Record.BuildID,
		"root", pending.Record.Root.String(),
		"attempts", pending.Attempts,
	)
	return c.commitRecord(ctx, pending.Record)
}

// RunCycle finishes any pending commit, then builds and commits a fresh snapshot
func (c *Committer) RunCycle(ctx context.Context) (*checkpoint.CheckpointRecord, error) {
	if _, err := c.Resume(ctx); err != nil {
		return nil, err
	}

	build, err := c.Prepare(ctx)
	if err != nil {
		return nil, err
	}
	return c.Commit(ctx, build)
}

// pendingFor returns the stored pending commit if it is the same build, a fresh one if
// the slot is empty, and a *PendingCommitError if another build occupies it
func (c *Committer) pendingFor(record *checkpoint.CheckpointRecord) (*persistence.PendingCommit, error) {
	existing, err := c.store.LoadPendingCommit()
	if err != nil {
		return nil, fmt.Errorf("failed to load pending commit: %w", err)
	}
	if existing != nil && existing.Record.BuildID == record.BuildID && existing.Record.Root == record.Root {
		existing.Record = record
		return existing, nil
	}
	if existing != nil {
		c.logger.Sugar().Warnw("Refusing to replace pending commit of a different build",
			"pendingBuildId", existing.Record.BuildID,
			"pendingRoot", existing.Record.Root.String(),
			"buildId", record.BuildID,
		)
		return nil, &PendingCommitError{
			BuildID:  existing.Record.BuildID,
			Root:     existing.Record.Root,
			Attempts: existing.Attempts,
		}
	}
	return &persistence.PendingCommit{
		Record:         record,
		FirstAttemptAt: c.now().Unix(),
	}, nil
}

func (c *Committer) commitRecord(ctx context.Context, record *checkpoint.CheckpointRecord) (*checkpoint.CheckpointRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pending, err := c.pendingFor(record)
	if err != nil {
		return nil, err
	}
	if err := c.store.SavePendingCommit(pending); err != nil {
		return nil, fmt.Errorf("failed to save pending commit: %w", err)
	}

	sequence, err := c.submitWithRetry(ctx, pending)
	if err != nil {
		return nil, err
	}

	sealed, err := c.appendSealed(record.WithSequence(sequence))
	if err != nil {
		return nil, err
	}

	if err := c.store.DeletePendingCommit(); err != nil {
		c.logger.Sugar().Warnw("Failed to clear pending commit", "error", err)
	}
	return sealed, nil
}

// submitWithRetry submits pending.Record's root until it is accepted or attempts run out.
// The record is never rebuilt between attempts.
func (c *Committer) submitWithRetry(ctx context.Context, pending *persistence.PendingCommit) (uint64, error) {
	record := pending.Record
	backoff := c.retry.InitialBackoff
	var lastErr error

	for attempt := 0; attempt < c.retry.MaxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			lastErr = err
			break
		}

		sequence, err := c.authority.Submit(ctx, record.Root, record.Metadata)
		pending.Attempts++
		if err == nil {
			c.logger.Sugar().Infow("Root accepted by authoritative store",
				"sequence", sequence,
				"root", record.Root.String(),
				"attempts", pending.Attempts,
			)
			return sequence, nil
		}

		lastErr = err
		pending.LastError = err.Error()
		if saveErr := c.store.SavePendingCommit(pending); saveErr != nil {
			c.logger.Sugar().Warnw("Failed to record submission attempt", "error", saveErr)
		}
		c.logger.Sugar().Warnw("Submission to authoritative store failed",
			"root", record.Root.String(),
			"attempt", attempt+1,
			"maxAttempts", c.retry.MaxAttempts,
			"error", err,
		)

		if ctx.Err() != nil {
			break
		}
		if attempt < c.retry.MaxAttempts-1 {
			if err := sleep(ctx, backoff); err != nil {
				lastErr = err
				break
			}
			backoff = time.Duration(float64(backoff) * c.retry.BackoffMultiple)
			if backoff > c.retry.MaxBackoff {
				backoff = c.retry.MaxBackoff
			}
		}
	}

	return 0, &StoreUnavailableError{
		Attempts: pending.Attempts,
		Root:     record.Root,
		Err:      lastErr,
	}
}

// appendSealed stores the record. If the sequence already holds the same root the
// snapshot was unchanged and the authoritative store returned the existing entry.
func (c *Committer) appendSealed(sealed *checkpoint.CheckpointRecord) (*checkpoint.CheckpointRecord, error) {
	err := c.store.AppendCheckpoint(sealed)
	if err == nil {
		c.logger.Sugar().Infow("Checkpoint recorded",
			"sequence", sealed.Sequence,
			"root", sealed.Root.String(),
		)
		return sealed, nil
	}
	if !errors.Is(err, persistence.ErrCheckpointExists) {
		return nil, fmt.Errorf("failed to append checkpoint %d: %w", sealed.Sequence, err)
	}

	existing, loadErr := c.store.LoadCheckpoint(sealed.Sequence)
	if loadErr != nil {
		return nil, fmt.Errorf("failed to load checkpoint %d: %w", sealed.Sequence, loadErr)
	}
	if existing == nil || existing.Root != sealed.Root {
		return nil, fmt.Errorf("%w: sequence %d", ErrSequenceConflict, sealed.Sequence)
	}

	c.logger.Sugar().Infow("Snapshot unchanged since latest checkpoint",
		"sequence", existing.Sequence,
		"root", existing.Root.String(),
	)
	return existing, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
