package inMemoryAuthority

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/authority"
	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/merkle"
	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/types"
	"go.uber.org/zap"
)

// InMemoryAuthority is a process-local authoritative store. Sequences start at 1.
// It is the reference implementation used by tests and by the CLI's "memory" mode.
type InMemoryAuthority struct {
	mu     sync.Mutex
	hasher merkle.Hasher
	now    func() time.Time
	logger *zap.Logger

	roots []*authority.CommittedRoot

	// fault injection
	failRemaining int
	failErr       error
	submitCalls   int
}

// NewInMemoryAuthority verifies proofs with hasher; a nil hasher means keccak256
func NewInMemoryAuthority(hasher merkle.Hasher, logger *zap.Logger) *InMemoryAuthority {
	if hasher == nil {
		hasher = merkle.DefaultHasher()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemoryAuthority{
		hasher: hasher,
		now:    time.Now,
		logger: logger,
	}
}

// WithClock replaces the timestamp source
func (a *InMemoryAuthority) WithClock(now func() time.Time) *InMemoryAuthority {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.now = now
	return a
}

// FailNextSubmits makes the next n Submit calls return err without recording anything
func (a *InMemoryAuthority) FailNextSubmits(n int, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failRemaining = n
	a.failErr = err
}

// SubmitCalls counts every Submit call, failed ones included
func (a *InMemoryAuthority) SubmitCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.submitCalls
}

// Len returns the number of committed roots
func (a *InMemoryAuthority) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.roots)
}

// Seed loads previously committed roots, e.g. replayed from a local checkpoint store.
// Sequences must continue the existing history without gaps.
func (a *InMemoryAuthority) Seed(committed []*authority.CommittedRoot) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, root := range committed {
		if root == nil {
			return fmt.Errorf("cannot seed nil committed root")
		}
		expected := uint64(len(a.roots) + 1)
		if root.Sequence != expected {
			return fmt.Errorf("seed sequence %d out of order, expected %d", root.Sequence, expected)
		}
		out := *root
		a.roots = append(a.roots, &out)
	}
	return nil
}

func (a *InMemoryAuthority) Submit(ctx context.Context, root types.Digest, metadata types.CheckpointMetadata) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.submitCalls++
	if a.failRemaining > 0 {
		a.failRemaining--
		return 0, fmt.Errorf("authoritative store unavailable: %w", a.failErr)
	}

	if n := len(a.roots); n > 0 {
		last := a.roots[n-1]
		if last.Root == root && authority.SameMetadata(last.Metadata, metadata) {
			a.logger.Sugar().Debugw("Resubmission of latest root, returning existing sequence",
				"sequence", last.Sequence,
				"root", root.String(),
			)
			return last.Sequence, nil
		}
	}

	committed := &authority.CommittedRoot{
		Sequence:  uint64(len(a.roots) + 1),
		Root:      root,
		Metadata:  metadata,
		Timestamp: a.now().UTC(),
	}
	a.roots = append(a.roots, committed)

	a.logger.Sugar().Infow("Root committed",
		"sequence", committed.Sequence,
		"root", root.String(),
		"leafCount", metadata.LeafCount,
	)
	return committed.Sequence, nil
}

func (a *InMemoryAuthority) Get(ctx context.Context, sequence uint64) (*authority.CommittedRoot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if sequence == 0 || sequence > uint64(len(a.roots)) {
		return nil, authority.NotFound(sequence)
	}
	out := *a.roots[sequence-1]
	return &out, nil
}

func (a *InMemoryAuthority) VerifyProof(ctx context.Context, sequence uint64, leaf types.Digest, proof types.Proof) (bool, error) {
	committed, err := a.Get(ctx, sequence)
	if err != nil {
		return false, err
	}
	return merkle.VerifyProof(a.hasher, leaf, proof.Bytes32(), committed.Root), nil
}
