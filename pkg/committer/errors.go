package committer

import (
	"errors"
	"fmt"

	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/types"
)

var (
	// ErrStoreUnavailable matches every *StoreUnavailableError
	ErrStoreUnavailable = errors.New("authoritative store unavailable")

	// ErrSequenceConflict means the authoritative store returned a sequence the local
	// store already holds for a different root
	ErrSequenceConflict = errors.New("sequence already holds a different checkpoint")

	// ErrCheckpointNotFound is returned when the local store has no record for a sequence
	ErrCheckpointNotFound = errors.New("checkpoint not found in local store")

	// ErrRootMismatch means the authoritative store holds a different root than the local record
	ErrRootMismatch = errors.New("local checkpoint root differs from authoritative root")

	// ErrVerifierDisagreement means the local and authoritative verifiers returned
	// different answers for the same inputs
	ErrVerifierDisagreement = errors.New("local and authoritative verifiers disagree")

	// ErrPendingCommit matches every *PendingCommitError
	ErrPendingCommit = errors.New("a different build is pending commit")
)

// StoreUnavailableError is returned when every submission attempt failed. The built
// checkpoint stays in the pending slot; calling Commit or Resume again retries it
// without rebuilding.
type StoreUnavailableError struct {
	// Attempts counts submissions for this build across all Commit calls
	Attempts int
	Root     types.Digest
	Err      error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("authoritative store unavailable after %d attempts committing root %s: %v", e.Attempts, e.Root, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error {
	return e.Err
}

func (e *StoreUnavailableError) Is(target error) bool {
	return target == ErrStoreUnavailable
}

// PendingCommitError is returned by Commit when the pending slot holds another build.
// Resume (or RunCycle) must finish that build before a new one is committed.
type PendingCommitError struct {
	BuildID  string
	Root     types.Digest
	Attempts int
}

func (e *PendingCommitError) Error() string {
	return fmt.Sprintf("build %s (root %s, %d attempts) is pending commit; resume it first", e.BuildID, e.Root, e.Attempts)
}

func (e *PendingCommitError) Is(target error) bool {
	return target == ErrPendingCommit
}
