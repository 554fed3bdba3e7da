package committer

import (
	"context"
	"fmt"

	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/checkpoint"
	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/merkle"
	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/types"
)

// InclusionProof is the answer to "was path part of checkpoint Sequence"
type InclusionProof struct {
	Sequence   uint64           `json:"sequence"`
	Root       types.Digest     `json:"root"`
	Leaf       types.LeafRecord `json:"leaf"`
	Proof      types.Proof      `json:"proof"`
	LocalValid bool             `json:"localValid"`

	// RemoteValid is set only by VerifyRemote
	RemoteValid *bool `json:"remoteValid,omitempty"`
}

func (c *Committer) loadRecord(sequence uint64) (*checkpoint.CheckpointRecord, merkle.Hasher, error) {
	record, err := c.store.LoadCheckpoint(sequence)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load checkpoint %d: %w", sequence, err)
	}
	if record == nil {
		return nil, nil, fmt.Errorf("%w: sequence %d", ErrCheckpointNotFound, sequence)
	}

	// the record may predate a hasher change
	h, err := merkle.HasherByName(record.Metadata.HashAlgorithm)
	if err != nil {
		return nil, nil, fmt.Errorf("checkpoint %d: %w", sequence, err)
	}
	return record, h, nil
}

// Prove replays the inclusion check for path using only the local record
func (c *Committer) Prove(sequence uint64, path string) (*InclusionProof, error) {
	record, h, err := c.loadRecord(sequence)
	if err != nil {
		return nil, err
	}

	leaf, proof, err := record.ProofFor(path)
	if err != nil {
		return nil, fmt.Errorf("checkpoint %d: %w", sequence, err)
	}

	return &InclusionProof{
		Sequence:   record.Sequence,
		Root:       record.Root,
		Leaf:       leaf,
		Proof:      proof,
		LocalValid: merkle.VerifyProof(h, leaf.ContentHash, proof.Bytes32(), record.Root),
	}, nil
}

// VerifyRemote runs Prove and then asks the authoritative store's verifier the same
// question. Both verifiers must return the same answer.
func (c *Committer) VerifyRemote(ctx context.Context, sequence uint64, path string) (*InclusionProof, error) {
	result, err := c.Prove(sequence, path)
	if err != nil {
		return nil, err
	}

	committed, err := c.authority.Get(ctx, sequence)
	if err != nil {
		return nil, fmt.Errorf("failed to read authoritative root %d: %w", sequence, err)
	}
	if committed.Root != result.Root {
		return result, fmt.Errorf("%w: sequence %d local %s authoritative %s",
			ErrRootMismatch, sequence, result.Root, committed.Root)
	}

	remote, err := c.authority.VerifyProof(ctx, sequence, result.Leaf.ContentHash, result.Proof)
	if err != nil {
		return nil, fmt.Errorf("authoritative verification failed: %w", err)
	}
	result.RemoteValid = &remote

	if remote != result.LocalValid {
		c.logger.Sugar().Errorw("Verifier disagreement",
			"sequence", sequence,
			"path", path,
			"local", result.LocalValid,
			"remote", remote,
		)
		return result, fmt.Errorf("%w: sequence %d path %s", ErrVerifierDisagreement, sequence, path)
	}
	return result, nil
}

// Diff compares two locally stored checkpoints
func (c *Committer) Diff(fromSequence, toSequence uint64) (*checkpoint.DiffResult, error) {
	from, _, err := c.loadRecord(fromSequence)
	if err != nil {
		return nil, err
	}
	to, _, err := c.loadRecord(toSequence)
	if err != nil {
		return nil, err
	}
	return checkpoint.Diff(from, to), nil
}
