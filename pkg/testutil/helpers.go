package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/checkpoint"
	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/leafSource/staticLeafSource"
	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/merkle"
)

// TestTime is a fixed timestamp used for deterministic test checkpoints
var TestTime = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

// NewStaticSource builds a leaf source from alternating path/content arguments
func NewStaticSource(pairs ...string) *staticLeafSource.StaticLeafSource {
	if len(pairs)%2 != 0 {
		panic("NewStaticSource requires path/content pairs")
	}
	paths := make([]string, 0, len(pairs)/2)
	contents := make(map[string][]byte, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		paths = append(paths, pairs[i])
		contents[pairs[i]] = []byte(pairs[i+1])
	}
	return staticLeafSource.NewStaticLeafSourceFromMap(paths, contents, TestTime)
}

// CreateTestBuild builds a keccak checkpoint from path/content pairs
func CreateTestBuild(t *testing.T, pairs ...string) *checkpoint.Build {
	t.Helper()
	b, err := checkpoint.NewBuild(context.Background(), merkle.DefaultHasher(), NewStaticSource(pairs...), TestTime)
	if err != nil {
		t.Fatalf("Failed to build test checkpoint: %v", err)
	}
	return b
}

// CreateTestCheckpoint builds and seals a checkpoint from path/content pairs
func CreateTestCheckpoint(t *testing.T, sequence uint64, pairs ...string) *checkpoint.CheckpointRecord {
	t.Helper()
	return CreateTestBuild(t, pairs...).Seal(sequence)
}

// CreateNumberedCheckpoint builds a checkpoint with n generated leaves whose content
// depends on sequence, so different sequences have different roots
func CreateNumberedCheckpoint(t *testing.T, sequence uint64, n int) *checkpoint.CheckpointRecord {
	t.Helper()
	pairs := make([]string, 0, 2*n)
	for i := 0; i < n; i++ {
		pairs = append(pairs, fmt.Sprintf("file-%03d.txt", i), fmt.Sprintf("seq %d leaf %d", sequence, i))
	}
	return CreateTestCheckpoint(t, sequence, pairs...)
}
