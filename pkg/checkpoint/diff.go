package checkpoint

import (
	"sort"

	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/types"
)

// DiffResult classifies how the leaf set changed between two checkpoints.
// Path lists are sorted lexically.
type DiffResult struct {
	Added          []string `json:"added"`
	Removed        []string `json:"removed"`
	Modified       []string `json:"modified"`
	UnchangedCount int      `json:"unchangedCount"`
}

// IsEmpty reports whether the two checkpoints hold identical leaf sets
func (d *DiffResult) IsEmpty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Modified) == 0
}

// Diff compares the leaves of a (older) and b (newer) by logical path and content
// hash. A nil record is treated as an empty checkpoint.
func Diff(a, b *CheckpointRecord) *DiffResult {
	before := leafDigests(a)
	after := leafDigests(b)

	result := &DiffResult{
		Added:    []string{},
		Removed:  []string{},
		Modified: []string{},
	}

	for path, digest := range after {
		prev, ok := before[path]
		switch {
		case !ok:
			result.Added = append(result.Added, path)
		case prev != digest:
			result.Modified = append(result.Modified, path)
		default:
			result.UnchangedCount++
		}
	}
	for path := range before {
		if _, ok := after[path]; !ok {
			result.Removed = append(result.Removed, path)
		}
	}

	sort.Strings(result.Added)
	sort.Strings(result.Removed)
	sort.Strings(result.Modified)
	return result
}

func leafDigests(r *CheckpointRecord) map[string]types.Digest {
	if r == nil {
		return map[string]types.Digest{}
	}
	out := make(map[string]types.Digest, len(r.Leaves))
	for _, leaf := range r.Leaves {
		out[leaf.LogicalPath] = leaf.ContentHash
	}
	return out
}
