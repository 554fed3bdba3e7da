package staticLeafSource

import (
	"context"
	"time"

	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/types"
)

// StaticLeafSource serves a fixed, in-memory list of leaves in the order given
type StaticLeafSource struct {
	leaves []*types.LeafContent
}

// NewStaticLeafSource copies the given leaves so later caller mutations are not observed
func NewStaticLeafSource(leaves []*types.LeafContent) *StaticLeafSource {
	return &StaticLeafSource{leaves: cloneLeaves(leaves)}
}

// NewStaticLeafSourceFromMap builds a source from path/content pairs. Paths are
// emitted in the order of the paths argument.
func NewStaticLeafSourceFromMap(paths []string, contents map[string][]byte, observedAt time.Time) *StaticLeafSource {
	leaves := make([]*types.LeafContent, 0, len(paths))
	for _, p := range paths {
		leaves = append(leaves, &types.LeafContent{
			LogicalPath: p,
			Content:     contents[p],
			ObservedAt:  observedAt,
		})
	}
	return NewStaticLeafSource(leaves)
}

func (s *StaticLeafSource) Leaves(ctx context.Context) ([]*types.LeafContent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return cloneLeaves(s.leaves), nil
}

func cloneLeaves(leaves []*types.LeafContent) []*types.LeafContent {
	out := make([]*types.LeafContent, len(leaves))
	for i, l := range leaves {
		out[i] = &types.LeafContent{
			LogicalPath: l.LogicalPath,
			Content:     append([]byte(nil), l.Content...),
			ObservedAt:  l.ObservedAt,
		}
	}
	return out
}
