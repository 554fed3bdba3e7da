package leafSource

import (
	"context"
	"errors"
	"fmt"

	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/types"
)

// ErrLeafRead is matched by every LeafReadError
var ErrLeafRead = errors.New("leaf content unavailable")

// LeafReadError reports that a leaf's content could not be captured. It is fatal for
// the checkpoint being built: a leaf is never silently dropped from a snapshot.
type LeafReadError struct {
	// Path is the logical path of the failing leaf, empty if the source failed before
	// any leaf could be identified
	Path string
	Err  error
}

func (e *LeafReadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("failed to read leaves: %v", e.Err)
	}
	return fmt.Sprintf("failed to read leaf %q: %v", e.Path, e.Err)
}

func (e *LeafReadError) Unwrap() error {
	return e.Err
}

func (e *LeafReadError) Is(target error) bool {
	return target == ErrLeafRead
}

// ILeafSource supplies the ordered content of one snapshot.
//
// Implementations must return every leaf fully materialised, in a deterministic order
// that does not change between calls for unchanged content.
type ILeafSource interface {
	Leaves(ctx context.Context) ([]*types.LeafContent, error)
}
