package staticLeafSource

import (
	"context"
	"testing"
	"time"

	"github.com/Layr-Labs/merkle-checkpoint-go/pkg/types"
	"github.com/stretchr/testify/require"
)

func TestStaticLeafSource_PreservesOrder(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	src := NewStaticLeafSourceFromMap(
		[]string{"b.txt", "a.txt"},
		map[string][]byte{"a.txt": []byte("hello"), "b.txt": []byte("world")},
		now,
	)

	leaves, err := src.Leaves(context.Background())
	require.NoError(t, err)
	require.Len(t, leaves, 2)
	require.Equal(t, "b.txt", leaves[0].LogicalPath)
	require.Equal(t, []byte("world"), leaves[0].Content)
	require.Equal(t, "a.txt", leaves[1].LogicalPath)
	require.Equal(t, now, leaves[1].ObservedAt)
}

func TestStaticLeafSource_IsolatedFromMutation(t *testing.T) {
	content := []byte("hello")
	src := NewStaticLeafSource([]*types.LeafContent{{LogicalPath: "a.txt", Content: content}})
	content[0] = 'j'

	leaves, err := src.Leaves(context.Background())
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), leaves[0].Content)

	leaves[0].Content[0] = 'y'
	again, err := src.Leaves(context.Background())
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), again[0].Content)
}

func TestStaticLeafSource_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewStaticLeafSource(nil).Leaves(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
