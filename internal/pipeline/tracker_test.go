package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTracker_CancelOnce(t *testing.T) {
	tr := NewTracker()
	ctx, cancel := context.WithCancel(context.Background())
	tr.Register("p1", cancel)

	require.Equal(t, []string{"p1"}, tr.Active())
	require.True(t, tr.Cancel("p1"))
	require.Error(t, ctx.Err())

	require.False(t, tr.Cancel("p1"))
	require.False(t, tr.Cancel("unknown"))
	require.Empty(t, tr.Active())
}

func TestTracker_RemoveAfterCancelReportsRace(t *testing.T) {
	tr := NewTracker()
	_, cancel := context.WithCancel(context.Background())
	defer cancel()

	tr.Register("p1", cancel)
	require.True(t, tr.Remove("p1"))
	require.False(t, tr.Cancel("p1"), "finished processes are no longer cancellable")

	tr.Register("p2", cancel)
	require.True(t, tr.Cancel("p2"))
	require.False(t, tr.Remove("p2"), "cancel won the race")
}
