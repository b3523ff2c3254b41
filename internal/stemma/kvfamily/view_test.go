package kvfamily_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gitlab.com/stemma-project/stemma/internal/log"
	"gitlab.com/stemma-project/stemma/internal/stemma/graph"
	"gitlab.com/stemma-project/stemma/internal/stemma/kvfamily"
)

func TestView(t *testing.T) {
	t.Parallel()

	mint := graph.NewMinter().Mint
	b := kvfamily.NewBranch(log.Discard(), mint, kvfamily.NewRoot(mint))

	view := kvfamily.NewView()
	view.Attach(b)

	editor := b.Editor()
	editor.Set("x", view.Get("x"), "1")
	editor.Set("y", view.Get("y"), "2")

	require.Equal(t, "1", view.Get("x"))
	require.Equal(t, map[string]string{"x": "1", "y": "2"}, view.Snapshot())
	require.Equal(t, 2, view.Len())

	t.Run("setting the empty string deletes the key", func(t *testing.T) {
		editor.Set("y", view.Get("y"), "")
		require.Equal(t, map[string]string{"x": "1"}, view.Snapshot())
	})

	t.Run("detached views stop following the branch", func(t *testing.T) {
		view.Detach()
		editor.Set("x", view.Get("x"), "9")
		require.Equal(t, "1", view.Get("x"), "state is frozen at the detach point")
	})
}

func TestView_fork(t *testing.T) {
	t.Parallel()

	mint := graph.NewMinter().Mint
	b := kvfamily.NewBranch(log.Discard(), mint, kvfamily.NewRoot(mint))

	view := kvfamily.NewView()
	view.Attach(b)
	b.Editor().Set("x", view.Get("x"), "1")

	fork, err := b.Fork()
	require.NoError(t, err)

	forkView := kvfamily.NewViewFrom(view.Snapshot())
	forkView.Attach(fork)
	require.Equal(t, view.Snapshot(), forkView.Snapshot(), "fork views start from the parent's state")

	fork.Editor().Set("x", forkView.Get("x"), "2")
	require.Equal(t, "2", forkView.Get("x"))
	require.Equal(t, "1", view.Get("x"), "fork edits do not leak into the parent view")
}
