package revertible_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gitlab.com/stemma-project/stemma/internal/stemma/branch"
	"gitlab.com/stemma-project/stemma/internal/stemma/graph"
	"gitlab.com/stemma-project/stemma/internal/stemma/kvfamily"
	"gitlab.com/stemma-project/stemma/internal/stemma/revertible"
	"gitlab.com/stemma-project/stemma/internal/testhelper"
)

type kvManager = revertible.Manager[kvfamily.Change, *kvfamily.Editor]
type kvRevertible = revertible.Revertible[kvfamily.Change, *kvfamily.Editor]
type kvFactory = revertible.Factory[kvfamily.Change, *kvfamily.Editor]

func setupManager(tb testing.TB) (*kvfamily.Branch, *kvfamily.View, *kvManager) {
	mint := graph.NewMinter().Mint
	b := kvfamily.NewBranch(testhelper.NewLogger(tb), mint, kvfamily.NewRoot(mint))

	view := kvfamily.NewView()
	view.Attach(b)

	manager := revertible.NewManager(testhelper.NewLogger(tb), b)
	tb.Cleanup(manager.Close)

	return b, view, manager
}

func set(b *kvfamily.Branch, view *kvfamily.View, key, value string) {
	b.Editor().Set(key, view.Get(key), value)
}

func TestManager_OnCommitApplied(t *testing.T) {
	t.Parallel()

	b, view, manager := setupManager(t)

	var metadatas []revertible.CommitMetadata
	var handles []*kvRevertible
	var stale kvFactory
	unsubscribe := manager.OnCommitApplied(func(metadata revertible.CommitMetadata, factory kvFactory) {
		metadatas = append(metadatas, metadata)
		stale = factory

		handle, err := factory()
		require.NoError(t, err)
		handles = append(handles, handle)
	})

	set(b, view, "x", "1")

	require.Len(t, metadatas, 1)
	require.Equal(t, b.Head().Revision(), metadatas[0].Revision)
	require.Equal(t, graph.KindDefault, metadatas[0].Kind)

	require.Len(t, handles, 1)
	require.Equal(t, b.Head().Revision(), handles[0].Revision())
	require.Equal(t, revertible.StatusValid, handles[0].Status())
	require.Equal(t, 1, manager.Len())

	t.Run("factory is invalid outside its notification", func(t *testing.T) {
		_, err := stale()
		require.ErrorIs(t, err, revertible.ErrOutsideNotification)
	})

	t.Run("unsubscribed listeners see nothing", func(t *testing.T) {
		unsubscribe()
		set(b, view, "x", "2")
		require.Len(t, metadatas, 1)
	})
}

func TestManager_sharedHandle(t *testing.T) {
	t.Parallel()

	b, view, manager := setupManager(t)

	var handles []*kvRevertible
	take := func(metadata revertible.CommitMetadata, factory kvFactory) {
		handle, err := factory()
		require.NoError(t, err)
		handles = append(handles, handle)
	}
	manager.OnCommitApplied(take)
	manager.OnCommitApplied(take)

	set(b, view, "x", "1")

	require.Len(t, handles, 2)
	require.Same(t, handles[0], handles[1], "a commit has at most one live handle")
	require.Equal(t, 1, manager.Len())
}

func TestManager_transactions(t *testing.T) {
	t.Parallel()

	b, view, manager := setupManager(t)
	transactor := branch.NewTransactor(b)

	var metadatas []revertible.CommitMetadata
	manager.OnCommitApplied(func(metadata revertible.CommitMetadata, factory kvFactory) {
		metadatas = append(metadatas, metadata)
	})

	require.NoError(t, transactor.Begin())
	set(b, view, "x", "1")
	set(b, view, "y", "2")
	require.Empty(t, metadatas, "interim commits never become revertible")

	require.NoError(t, transactor.Commit())
	require.Len(t, metadatas, 1, "the squashed commit does")
	require.Equal(t, b.Head().Revision(), metadatas[0].Revision)

	require.NoError(t, transactor.Begin())
	set(b, view, "z", "3")
	require.NoError(t, transactor.Abort())
	require.Len(t, metadatas, 1, "aborted transactions notify nothing")
}

type lockingFamily struct {
	kvfamily.Family
}

func (lockingFamily) CanInvert(change kvfamily.Change) bool {
	for _, op := range change.Ops {
		if op.Key == "locked" {
			return false
		}
	}
	return true
}

func TestManager_irrevocableChange(t *testing.T) {
	t.Parallel()

	mint := graph.NewMinter().Mint
	b := branch.New[kvfamily.Change, *kvfamily.Editor](
		testhelper.NewLogger(t), lockingFamily{}, mint, kvfamily.NewRoot(mint))

	manager := revertible.NewManager(testhelper.NewLogger(t), b)
	defer manager.Close()

	var factories []kvFactory
	manager.OnCommitApplied(func(metadata revertible.CommitMetadata, factory kvFactory) {
		factories = append(factories, factory)
	})

	b.Editor().Set("locked", "", "1")
	b.Editor().Set("x", "", "1")

	require.Len(t, factories, 2)
	require.Nil(t, factories[0], "a change without an inverse offers no factory")
	require.NotNil(t, factories[1])
}

func TestRevertible_Revert(t *testing.T) {
	t.Parallel()

	b, view, manager := setupManager(t)

	handles := map[graph.RevisionTag]*kvRevertible{}
	kinds := map[graph.RevisionTag]graph.CommitKind{}
	manager.OnCommitApplied(func(metadata revertible.CommitMetadata, factory kvFactory) {
		handle, err := factory()
		require.NoError(t, err)
		handles[metadata.Revision] = handle
		kinds[metadata.Revision] = metadata.Kind
	})

	set(b, view, "x", "1")
	target := b.Head().Revision()
	set(b, view, "y", "2")

	require.NoError(t, handles[target].Revert(false))

	undo := b.Head()
	require.Equal(t, graph.KindUndo, undo.Kind(), "reverting a default commit applies an undo")
	require.Equal(t, map[string]string{"y": "2"}, view.Snapshot(),
		"the inverse is rebased over the commits applied since")
	require.Equal(t, revertible.StatusValid, handles[target].Status())

	t.Run("reverting the undo applies a redo", func(t *testing.T) {
		require.Contains(t, handles, undo.Revision(), "the undo commit becomes revertible itself")
		require.Equal(t, graph.KindUndo, kinds[undo.Revision()])

		require.NoError(t, handles[undo.Revision()].Revert(true))
		require.Equal(t, graph.KindRedo, b.Head().Kind())
		require.Equal(t, map[string]string{"x": "1", "y": "2"}, view.Snapshot())
		require.Equal(t, revertible.StatusDisposed, handles[undo.Revision()].Status(),
			"reverting with release disposes the handle")
	})
}

func TestRevertible_Revert_duringTransaction(t *testing.T) {
	t.Parallel()

	b, view, manager := setupManager(t)
	transactor := branch.NewTransactor(b)

	var handle *kvRevertible
	manager.OnCommitApplied(func(metadata revertible.CommitMetadata, factory kvFactory) {
		var err error
		handle, err = factory()
		require.NoError(t, err)
	})

	set(b, view, "x", "1")

	require.NoError(t, transactor.Begin())
	require.ErrorIs(t, handle.Revert(false), revertible.ErrDuringTransaction)
	require.NoError(t, transactor.Abort())

	require.NoError(t, handle.Revert(false))
	require.Empty(t, view.Snapshot())
}

func TestRevertible_Dispose(t *testing.T) {
	t.Parallel()

	b, view, manager := setupManager(t)

	var handle *kvRevertible
	manager.OnCommitApplied(func(metadata revertible.CommitMetadata, factory kvFactory) {
		var err error
		handle, err = factory()
		require.NoError(t, err)
	})

	set(b, view, "x", "1")
	require.Equal(t, 1, manager.Len())

	require.NoError(t, handle.Dispose())
	require.Equal(t, revertible.StatusDisposed, handle.Status())
	require.Zero(t, manager.Len())

	require.ErrorIs(t, handle.Dispose(), revertible.ErrAlreadyDisposed)
	require.ErrorIs(t, handle.Revert(false), revertible.ErrAlreadyDisposed)
}

func TestManager_metrics(t *testing.T) {
	t.Parallel()

	mint := graph.NewMinter().Mint
	b := kvfamily.NewBranch(testhelper.NewLogger(t), mint, kvfamily.NewRoot(mint))
	view := kvfamily.NewView()
	view.Attach(b)

	metrics := revertible.NewMetrics()
	manager := revertible.NewManager(testhelper.NewLogger(t), b, revertible.WithMetrics(metrics))
	defer manager.Close()

	handles := map[graph.RevisionTag]*kvRevertible{}
	manager.OnCommitApplied(func(metadata revertible.CommitMetadata, factory kvFactory) {
		handle, err := factory()
		require.NoError(t, err)
		handles[metadata.Revision] = handle
	})

	set(b, view, "x", "1")
	target := b.Head().Revision()
	require.NoError(t, handles[target].Revert(false))

	testhelper.RequirePromMetrics(t, metrics, `
# HELP stemma_revertibles_pinned_total Number of commits pinned by revertible handles.
# TYPE stemma_revertibles_pinned_total counter
stemma_revertibles_pinned_total{kind="default"} 1
stemma_revertibles_pinned_total{kind="undo"} 1
`)
}

func TestManager_Close(t *testing.T) {
	t.Parallel()

	b, view, manager := setupManager(t)

	var handles []*kvRevertible
	manager.OnCommitApplied(func(metadata revertible.CommitMetadata, factory kvFactory) {
		handle, err := factory()
		require.NoError(t, err)
		handles = append(handles, handle)
	})

	set(b, view, "x", "1")
	set(b, view, "y", "2")
	require.Equal(t, 2, manager.Len())

	manager.Close()
	require.Zero(t, manager.Len())
	for _, handle := range handles {
		require.Equal(t, revertible.StatusDisposed, handle.Status())
	}

	set(b, view, "z", "3")
	require.Len(t, handles, 2, "a closed manager stops watching the branch")
}
