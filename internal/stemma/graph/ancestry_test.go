package graph_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gitlab.com/stemma-project/stemma/internal/stemma/graph"
)

// chain appends count commits below parent and returns them oldest first.
func chain(mint graph.MintFunc, parent *graph.Commit[string], changes ...string) []*graph.Commit[string] {
	commits := make([]*graph.Commit[string], 0, len(changes))
	for _, change := range changes {
		parent = graph.NewCommit(parent, mint(), change, graph.KindDefault)
		commits = append(commits, parent)
	}
	return commits
}

func TestFindAncestor(t *testing.T) {
	t.Parallel()

	mint := graph.NewMinter().Mint
	commits := chain(mint, nil, "root", "a", "b", "c")
	head := commits[len(commits)-1]

	require.Equal(t, commits[1], graph.FindAncestor(head, func(c *graph.Commit[string]) bool {
		return c.Change() == "a"
	}))
	require.Equal(t, head, graph.FindAncestor(head, func(c *graph.Commit[string]) bool {
		return true
	}), "search includes the start commit")
	require.Nil(t, graph.FindAncestor(head, func(c *graph.Commit[string]) bool {
		return false
	}))
}

func TestFindAncestorWithPath(t *testing.T) {
	t.Parallel()

	mint := graph.NewMinter().Mint
	commits := chain(mint, nil, "root", "a", "b", "c")
	head := commits[3]

	ancestor, path := graph.FindAncestorWithPath(head, func(c *graph.Commit[string]) bool {
		return c == commits[1]
	})
	require.Equal(t, commits[1], ancestor)
	require.Equal(t, []*graph.Commit[string]{commits[3], commits[2]}, path, "path is newest first and excludes the match")

	ancestor, path = graph.FindAncestorWithPath(head, func(c *graph.Commit[string]) bool {
		return false
	})
	require.Nil(t, ancestor)
	require.Len(t, path, 4, "a missed search covers the whole chain")
}

func TestFindCommonAncestor(t *testing.T) {
	t.Parallel()

	mint := graph.NewMinter().Mint

	shared := chain(mint, nil, "root", "common")
	base := shared[1]
	aCommits := chain(mint, base, "a1", "a2")
	bCommits := chain(mint, base, "b1")

	ancestor, aPath, bPath := graph.FindCommonAncestor(aCommits[1], bCommits[0])
	require.Equal(t, base, ancestor)
	require.Equal(t, aCommits, aPath, "divergent commits are reported oldest first")
	require.Equal(t, bCommits, bPath)

	t.Run("one side is an ancestor of the other", func(t *testing.T) {
		ancestor, aPath, bPath := graph.FindCommonAncestor(aCommits[1], base)
		require.Equal(t, base, ancestor)
		require.Equal(t, aCommits, aPath)
		require.Empty(t, bPath)
	})

	t.Run("rebuilt commit under the same revision is not shared history", func(t *testing.T) {
		rebuilt := graph.NewCommit(bCommits[0], aCommits[0].Revision(), aCommits[0].Change(), aCommits[0].Kind())

		ancestor, aPath, bPath := graph.FindCommonAncestor(aCommits[1], rebuilt)
		require.Equal(t, base, ancestor, "a revision match without shared ancestry does not count")
		require.Equal(t, aCommits, aPath)
		require.Equal(t, []*graph.Commit[string]{bCommits[0], rebuilt}, bPath)
	})

	t.Run("unrelated histories", func(t *testing.T) {
		other := chain(mint, nil, "other")
		ancestor, aPath, bPath := graph.FindCommonAncestor(aCommits[1], other[0])
		require.Nil(t, ancestor)
		require.Nil(t, aPath)
		require.Nil(t, bPath)
	})
}

func TestTrimAncestry(t *testing.T) {
	t.Parallel()

	mint := graph.NewMinter().Mint
	commits := chain(mint, nil, "root", "a", "b", "c")

	dropped := graph.TrimAncestry(commits[2])
	require.Equal(t, []graph.RevisionTag{commits[0].Revision(), commits[1].Revision()}, dropped)
	require.Nil(t, commits[2].Parent(), "the new tail has no ancestry left")
	require.Equal(t, commits[2], commits[3].Parent(), "descendants of the new tail survive")

	require.Empty(t, graph.TrimAncestry(commits[2]), "trimming a tail again drops nothing")
}
