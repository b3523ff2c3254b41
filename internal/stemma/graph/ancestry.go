package graph

import "slices"

// FindAncestor walks parent pointers from start until predicate matches,
// returning the matching commit or nil when the chain is exhausted. The walk
// is O(depth) and visits each commit exactly once.
func FindAncestor[C any](start *Commit[C], predicate func(*Commit[C]) bool) *Commit[C] {
	for c := start; c != nil; c = c.parent {
		if predicate(c) {
			return c
		}
	}
	return nil
}

// FindAncestorWithPath is FindAncestor additionally accumulating the commits
// visited before the match, in child-to-parent order. The matching commit is
// not part of the path. When no ancestor matches, the returned path covers the
// entire chain.
func FindAncestorWithPath[C any](start *Commit[C], predicate func(*Commit[C]) bool) (*Commit[C], []*Commit[C]) {
	var path []*Commit[C]
	for c := start; c != nil; c = c.parent {
		if predicate(c) {
			return c, path
		}
		path = append(path, c)
	}
	return nil, path
}

// FindCommonAncestor returns the lowest common ancestor of a and b together
// with the divergent path on each side, oldest first and ancestor-exclusive.
// All return values are nil when the histories are unrelated.
//
// The ancestor is the newest commit present on both chains as the same object.
// Matching by identity rather than revision matters: a rebase rebuilds commits
// under their original revisions, so a revision can be carried by two distinct
// commits on two chains without those commits sharing any history below.
func FindCommonAncestor[C any](a, b *Commit[C]) (*Commit[C], []*Commit[C], []*Commit[C]) {
	bIndex := map[*Commit[C]]int{}
	var bChain []*Commit[C]
	for c := b; c != nil; c = c.parent {
		bIndex[c] = len(bChain)
		bChain = append(bChain, c)
	}

	ancestor, aPath := FindAncestorWithPath(a, func(c *Commit[C]) bool {
		_, ok := bIndex[c]
		return ok
	})
	if ancestor == nil {
		return nil, nil, nil
	}

	bPath := slices.Clone(bChain[:bIndex[ancestor]])
	slices.Reverse(aPath)
	slices.Reverse(bPath)

	return ancestor, aPath, bPath
}

// TrimAncestry drops newTail's entire ancestry by nulling its parent link,
// allowing earlier commits to be collected while newTail and its descendants
// survive. It returns the dropped revisions, oldest first. This is the single
// sanctioned mutation of a commit.
func TrimAncestry[C any](newTail *Commit[C]) []RevisionTag {
	var dropped []RevisionTag
	for c := newTail.parent; c != nil; c = c.parent {
		dropped = append(dropped, c.revision)
	}
	slices.Reverse(dropped)
	newTail.parent = nil
	return dropped
}
