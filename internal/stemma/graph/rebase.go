package graph

import (
	"errors"
)

// ErrUnrelatedHistories is returned when a rebase is attempted between
// branches that share no common ancestor.
var ErrUnrelatedHistories = errors.New("branches share no common ancestor")

// RebaseResult describes the outcome of RebaseBranch. All commit lists are
// ordered oldest first.
type RebaseResult[C any] struct {
	// NewHead is the replacement head for the rebased branch. It equals the
	// original source head when the rebase was a no-op.
	NewHead *Commit[C]
	// SourceChange is the net change the rebase applies to the source branch,
	// or nil when the source head did not move.
	SourceChange *C
	// SourceCommits are the original divergent source commits that are no
	// longer part of the new head's ancestry.
	SourceCommits []*Commit[C]
	// NewCommits are the rebased replacements of the surviving source
	// commits. They carry the original revisions of the commits they replace.
	NewCommits []*Commit[C]
	// DeletedSourceCommits are source commits whose revision already appeared
	// on the target path. They arrived via the target and collapse into zero
	// net commits; per-revision bookkeeping should re-point at the target's
	// copies.
	DeletedSourceCommits []*Commit[C]
	// TargetCommits are the divergent target commits now part of the new
	// head's ancestry.
	TargetCommits []*Commit[C]
}

// RebaseBranch rebases the chain ending at sourceHead onto the commit onto.
// The result is a pure function of the two chains and the change family's
// semantics: the common ancestor is the newest commit object shared by both
// chains, divergent commits are compared by revision, and no map iteration
// order leaks into the output.
//
// Divergent source commits are replayed oldest first using step-by-step
// sandwich rebasing: each commit's change is rebased over the inverses of its
// not-yet-rebased source predecessors (newest first), then over every
// divergent target change (oldest first), then over the already-rebased forms
// of its predecessors (oldest first). This makes no associativity assumption
// about the family's Rebase.
//
// Source commits whose revision already appears on the divergent target path
// were sequenced into the target independently. They are dropped rather than
// replayed, since the target already carries their copies, and are reported
// in DeletedSourceCommits so per-revision bookkeeping can re-point at the
// target's copies.
func RebaseBranch[C, E any](mint MintFunc, family ChangeFamily[C, E], sourceHead, onto *Commit[C]) (RebaseResult[C], error) {
	ancestor, sourcePath, targetPath := FindCommonAncestor(sourceHead, onto)
	if ancestor == nil {
		return RebaseResult[C]{}, ErrUnrelatedHistories
	}

	// The target contributed nothing new: the source head stays put. The
	// commits ahead of onto are reported as NewCommits so that a merge can
	// fast-forward over them.
	if len(targetPath) == 0 {
		return RebaseResult[C]{NewHead: sourceHead, NewCommits: sourcePath}, nil
	}

	// A divergent source commit is deleted iff its revision already appears
	// on the divergent target path. Such a commit can interleave freely with
	// commits that still need replaying.
	targetRevisions := make(map[RevisionTag]struct{}, len(targetPath))
	for _, c := range targetPath {
		targetRevisions[c.revision] = struct{}{}
	}
	var deletedCommits []*Commit[C]
	for _, c := range sourcePath {
		if _, ok := targetRevisions[c.revision]; ok {
			deletedCommits = append(deletedCommits, c)
		}
	}

	// Inverses of the divergent source commits, used both for sandwich
	// rebasing and for deriving the net source change. Deleted commits are
	// unwound like any other; the target path re-applies their copies.
	inverses := make([]TaggedChange[C], len(sourcePath))
	for i, c := range sourcePath {
		rev := mint()
		rollbackOf := c.revision
		inverses[i] = TaggedChange[C]{
			Change:     family.Invert(c, false, rev),
			Revision:   rev,
			RollbackOf: &rollbackOf,
		}
	}

	newHead := onto
	newCommits := make([]*Commit[C], 0, len(sourcePath)-len(deletedCommits))
	rebased := make([]TaggedChange[C], 0, len(sourcePath)-len(deletedCommits))
	for i, src := range sourcePath {
		if _, ok := targetRevisions[src.revision]; ok {
			continue
		}

		change := src.change
		for j := i - 1; j >= 0; j-- {
			change = family.Rebase(change, inverses[j])
		}
		for _, target := range targetPath {
			change = family.Rebase(change, target.TaggedChange())
		}
		for _, prev := range rebased {
			change = family.Rebase(change, prev)
		}

		newHead = NewCommit(newHead, src.revision, change, src.kind)
		newCommits = append(newCommits, newHead)
		rebased = append(rebased, newHead.TaggedChange())
	}

	// Net change seen by the source branch: unwind its divergent commits,
	// apply the target's, then the rebased replacements.
	steps := make([]TaggedChange[C], 0, 2*len(sourcePath)+len(targetPath))
	for i := len(inverses) - 1; i >= 0; i-- {
		steps = append(steps, inverses[i])
	}
	for _, target := range targetPath {
		steps = append(steps, target.TaggedChange())
	}
	steps = append(steps, rebased...)
	sourceChange := family.Compose(steps)

	return RebaseResult[C]{
		NewHead:              newHead,
		SourceChange:         &sourceChange,
		SourceCommits:        sourcePath,
		NewCommits:           newCommits,
		DeletedSourceCommits: deletedCommits,
		TargetCommits:        targetPath,
	}, nil
}
