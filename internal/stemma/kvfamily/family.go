// Package kvfamily implements a small reference change family over a flat
// key/value tree: last-writer-wins sets plus guarded compare-and-set ops that
// concurrent edits can knock out during rebase. It exists to exercise the
// branch and rebase machinery in tests and in the replay tool; real tree
// change encodings plug into the same contract.
package kvfamily

import (
	"gitlab.com/stemma-project/stemma/internal/log"
	"gitlab.com/stemma-project/stemma/internal/stemma/branch"
	"gitlab.com/stemma-project/stemma/internal/stemma/graph"
)

// Branch is the branch type instantiated for this family.
type Branch = branch.Branch[Change, *Editor]

// Transactor is the transactor type instantiated for this family.
type Transactor = branch.Transactor[Change, *Editor]

// NewRoot mints an empty root commit to base a branch on.
func NewRoot(mint graph.MintFunc) *graph.Commit[Change] {
	return graph.NewCommit[Change](nil, mint(), Change{}, graph.KindDefault)
}

// NewBranch returns a branch over the key/value family headed at head.
func NewBranch(logger log.Logger, mint graph.MintFunc, head *graph.Commit[Change], opts ...branch.Option) *Branch {
	return branch.New[Change, *Editor](logger, New(), mint, head, opts...)
}

// Op is a single key update. Old records the value the key held when the op
// was authored; it is what Invert restores and what guarded rebasing checks.
type Op struct {
	Key string
	Old string
	New string
	// Guarded marks a compare-and-set op. Rebasing drops it when a
	// concurrent change moved Key away from Old.
	Guarded bool
}

// Change is an ordered list of ops applied oldest first.
type Change struct {
	Ops []Op
}

// IsEmpty reports whether the change carries no ops.
func (c Change) IsEmpty() bool {
	return len(c.Ops) == 0
}

// Family implements graph.ChangeFamily for key/value changes. The family is
// stateless: editors record the prior value the caller observed, so changes
// are self-contained and invertible without repair lookups.
type Family struct{}

// New returns the key/value change family.
func New() Family {
	return Family{}
}

// Compose flattens the changes into one by concatenating their ops in order.
func (f Family) Compose(changes []graph.TaggedChange[Change]) Change {
	var ops []Op
	for _, change := range changes {
		ops = append(ops, change.Change.Ops...)
	}
	return Change{Ops: ops}
}

// Invert reverses the commit's ops and swaps their old and new values.
// Inverses are plain sets: a guard that held when the original was authored
// says nothing about the state the inverse meets.
func (f Family) Invert(commit *graph.Commit[Change], isRollback bool, rev graph.RevisionTag) Change {
	ops := commit.Change().Ops
	inverted := make([]Op, len(ops))
	for i, op := range ops {
		inverted[len(ops)-1-i] = Op{Key: op.Key, Old: op.New, New: op.Old}
	}
	return Change{Ops: inverted}
}

// Rebase rewrites change as if it had been authored after over. For each key
// touched by over, the first op of change on that key has its Old re-based
// onto over's final value; a guarded op whose guard no longer holds is
// dropped. Unguarded ops win over concurrent writes (last writer wins).
func (f Family) Rebase(change Change, over graph.TaggedChange[Change]) Change {
	final := map[string]string{}
	for _, op := range over.Change.Ops {
		final[op.Key] = op.New
	}

	seen := map[string]bool{}
	ops := make([]Op, 0, len(change.Ops))
	for _, op := range change.Ops {
		value, touched := final[op.Key]
		if !touched || seen[op.Key] {
			ops = append(ops, op)
			continue
		}
		seen[op.Key] = true

		if op.Guarded && value != op.Old {
			continue
		}
		op.Old = value
		ops = append(ops, op)
	}

	return Change{Ops: ops}
}

// CanInvert reports whether the change has an inverse. Key/value changes
// always do.
func (f Family) CanInvert(change Change) bool {
	return true
}

// BuildEditor returns an editor handing each produced change to receiver.
func (f Family) BuildEditor(mint graph.MintFunc, receiver func(Change)) *Editor {
	return &Editor{receiver: receiver}
}
