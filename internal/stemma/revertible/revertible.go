package revertible

import (
	"fmt"

	"gitlab.com/stemma-project/stemma/internal/stemma/branch"
	"gitlab.com/stemma-project/stemma/internal/stemma/graph"
)

// Status is the lifecycle state of a revertible.
type Status int

const (
	// StatusValid means the revertible can still be reverted or disposed.
	StatusValid Status = iota
	// StatusDisposed is terminal; any further operation fails.
	StatusDisposed
)

// String returns the status' name.
func (s Status) String() string {
	switch s {
	case StatusValid:
		return "valid"
	case StatusDisposed:
		return "disposed"
	default:
		return "invalid"
	}
}

// Revertible is an externally held handle that can invert a specific past
// commit and reapply the inverse to the branch. The handle keeps a dedicated
// fork pinned at the commit so its ancestry survives trimming for as long as
// the handle is alive.
type Revertible[C, E any] struct {
	manager  *Manager[C, E]
	revision graph.RevisionTag
	pin      *branch.Branch[C, E]
	status   Status
}

// Status returns the revertible's lifecycle state.
func (r *Revertible[C, E]) Status() Status {
	return r.status
}

// Revision returns the revision of the commit this handle reverts.
func (r *Revertible[C, E]) Revision() graph.RevisionTag {
	return r.revision
}

// Revert inverts the handle's commit, rebases the inverse forward over every
// commit applied since, and applies the result to the branch. The applied
// commit's kind alternates: reverting a default or redo commit applies an
// undo, reverting an undo applies a redo. When release is set the handle is
// disposed afterwards.
func (r *Revertible[C, E]) Revert(release bool) error {
	if r.status == StatusDisposed {
		return ErrAlreadyDisposed
	}

	b := r.manager.branch
	if b.InTransaction() {
		return ErrDuringTransaction
	}

	// Locate the commit's current form on the branch. A rebase replaces
	// commit objects but preserves their revisions, so the walk goes by
	// revision rather than identity.
	target, path := graph.FindAncestorWithPath(b.Head(), func(c *graph.Commit[C]) bool {
		return c.Revision() == r.revision
	})
	if target == nil {
		return fmt.Errorf("reverting revision %s: %w", r.revision, branch.ErrMissingAncestor)
	}

	family := b.Family()
	mint := b.Mint()

	inverse := family.Invert(target, false, mint())

	// Rebase the inverse over the commits applied since, oldest first.
	for i := len(path) - 1; i >= 0; i-- {
		inverse = family.Rebase(inverse, path[i].TaggedChange())
	}

	kind := graph.KindUndo
	if target.Kind() == graph.KindUndo {
		kind = graph.KindRedo
	}

	if _, err := b.Apply(inverse, kind); err != nil {
		return fmt.Errorf("applying revert of %s: %w", r.revision, err)
	}

	if release {
		return r.Dispose()
	}
	return nil
}

// Dispose releases the handle and its pinned fork. Disposing twice fails.
func (r *Revertible[C, E]) Dispose() error {
	if r.status == StatusDisposed {
		return ErrAlreadyDisposed
	}
	r.status = StatusDisposed

	r.pin.Dispose()
	delete(r.manager.entries, r.revision)

	return nil
}
