package branch

import (
	"errors"
	"fmt"

	"gitlab.com/stemma-project/stemma/internal/stemma/graph"
)

// Transactor manages the nested transaction stack of a single branch.
// Transactions nest LIFO: an outer transaction stays in progress while inner
// ones commit or abort. Committing a transaction squashes all commits made
// since its start into one; aborting rolls the branch back and disposes every
// fork created during the transaction, including forks of forks.
//
// A branch has at most one transactor; NewTransactor returns the existing one
// when called again for the same branch.
type Transactor[C, E any] struct {
	branch *Branch[C, E]
	frames []*transactionFrame[C, E]
}

type transactionFrame[C, E any] struct {
	start        *graph.Commit[C]
	forks        []*Branch[C, E]
	unsubscribes []func()
}

func (f *transactionFrame[C, E]) stopWatching() {
	for _, unsubscribe := range f.unsubscribes {
		unsubscribe()
	}
	f.unsubscribes = nil
}

// NewTransactor returns the transactor of the given branch, creating it on
// first use.
func NewTransactor[C, E any](b *Branch[C, E]) *Transactor[C, E] {
	if b.transactor != nil {
		return b.transactor
	}

	t := &Transactor[C, E]{branch: b}
	b.transactor = t
	return t
}

// InProgress reports whether at least one transaction is open.
func (t *Transactor[C, E]) InProgress() bool {
	return len(t.frames) > 0
}

// Depth returns the current transaction nesting depth.
func (t *Transactor[C, E]) Depth() int {
	return len(t.frames)
}

// Begin opens a new transaction recording the current head as its start.
// Every branch forked off the transacted branch, or off such a fork, while
// the transaction is open is collected so that Abort can dispose it.
func (t *Transactor[C, E]) Begin() error {
	if t.branch.disposed {
		return ErrBranchDisposed
	}

	frame := &transactionFrame[C, E]{start: t.branch.head}
	t.watchForks(frame, t.branch)
	t.frames = append(t.frames, frame)

	return nil
}

func (t *Transactor[C, E]) watchForks(frame *transactionFrame[C, E], b *Branch[C, E]) {
	unsubscribe := b.OnFork(func(child *Branch[C, E]) {
		frame.forks = append(frame.forks, child)
		t.watchForks(frame, child)
	})
	frame.unsubscribes = append(frame.unsubscribes, unsubscribe)
}

// Commit closes the innermost transaction. All commits made since its start
// are removed from the head chain and replaced by a single commit carrying
// their composed change. A transaction without commits closes without
// squashing or emitting. The replacement is state-neutral, so the emitted
// replace event carries no net change.
func (t *Transactor[C, E]) Commit() error {
	if len(t.frames) == 0 {
		return ErrNoTransaction
	}

	b := t.branch
	if err := b.checkMutable(); err != nil {
		return err
	}

	frame := t.frames[len(t.frames)-1]
	t.frames = t.frames[:len(t.frames)-1]
	frame.stopWatching()

	startRevision := frame.start.Revision()
	target, path := graph.FindAncestorWithPath(b.head, func(c *graph.Commit[C]) bool {
		return c.Revision() == startRevision
	})
	if target == nil {
		return fmt.Errorf("transaction start %s: %w", startRevision, ErrMissingAncestor)
	}
	if len(path) == 0 {
		return nil
	}

	removed := make([]*graph.Commit[C], len(path))
	tagged := make([]graph.TaggedChange[C], len(path))
	for i, commit := range path {
		removed[len(path)-1-i] = commit
	}
	for i, commit := range removed {
		tagged[i] = commit.TaggedChange()
	}
	composed := b.family.Compose(tagged)

	squashed := graph.NewCommit(frame.start, b.mint(), composed, graph.KindDefault)
	b.mutate(ChangeEvent[C]{
		Kind:           ChangeReplace,
		NewCommits:     []*graph.Commit[C]{squashed},
		RemovedCommits: removed,
	}, squashed)

	if b.metrics != nil {
		b.metrics.transactionFinished("committed")
		b.metrics.commitApplied("squash", graph.KindDefault.String(), 1)
	}

	return nil
}

// Abort closes the innermost transaction, rolls the branch back to the
// transaction's start and disposes all forks collected during its lifetime.
func (t *Transactor[C, E]) Abort() error {
	if len(t.frames) == 0 {
		return ErrNoTransaction
	}

	b := t.branch
	if err := b.checkMutable(); err != nil {
		return err
	}

	frame := t.frames[len(t.frames)-1]
	t.frames = t.frames[:len(t.frames)-1]
	frame.stopWatching()

	if b.head != frame.start {
		if _, err := b.Rollback(frame.start.Revision()); err != nil {
			return fmt.Errorf("rolling back transaction: %w", err)
		}
	}

	for _, fork := range frame.forks {
		fork.Dispose()
	}

	if b.metrics != nil {
		b.metrics.transactionFinished("aborted")
	}

	return nil
}

// Run executes fn inside a transaction. The transaction commits when fn
// returns nil and aborts when fn returns an error or panics; the error or
// panic propagates to the caller after the branch state has been restored.
func (t *Transactor[C, E]) Run(fn func(editor E) error) error {
	if err := t.Begin(); err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			_ = t.Abort()
			panic(r)
		}
	}()

	if err := fn(t.branch.Editor()); err != nil {
		if abortErr := t.Abort(); abortErr != nil {
			return errors.Join(err, abortErr)
		}
		return err
	}

	return t.Commit()
}
