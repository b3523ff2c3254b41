package branch

import (
	"errors"
	"fmt"
	"time"

	"gitlab.com/stemma-project/stemma/internal/log"
	"gitlab.com/stemma-project/stemma/internal/stemma/graph"
	"gitlab.com/stemma-project/stemma/internal/stemma/trim"
)

var (
	// ErrBranchDisposed is returned when an operation is attempted on a
	// disposed branch.
	ErrBranchDisposed = errors.New("branch is disposed")
	// ErrReentrantMutation is returned when an event listener attempts to
	// mutate the branch that is being mutated. Listeners wanting to edit in
	// response to an event must defer the edit, typically via a fork.
	ErrReentrantMutation = errors.New("re-entrant branch mutation during event dispatch")
	// ErrTransactionInProgress is returned when an operation requires that no
	// transaction is in progress on the involved branches.
	ErrTransactionInProgress = errors.New("transaction in progress")
	// ErrNoTransaction is returned when committing or aborting a transaction
	// while none is in progress.
	ErrNoTransaction = errors.New("no transaction in progress")
	// ErrMissingAncestor is returned when a commit expected on the branch's
	// ancestry cannot be found there.
	ErrMissingAncestor = errors.New("commit not found on branch ancestry")
)

type options struct {
	metrics    *Metrics
	trimSource *trim.Notifier
}

// Option configures optional behaviour of a branch.
type Option func(*options)

// WithMetrics records the branch's operations in the given metrics.
func WithMetrics(metrics *Metrics) Option {
	return func(opts *options) {
		opts.metrics = metrics
	}
}

// WithTrimmingSource subscribes the branch to a trimming notifier. Trimming
// events are re-emitted to the branch's own ancestryTrimmed listeners until
// the branch is disposed.
func WithTrimmingSource(source *trim.Notifier) Option {
	return func(opts *options) {
		opts.trimSource = source
	}
}

// Branch is a mutable head pointer over the immutable commit graph. All
// mutations go through the branch's own methods; forks share ancestor commits
// by reference but never share head state. Branches are not safe for
// concurrent use; the core runs single-threaded and all operations complete
// synchronously.
type Branch[C, E any] struct {
	logger  log.Logger
	family  graph.ChangeFamily[C, E]
	mint    graph.MintFunc
	head    *graph.Commit[C]
	editor  E
	metrics *Metrics

	transactor *Transactor[C, E]

	beforeChange listeners[ChangeEvent[C]]
	afterChange  listeners[ChangeEvent[C]]
	forkEvent    listeners[*Branch[C, E]]
	disposeEvent listeners[struct{}]
	trimEvent    listeners[trim.Event]

	unsubscribeTrim func()
	disposed        bool
	mutating        bool
}

// New returns a branch headed at head. Revisions of new commits are minted by
// mint; the branch never generates revisions itself.
func New[C, E any](logger log.Logger, family graph.ChangeFamily[C, E], mint graph.MintFunc, head *graph.Commit[C], opts ...Option) *Branch[C, E] {
	var cfg options
	for _, opt := range opts {
		opt(&cfg)
	}

	b := &Branch[C, E]{
		logger:  logger,
		family:  family,
		mint:    mint,
		head:    head,
		metrics: cfg.metrics,
	}
	b.editor = family.BuildEditor(mint, func(change C) {
		if _, err := b.Apply(change, graph.KindDefault); err != nil {
			b.logger.WithError(err).Error("applying editor change")
		}
	})

	if cfg.trimSource != nil {
		b.unsubscribeTrim = cfg.trimSource.Subscribe(func(event trim.Event) {
			b.trimEvent.emit(event)
		})
	}

	return b
}

// Head returns the branch's most recent commit.
func (b *Branch[C, E]) Head() *graph.Commit[C] {
	return b.head
}

// Family returns the change family the branch operates over.
func (b *Branch[C, E]) Family() graph.ChangeFamily[C, E] {
	return b.family
}

// Mint returns the branch's revision minting function.
func (b *Branch[C, E]) Mint() graph.MintFunc {
	return b.mint
}

// Editor returns the branch's editor. Changes described through the editor
// are applied to the branch as they are produced.
func (b *Branch[C, E]) Editor() E {
	return b.editor
}

// IsDisposed reports whether the branch has been disposed.
func (b *Branch[C, E]) IsDisposed() bool {
	return b.disposed
}

// InTransaction reports whether a transactor has an open transaction on this
// branch.
func (b *Branch[C, E]) InTransaction() bool {
	return b.transactor != nil && b.transactor.InProgress()
}

// OnBeforeChange registers a listener invoked with the pending mutation
// strictly before the head moves. The returned function unsubscribes.
func (b *Branch[C, E]) OnBeforeChange(fn func(ChangeEvent[C])) func() {
	return b.beforeChange.add(fn)
}

// OnAfterChange registers a listener invoked strictly after the head moved.
// The returned function unsubscribes.
func (b *Branch[C, E]) OnAfterChange(fn func(ChangeEvent[C])) func() {
	return b.afterChange.add(fn)
}

// OnFork registers a listener invoked with every branch forked off this one.
// The returned function unsubscribes.
func (b *Branch[C, E]) OnFork(fn func(*Branch[C, E])) func() {
	return b.forkEvent.add(fn)
}

// OnDispose registers a listener invoked once when the branch is disposed.
// The returned function unsubscribes.
func (b *Branch[C, E]) OnDispose(fn func()) func() {
	return b.disposeEvent.add(func(struct{}) { fn() })
}

// OnAncestryTrimmed registers a listener for trimming events forwarded from
// the branch's trimming source. The returned function unsubscribes.
func (b *Branch[C, E]) OnAncestryTrimmed(fn func(trim.Event)) func() {
	return b.trimEvent.add(fn)
}

func (b *Branch[C, E]) checkMutable() error {
	if b.disposed {
		return ErrBranchDisposed
	}
	if b.mutating {
		return ErrReentrantMutation
	}
	return nil
}

// mutate emits the beforeChange event, moves the head and emits the
// afterChange event. All change-family computation must have happened before
// this point so that a failing family never leaves the head half-moved.
func (b *Branch[C, E]) mutate(event ChangeEvent[C], newHead *graph.Commit[C]) {
	b.mutating = true
	defer func() { b.mutating = false }()

	b.beforeChange.emit(event)
	b.head = newHead
	b.afterChange.emit(event)
}

// Apply appends a new commit carrying change as a child of the current head
// and returns it.
func (b *Branch[C, E]) Apply(change C, kind graph.CommitKind) (*graph.Commit[C], error) {
	if err := b.checkMutable(); err != nil {
		return nil, err
	}

	commit := graph.NewCommit(b.head, b.mint(), change, kind)
	b.mutate(ChangeEvent[C]{
		Kind:       ChangeAppend,
		NewCommits: []*graph.Commit[C]{commit},
		Change:     &change,
	}, commit)

	if b.metrics != nil {
		b.metrics.commitApplied("apply", kind.String(), 1)
	}

	return commit, nil
}

// Fork creates an independent branch headed at this branch's current head.
// Ancestry is shared by reference; no commits are copied.
func (b *Branch[C, E]) Fork() (*Branch[C, E], error) {
	return b.ForkAt(b.head)
}

// ForkAt creates an independent branch headed at the given commit, which must
// be on this branch's ancestry. Forking is permitted during event dispatch;
// it does not mutate this branch's head.
func (b *Branch[C, E]) ForkAt(commit *graph.Commit[C]) (*Branch[C, E], error) {
	if b.disposed {
		return nil, ErrBranchDisposed
	}
	if graph.FindAncestor(b.head, func(c *graph.Commit[C]) bool { return c == commit }) == nil {
		return nil, fmt.Errorf("fork point %s: %w", commit.Revision(), ErrMissingAncestor)
	}

	child := &Branch[C, E]{
		logger:  b.logger,
		family:  b.family,
		mint:    b.mint,
		head:    commit,
		metrics: b.metrics,
	}
	child.editor = b.family.BuildEditor(b.mint, func(change C) {
		if _, err := child.Apply(change, graph.KindDefault); err != nil {
			child.logger.WithError(err).Error("applying editor change")
		}
	})

	b.forkEvent.emit(child)

	return child, nil
}

// RebaseOnto rebases this branch's divergent commits onto the target branch,
// up to the commit upTo on the target (nil means the target's head). Returns
// nil without mutating or emitting when there is no divergence.
func (b *Branch[C, E]) RebaseOnto(target *Branch[C, E], upTo *graph.Commit[C]) (*graph.RebaseResult[C], error) {
	if err := b.checkMutable(); err != nil {
		return nil, err
	}
	if b.InTransaction() {
		return nil, ErrTransactionInProgress
	}

	onto := upTo
	if onto == nil {
		onto = target.head
	}
	if b.head == onto {
		return nil, nil
	}

	started := time.Now()
	result, err := graph.RebaseBranch(b.mint, b.family, b.head, onto)
	if err != nil {
		return nil, fmt.Errorf("rebase branch: %w", err)
	}
	if result.NewHead == b.head {
		return nil, nil
	}

	newCommits := make([]*graph.Commit[C], 0, len(result.TargetCommits)+len(result.NewCommits))
	newCommits = append(newCommits, result.TargetCommits...)
	newCommits = append(newCommits, result.NewCommits...)

	b.mutate(ChangeEvent[C]{
		Kind:           ChangeRebase,
		NewCommits:     newCommits,
		RemovedCommits: result.SourceCommits,
		Change:         result.SourceChange,
	}, result.NewHead)

	if b.metrics != nil {
		b.metrics.observeRebase("rebase", time.Since(started))
		b.metrics.commitApplied("rebase", graph.KindDefault.String(), len(result.NewCommits))
	}
	b.logger.WithFields(log.Fields{
		"source_commits":  len(result.SourceCommits),
		"target_commits":  len(result.TargetCommits),
		"deleted_commits": len(result.DeletedSourceCommits),
	}).Debug("branch rebased")

	return &result, nil
}

// Merge rebases the other branch's divergent commits onto this branch's head
// and appends them, reporting the full set as one net change. Returns nil
// without mutating or emitting when other is this branch or there is no
// divergence. The other branch is left untouched.
func (b *Branch[C, E]) Merge(other *Branch[C, E]) (*graph.RebaseResult[C], error) {
	if other == b {
		return nil, nil
	}
	if err := b.checkMutable(); err != nil {
		return nil, err
	}
	if other.disposed {
		return nil, fmt.Errorf("merge source: %w", ErrBranchDisposed)
	}
	if b.InTransaction() || other.InTransaction() {
		return nil, ErrTransactionInProgress
	}

	started := time.Now()
	result, err := graph.RebaseBranch(b.mint, b.family, other.head, b.head)
	if err != nil {
		return nil, fmt.Errorf("rebase merged branch: %w", err)
	}
	if result.NewHead == b.head || len(result.NewCommits) == 0 {
		return nil, nil
	}

	tagged := make([]graph.TaggedChange[C], len(result.NewCommits))
	for i, commit := range result.NewCommits {
		tagged[i] = commit.TaggedChange()
	}
	net := b.family.Compose(tagged)

	b.mutate(ChangeEvent[C]{
		Kind:       ChangeAppend,
		NewCommits: result.NewCommits,
		Change:     &net,
	}, result.NewHead)

	if b.metrics != nil {
		b.metrics.observeRebase("merge", time.Since(started))
		b.metrics.commitApplied("merge", graph.KindDefault.String(), len(result.NewCommits))
	}

	return &result, nil
}

// Rollback moves the head back to the commit with the given revision, which
// must be on the branch's ancestry. The rolled-back commits are returned
// oldest first, and the composed inverse of their changes is reported on the
// rollback event so that derived state can be unwound.
func (b *Branch[C, E]) Rollback(target graph.RevisionTag) ([]*graph.Commit[C], error) {
	if err := b.checkMutable(); err != nil {
		return nil, err
	}

	targetCommit, path := graph.FindAncestorWithPath(b.head, func(c *graph.Commit[C]) bool {
		return c.Revision() == target
	})
	if targetCommit == nil {
		return nil, fmt.Errorf("rollback to revision %s: %w", target, ErrMissingAncestor)
	}
	if len(path) == 0 {
		return nil, nil
	}

	// path is newest first, which is the order the inverses compose in.
	inverses := make([]graph.TaggedChange[C], 0, len(path))
	for _, commit := range path {
		rev := b.mint()
		rollbackOf := commit.Revision()
		inverses = append(inverses, graph.TaggedChange[C]{
			Change:     b.family.Invert(commit, true, rev),
			Revision:   rev,
			RollbackOf: &rollbackOf,
		})
	}
	net := b.family.Compose(inverses)

	removed := make([]*graph.Commit[C], len(path))
	for i, commit := range path {
		removed[len(path)-1-i] = commit
	}

	b.mutate(ChangeEvent[C]{
		Kind:           ChangeRollback,
		RemovedCommits: removed,
		Change:         &net,
	}, targetCommit)

	if b.metrics != nil {
		b.metrics.commitApplied("rollback", graph.KindDefault.String(), 0)
	}

	return removed, nil
}

// Dispose marks the branch disposed, detaches it from its trimming source and
// emits the dispose event. Repeated calls are no-ops. All mutating operations
// on a disposed branch fail fast.
func (b *Branch[C, E]) Dispose() {
	if b.disposed {
		return
	}
	b.disposed = true

	if b.unsubscribeTrim != nil {
		b.unsubscribeTrim()
		b.unsubscribeTrim = nil
	}

	b.disposeEvent.emit(struct{}{})
}
