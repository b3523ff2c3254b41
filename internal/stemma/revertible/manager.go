package revertible

import (
	"errors"
	"fmt"

	"gitlab.com/stemma-project/stemma/internal/log"
	"gitlab.com/stemma-project/stemma/internal/stemma/branch"
	"gitlab.com/stemma-project/stemma/internal/stemma/graph"
)

var (
	// ErrAlreadyDisposed is returned when reverting or disposing a revertible
	// that has already been disposed.
	ErrAlreadyDisposed = errors.New("revertible is disposed")
	// ErrDuringTransaction is returned when reverting while a transaction is
	// in progress on the branch.
	ErrDuringTransaction = errors.New("cannot revert during an active transaction")
	// ErrOutsideNotification is returned when a revertible factory is invoked
	// outside the synchronous extent of the commitApplied notification that
	// delivered it.
	ErrOutsideNotification = errors.New("revertible factory invoked outside its notification")
)

// CommitMetadata describes the commit a commitApplied notification refers to.
type CommitMetadata struct {
	Revision graph.RevisionTag
	Kind     graph.CommitKind
}

// Factory constructs the revertible for a freshly applied commit. It is valid
// only within the synchronous extent of the commitApplied notification that
// delivered it; later invocations fail with ErrOutsideNotification. The
// factory is nil when the commit's change has no inverse.
type Factory[C, E any] func() (*Revertible[C, E], error)

// CommitAppliedFunc is invoked for every commit that becomes revertible.
type CommitAppliedFunc[C, E any] func(metadata CommitMetadata, factory Factory[C, E])

// Manager watches a branch for applied commits and hands out revertible
// handles for them. Each revertible pins the commit's ancestry via a
// dedicated fork so trimming cannot collect it, and is tracked in an explicit
// registry that is dropped on dispose.
//
// Commits applied while a transaction is in progress never become revertible
// individually; the squashed commit produced by the transaction's commit does.
type Manager[C, E any] struct {
	logger         log.Logger
	branch         *branch.Branch[C, E]
	metrics        *Metrics
	nextListenerID uint64
	listeners      []commitAppliedListener[C, E]
	entries        map[graph.RevisionTag]*Revertible[C, E]

	unsubscribe func()
}

// ManagerOption configures optional behaviour of a manager.
type ManagerOption func(*managerOptions)

type managerOptions struct {
	metrics *Metrics
}

// WithMetrics records the manager's pinned commits in the given metrics.
func WithMetrics(metrics *Metrics) ManagerOption {
	return func(opts *managerOptions) {
		opts.metrics = metrics
	}
}

type commitAppliedListener[C, E any] struct {
	id uint64
	fn CommitAppliedFunc[C, E]
}

// NewManager returns a manager attached to the given branch.
func NewManager[C, E any](logger log.Logger, b *branch.Branch[C, E], opts ...ManagerOption) *Manager[C, E] {
	var cfg managerOptions
	for _, opt := range opts {
		opt(&cfg)
	}

	m := &Manager[C, E]{
		logger:  logger,
		branch:  b,
		metrics: cfg.metrics,
		entries: map[graph.RevisionTag]*Revertible[C, E]{},
	}
	m.unsubscribe = b.OnAfterChange(m.handleAfterChange)
	return m
}

// OnCommitApplied registers fn to be notified of commits that can be made
// revertible. The returned function unsubscribes.
func (m *Manager[C, E]) OnCommitApplied(fn CommitAppliedFunc[C, E]) func() {
	m.nextListenerID++
	id := m.nextListenerID
	m.listeners = append(m.listeners, commitAppliedListener[C, E]{id: id, fn: fn})

	return func() {
		for i, listener := range m.listeners {
			if listener.id == id {
				m.listeners = append(m.listeners[:i], m.listeners[i+1:]...)
				return
			}
		}
	}
}

func (m *Manager[C, E]) handleAfterChange(event branch.ChangeEvent[C]) {
	if event.Kind != branch.ChangeAppend && event.Kind != branch.ChangeReplace {
		return
	}
	if m.branch.InTransaction() {
		return
	}
	if len(m.listeners) == 0 {
		return
	}

	checker, hasChecker := any(m.branch.Family()).(graph.InvertibilityChecker[C])

	for _, commit := range event.NewCommits {
		metadata := CommitMetadata{Revision: commit.Revision(), Kind: commit.Kind()}

		var factory Factory[C, E]
		inExtent := false
		if !hasChecker || checker.CanInvert(commit.Change()) {
			commit := commit
			inExtent = true
			factory = func() (*Revertible[C, E], error) {
				if !inExtent {
					return nil, ErrOutsideNotification
				}
				return m.pin(commit)
			}
		}

		for _, listener := range m.listeners {
			listener.fn(metadata, factory)
		}
		inExtent = false
	}
}

// pin forks the branch at the commit so the commit's ancestry stays reachable
// and registers the resulting handle.
func (m *Manager[C, E]) pin(commit *graph.Commit[C]) (*Revertible[C, E], error) {
	if existing, ok := m.entries[commit.Revision()]; ok {
		return existing, nil
	}

	pin, err := m.branch.ForkAt(commit)
	if err != nil {
		return nil, fmt.Errorf("pinning commit %s: %w", commit.Revision(), err)
	}

	r := &Revertible[C, E]{
		manager:  m,
		revision: commit.Revision(),
		pin:      pin,
	}
	m.entries[commit.Revision()] = r

	if m.metrics != nil {
		m.metrics.commitPinned(commit.Kind().String())
	}

	return r, nil
}

// Len returns the number of live revertibles.
func (m *Manager[C, E]) Len() int {
	return len(m.entries)
}

// Close detaches the manager from its branch and disposes all live
// revertibles.
func (m *Manager[C, E]) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}

	for _, entry := range m.entries {
		if entry.status == StatusValid {
			if err := entry.Dispose(); err != nil {
				m.logger.WithError(err).WithField("revision", entry.revision).Error("disposing revertible")
			}
		}
	}
	m.entries = map[graph.RevisionTag]*Revertible[C, E]{}
}
