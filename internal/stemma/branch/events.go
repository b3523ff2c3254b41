package branch

import (
	"gitlab.com/stemma-project/stemma/internal/stemma/graph"
)

// ChangeKind enumerates the head mutations a branch can undergo. The event
// surface is an explicit enumerated registry rather than a string-keyed
// emitter so that every event kind is spelled out in the type system.
type ChangeKind int

const (
	// ChangeAppend is emitted when commits are appended to the head, either
	// by a local edit or by merging another branch's commits.
	ChangeAppend ChangeKind = iota
	// ChangeReplace is emitted when a run of commits is replaced by an
	// equivalent squashed commit. The observable state does not change.
	ChangeReplace
	// ChangeRebase is emitted when the branch's divergent commits are
	// replayed onto another branch.
	ChangeRebase
	// ChangeRollback is emitted when the head is moved back to an ancestor.
	ChangeRollback
)

// String returns the kind's name.
func (k ChangeKind) String() string {
	switch k {
	case ChangeAppend:
		return "append"
	case ChangeReplace:
		return "replace"
	case ChangeRebase:
		return "rebase"
	case ChangeRollback:
		return "rollback"
	default:
		return "invalid"
	}
}

// ChangeEvent describes a head mutation. It is delivered to beforeChange
// listeners strictly before the head moves and to afterChange listeners
// strictly after; listeners never observe a transitional head.
type ChangeEvent[C any] struct {
	Kind ChangeKind
	// NewCommits are the commits added to the head's ancestry, oldest first.
	NewCommits []*graph.Commit[C]
	// RemovedCommits are the commits no longer part of the head's ancestry,
	// oldest first. The commit objects stay alive as long as the caller
	// references them.
	RemovedCommits []*graph.Commit[C]
	// Change is the net change of the mutation, or nil when the mutation is
	// state-neutral (such as a squash) or no net change is derivable.
	Change *C
}

type listenerEntry[T any] struct {
	id uint64
	fn func(T)
}

// listeners is a small registry of event callbacks with deterministic,
// subscription-ordered emission.
type listeners[T any] struct {
	nextID  uint64
	entries []listenerEntry[T]
}

func (l *listeners[T]) add(fn func(T)) func() {
	l.nextID++
	id := l.nextID
	l.entries = append(l.entries, listenerEntry[T]{id: id, fn: fn})

	return func() {
		for i, entry := range l.entries {
			if entry.id == id {
				l.entries = append(l.entries[:i], l.entries[i+1:]...)
				return
			}
		}
	}
}

// emit invokes all listeners registered at the time of the call; listeners
// added during dispatch only see subsequent events.
func (l *listeners[T]) emit(value T) {
	entries := make([]listenerEntry[T], len(l.entries))
	copy(entries, l.entries)
	for _, entry := range entries {
		entry.fn(value)
	}
}
