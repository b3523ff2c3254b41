package trim

import (
	"sync"

	"gitlab.com/stemma-project/stemma/internal/stemma/graph"
)

// Event describes a contiguous ancestry prefix that has been dropped from the
// commit graph. Consumers keeping out-of-band state keyed by revision must
// evict entries for the dropped revisions and for the new tail itself, since
// nothing can walk backwards past the tail anymore.
type Event struct {
	// Revisions are the dropped revisions, oldest first.
	Revisions []graph.RevisionTag
	// NewTail is the revision of the oldest surviving commit.
	NewTail graph.RevisionTag
}

type subscriber struct {
	id uint64
	fn func(Event)
}

// Notifier fans trimming events out to subscribers. Subscribers are invoked
// in subscription order.
type Notifier struct {
	mu     sync.Mutex
	nextID uint64
	subs   []subscriber
}

// NewNotifier returns an empty notifier.
func NewNotifier() *Notifier {
	return &Notifier{}
}

// Subscribe registers fn to be invoked on every event. The returned function
// removes the subscription and is safe to call more than once.
func (n *Notifier) Subscribe(fn func(Event)) func() {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.nextID++
	id := n.nextID
	n.subs = append(n.subs, subscriber{id: id, fn: fn})

	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()

		for i, sub := range n.subs {
			if sub.id == id {
				n.subs = append(n.subs[:i], n.subs[i+1:]...)
				return
			}
		}
	}
}

// Notify delivers the event to all current subscribers.
func (n *Notifier) Notify(event Event) {
	n.mu.Lock()
	subs := make([]subscriber, len(n.subs))
	copy(subs, n.subs)
	n.mu.Unlock()

	for _, sub := range subs {
		sub.fn(event)
	}
}
