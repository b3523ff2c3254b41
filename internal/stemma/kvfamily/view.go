package kvfamily

import (
	"gitlab.com/stemma-project/stemma/internal/stemma/branch"
)

// View is a minimal checkout over a branch: it folds the net change of every
// head mutation into a flat key/value state. The usual wiring is
//
//	view := kvfamily.NewView()
//	b := branch.New(logger, kvfamily.New(), mint, root)
//	view.Attach(b)
//
// Edits read the prior value through the view:
//
//	b.Editor().Set("x", view.Get("x"), "1")
type View struct {
	state       map[string]string
	unsubscribe func()
}

// NewView returns a detached view with empty state.
func NewView() *View {
	return &View{state: map[string]string{}}
}

// NewViewFrom returns a detached view seeded with a copy of the given state.
// Forked branches start their view from the parent view's snapshot.
func NewViewFrom(state map[string]string) *View {
	view := NewView()
	for key, value := range state {
		view.state[key] = value
	}
	return view
}

// Attach subscribes the view to the branch's afterChange events. Events
// without a derivable net change, such as a transaction squash, leave the
// state untouched by construction.
func (v *View) Attach(b *Branch) {
	v.Detach()
	v.unsubscribe = b.OnAfterChange(func(event branch.ChangeEvent[Change]) {
		if event.Change == nil {
			return
		}
		v.apply(*event.Change)
	})
}

// Detach unsubscribes the view from its branch, keeping the current state.
func (v *View) Detach() {
	if v.unsubscribe != nil {
		v.unsubscribe()
		v.unsubscribe = nil
	}
}

func (v *View) apply(change Change) {
	for _, op := range change.Ops {
		if op.New == "" {
			delete(v.state, op.Key)
			continue
		}
		v.state[op.Key] = op.New
	}
}

// Get returns the current value of key, or the empty string.
func (v *View) Get(key string) string {
	return v.state[key]
}

// Len returns the number of keys with a value.
func (v *View) Len() int {
	return len(v.state)
}

// Snapshot returns a copy of the current state.
func (v *View) Snapshot() map[string]string {
	snapshot := make(map[string]string, len(v.state))
	for key, value := range v.state {
		snapshot[key] = value
	}
	return snapshot
}
