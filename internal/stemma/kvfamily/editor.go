package kvfamily

// Editor describes key/value edits. Each call produces one single-op change
// and hands it to the receiver, which applies it to the owning branch. The
// caller passes the prior value it observed, typically read from its View;
// recorded priors make every change self-contained and invertible.
type Editor struct {
	receiver func(Change)
}

// Set assigns newValue to key. A concurrent change to the same key does not
// invalidate the op; the last writer wins.
func (e *Editor) Set(key, oldValue, newValue string) {
	e.emit(Op{Key: key, Old: oldValue, New: newValue})
}

// SetIfUnchanged assigns newValue to key, guarded on the key still holding
// oldValue. Rebasing over a concurrent change to the key drops the op.
func (e *Editor) SetIfUnchanged(key, oldValue, newValue string) {
	e.emit(Op{Key: key, Old: oldValue, New: newValue, Guarded: true})
}

func (e *Editor) emit(op Op) {
	e.receiver(Change{Ops: []Op{op}})
}
