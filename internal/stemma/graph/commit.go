package graph

// CommitKind classifies how a commit came to be. Reverting a commit mints its
// inverse with the alternate kind so that consumers can distinguish undo from
// redo stacks.
type CommitKind int

const (
	// KindDefault marks a commit produced by a regular edit.
	KindDefault CommitKind = iota
	// KindUndo marks a commit that reverts an earlier commit.
	KindUndo
	// KindRedo marks a commit that reverts an undo.
	KindRedo
)

// String returns the kind's name.
func (k CommitKind) String() string {
	switch k {
	case KindDefault:
		return "default"
	case KindUndo:
		return "undo"
	case KindRedo:
		return "redo"
	default:
		return "invalid"
	}
}

// TaggedChange pairs a change payload with the revision it was minted under.
// RollbackOf is set when the change is the inverse of an earlier commit and
// references the revision being undone.
type TaggedChange[C any] struct {
	Change     C
	Revision   RevisionTag
	RollbackOf *RevisionTag
}

// Commit is an immutable node of the commit graph: a parent link, a revision
// tag and an opaque change payload. Commits form a persistent singly-linked
// ancestry chain and may be shared by any number of branches. Identity is by
// reference; two commits carrying the same revision on different parent chains
// must never coexist.
type Commit[C any] struct {
	parent   *Commit[C]
	revision RevisionTag
	change   C
	kind     CommitKind
}

// NewCommit returns a commit appended below parent. Parent may be nil for a
// root commit.
func NewCommit[C any](parent *Commit[C], revision RevisionTag, change C, kind CommitKind) *Commit[C] {
	return &Commit[C]{
		parent:   parent,
		revision: revision,
		change:   change,
		kind:     kind,
	}
}

// Parent returns the commit's parent, or nil for a root or trimmed commit.
func (c *Commit[C]) Parent() *Commit[C] {
	return c.parent
}

// Revision returns the commit's revision tag.
func (c *Commit[C]) Revision() RevisionTag {
	return c.revision
}

// Change returns the commit's change payload.
func (c *Commit[C]) Change() C {
	return c.change
}

// Kind returns the commit's kind.
func (c *Commit[C]) Kind() CommitKind {
	return c.kind
}

// TaggedChange returns the commit's change tagged with its revision.
func (c *Commit[C]) TaggedChange() TaggedChange[C] {
	return TaggedChange[C]{Change: c.change, Revision: c.revision}
}
