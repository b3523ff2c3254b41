package graph

// ChangeFamily is the pluggable algebra over opaque change payloads that the
// branch and rebase machinery is generic over. C is the change payload type
// and E the family's editor type.
//
// Implementations must be pure: given equal inputs they produce equal outputs,
// without consulting wall-clock time or any per-process state beyond the
// revision tags they are handed.
type ChangeFamily[C, E any] interface {
	// Compose flattens an ordered run of changes into a single change that is
	// semantically equivalent to applying them oldest first.
	Compose(changes []TaggedChange[C]) C
	// Invert produces the inverse of the commit's change, minted under rev.
	// isRollback is set when the inverse is computed to roll a branch back,
	// as opposed to reverting a commit that stays part of history.
	Invert(commit *Commit[C], isRollback bool, rev RevisionTag) C
	// Rebase rewrites change as if it had been authored after over.
	Rebase(change C, over TaggedChange[C]) C
	// BuildEditor returns an editor whose produced changes are handed to
	// receiver, one invocation per change. mint is available to families that
	// tag intermediate payloads.
	BuildEditor(mint MintFunc, receiver func(C)) E
}

// InvertibilityChecker is an optional capability of a change family whose
// changes may lack an inverse, such as schema changes. The revertible manager
// consults it before offering a revertible for a commit. Families that do not
// implement it are treated as fully invertible.
type InvertibilityChecker[C any] interface {
	CanInvert(change C) bool
}
