package graph

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// SessionID identifies the minting session a revision tag was created in. It is
// derived from a UUID so that tags minted by concurrently editing peers never
// collide.
type SessionID [16]byte

// String returns an abbreviated hex rendering of the session identifier.
func (s SessionID) String() string {
	return hex.EncodeToString(s[:4])
}

// RevisionTag is a process-unique, globally comparable identifier of a single
// commit. Tags order first by session, then by per-session ordinal, which makes
// them stable sort and comparison keys.
type RevisionTag struct {
	Session SessionID
	Ordinal uint64
}

// TagNone is the zero revision tag. It never identifies a commit.
var TagNone RevisionTag

// IsNone reports whether the tag is the zero tag.
func (t RevisionTag) IsNone() bool {
	return t == TagNone
}

// Compare returns -1, 0 or 1 depending on whether t orders before, equal to or
// after other.
func (t RevisionTag) Compare(other RevisionTag) int {
	if c := bytes.Compare(t.Session[:], other.Session[:]); c != 0 {
		return c
	}

	switch {
	case t.Ordinal < other.Ordinal:
		return -1
	case t.Ordinal > other.Ordinal:
		return 1
	default:
		return 0
	}
}

// String renders the tag as "<session>:<ordinal>".
func (t RevisionTag) String() string {
	return fmt.Sprintf("%s:%d", t.Session, t.Ordinal)
}

// MintFunc mints a fresh revision tag. Components never generate revisions
// themselves but call the minting function injected into them so that all tags
// produced in a process are globally unique.
type MintFunc func() RevisionTag

// Minter mints monotonically increasing revision tags for a single session.
type Minter struct {
	session SessionID
	ordinal atomic.Uint64
}

// NewMinter returns a minter with a freshly drawn session identifier.
func NewMinter() *Minter {
	return &Minter{session: SessionID(uuid.New())}
}

// Session returns the minter's session identifier.
func (m *Minter) Session() SessionID {
	return m.session
}

// Mint returns the next revision tag of this session.
func (m *Minter) Mint() RevisionTag {
	return RevisionTag{Session: m.session, Ordinal: m.ordinal.Add(1)}
}
