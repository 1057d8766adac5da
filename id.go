package children

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync/atomic"
)

// GroupID uniquely identifies a Group or a member within one. A fresh
// GroupID is minted on every group construction and for every newly
// launched member. A member restart mints none: the restarted member
// keeps its old id for bookkeeping purposes (see restart.go), and the
// group that contains it keeps its own id too.
type GroupID string

var idSeq atomic.Uint64

// newID mints a process-unique identifier: a prefix, a monotonic
// sequence number, and a short random suffix.
func newID(prefix string) GroupID {
	var buf [6]byte
	_, _ = rand.Read(buf[:])
	seq := idSeq.Add(1)
	return GroupID(fmt.Sprintf("%s-%d-%s", prefix, seq, hex.EncodeToString(buf[:])))
}

// NewGroupID mints a fresh GroupID for a Group.
func NewGroupID() GroupID { return newID("group") }

// newMemberID mints a fresh GroupID for a member within a group.
func newMemberID() GroupID { return newID("member") }
