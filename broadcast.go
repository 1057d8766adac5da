package children

import (
	"context"
	"log/slog"
)

// Sender is a narrowed send-only view of an envelope channel, so call
// sites can't accidentally receive from a channel they were only meant to
// push into. The zero Sender drops everything sent to it.
type Sender struct {
	ch chan<- Envelope
}

// Send pushes an envelope, returning false (rather than panicking or
// blocking forever) if the Sender is empty or ctx is done first. Upward
// notification is best-effort; callers treat a false return as exactly
// that.
func (s Sender) Send(ctx context.Context, env Envelope) bool {
	if s.ch == nil {
		return false
	}
	select {
	case s.ch <- env:
		return true
	case <-ctx.Done():
		return false
	}
}

// broadcast is the group's mailbox plus its fan-out to members and its
// upward link to the parent. Only the group's own loop receives from the
// mailbox; everything else holds Senders.
type broadcast struct {
	id     GroupID
	path   string
	mail   chan Envelope
	parent Sender

	members map[GroupID]Sender
}

// newBroadcast builds a broadcast for a group with the given id, path
// (for logging), and parent link. The mailbox buffer is generous but
// finite: an unbounded buffer would remove all backpressure on senders.
func newBroadcast(id GroupID, path string, parent Sender) *broadcast {
	return &broadcast{
		id:      id,
		path:    path,
		mail:    make(chan Envelope, 256),
		parent:  parent,
		members: make(map[GroupID]Sender),
	}
}

// inbox exposes the receive side for the group's own run loop.
func (b *broadcast) inbox() <-chan Envelope { return b.mail }

// selfSender returns a Sender that posts into this broadcast's own mailbox,
// used by members to report Stopped/Faulted/RestartRequired back to the
// group that owns them.
func (b *broadcast) selfSender() Sender { return Sender{b.mail} }

// register adds a member's send side to the fan-out set.
func (b *broadcast) register(id GroupID, s Sender) {
	b.members[id] = s
}

// unregister removes a member's send side from the fan-out set.
func (b *broadcast) unregister(id GroupID) {
	delete(b.members, id)
}

// sendParent is a best-effort upward send; failures are swallowed.
func (b *broadcast) sendParent(ctx context.Context, kind MessageKind) {
	if !b.parent.Send(ctx, NewEnvelope(kind, b.path, b.selfSender())) {
		slog.Default().Debug("send to parent dropped", "group", b.id, "kind", kind)
	}
}

// sendChildren fans a message out to every currently-registered member.
// There is no ordering guarantee across distinct members' mailboxes.
func (b *broadcast) sendChildren(ctx context.Context, kind MessageKind) {
	env := NewEnvelope(kind, b.path, b.selfSender())
	for _, m := range b.members {
		m.Send(ctx, env)
	}
}

// sendChild delivers a message to exactly one member. Deliveries to a
// single member retain their issue order; the restart triplet depends on
// that.
func (b *broadcast) sendChild(ctx context.Context, id GroupID, kind MessageKind) bool {
	m, ok := b.members[id]
	if !ok {
		return false
	}
	return m.Send(ctx, NewEnvelope(kind, b.path, b.selfSender()))
}
