package children

import "context"

// Context is the per-member context handed to a member body. It embeds
// the cancellation context the group controls, plus the member's own
// identity, its upward link, its message stream, and its published state.
//
// Context deliberately holds no reference to the owning Group: only a
// send-only Sender and identifying strings, so a member can never reach
// into (or keep alive) the group that owns it.
type Context struct {
	context.Context

	self       GroupID
	selfPath   string
	parentSend Sender
	messages   <-chan any

	state *ContextState
}

// newMemberContext builds the Context given to a member body when it is
// (re)launched.
func newMemberContext(base context.Context, self GroupID, selfPath string, parent Sender, messages <-chan any, state *ContextState) Context {
	return Context{
		Context:    base,
		self:       self,
		selfPath:   selfPath,
		parentSend: parent,
		messages:   messages,
		state:      state,
	}
}

// Self returns the member's own id.
func (c Context) Self() GroupID { return c.self }

// SelfPath returns the member's dotted supervision path, for logging.
func (c Context) SelfPath() string { return c.selfPath }

// Parent returns a Sender the member can use to post Envelopes up to its
// owning group's mailbox.
func (c Context) Parent() Sender { return c.parentSend }

// State returns the member's currently-published state snapshot. It is
// immutable after publish: to change it, build a new value with
// (*ContextState).WithUser and hand it back out (e.g. via a
// Faulted/RestoreChild round trip through the parent). Never mutate
// through this pointer.
func (c Context) State() *ContextState { return c.state }

// Stats returns the shared group-wide statistics handle seeded when a
// resizer is configured, or nil otherwise. The concrete type is
// *resize.Stats.
func (c Context) Stats() StatsHandle {
	if c.state == nil {
		return nil
	}
	return c.state.stats
}

// ActorStats returns this member's own per-actor statistics handle, or
// nil when no resizer is configured. The concrete type is
// *resize.ActorStats.
func (c Context) ActorStats() ActorStatsHandle {
	if c.state == nil {
		return nil
	}
	return c.state.actorStats
}

// Messages returns the channel a member body reads Message payloads from.
// It is closed once the member is told to stop, so a body written as
// `for payload := range ctx.Messages()` drains cleanly on shutdown.
func (c Context) Messages() <-chan any { return c.messages }
