package children

import (
	"context"

	"github.com/fractalgrid/children/resize"
)

// run is the group's main loop: consult the resizer, wait for either the
// outer context to end or the next envelope on the group's own mailbox,
// dispatch it, consult the resizer again, repeat.
//
// The double resizer consultation per pass is load-bearing: the first
// call keeps scaling ahead of inbound load, the second reacts to member
// deaths the mailbox step just surfaced without waiting a full loop.
//
// Members report their own termination by posting Stopped/Faulted into
// this mailbox (see memberHandle.run), so the loop never blocks on any
// member and never reaches into a member's goroutine to check on it.
func (g *Group) run(ctx context.Context) error {
	for {
		g.autoresize(ctx)

		select {
		case <-ctx.Done():
			g.stopOrKillChildren(ctx)
			return ctx.Err()

		case env, ok := <-g.bcast.inbox():
			if !ok {
				return errGroupStopped
			}
			if err := g.handle(ctx, env); err != nil {
				return err
			}
		}

		g.autoresize(ctx)
	}
}

// autoresize consults the configured resizer, if any, and applies its
// decision by launching or retiring members, then refreshes the
// aggregate stats the next decision will sample.
func (g *Group) autoresize(ctx context.Context) {
	if g.resizer == nil {
		return
	}

	g.mu.Lock()
	if g.faulted != nil {
		// Awaiting the parent's restart verdicts; membership is theirs
		// to decide until the group is revived.
		g.mu.Unlock()
		return
	}
	members := make([]string, 0, len(g.launched))
	for id := range g.launched {
		members = append(members, string(id))
	}
	g.mu.Unlock()

	decision := g.resizer.Scale(g.stats, members)
	switch decision.Directive {
	case resize.Upscale:
		for i := 0; i < decision.Count; i++ {
			g.launchChild(ctx)
		}
	case resize.Downscale:
		if len(decision.Members) > 0 {
			g.retireNamedMembers(decision.Members)
		} else {
			g.retireMembers(decision.Count)
		}
	}

	g.refreshStats()
}

// refreshStats replaces the group-wide processed total with the sum of
// every live member's own counter.
func (g *Group) refreshStats() {
	var total int64
	g.mu.Lock()
	for _, as := range g.actorStats {
		total += as.Processed()
	}
	g.mu.Unlock()
	g.stats.SetProcessed(total)
}

// retireMembers cancels up to n arbitrary members. The resizer contract
// says it never downscales below its lower bound; a request that would do
// so anyway is honored but logged.
func (g *Group) retireMembers(n int) {
	g.mu.Lock()
	victims := make([]*memberHandle, 0, n)
	for _, h := range g.launched {
		if len(victims) >= n {
			break
		}
		victims = append(victims, h)
	}
	remaining := len(g.launched) - len(victims)
	g.mu.Unlock()

	g.warnBelowFloor(remaining)
	for _, h := range victims {
		h.cancel()
	}
}

// retireNamedMembers cancels the specific members the resizer named.
// Unknown ids are skipped; the member may have died since the resizer
// sampled the group.
func (g *Group) retireNamedMembers(ids []string) {
	g.mu.Lock()
	victims := make([]*memberHandle, 0, len(ids))
	for _, id := range ids {
		if h, ok := g.launched[GroupID(id)]; ok {
			victims = append(victims, h)
		}
	}
	remaining := len(g.launched) - len(victims)
	g.mu.Unlock()

	g.warnBelowFloor(remaining)
	for _, h := range victims {
		h.cancel()
	}
}

func (g *Group) warnBelowFloor(remaining int) {
	if g.resizer != nil && remaining < g.resizer.LowerBound() {
		g.logger.Warn("resizer downscaled below its lower bound",
			"group", g.path, "remaining", remaining, "floor", g.resizer.LowerBound())
	}
}

// handle dispatches a single envelope. While the group has not yet
// started, everything but Start is buffered into preStartMsgs; Start then
// replays the buffer in arrival order.
func (g *Group) handle(ctx context.Context, env Envelope) error {
	g.mu.Lock()
	started := g.started
	g.mu.Unlock()

	if !started {
		if _, ok := env.Kind.(Start); ok {
			return g.initialize(ctx)
		}
		g.mu.Lock()
		g.preStartMsgs = append(g.preStartMsgs, env)
		g.mu.Unlock()
		return nil
	}

	switch m := env.Kind.(type) {
	case Start:
		// Already started; a duplicate Start is a sender bug, not ours.
		g.logger.Warn("Start received by an already-started group", "group", g.path)
		return nil

	case ApplyCallback, InstantiatedChild, FinishedChild, RestartSubtree, SetState:
		errProtocolViolation("%T routed to the group that emits it, on %s", m, g.path)
		return nil

	case Stop, Kill:
		return g.stopOrKillChildren(ctx)

	case Message:
		g.bcast.sendChildren(ctx, m)
		return nil

	case Deploy:
		return g.failUnimplemented(ctx, "Deploy")
	case Prune:
		return g.failUnimplemented(ctx, "Prune")
	case SuperviseWith:
		return g.failUnimplemented(ctx, "SuperviseWith")

	case Stopped:
		g.handleStoppedChild(ctx, m.ID)
		return nil

	case Faulted:
		g.handleFaultedChild(ctx, m.ID, m.Err)
		return nil

	case RestartRequired:
		// The parent arbitrates restarts. Forward only requests that name
		// this group and a member it still tracks.
		if m.ParentID != g.id {
			return nil
		}
		g.mu.Lock()
		_, known := g.launched[m.ID]
		g.mu.Unlock()
		if known {
			g.bcast.sendParent(ctx, m)
		}
		return nil

	case RestoreChild:
		g.restartChild(ctx, m.ID, m.State)
		return nil

	case DropChild:
		return g.dropChild(m.ID)

	case Heartbeat:
		// Observed by the parent, not by the group.
		return nil

	default:
		g.logger.Warn("unrecognized message kind", "group", g.path, "kind", m)
		return nil
	}
}

// failUnimplemented tears the group down and surfaces a named
// not-implemented error. The group does not recover from receiving one of
// these kinds.
func (g *Group) failUnimplemented(ctx context.Context, kind string) error {
	g.logger.Error("unimplemented message kind received, stopping group",
		"group", g.path, "kind", kind)
	g.stopOrKillChildren(ctx)
	return errUnimplementedKind(kind)
}

// initialize transitions a not-yet-started group into Start: mark the
// group started, broadcast Start to every currently-launched member
// (idempotent for members launchChild already started directly), then
// replay every buffered pre-start envelope in arrival order. A replay
// failure terminates the group. Lifecycle hooks fire member-side, once
// per member, not here.
func (g *Group) initialize(ctx context.Context) error {
	g.mu.Lock()
	g.started = true
	pending := g.preStartMsgs
	g.preStartMsgs = nil
	g.mu.Unlock()

	g.bcast.sendChildren(ctx, Start{})

	for _, env := range pending {
		if err := g.handle(ctx, env); err != nil {
			return err
		}
	}
	return nil
}

// handleStoppedChild removes a cleanly-finished member from the launched
// set and reports it upward as FinishedChild, without disturbing any
// sibling. A clean stop is not a fault: it does not escalate. Unknown ids
// are ignored; a member can race its own retirement.
func (g *Group) handleStoppedChild(ctx context.Context, id GroupID) {
	g.mu.Lock()
	if _, ok := g.launched[id]; !ok {
		g.mu.Unlock()
		return
	}
	delete(g.launched, id)
	delete(g.actorStats, id)
	g.bcast.unregister(id)
	g.mu.Unlock()

	g.stats.AddLaunched(-1)
	g.bcast.sendParent(ctx, FinishedChild{ID: id, ParentID: g.id})
}

// handleFaultedChild escalates: one member faulting tears down every
// other member and helper in this group, the dispatchers come out of the
// registry, and the fault is reported upward exactly once. RestartRequired
// is then sent for every member swept by the escalation (including the one
// that faulted), so the parent can decide, member by member, which ones to
// bring back via RestoreChild.
//
// The group then holds in a faulted state awaiting the parent's verdicts:
// the first RestoreChild revives it (see restartChild), and a DropChild
// that disposes of the last swept member ends the run loop with the fault
// (see dropChild). It is never left half-alive with no way to terminate.
func (g *Group) handleFaultedChild(ctx context.Context, id GroupID, cause error) {
	g.mu.Lock()
	if _, ok := g.launched[id]; !ok {
		g.mu.Unlock()
		return
	}
	swept := make([]GroupID, 0, len(g.launched))
	for other := range g.launched {
		swept = append(swept, other)
	}
	g.mu.Unlock()

	g.disableHelperActors()
	g.kill()

	fault := wrapFault(id, cause)
	g.mu.Lock()
	for _, other := range swept {
		delete(g.launched, other)
		delete(g.actorStats, other)
		g.bcast.unregister(other)
		g.restartable[other] = true
	}
	g.faulted = fault
	g.mu.Unlock()
	g.stats.AddLaunched(-int64(len(swept)))
	g.stats.IncRestarts()

	// Registry entries are drained before the parent hears about the
	// fault; a restore re-registers them.
	g.removeDispatchers(context.Background())

	g.bcast.sendParent(ctx, Faulted{ID: id, Err: fault})
	for _, other := range swept {
		g.bcast.sendParent(ctx, RestartRequired{ID: other, ParentID: g.id})
	}
}

// dropChild forgets about a member the parent has decided not to restart.
// A no-op if the id is no longer tracked (e.g. a racing duplicate
// DropChild). When the group is faulted and this verdict disposes of the
// last swept member with nothing restored, there is no group left to run:
// the loop ends with the recorded fault.
func (g *Group) dropChild(id GroupID) error {
	g.mu.Lock()
	delete(g.launched, id)
	delete(g.actorStats, id)
	delete(g.restartable, id)
	g.bcast.unregister(id)
	terminal := g.faulted != nil && len(g.launched) == 0 && len(g.restartable) == 0
	fault := g.faulted
	g.mu.Unlock()

	if terminal {
		return fault
	}
	return nil
}
