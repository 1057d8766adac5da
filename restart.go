package children

import (
	"context"

	"github.com/fractalgrid/children/resize"
)

// restartChild brings a swept member back under its old id, seeded with
// the state its predecessor last published. The id is reused on purpose:
// upstream bookkeeping tracks members by id across the fault/restore
// round trip. Only ids the group itself announced via RestartRequired are
// eligible; anything else (still running, already dropped, never known)
// is ignored. The group's own id is untouched. Helper actors are not
// restarted by id; the first restore after a fault relaunches the
// heartbeat helper as part of reviving the group (see below).
//
// Exactly one state value is used for the restarted member: the one the
// parent supplied in RestoreChild. The new body's context carries it (as a
// copy with the stats handles seeded, when a resizer is configured); the
// group itself keeps no copy of it.
func (g *Group) restartChild(ctx context.Context, id GroupID, state *ContextState) {
	g.mu.Lock()
	_, alreadyRunning := g.launched[id]
	eligible := g.restartable[id]
	if alreadyRunning || !eligible {
		g.mu.Unlock()
		g.logger.Debug("restart ignored for untracked member", "group", g.path, "member", id)
		return
	}
	delete(g.restartable, id)
	reviving := g.faulted != nil
	g.faulted = nil
	g.mu.Unlock()

	// The first restore after a fault revives the group: the dispatchers
	// the escalation removed go back into the registry and the heartbeat
	// helper comes back up.
	if reviving {
		g.registerDispatchers(ctx)
		g.launchHeartbeat(ctx)
	}

	g.callbacks.fire(CallbackBeforeRestart)

	path := g.path + "/" + string(id)

	var actorStats *resize.ActorStats
	if g.resizer != nil {
		actorStats = resize.NewActorStats()
		// The supplied state is immutable after publish: seed the stats
		// handles on a copy, never through the parent's pointer.
		var seeded ContextState
		if state != nil {
			seeded = *state
		}
		seeded.stats = g.stats
		seeded.actorStats = actorStats
		state = &seeded
	}

	h := spawnMember(ctx, id, path, g.init, g.callbacks, g.logger)

	g.mu.Lock()
	g.bcast.register(id, h.sender())
	g.launched[id] = h
	if actorStats != nil {
		g.actorStats[id] = actorStats
	}
	g.mu.Unlock()

	// Ordering contract: SetState, then ApplyCallback(AfterRestart), then
	// Start, all addressed to this one member. State must be restored
	// before the AfterRestart hook observes it, and both must land before
	// the member processes any user message.
	g.bcast.sendChild(ctx, id, SetState{State: state})
	g.bcast.sendChild(ctx, id, ApplyCallback{Kind: CallbackAfterRestart})
	g.bcast.sendChild(ctx, id, Start{})

	g.stats.AddLaunched(1)
}
