package children

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/fractalgrid/children/heartbeat"
	"github.com/fractalgrid/children/resize"
)

// Run registers the group's dispatchers, launches the initial fleet, and
// blocks in the run loop until ctx is cancelled or the group is told to
// stop. It may only be called once per Group; a second call panics.
func (g *Group) Run(ctx context.Context) error {
	ran := false
	g.runOnce.Do(func() { ran = true })
	if !ran {
		errProtocolViolation("Group.Run called more than once on %s", g.path)
	}
	defer close(g.done)

	g.registerDispatchers(ctx)
	defer g.removeDispatchers(context.Background())

	g.launchElems(ctx)

	return g.run(ctx)
}

// Launch starts Run on its own goroutine and returns a promise resolved
// with Run's result, plus a cancel that tears the group down. The promise
// resolving means the group is fully consumed: members killed, helpers
// drained, dispatchers removed.
func (g *Group) Launch(ctx context.Context) (*Promise[error], context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	p, resolve := NewPromise[error]()
	go func() {
		resolve(g.Run(ctx))
	}()
	return p, cancel
}

// launchElems launches `redundancy` fresh members, then the heartbeat
// helper. The heartbeat comes up last so the primary fleet is already in
// place when the first liveness ping goes upward.
func (g *Group) launchElems(ctx context.Context) {
	for i := 0; i < g.redundancy; i++ {
		g.launchChild(ctx)
	}
	g.launchHeartbeat(ctx)
}

// launchChild brings up one fresh member: mints its id, registers its
// Sender with the broadcast, tells the parent about it, and sends it
// Start directly. Pre-start buffering applies to the group's own mailbox,
// not to a member's: a member begins its body as soon as it is launched.
func (g *Group) launchChild(ctx context.Context) GroupID {
	id := newMemberID()
	path := g.path + "/" + string(id)

	var actorStats *resize.ActorStats
	if g.resizer != nil {
		actorStats = resize.NewActorStats()
	}

	h := spawnMember(ctx, id, path, g.init, g.callbacks, g.logger)

	g.mu.Lock()
	g.bcast.register(id, h.sender())
	g.launched[id] = h
	if actorStats != nil {
		g.actorStats[id] = actorStats
	}
	g.mu.Unlock()

	state := NewContextState()
	if g.resizer != nil {
		state.stats = g.stats
		state.actorStats = actorStats
	}

	g.bcast.sendParent(ctx, InstantiatedChild{Parent: g.id, ID: id, State: state})
	g.bcast.sendChild(ctx, id, SetState{State: state})
	g.bcast.sendChild(ctx, id, Start{})

	g.stats.AddLaunched(1)
	return id
}

// launchHeartbeat brings up the heartbeat helper. It is tracked in
// helperActors, never in launched, so it is invisible to Snapshot, to the
// resizer's member count, and to FinishedChild reporting.
func (g *Group) launchHeartbeat(ctx context.Context) {
	if g.heartbeatInterval <= 0 {
		return
	}
	hbCtx, cancel := context.WithCancel(ctx)
	id := newID("heartbeat")
	done := make(chan struct{})

	g.mu.Lock()
	g.helperActors[id] = &helperHandle{cancel: cancel, done: done}
	g.mu.Unlock()
	g.stats.AddHelpers(1)

	go func() {
		defer close(done)
		heartbeat.Run(hbCtx, g.heartbeatInterval, heartbeatSender{g})
	}()
}

// heartbeatSender adapts Group into the heartbeat package's narrow Sender
// interface, so that subpackage never needs to import this one.
type heartbeatSender struct{ g *Group }

func (h heartbeatSender) Beat(ctx context.Context) {
	h.g.bcast.sendParent(ctx, Heartbeat{})
}

// disableHelperActors cancels every helper actor and waits for each of
// their goroutines to return, so no helper output (e.g. a heartbeat) can
// land upward after the group reports stopped.
func (g *Group) disableHelperActors() {
	g.mu.Lock()
	helpers := make([]*helperHandle, 0, len(g.helperActors))
	for _, h := range g.helperActors {
		helpers = append(helpers, h)
	}
	g.helperActors = make(map[GroupID]*helperHandle)
	g.mu.Unlock()

	var eg errgroup.Group
	for _, h := range helpers {
		h := h
		eg.Go(func() error {
			h.cancel()
			<-h.done
			return nil
		})
	}
	_ = eg.Wait()
	g.stats.AddHelpers(-int64(len(helpers)))
}

// kill cancels every launched member's body and waits for each to resolve
// its result promise. The await uses a background context: kill is
// usually called with an already-cancelled ctx (the group's own shutdown
// path), and the wait must still block until each member's body has
// actually returned.
func (g *Group) kill() {
	g.mu.Lock()
	handles := make([]*memberHandle, 0, len(g.launched))
	for _, h := range g.launched {
		handles = append(handles, h)
	}
	g.mu.Unlock()

	var eg errgroup.Group
	for _, h := range handles {
		h := h
		eg.Go(func() error {
			h.cancel()
			h.result.Await(context.Background())
			return nil
		})
	}
	_ = eg.Wait()
}

// stopOrKillChildren is the shared Stop/Kill path: disable helpers, kill
// members, drain the bookkeeping, report stopped to the parent, and
// return the sentinel that exits the run loop. Stop and Kill behave
// identically today; the two message kinds stay distinct so a future
// drain-before-cancel Stop does not change the wire format.
func (g *Group) stopOrKillChildren(ctx context.Context) error {
	g.disableHelperActors()
	g.kill()

	g.mu.Lock()
	swept := len(g.launched)
	for id := range g.launched {
		g.bcast.unregister(id)
	}
	g.launched = make(map[GroupID]*memberHandle)
	g.actorStats = make(map[GroupID]*resize.ActorStats)
	g.restartable = make(map[GroupID]bool)
	g.mu.Unlock()
	g.stats.AddLaunched(-int64(swept))

	// The final upward report must not be suppressed by the very
	// cancellation that triggered this shutdown.
	g.removeDispatchers(context.Background())
	g.callbacks.fire(CallbackAfterStop)
	g.bcast.sendParent(context.Background(), Stopped{ID: g.id})
	return errGroupStopped
}

// registerDispatchers registers every configured dispatcher for this
// group's path. Registry failures are warnings, not lifecycle events.
func (g *Group) registerDispatchers(ctx context.Context) {
	for _, d := range g.dispatchers {
		if err := g.registry.Register(ctx, g.path, d); err != nil {
			g.logger.Warn("dispatcher registration failed", "group", g.path, "dispatcher", d, "err", err)
		}
	}
}

// removeDispatchers is registerDispatchers's inverse, called on stop/kill.
// Removal is idempotent against the in-memory registry, so the deferred
// call in Run doubles as a backstop for abnormal loop exits.
func (g *Group) removeDispatchers(ctx context.Context) {
	for _, d := range g.dispatchers {
		if err := g.registry.Remove(ctx, g.path, d); err != nil {
			g.logger.Warn("dispatcher removal failed", "group", g.path, "dispatcher", d, "err", err)
		}
	}
}

var errGroupStopped = errStopped{}

// errStopped is the sentinel Run returns once the group has been told to
// Stop or Kill and has finished tearing down.
type errStopped struct{}

func (errStopped) Error() string { return "children: group stopped" }
