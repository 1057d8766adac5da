package children

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fractalgrid/children/registry"
	"github.com/fractalgrid/children/resize"
)

// AnonymousName is the label a Group carries when none is configured.
const AnonymousName = "__Anonymous__"

// DefaultHeartbeatInterval is the cadence of the liveness helper when
// WithHeartbeatTick is not called.
const DefaultHeartbeatInterval = 60 * time.Second

// Group supervises a homogeneous set of member actors. Every member runs
// the same Init body; the group launches them, fans user messages out to
// them, restarts them on request from its parent, and tears the whole set
// down as a unit when any one of them faults.
//
// A Group is configured through its With* chain and then driven by Run
// (or Launch). The With* methods take effect only before Run; they are
// not safe to call concurrently with it.
type Group struct {
	id   GroupID
	name string
	path string

	init       Init
	redundancy int
	callbacks  Callbacks

	dispatchers []registry.Dispatcher
	registry    registry.Registry

	heartbeatInterval time.Duration

	resizer resize.Resizer
	stats   *resize.Stats

	logger *slog.Logger

	bcast *broadcast

	mu           sync.Mutex
	launched     map[GroupID]*memberHandle
	actorStats   map[GroupID]*resize.ActorStats
	helperActors map[GroupID]*helperHandle
	restartable  map[GroupID]bool
	faulted      *FaultError
	preStartMsgs []Envelope
	started      bool

	runOnce sync.Once
	done    chan struct{}
}

// helperHandle tracks one internal helper actor: its cancel plus a channel
// closed once its goroutine has returned, so shutdown can wait for it.
type helperHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// New constructs a Group reporting upward through parent. Pass a zero
// Sender for a root group with no parent; upward notifications are then
// dropped. The group starts out with redundancy 1, a no-op member body,
// no dispatchers, and a 60 second heartbeat.
func New(name string, parent Sender) *Group {
	id := NewGroupID()
	if name == "" {
		name = AnonymousName
	}
	path := name
	if name == AnonymousName {
		path = string(id)
	}

	g := &Group{
		id:                id,
		name:              name,
		path:              path,
		init:              identityInit,
		redundancy:        1,
		registry:          registry.NewInMemory(),
		heartbeatInterval: DefaultHeartbeatInterval,
		stats:             resize.NewStats(),
		logger:            slog.Default(),
		launched:          make(map[GroupID]*memberHandle),
		actorStats:        make(map[GroupID]*resize.ActorStats),
		helperActors:      make(map[GroupID]*helperHandle),
		restartable:       make(map[GroupID]bool),
		done:              make(chan struct{}),
	}
	g.bcast = newBroadcast(id, path, parent)
	return g
}

// ID returns the group's id.
func (g *Group) ID() GroupID { return g.id }

// Name returns the group's configured label.
func (g *Group) Name() string { return g.name }

// Path returns the group's dotted supervision path, used for logging.
func (g *Group) Path() string { return g.path }

// Inbox returns the send side a parent supervisor (or a test) uses to
// deliver envelopes into this group's mailbox.
func (g *Group) Inbox() Sender { return g.bcast.selfSender() }

// WithName sets the group's label and supervision path.
func (g *Group) WithName(name string) *Group {
	if name == "" {
		return g
	}
	g.name = name
	g.path = name
	g.bcast.path = name
	return g
}

// WithExec sets the per-member body factory.
func (g *Group) WithExec(init Init) *Group {
	if init == nil {
		init = identityInit
	}
	g.init = init
	return g
}

// WithRedundancy sets how many members this group launches. Values below
// one coerce to one: a group of zero members could never report progress
// or faults. The resizer's lower bound, if one is configured, tracks the
// new value.
func (g *Group) WithRedundancy(n int) *Group {
	if n < 1 {
		n = 1
	}
	g.redundancy = n
	if g.resizer != nil {
		g.resizer.SetLowerBound(n)
	}
	return g
}

// WithCallbacks sets the lifecycle hooks fired for every member.
func (g *Group) WithCallbacks(cb Callbacks) *Group {
	g.callbacks = cb
	return g
}

// WithDispatcher adds a dispatcher this group registers on start and
// removes on stop.
func (g *Group) WithDispatcher(d registry.Dispatcher) *Group {
	g.dispatchers = append(g.dispatchers, d)
	return g
}

// WithRegistry overrides the default in-memory dispatcher registry, e.g.
// with a registry.Guarded wrapping a real backend.
func (g *Group) WithRegistry(r registry.Registry) *Group {
	if r != nil {
		g.registry = r
	}
	return g
}

// WithResizer enables the elasticity controller. The resizer's lower
// bound is synced to the group's currently configured redundancy.
func (g *Group) WithResizer(r resize.Resizer) *Group {
	g.resizer = r
	if r != nil {
		r.SetLowerBound(g.redundancy)
	}
	return g
}

// WithHeartbeatTick sets the liveness helper's interval. A zero or
// negative interval disables the helper entirely.
func (g *Group) WithHeartbeatTick(d time.Duration) *Group {
	g.heartbeatInterval = d
	return g
}

// WithLogger overrides the default slog logger.
func (g *Group) WithLogger(l *slog.Logger) *Group {
	if l != nil {
		g.logger = l
	}
	return g
}

// GroupSnapshot is a point-in-time view of a running group's membership,
// safe to read from any goroutine.
type GroupSnapshot struct {
	ID       GroupID
	Path     string
	Started  bool
	Members  []GroupID
	Launched int
	Faults   int64
}

// Snapshot copies the group's current membership and fault count without
// racing the group's own loop.
func (g *Group) Snapshot() GroupSnapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	members := make([]GroupID, 0, len(g.launched))
	for id := range g.launched {
		members = append(members, id)
	}
	return GroupSnapshot{
		ID:       g.id,
		Path:     g.path,
		Started:  g.started,
		Members:  members,
		Launched: len(g.launched),
		Faults:   g.stats.Restarts(),
	}
}

// Done returns a channel closed once the group's run loop has returned.
func (g *Group) Done() <-chan struct{} { return g.done }

// String implements fmt.Stringer for logging.
func (g *Group) String() string {
	return fmt.Sprintf("Group(%s)", g.path)
}
