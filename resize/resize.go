// Package resize implements the optional elasticity controller for a
// member group: a Resizer is consulted twice per group-loop iteration and
// decides whether the group should launch more members, retire some, or
// leave the count alone, based on the shared Stats/ActorStats counters.
package resize

import "sync/atomic"

// Stats is the shared, group-wide statistics handle published to every
// member's context. Every field is an atomic counter: members update it
// concurrently with the group's own resize decisions.
type Stats struct {
	launched  atomic.Int64
	helpers   atomic.Int64
	restarts  atomic.Int64
	processed atomic.Int64
}

// NewStats returns a fresh, zeroed Stats.
func NewStats() *Stats { return &Stats{} }

func (s *Stats) Launched() int64  { return s.launched.Load() }
func (s *Stats) Helpers() int64   { return s.helpers.Load() }
func (s *Stats) Restarts() int64  { return s.restarts.Load() }
func (s *Stats) Processed() int64 { return s.processed.Load() }

func (s *Stats) AddLaunched(delta int64) { s.launched.Add(delta) }
func (s *Stats) AddHelpers(delta int64)  { s.helpers.Add(delta) }
func (s *Stats) IncRestarts()            { s.restarts.Add(1) }

// SetProcessed replaces the group-wide processed total. The group calls
// this after each Scale consultation (twice per loop pass) with the sum
// of every member's ActorStats, so a
// Resizer sampling Processed sees a consistent aggregate rather than a
// mid-update partial sum.
func (s *Stats) SetProcessed(total int64) { s.processed.Store(total) }

// ActorStats is one member's own statistics handle. The group seeds one
// per member when a Resizer is configured; the member body updates it
// through its context without reaching back into the group.
type ActorStats struct {
	processed atomic.Int64
	faults    atomic.Int64
}

// NewActorStats returns a fresh, zeroed ActorStats.
func NewActorStats() *ActorStats { return &ActorStats{} }

func (a *ActorStats) Processed() int64 { return a.processed.Load() }
func (a *ActorStats) Faults() int64    { return a.faults.Load() }

func (a *ActorStats) IncProcessed() { a.processed.Add(1) }
func (a *ActorStats) IncFaults()    { a.faults.Add(1) }

// Directive is the three-way decision a Resizer returns each time it is
// consulted.
type Directive int

const (
	// DoNothing leaves the group's member count unchanged.
	DoNothing Directive = iota
	// Upscale asks the group to launch Count additional members.
	Upscale
	// Downscale asks the group to retire members: the ones named in
	// Members, or Count arbitrary ones when Members is empty.
	Downscale
)

func (d Directive) String() string {
	switch d {
	case Upscale:
		return "Upscale"
	case Downscale:
		return "Downscale"
	default:
		return "DoNothing"
	}
}

// Decision is what Scale returns: a directive plus which (or how many)
// members it applies to. Members ids are the same strings the group
// passed in to Scale.
type Decision struct {
	Directive Directive
	Count     int
	Members   []string
}

// Resizer is consulted by the group's run loop twice per iteration: once
// before the mailbox step, so scaling keeps up with inbound load, and
// once after, so member deaths surfaced by the mailbox step are reacted
// to without waiting a full loop.
//
// A Resizer must never decide to downscale below its lower bound; the
// group does not enforce that, it only logs violations.
type Resizer interface {
	// Scale inspects stats and the current member ids and returns a
	// directive. It must not block.
	Scale(stats *Stats, members []string) Decision

	// LowerBound is the minimum member count this Resizer will downscale
	// to, seeded from the group's configured redundancy.
	LowerBound() int

	// SetLowerBound updates the floor. Called whenever the group's
	// redundancy or resizer is reconfigured through its builder methods.
	SetLowerBound(n int)
}

// Threshold is a minimal concrete Resizer: it upscales by Step when the
// per-member load (processed per member since the last decision) exceeds
// HighWatermark, downscales by Step when it falls below LowWatermark
// without going under LowerBound, and otherwise does nothing.
type Threshold struct {
	HighWatermark int64
	LowWatermark  int64
	Step          int

	lower atomic.Int64
	last  atomic.Int64
}

// NewThreshold returns a Threshold resizer with the given watermarks and
// step size.
func NewThreshold(high, low int64, step int) *Threshold {
	if step < 1 {
		step = 1
	}
	return &Threshold{HighWatermark: high, LowWatermark: low, Step: step}
}

func (t *Threshold) LowerBound() int     { return int(t.lower.Load()) }
func (t *Threshold) SetLowerBound(n int) { t.lower.Store(int64(n)) }

func (t *Threshold) Scale(stats *Stats, members []string) Decision {
	processed := stats.Processed()
	delta := processed - t.last.Load()
	t.last.Store(processed)

	current := len(members)
	perMember := delta
	if current > 0 {
		perMember = delta / int64(current)
	}

	switch {
	case perMember > t.HighWatermark:
		return Decision{Directive: Upscale, Count: t.Step}
	case perMember < t.LowWatermark && int64(current)-int64(t.Step) >= t.lower.Load():
		return Decision{Directive: Downscale, Count: t.Step}
	default:
		return Decision{Directive: DoNothing}
	}
}
