package children

// ContextState is the per-member state snapshot that survives a restart.
//
// The container is immutable after publish: it is never mutated in place
// once shared. A member that wants to change its published state builds a
// new *ContextState; the group passes whichever value the parent supplies
// in RestoreChild straight through to the restarted member. The fields
// that do mutate in place (the stats counters) use atomics internally.
type ContextState struct {
	// User is an opaque payload the member body chooses to publish. The
	// group never reads it; it only passes it through on restart.
	User any

	// stats and actorStats are populated by the group when a resizer is
	// configured, so the member body can report load without reaching
	// back into the group. Both may be nil.
	stats      StatsHandle
	actorStats ActorStatsHandle
}

// NewContextState builds a fresh, empty ContextState.
func NewContextState() *ContextState {
	return &ContextState{}
}

// WithUser returns a copy of the state carrying the given user payload.
// "Setting" a field means producing a new value, never mutating the
// shared one.
func (s *ContextState) WithUser(v any) *ContextState {
	if s == nil {
		return &ContextState{User: v}
	}
	cp := *s
	cp.User = v
	return &cp
}

// StatsHandle and ActorStatsHandle are the opaque shared statistics
// handles seeded into member contexts. They are declared here as `any`;
// the concrete values are always *resize.Stats and *resize.ActorStats,
// and member bodies that use them assert to those types.
type StatsHandle = any
type ActorStatsHandle = any
