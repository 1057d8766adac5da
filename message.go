package children

// MessageKind tags the payload of an Envelope: a closed sum type
// expressed as an interface with a marker method, so each variant only
// carries the fields it needs.
type MessageKind interface {
	messageKind()
}

// Start transitions a not-yet-started group into its running state, or is
// broadcast to a member to let it begin processing its mailbox.
type Start struct{}

// Stop asks the group to terminate. It takes the same path as Kill:
// members are cancelled without draining in-flight messages.
type Stop struct{}

// Kill asks the group to terminate immediately. Stop and Kill currently
// take the same path; the kinds stay distinct so a future
// drain-before-cancel Stop does not change the wire format.
type Kill struct{}

// Deploy is accepted into the dispatch table but unimplemented; a group
// receiving one post-start stops with ErrUnimplemented.
type Deploy struct{ Payload any }

// Prune is accepted into the dispatch table but unimplemented, like
// Deploy.
type Prune struct{ Payload any }

// SuperviseWith is accepted into the dispatch table but unimplemented,
// like Deploy.
type SuperviseWith struct{ Payload any }

// CallbackKind names one of the lifecycle hooks a Group fires.
type CallbackKind int

const (
	CallbackBeforeStart CallbackKind = iota
	CallbackAfterStart
	CallbackBeforeRestart
	CallbackAfterRestart
	CallbackAfterStop
)

func (k CallbackKind) String() string {
	switch k {
	case CallbackBeforeStart:
		return "BeforeStart"
	case CallbackAfterStart:
		return "AfterStart"
	case CallbackBeforeRestart:
		return "BeforeRestart"
	case CallbackAfterRestart:
		return "AfterRestart"
	case CallbackAfterStop:
		return "AfterStop"
	default:
		return "Unknown"
	}
}

// ApplyCallback is emitted by the group to a member to tell it to run one
// of its lifecycle hooks. It is a programming error for anything but the
// group itself to route this to the group (see the dispatch table).
type ApplyCallback struct{ Kind CallbackKind }

// InstantiatedChild is emitted upward when a new member has been launched,
// carrying enough information for the parent to track it.
type InstantiatedChild struct {
	Parent GroupID
	ID     GroupID
	State  *ContextState
}

// Message carries a user payload, fanned out to every member.
type Message struct{ Payload any }

// RestartRequired is emitted upward asking the parent to decide whether to
// restart the named member.
type RestartRequired struct {
	ID       GroupID
	ParentID GroupID
}

// FinishedChild is emitted upward once a member has cleanly stopped and
// been removed from the launched set.
type FinishedChild struct {
	ID       GroupID
	ParentID GroupID
}

// RestartSubtree is never routed to a group; a group receiving one treats
// it as a protocol violation (see the dispatch table).
type RestartSubtree struct{}

// RestoreChild asks the group to restart the named member, seeding its new
// context with the given (immutable-after-publish) state snapshot.
type RestoreChild struct {
	ID    GroupID
	State *ContextState
}

// DropChild asks the group to forget about a member without restarting it.
type DropChild struct{ ID GroupID }

// SetState is sent to a freshly-restarted member to seed it with its
// predecessor's state, before AfterRestart and before Start.
type SetState struct{ State *ContextState }

// Stopped is posted by a member to report that it exited cleanly.
type Stopped struct{ ID GroupID }

// Faulted is posted by a member to report that it exited with an error.
type Faulted struct {
	ID  GroupID
	Err error
}

// Heartbeat is posted upward by the heartbeat side-actor.
type Heartbeat struct{}

func (Start) messageKind()             {}
func (Stop) messageKind()              {}
func (Kill) messageKind()              {}
func (Deploy) messageKind()            {}
func (Prune) messageKind()             {}
func (SuperviseWith) messageKind()     {}
func (ApplyCallback) messageKind()     {}
func (InstantiatedChild) messageKind() {}
func (Message) messageKind()           {}
func (RestartRequired) messageKind()   {}
func (FinishedChild) messageKind()     {}
func (RestartSubtree) messageKind()    {}
func (RestoreChild) messageKind()      {}
func (DropChild) messageKind()         {}
func (SetState) messageKind()          {}
func (Stopped) messageKind()           {}
func (Faulted) messageKind()           {}
func (Heartbeat) messageKind()         {}

// Envelope is the unit of transmission between the group, its members,
// and its parent: a tagged message plus enough provenance to route a
// reply. SourcePath carries the sender's dotted supervision path for
// logging.
type Envelope struct {
	Kind       MessageKind
	SourcePath string
	ReplyTo    Sender
}

// NewEnvelope builds an Envelope with the given kind and provenance.
func NewEnvelope(kind MessageKind, sourcePath string, replyTo Sender) Envelope {
	return Envelope{Kind: kind, SourcePath: sourcePath, ReplyTo: replyTo}
}
