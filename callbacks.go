package children

// Callbacks holds the hooks fired at each member's lifecycle events. Any
// hook left nil is skipped. BeforeStart, AfterStart, AfterRestart and
// AfterStop run on the member's own goroutine, in envelope arrival order.
// The group fires BeforeRestart on its own goroutine before it respawns a
// member, and fires AfterStop once more on its own goroutine after a
// group-wide stop.
type Callbacks struct {
	BeforeStart   func()
	AfterStart    func()
	BeforeRestart func()
	AfterRestart  func()
	AfterStop     func()
}

// fire invokes the hook for kind, if one was registered.
func (c Callbacks) fire(kind CallbackKind) {
	var fn func()
	switch kind {
	case CallbackBeforeStart:
		fn = c.BeforeStart
	case CallbackAfterStart:
		fn = c.AfterStart
	case CallbackBeforeRestart:
		fn = c.BeforeRestart
	case CallbackAfterRestart:
		fn = c.AfterRestart
	case CallbackAfterStop:
		fn = c.AfterStop
	}
	if fn != nil {
		fn()
	}
}

// WithBeforeStart sets the before-start hook and returns the receiver.
func (c Callbacks) WithBeforeStart(fn func()) Callbacks { c.BeforeStart = fn; return c }

// WithAfterStart sets the after-start hook and returns the receiver.
func (c Callbacks) WithAfterStart(fn func()) Callbacks { c.AfterStart = fn; return c }

// WithBeforeRestart sets the before-restart hook and returns the receiver.
func (c Callbacks) WithBeforeRestart(fn func()) Callbacks { c.BeforeRestart = fn; return c }

// WithAfterRestart sets the after-restart hook and returns the receiver.
func (c Callbacks) WithAfterRestart(fn func()) Callbacks { c.AfterRestart = fn; return c }

// WithAfterStop sets the after-stop hook and returns the receiver.
func (c Callbacks) WithAfterStop(fn func()) Callbacks { c.AfterStop = fn; return c }
