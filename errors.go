package children

import (
	"errors"
	"fmt"
)

// faultError wraps a member body's returned error, remembering whether it
// was actually a recovered panic. It is only constructed inside this
// package, at the member-body boundary.
type faultError struct {
	cause error
	panic bool
}

func (e *faultError) Error() string {
	if e.panic {
		return fmt.Sprintf("member panicked: %v", e.cause)
	}
	return e.cause.Error()
}

func (e *faultError) Unwrap() error { return e.cause }

// FaultError is what a group's parent observes inside the Faulted
// envelope when a member's body failed: the triggering member's id, the
// underlying error, and whether the failure was a panic.
type FaultError struct {
	Member GroupID
	Panic  bool
	Err    error
}

func (e *FaultError) Error() string {
	if e.Panic {
		return fmt.Sprintf("member %s panicked: %v", e.Member, e.Err)
	}
	return fmt.Sprintf("member %s faulted: %v", e.Member, e.Err)
}

func (e *FaultError) Unwrap() error { return e.Err }

// wrapFault builds the FaultError reported upward for member id, peeling
// the internal panic marker off cause if present.
func wrapFault(id GroupID, cause error) *FaultError {
	fe := &FaultError{Member: id, Err: cause}
	var inner *faultError
	if errors.As(cause, &inner) {
		fe.Panic = inner.panic
		fe.Err = inner.cause
	}
	return fe
}

// ErrStopped is returned by Run once the group has processed a Stop or
// Kill envelope and finished tearing down. Match it with errors.Is.
var ErrStopped error = errGroupStopped

// ErrUnimplemented matches (via errors.Is) the error Run returns when the
// group receives one of the accepted-but-unimplemented message kinds
// (Deploy, Prune, SuperviseWith). The group does not recover from these;
// the error names which kind arrived.
var ErrUnimplemented error = &unimplementedError{kind: "this message kind"}

type unimplementedError struct {
	kind string
}

func (e *unimplementedError) Error() string {
	return fmt.Sprintf("children: %s is not implemented by this group", e.kind)
}

// Is lets errors.Is(err, ErrUnimplemented) match any unimplementedError
// regardless of which message kind it names.
func (e *unimplementedError) Is(target error) bool {
	_, ok := target.(*unimplementedError)
	return ok
}

func errUnimplementedKind(kind string) error {
	return &unimplementedError{kind: kind}
}

// errProtocolViolation panics with a message naming the violated rule.
// These are programming errors (misuse of the API), not runtime faults a
// caller could recover from.
func errProtocolViolation(format string, args ...any) {
	panic(fmt.Sprintf("children: protocol violation: "+format, args...))
}
