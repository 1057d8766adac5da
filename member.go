package children

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// memberResult is the outcome a member body reports once it returns: the
// returned error, and whether it was actually a recovered panic.
type memberResult struct {
	err   error
	panic bool
}

// memberHandle combines a member's id, the send side of its mailbox, and
// a cancelable handle onto its running body. Handles never leave this
// package; the owning group is the only thing that holds one.
type memberHandle struct {
	id   GroupID
	path string

	inbox  chan Envelope
	cancel context.CancelFunc

	result *Promise[memberResult]
}

// sender returns the Sender a broadcast registers into its fan-out set to
// reach this member.
func (h *memberHandle) sender() Sender { return Sender{h.inbox} }

// spawnMember starts a member's control loop. The body itself does not
// run until a Start envelope is processed; the caller follows up with
// either Start directly (the launch path) or the SetState,
// ApplyCallback{AfterRestart}, Start triplet (the restart path).
func spawnMember(parentCtx context.Context, id GroupID, path string, init Init, callbacks Callbacks, logger *slog.Logger) *memberHandle {
	ctx, cancel := context.WithCancel(parentCtx)
	result, resolve := NewPromise[memberResult]()

	h := &memberHandle{
		id:     id,
		path:   path,
		inbox:  make(chan Envelope, 32),
		cancel: cancel,
		result: result,
	}

	go h.run(ctx, init, callbacks, logger, resolve)
	return h
}

// run is the member's control loop: it owns the member's inbox, applies
// SetState/ApplyCallback/Start in arrival order, forwards Message
// payloads to the running body, and honors Stop/Kill by cancelling the
// body's context. Once the body returns, it reports upward, resolves
// result, and exits.
func (h *memberHandle) run(ctx context.Context, init Init, callbacks Callbacks, logger *slog.Logger, resolve func(memberResult)) {
	messages := make(chan any, 32)
	var state *ContextState
	var started, stopping, messagesClosed bool
	var bodyDone chan error
	var parent Sender
	doneCh := ctx.Done()

	closeMessages := func() {
		if !messagesClosed {
			messagesClosed = true
			close(messages)
		}
	}
	defer closeMessages()

	for {
		var bodyDoneCh chan error
		if started {
			bodyDoneCh = bodyDone
		}

		select {
		case env, ok := <-h.inbox:
			if !ok {
				return
			}
			if env.ReplyTo.ch != nil {
				parent = env.ReplyTo
			}
			switch m := env.Kind.(type) {
			case Start:
				if started {
					continue // the group re-broadcasts Start on initialize; already-running members ignore it
				}
				started = true
				callbacks.fire(CallbackBeforeStart)
				mctx := newMemberContext(ctx, h.id, h.path, parent, messages, state)
				bodyDone = make(chan error, 1)
				go runMemberBody(mctx, init, bodyDone)
				callbacks.fire(CallbackAfterStart)
			case SetState:
				state = m.State
			case ApplyCallback:
				callbacks.fire(m.Kind)
			case Message:
				if stopping {
					continue // messages channel already closed; the body is draining out
				}
				select {
				case messages <- m.Payload:
				case <-ctx.Done():
				}
			case Stop, Kill:
				stopping = true
				closeMessages()
				h.cancel()
			default:
				logger.Warn("member received a message only the group should see", "path", h.path, "kind", fmt.Sprintf("%T", m))
			}

		case err := <-bodyDoneCh:
			callbacks.fire(CallbackAfterStop)
			res := memberResult{err: err}
			if fe, ok := err.(*faultError); ok {
				res.panic = fe.panic
			}
			resolve(res)
			reportUpward(parent, h.id, h.path, res)
			return

		case <-doneCh:
			// Observed once; nilling the case keeps the select from
			// spinning on the closed channel while the body winds down.
			// Closing messages here is what lets a body blocked in
			// `for range ctx.Messages()` notice the cancellation.
			doneCh = nil
			stopping = true
			closeMessages()
			if !started {
				// Cancelled before any envelope was processed: the envelopes
				// already queued name the group this member reports to.
			learnParent:
				for parent.ch == nil {
					select {
					case env, ok := <-h.inbox:
						if !ok {
							break learnParent
						}
						parent = env.ReplyTo
					default:
						break learnParent
					}
				}
				res := memberResult{err: ctx.Err()}
				resolve(res)
				reportUpward(parent, h.id, h.path, res)
				return
			}
		}
	}
}

// reportUpward sends the member's terminal state to its parent as exactly
// one Stopped or Faulted envelope. A nil error, or plain cancellation
// (the shape Stop/Kill takes), reports Stopped; anything else reports
// Faulted. Termination must be reported even when the member's own
// context is what just ended (a retired member still owes the group its
// Stopped), so the send does not ride that context; the caller resolves
// the result promise first, and the group's buffered mailbox absorbs
// reports that race a shutdown nobody is left to read.
func reportUpward(parent Sender, id GroupID, path string, res memberResult) {
	if res.err == nil || errors.Is(res.err, context.Canceled) {
		parent.Send(context.Background(), NewEnvelope(Stopped{ID: id}, path, Sender{}))
		return
	}
	parent.Send(context.Background(), NewEnvelope(Faulted{ID: id, Err: res.err}, path, Sender{}))
}

// runMemberBody runs a member's Init, recovering a panic into a
// *faultError rather than letting it cross the goroutine boundary and
// take the whole process down.
func runMemberBody(ctx Context, init Init, done chan<- error) {
	defer func() {
		if r := recover(); r != nil {
			done <- &faultError{cause: fmt.Errorf("member panicked: %v", r), panic: true}
		}
	}()
	done <- init(ctx)
}
