package children

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fractalgrid/children/registry"
)

// A restarted member keeps its predecessor's id, observes the restored
// state before any user message, and fires the AfterRestart hook exactly
// once, after SetState and before its body runs.
func TestRestartPreservesIdAndState(t *testing.T) {
	boom := errors.New("boom")

	events := make(chan string, 16)
	var faultedOnce atomic.Bool
	body := func(ctx Context) error {
		if faultedOnce.CompareAndSwap(false, true) {
			return boom
		}
		if s := ctx.State(); s != nil {
			events <- "body-sees:" + s.User.(string)
		}
		for p := range ctx.Messages() {
			events <- "msg:" + p.(string)
		}
		return nil
	}

	var afterRestarts atomic.Int64
	cb := Callbacks{}.WithAfterRestart(func() {
		afterRestarts.Add(1)
		events <- "after-restart"
	})

	parentCh := make(chan Envelope, 64)
	reg := registry.NewInMemory()
	g := New("workers", Sender{parentCh}).
		WithExec(body).
		WithRedundancy(1).
		WithCallbacks(cb).
		WithRegistry(reg).
		WithDispatcher("events")
	groupID := g.ID()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- g.Run(ctx) }()

	g.Inbox().Send(ctx, NewEnvelope(Start{}, "", Sender{}))

	// The first incarnation faults immediately; collect the sweep.
	var victim GroupID
	deadline := time.After(2 * time.Second)
	for victim == "" {
		select {
		case env := <-parentCh:
			if rr, ok := env.Kind.(RestartRequired); ok {
				assert.Equal(t, groupID, rr.ParentID)
				victim = rr.ID
			}
		case <-deadline:
			t.Fatal("timed out waiting for RestartRequired")
		}
	}

	// The escalation pulled the dispatchers; the restore puts them back.
	assert.False(t, reg.Has(g.Path(), "events"))

	restored := NewContextState().WithUser("S")
	g.Inbox().Send(ctx, NewEnvelope(RestoreChild{ID: victim, State: restored}, "", Sender{}))

	require.Eventually(t, func() bool { return g.Snapshot().Launched == 1 }, time.Second, time.Millisecond)
	assert.True(t, reg.Has(g.Path(), "events"))
	snap := g.Snapshot()
	require.Len(t, snap.Members, 1)
	assert.Equal(t, victim, snap.Members[0], "restarted member keeps its old id")
	assert.Equal(t, groupID, g.ID(), "restart does not reset the group id")

	g.Inbox().Send(ctx, NewEnvelope(Message{Payload: "hello"}, "", Sender{}))

	assert.Equal(t, "after-restart", <-events)
	assert.Equal(t, "body-sees:S", <-events)
	assert.Equal(t, "msg:hello", <-events)
	assert.EqualValues(t, 1, afterRestarts.Load())
}

// Restarting an id the group no longer tracks is ignored rather than
// spawning a stray member, and restarting a live id is a no-op.
func TestRestartUnknownOrLiveIdIgnored(t *testing.T) {
	var processed atomic.Int64
	g := New("workers", Sender{}).WithExec(echoWorker(&processed)).WithRedundancy(1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Run(ctx) }()

	require.Eventually(t, func() bool { return g.Snapshot().Launched == 1 }, time.Second, time.Millisecond)
	g.Inbox().Send(ctx, NewEnvelope(Start{}, "", Sender{}))

	live := g.Snapshot().Members[0]
	g.Inbox().Send(ctx, NewEnvelope(RestoreChild{ID: live, State: nil}, "", Sender{}))
	g.Inbox().Send(ctx, NewEnvelope(RestoreChild{ID: "never-existed", State: nil}, "", Sender{}))

	// Neither restore may change membership; drive one more envelope
	// through to be sure both were dispatched.
	g.Inbox().Send(ctx, NewEnvelope(Message{Payload: "ping"}, "", Sender{}))
	require.Eventually(t, func() bool { return processed.Load() == 1 }, time.Second, time.Millisecond)

	snap := g.Snapshot()
	assert.Equal(t, 1, snap.Launched)
	assert.Equal(t, live, snap.Members[0])

	cancel()
	<-done
}
