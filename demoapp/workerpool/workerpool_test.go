package workerpool

// This demo runs a fixed-size pool of identical workers under one group:
// jobs fan out to every member, and a single Stop envelope tears the
// whole pool down, helpers first.

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fractalgrid/children"
)

type job struct {
	ID int
}

func TestWorkerPool(t *testing.T) {
	var handled atomic.Int64

	worker := func(ctx children.Context) error {
		for p := range ctx.Messages() {
			j := p.(job)
			// Pretend this is slow :)
			handled.Add(1)
			_ = j
		}
		return nil
	}

	g := children.New("pool", children.Sender{}).
		WithExec(worker).
		WithRedundancy(4).
		WithHeartbeatTick(50 * time.Millisecond)

	done := make(chan error, 1)
	ctx := context.Background()
	go func() { done <- g.Run(ctx) }()

	inbox := g.Inbox()
	inbox.Send(ctx, children.NewEnvelope(children.Start{}, "demo", children.Sender{}))

	for i := 0; i < 8; i++ {
		inbox.Send(ctx, children.NewEnvelope(children.Message{Payload: job{ID: i}}, "demo", children.Sender{}))
	}

	// Every job reaches every member of the pool.
	deadline := time.Now().Add(2 * time.Second)
	for handled.Load() < 8*4 {
		if time.Now().After(deadline) {
			t.Fatalf("handled %d of %d", handled.Load(), 8*4)
		}
		time.Sleep(time.Millisecond)
	}

	inbox.Send(ctx, children.NewEnvelope(children.Stop{}, "demo", children.Sender{}))
	if err := <-done; err != children.ErrStopped {
		t.Fatalf("expected clean stop, got %v", err)
	}
	fmt.Printf("pool handled %d deliveries\n", handled.Load())
}
