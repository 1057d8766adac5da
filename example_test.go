package children_test

import (
	"context"
	"fmt"

	"github.com/fractalgrid/children"
)

// ExampleGroup shows the pre-start buffer at work: messages enqueued
// before Start are held, then replayed in order once Start arrives, so a
// parent can wire a group up and feed it before deciding to open the
// floodgates.
func ExampleGroup() {
	printed := make(chan struct{})
	worker := func(ctx children.Context) error {
		for p := range ctx.Messages() {
			fmt.Println(p)
			if p == "b" {
				close(printed)
			}
		}
		return nil
	}

	g := children.New("printer", children.Sender{}).
		WithExec(worker).
		WithRedundancy(1).
		WithHeartbeatTick(0)

	p, cancel := g.Launch(context.Background())

	ctx := context.Background()
	inbox := g.Inbox()
	inbox.Send(ctx, children.NewEnvelope(children.Message{Payload: "a"}, "", children.Sender{}))
	inbox.Send(ctx, children.NewEnvelope(children.Message{Payload: "b"}, "", children.Sender{}))
	inbox.Send(ctx, children.NewEnvelope(children.Start{}, "", children.Sender{}))

	<-printed
	cancel()
	p.Await(context.Background())
	fmt.Println("group stopped")

	// Output:
	// a
	// b
	// group stopped
}
