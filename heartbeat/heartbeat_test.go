package heartbeat_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/fractalgrid/children/heartbeat"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type countingSender struct{ beats atomic.Int64 }

func (c *countingSender) Beat(context.Context) { c.beats.Add(1) }

func TestRunBeatsUntilCancelled(t *testing.T) {
	send := &countingSender{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		heartbeat.Run(ctx, 5*time.Millisecond, send)
	}()

	require.Eventually(t, func() bool { return send.beats.Load() >= 3 }, time.Second, time.Millisecond)

	cancel()
	<-done

	after := send.beats.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, send.beats.Load(), "no beats after Run returned")
}

func TestRunDisabledByNonPositiveInterval(t *testing.T) {
	send := &countingSender{}
	heartbeat.Run(context.Background(), 0, send)
	assert.Zero(t, send.beats.Load())
}
