package spark

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestFinishCancelsUnfinishedSparks verifies that Finish cancels every
// spark that hasn't yet signalled completion, per section 4.6/5: sparks
// still blocked on their outbound call observe ctx.Done() once the owning
// command finishes.
func TestFinishCancelsUnfinishedSparks(t *testing.T) {
	cmd := NewCommand(context.Background())

	started := make(chan struct{})
	cancelled := int32(0)

	s := StartSpark(cmd, func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		atomic.StoreInt32(&cancelled, 1)
		return ctx.Err()
	})

	<-started
	cmd.Finish()

	err := WaitSpark(cmd, s)
	require.Error(t, err)

	// Give the body's own goroutine a moment to observe cancellation and
	// set the flag before asserting on it.
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&cancelled) == 1
	}, time.Second, time.Millisecond)
}

// TestStartSparkSkipsBodyIfAlreadyCancelled asserts that a spark started
// against an already-finished command never runs its body at all.
func TestStartSparkSkipsBodyIfAlreadyCancelled(t *testing.T) {
	cmd := NewCommand(context.Background())
	cmd.Finish()

	ran := int32(0)
	s := StartSpark(cmd, func(ctx context.Context) error {
		atomic.StoreInt32(&ran, 1)
		return nil
	})

	_ = WaitSpark(cmd, s)
	require.EqualValues(t, 0, atomic.LoadInt32(&ran))
}

// TestWaitAllSparksInvokesCallbackAfterCompletion checks that the
// callback only fires once every spark has signalled, not before.
func TestWaitAllSparksInvokesCallbackAfterCompletion(t *testing.T) {
	cmd := NewCommand(context.Background())

	var completed int32
	var sparks []*Spark
	for i := 0; i < 3; i++ {
		sparks = append(sparks, StartSpark(cmd, func(ctx context.Context) error {
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt32(&completed, 1)
			return nil
		}))
	}

	cbFired := make(chan struct{})
	WaitAllSparks(cmd, sparks, func() {
		close(cbFired)
	})

	select {
	case <-cbFired:
	default:
		t.Fatal("callback did not fire synchronously with WaitAllSparks return")
	}
	require.EqualValues(t, 3, atomic.LoadInt32(&completed))
}

// TestFanoutSurfacesFirstError checks that Fanout waits for every item to
// finish even when one returns an error, and that the error is
// eventually surfaced rather than silently dropped.
func TestFanoutSurfacesFirstError(t *testing.T) {
	cmd := NewCommand(context.Background())

	var ran int32
	errBoom := errors.New("boom")

	err := Fanout(cmd, 5, func(ctx context.Context, i int) error {
		atomic.AddInt32(&ran, 1)
		if i == 2 {
			return errBoom
		}
		return nil
	})

	require.ErrorIs(t, err, errBoom)
	require.EqualValues(t, 5, atomic.LoadInt32(&ran))
}

// TestFanoutAllSucceed confirms a nil error when every item succeeds.
func TestFanoutAllSucceed(t *testing.T) {
	cmd := NewCommand(context.Background())

	err := Fanout(cmd, 4, func(ctx context.Context, i int) error {
		return nil
	})
	require.NoError(t, err)
}
