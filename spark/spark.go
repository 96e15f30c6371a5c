// Package spark provides the cooperative fan-out task primitive described
// in section 4.6: a sub-task bound to an owning command, automatically
// cancelled once that command completes, letting a single command body
// issue several outbound calls concurrently and rejoin once all of them
// signal completion.
package spark

import (
	"context"
	"sync"

	"github.com/btcsuite/btclog"
	"golang.org/x/sync/errgroup"
)

// log is the package-scoped logger, wired at startup like every other
// subsystem's.
var log = btclog.Disabled

// UseLogger sets the package-wide logger.
func UseLogger(logger btclog.Logger) {
	log = logger
}

// Command owns a set of sparks. When the command completes (successfully
// or not), every spark it started that hasn't yet signalled completion is
// cancelled: in-flight responses to their outbound calls are abandoned
// and discarded, per section 4.6/5.
type Command struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	done    bool
	sparks  []*Spark
}

// NewCommand returns a new Command bound to parent. Cancelling parent
// also cancels every spark the command owns.
func NewCommand(parent context.Context) *Command {
	ctx, cancel := context.WithCancel(parent)
	return &Command{ctx: ctx, cancel: cancel}
}

// Finish marks the command complete, cancelling any spark that has not
// yet signalled completion. Safe to call more than once.
func (c *Command) Finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return
	}
	c.done = true
	c.cancel()
}

// Context returns the command's context, cancelled on Finish.
func (c *Command) Context() context.Context { return c.ctx }

// Spark is one cooperatively-scheduled sub-task of a Command. Nothing in
// this package limits a spark to one waiter: WaitSpark may be called for
// the same spark from any number of goroutines.
type Spark struct {
	cmd  *Command
	done chan struct{}
	once sync.Once
}

// StartSpark creates a task bound to cmd that begins running body
// immediately in its own goroutine; per section 4.6 the conceptual
// "begins on next yield" is realized here as "begins concurrently, but
// every outbound call inside body must check cmd.Context() before
// proceeding" -- bodies written against this package do so by passing
// cmd.Context() into whatever blocking call they issue.
func StartSpark(cmd *Command, body func(ctx context.Context) error) *Spark {
	s := &Spark{cmd: cmd, done: make(chan struct{})}

	cmd.mu.Lock()
	cmd.sparks = append(cmd.sparks, s)
	cmd.mu.Unlock()

	go func() {
		defer s.signalComplete()

		if err := cmd.ctx.Err(); err != nil {
			// Already cancelled before we even started; body
			// issued no outbound calls, so there's nothing to
			// abandon.
			return
		}

		if err := body(cmd.ctx); err != nil {
			log.Debugf("spark body returned error: %v", err)
		}
	}()

	return s
}

// signalComplete is the Go equivalent of spark_complete(token): it is
// called exactly once, whether the body finished normally or was
// cancelled mid-flight.
func (s *Spark) signalComplete() {
	s.once.Do(func() { close(s.done) })
}

// WaitSpark blocks until s signals completion or cmd is cancelled.
func WaitSpark(cmd *Command, s *Spark) error {
	select {
	case <-s.done:
		return nil
	case <-cmd.ctx.Done():
		return cmd.ctx.Err()
	}
}

// WaitAllSparks blocks until every spark in sparks has signalled
// completion (or cmd is cancelled), then clears the caller's spark
// handles by setting every element of sparks to nil, per section 4.6,
// and invokes cb.
func WaitAllSparks(cmd *Command, sparks []*Spark, cb func()) {
	var g errgroup.Group
	for _, s := range sparks {
		s := s
		g.Go(func() error {
			return WaitSpark(cmd, s)
		})
	}

	if err := g.Wait(); err != nil {
		log.Debugf("wait_all_sparks: %v", err)
	}

	for i := range sparks {
		sparks[i] = nil
	}

	if cb != nil {
		cb()
	}
}

// Fanout runs one spark per item in a fixed-size batch, using an
// errgroup so the first error is preserved and every spark still
// completes (or is abandoned on cancellation) before Fanout returns --
// the common "per-destination parallel step, wait for all, then surface
// the first failure" pattern used throughout the funding orchestrator
// (section 4.7 steps 4 and 6).
func Fanout(cmd *Command, n int, body func(ctx context.Context, i int) error) error {
	var g errgroup.Group
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			errs[i] = body(cmd.ctx, i)
			return nil
		})
	}
	_ = g.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
