package routing

import (
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/clock"
)

// Refresher schedules cooperative DHC refresh passes against an event
// loop, per section 4.3's lifecycle. It is safe for concurrent use by
// the code paths spec.md describes as running on the single event-loop
// thread: immediate_trigger (e.g. on gossip catching up) and
// deferred_trigger (once per new block).
type Refresher struct {
	graph  Graph
	dhc    *DHC
	clock  clock.Clock
	coster *Coster

	deferTime time.Duration

	mu        sync.Mutex
	process   *refreshProcess
	deferred  *time.Timer
	callback  RefreshCallback
	cycleStart time.Time
}

// NewRefresher returns a Refresher for dhc over graph, using the system
// clock and the default 10s defer time.
func NewRefresher(graph Graph, dhc *DHC, cb RefreshCallback) *Refresher {
	return &Refresher{
		graph:     graph,
		dhc:       dhc,
		clock:     clock.NewDefaultClock(),
		coster:    NewCoster(),
		deferTime: DefaultDeferTime,
		callback:  cb,
	}
}

// SetCoster overrides the Coster used by future refresh passes, letting a
// caller inject one built from config.RouterConfig instead of the package
// defaults. Has no effect on a refresh already in flight.
func (r *Refresher) SetCoster(c *Coster) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.coster = c
}

// ImmediateTrigger cancels any pending deferred timer and, if no refresh
// is currently running, starts one on a 0-delay wake. A no-op if a
// refresh is already in flight.
func (r *Refresher) ImmediateTrigger() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.deferred != nil {
		r.deferred.Stop()
		r.deferred = nil
	}

	if r.process != nil {
		return
	}

	r.process = newRefreshProcess(r.graph, r.dhc, r.coster, r.clock)
	r.cycleStart = r.clock.Now()
	r.wake()
}

// DeferredTrigger installs a defer_time timer calling ImmediateTrigger,
// unless a refresh or deferred trigger is already pending. Intended to
// be called once per new block, giving gossip time to catch up.
func (r *Refresher) DeferredTrigger() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.process != nil || r.deferred != nil {
		return
	}

	r.deferred = time.AfterFunc(r.deferTime, r.ImmediateTrigger)
}

// wake runs the current process until it yields or terminates, then
// either installs a short sleep timer to continue it or finalizes it.
// Must be called with r.mu held.
func (r *Refresher) wake() {
	process := r.process

	go func() {
		done := process.run()

		r.mu.Lock()
		defer r.mu.Unlock()

		if r.process != process {
			// A newer process superseded this one; drop our result.
			return
		}

		if !done {
			go func() {
				<-r.clock.TickAfter(defaultYieldDelay)
				r.mu.Lock()
				r.wake()
				r.mu.Unlock()
			}()
			return
		}

		r.process = nil
		refreshDuration.Observe(r.clock.Now().Sub(r.cycleStart).Seconds())

		if process.succeeded() {
			r.dhc.Flip()
			if r.callback != nil {
				r.callback(process.coster)
			}
			return
		}

		// Failed: drop the process and schedule a deferred retry.
		r.deferred = time.AfterFunc(r.deferTime, r.ImmediateTrigger)
	}()
}
