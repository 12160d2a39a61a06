package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/shiftdesk/internal/logging"
	"github.com/dmitrijs2005/shiftdesk/internal/metrics"
)

type (
	refreshFunc  func(ctx context.Context) error
	replayFunc   func(ctx context.Context, req *Request, dispatched func()) (*Response, error)
	teardownFunc func(ctx context.Context)
)

// continuation is a caller parked behind an in-flight refresh.
type continuation struct {
	req      *Request
	result   chan error
	released chan struct{}
	release  func()
}

func newContinuation(req *Request) *continuation {
	c := &continuation{
		req:      req,
		result:   make(chan error, 1),
		released: make(chan struct{}),
	}
	c.release = sync.OnceFunc(func() { close(c.released) })
	return c
}

// refresher runs at most one credential refresh at a time. Callers that hit
// an expired session while a refresh is running are queued and, once it
// succeeds, replayed in arrival order; the next waiter is only released
// after the previous one has dispatched its replay.
type refresher struct {
	mu         sync.Mutex
	refreshing bool
	queue      []*continuation

	refresh  refreshFunc
	replay   replayFunc
	teardown teardownFunc
	logger   logging.Logger
}

func newRefresher(refresh refreshFunc, replay replayFunc, teardown teardownFunc, logger logging.Logger) *refresher {
	return &refresher{
		refresh:  refresh,
		replay:   replay,
		teardown: teardown,
		logger:   logger,
	}
}

// handle takes over a request that failed with 401.
func (r *refresher) handle(ctx context.Context, req *Request) (*Response, error) {
	req.retried = true

	r.mu.Lock()
	if r.refreshing {
		c := newContinuation(req)
		r.queue = append(r.queue, c)
		queued := len(r.queue)
		r.mu.Unlock()

		metrics.QueuedRequests.Set(float64(queued))
		r.logger.Debug(ctx, "request queued behind credential refresh", "path", req.Path, "queued", queued)
		return r.wait(ctx, c)
	}
	r.refreshing = true
	r.mu.Unlock()

	r.logger.Info(ctx, "refreshing credentials")
	queue, err := r.run(context.WithoutCancel(ctx))
	if err != nil {
		metrics.Refreshes.WithLabelValues("failure").Inc()
		r.logger.Warn(ctx, "credential refresh failed", "error", err, "queued", len(queue))
		for _, c := range queue {
			c.result <- err
		}
		if r.teardown != nil {
			r.teardown(ctx)
		}
		return nil, err
	}

	metrics.Refreshes.WithLabelValues("success").Inc()
	r.logger.Info(ctx, "credentials refreshed", "queued", len(queue))
	for _, c := range queue {
		c.result <- nil
		<-c.released
	}
	return r.replay(ctx, req, nil)
}

// run issues the refresh call and hands back the drained queue. The flag is
// reset on every path, including a panic in the refresh call.
func (r *refresher) run(ctx context.Context) (queue []*continuation, err error) {
	defer func() {
		queue = r.drain()
		if p := recover(); p != nil {
			for _, c := range queue {
				c.result <- fmt.Errorf("credential refresh panicked: %v", p)
			}
			panic(p)
		}
	}()
	return nil, r.refresh(ctx)
}

func (r *refresher) drain() []*continuation {
	r.mu.Lock()
	defer r.mu.Unlock()

	queue := r.queue
	r.queue = nil
	r.refreshing = false
	metrics.QueuedRequests.Set(0)
	return queue
}

func (r *refresher) wait(ctx context.Context, c *continuation) (*Response, error) {
	defer c.release()

	select {
	case err := <-c.result:
		if err != nil {
			return nil, err
		}
		return r.replay(ctx, c.req, c.release)
	case <-ctx.Done():
		r.remove(c)
		return nil, fmt.Errorf("waiting for credential refresh: %w", ctx.Err())
	}
}

func (r *refresher) remove(c *continuation) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, q := range r.queue {
		if q == c {
			r.queue = append(r.queue[:i], r.queue[i+1:]...)
			metrics.QueuedRequests.Set(float64(len(r.queue)))
			return
		}
	}
}

func (r *refresher) pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

func (r *refresher) inFlight() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.refreshing
}
