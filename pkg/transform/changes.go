package transform

import (
	"context"
	"sync"

	"github.com/aretw0/veneer/pkg/core"
	"github.com/aretw0/veneer/pkg/wrap"
)

// changes wraps the feed so change and complete payloads reach listeners
// transformed, and always from the delivery goroutine rather than the
// emitter's stack.
func (t *Transformer) changes(ctx context.Context, orig wrap.ChangesFunc, args *core.Args) core.ChangesFeed {
	inner := orig()
	return &changesFeed{
		inner: inner,
		t:     t,
		args:  args,
		ctx:   ctx,
		sched: newScheduler(t.logger, inner.Done()),
	}
}

type changesFeed struct {
	inner core.ChangesFeed
	t     *Transformer
	args  *core.Args
	ctx   context.Context
	sched *scheduler

	mu          sync.Mutex
	errorLs     []core.Listener
	failed      error
	failureOnce sync.Once
}

// On implements core.ChangesFeed.
func (f *changesFeed) On(event core.Event, l core.Listener) core.ChangesFeed {
	switch event {
	case core.EventChange:
		f.inner.On(event, func(p any) {
			f.sched.post(func() {
				if f.failure() != nil {
					return
				}
				c, ok := p.(core.Change)
				if !ok {
					l(p)
					return
				}
				c, err := f.modifyChange(f.ctx, c)
				if err != nil {
					f.fail(err)
					return
				}
				l(c)
			})
		})
	case core.EventComplete:
		f.inner.On(event, func(p any) {
			f.sched.post(func() {
				if f.failure() != nil {
					return
				}
				resp, ok := p.(core.ChangesResponse)
				if !ok {
					l(p)
					return
				}
				resp, err := f.modifyChanges(f.ctx, resp)
				if err != nil {
					f.fail(err)
					return
				}
				l(resp)
			})
		})
	case core.EventError:
		f.mu.Lock()
		f.errorLs = append(f.errorLs, l)
		f.mu.Unlock()
		f.inner.On(event, l)
	default:
		f.inner.On(event, l)
	}
	return f
}

// Start implements core.ChangesFeed.
func (f *changesFeed) Start() {
	f.sched.start(f.ctx)
	f.inner.Start()
}

// Wait implements core.ChangesFeed. The final response is transformed once
// every pending delivery has run.
func (f *changesFeed) Wait(ctx context.Context) (core.ChangesResponse, error) {
	f.sched.start(f.ctx)
	resp, err := f.inner.Wait(ctx)
	if err != nil {
		return core.ChangesResponse{}, err
	}
	select {
	case <-f.sched.done:
	case <-ctx.Done():
		return core.ChangesResponse{}, ctx.Err()
	}
	if err := f.failure(); err != nil {
		return core.ChangesResponse{}, err
	}
	return f.modifyChanges(ctx, resp)
}

// Cancel implements core.ChangesFeed.
func (f *changesFeed) Cancel() {
	f.inner.Cancel()
}

// Done implements core.ChangesFeed. It is closed once the inner feed is done
// and every pending delivery has run.
func (f *changesFeed) Done() <-chan struct{} {
	return f.sched.done
}

func (f *changesFeed) modifyChange(ctx context.Context, c core.Change) (core.Change, error) {
	if c.Doc == nil {
		return c, nil
	}
	doc, err := f.t.outgoing(ctx, c.Doc, f.args, OpChanges)
	if err != nil {
		return c, err
	}
	c.Doc = doc
	return c, nil
}

func (f *changesFeed) modifyChanges(ctx context.Context, resp core.ChangesResponse) (core.ChangesResponse, error) {
	err := fanOut(ctx, len(resp.Results), func(ctx context.Context, i int) error {
		c, err := f.modifyChange(ctx, resp.Results[i])
		if err != nil {
			return err
		}
		resp.Results[i] = c
		return nil
	})
	if err != nil {
		return core.ChangesResponse{}, err
	}
	return resp, nil
}

// fail records the first transform failure, stops the inner feed and reports
// the failure to error listeners. Later deliveries are dropped.
func (f *changesFeed) fail(err error) {
	f.failureOnce.Do(func() {
		f.mu.Lock()
		f.failed = err
		ls := append([]core.Listener(nil), f.errorLs...)
		f.mu.Unlock()

		f.t.logger.Warn("changes transform failed", "error", err)
		f.inner.Cancel()
		for _, l := range ls {
			l(err)
		}
	})
}

func (f *changesFeed) failure() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failed
}

var _ core.ChangesFeed = (*changesFeed)(nil)
