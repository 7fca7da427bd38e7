package core

import (
	"context"
	"fmt"
	"sync"

	"github.com/aretw0/lifecycle"
)

// Producer drives a Feed. It emits changes through f.Emit and returns the
// final response once the feed is exhausted (or cancelled, for live feeds).
type Producer func(ctx context.Context, f *Feed) (ChangesResponse, error)

// Feed is the ChangesFeed implementation shared by the reference backends.
//
// Every listener receives its own copy of Change and ChangesResponse
// payloads, so a listener that rewrites a document never affects another one.
type Feed struct {
	mu        sync.Mutex
	listeners map[Event][]Listener

	producer  Producer
	ctx       context.Context
	cancel    context.CancelFunc
	startOnce  sync.Once
	finishOnce sync.Once
	done       chan struct{}

	resp ChangesResponse
	err  error
}

// NewFeed creates an inert feed. The producer runs on Start or Wait.
func NewFeed(ctx context.Context, p Producer) *Feed {
	ctx, cancel := context.WithCancel(ctx)
	return &Feed{
		listeners: make(map[Event][]Listener),
		producer:  p,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// On implements ChangesFeed.
func (f *Feed) On(event Event, l Listener) ChangesFeed {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners[event] = append(f.listeners[event], l)
	return f
}

// Start implements ChangesFeed.
func (f *Feed) Start() {
	f.startOnce.Do(func() {
		// A panicking producer or listener fails the feed.
		lifecycle.Go(context.WithoutCancel(f.ctx), func(context.Context) error {
			resp, err := f.producer(f.ctx, f)
			f.finish(resp, err)
			return nil
		}, lifecycle.WithErrorHandler(func(err error) {
			f.finish(ChangesResponse{}, fmt.Errorf("changes producer: %w", err))
		}))
	})
}

// Wait implements ChangesFeed.
func (f *Feed) Wait(ctx context.Context) (ChangesResponse, error) {
	f.Start()
	select {
	case <-f.done:
	case <-ctx.Done():
		return ChangesResponse{}, ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return ChangesResponse{}, f.err
	}
	return f.resp.Clone(), nil
}

// Cancel implements ChangesFeed.
func (f *Feed) Cancel() {
	f.cancel()
}

// Done implements ChangesFeed.
func (f *Feed) Done() <-chan struct{} {
	return f.done
}

// Emit delivers payload to the listeners registered for event, in
// registration order, on the calling goroutine.
func (f *Feed) Emit(event Event, payload any) {
	f.mu.Lock()
	ls := append([]Listener(nil), f.listeners[event]...)
	f.mu.Unlock()

	for _, l := range ls {
		l(clonePayload(payload))
	}
}

// finish records the outcome and emits the final event. Only the first
// call has any effect. It also runs from the error handler of the producer
// task, where a panic would not be recovered, so panics of the final
// listeners stop here.
func (f *Feed) finish(resp ChangesResponse, err error) {
	f.finishOnce.Do(func() {
		defer close(f.done)
		defer f.cancel()
		defer func() { _ = recover() }()

		f.mu.Lock()
		f.resp, f.err = resp, err
		f.mu.Unlock()

		if err != nil {
			f.Emit(EventError, err)
			return
		}
		f.Emit(EventComplete, resp)
	})
}

func clonePayload(payload any) any {
	switch p := payload.(type) {
	case Change:
		return p.Clone()
	case ChangesResponse:
		return p.Clone()
	default:
		return payload
	}
}
