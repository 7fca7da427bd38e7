package transform

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/lifecycle"
)

// scheduler runs posted tasks one at a time, in order, on its own goroutine.
// Posting never blocks and never runs the task on the caller's stack.
// The scheduler stops once until is closed and the queue is drained.
type scheduler struct {
	logger *slog.Logger
	until  <-chan struct{}

	mu    sync.Mutex
	queue []func()
	wake  chan struct{}

	once sync.Once
	done chan struct{}
}

func newScheduler(logger *slog.Logger, until <-chan struct{}) *scheduler {
	return &scheduler{
		logger: logger,
		until:  until,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// start launches the worker goroutine. It is idempotent.
func (s *scheduler) start(ctx context.Context) {
	s.once.Do(func() {
		// Delivery must outlive the caller's context: a cancelled feed still
		// reports its final batch.
		lifecycle.Go(context.WithoutCancel(ctx), func(context.Context) error {
			s.run()
			return nil
		}, lifecycle.WithErrorHandler(func(err error) {
			s.logger.Error("change delivery stopped", "error", err)
		}))
	})
}

func (s *scheduler) post(task func()) {
	s.mu.Lock()
	s.queue = append(s.queue, task)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *scheduler) next() (func(), bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return nil, false
	}
	task := s.queue[0]
	s.queue[0] = nil
	s.queue = s.queue[1:]
	return task, true
}

func (s *scheduler) run() {
	defer close(s.done)
	for {
		if task, ok := s.next(); ok {
			s.exec(task)
			continue
		}
		select {
		case <-s.wake:
		case <-s.until:
			for {
				task, ok := s.next()
				if !ok {
					return
				}
				s.exec(task)
			}
		}
	}
}

func (s *scheduler) exec(task func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("change listener panicked", "error", fmt.Sprint(r))
		}
	}()
	task()
}
