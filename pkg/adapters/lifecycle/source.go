// Package lifecycle bridges database changes into lifecycle event sources.
package lifecycle

import (
	"context"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/veneer/pkg/core"
)

type changeSource struct {
	open func(ctx context.Context) (<-chan core.Change, error)
	out  chan lifecycle.Event
}

// NewSource creates a lifecycle.Source that emits the given changes.
// It bridges the typed change channel to the generic lifecycle Event interface.
func NewSource(changes <-chan core.Change) lifecycle.Source {
	return &changeSource{
		open: func(context.Context) (<-chan core.Change, error) { return changes, nil },
		out:  make(chan lifecycle.Event),
	}
}

// NewDatabaseSource creates a lifecycle.Source following the live changes of
// db from Start until its context ends. Passing a database with transforms
// installed yields transformed documents.
func NewDatabaseSource(db core.Database, opts core.Options) lifecycle.Source {
	svc := core.NewService(db, 0)
	return &changeSource{
		open: func(ctx context.Context) (<-chan core.Change, error) { return svc.Watch(ctx, opts) },
		out:  make(chan lifecycle.Event),
	}
}

func (s *changeSource) Events() <-chan lifecycle.Event {
	return s.out
}

func (s *changeSource) Start(ctx context.Context) error {
	changes, err := s.open(ctx)
	if err != nil {
		return err
	}
	// 1. Bridges the change channel to the generic lifecycle Event interface
	// 2. Uses lifecycle.Go to ensure the bridge itself is tracked and safe
	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer close(s.out)
		for {
			select {
			case <-ctx.Done():
				return nil
			case c, ok := <-changes:
				if !ok {
					return nil
				}
				// core.Change implements lifecycle.Event (has String())
				select {
				case s.out <- c:
				case <-ctx.Done():
					return nil
				}
			}
		}
	})
	return nil
}
