package remote

import (
	"context"
	"net/http"
	"time"

	"github.com/aretw0/veneer/pkg/core"
)

// StatusCancelled is the final status of a live feed stopped by its consumer.
const StatusCancelled = "cancelled"

// Changes implements core.Database. The server only answers normal feeds,
// so a live feed polls it every poll interval.
func (c *Client) Changes(ctx context.Context, opts core.Options) core.ChangesFeed {
	opts = opts.Clone()
	live := opts.Has(core.OptLive)
	delete(opts, core.OptLive)

	return core.NewFeed(ctx, func(ctx context.Context, f *core.Feed) (core.ChangesResponse, error) {
		if !live {
			return c.poll(ctx, f, opts)
		}
		return c.follow(ctx, f, opts)
	})
}

func (c *Client) poll(ctx context.Context, f *core.Feed, opts core.Options) (core.ChangesResponse, error) {
	var resp core.ChangesResponse
	if err := c.do(ctx, http.MethodGet, c.endpoint("_changes", opts), nil, &resp); err != nil {
		return core.ChangesResponse{}, err
	}
	if resp.Results == nil {
		resp.Results = []core.Change{}
	}
	for _, ch := range resp.Results {
		f.Emit(core.EventChange, ch)
	}
	return resp, nil
}

func (c *Client) follow(ctx context.Context, f *core.Feed, opts core.Options) (core.ChangesResponse, error) {
	limit := opts.Int(core.OptLimit, 0)
	total := core.ChangesResponse{Results: []core.Change{}}
	paused := false

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		batch, err := c.fetch(ctx, opts)
		if err != nil {
			if ctx.Err() != nil {
				total.Status = StatusCancelled
				return total, nil
			}
			return core.ChangesResponse{}, err
		}

		if paused && len(batch.Results) > 0 {
			f.Emit(core.EventActive, nil)
			paused = false
		}
		for _, ch := range batch.Results {
			f.Emit(core.EventChange, ch)
			total.Results = append(total.Results, ch)
			if limit > 0 && len(total.Results) >= limit {
				total.LastSeq = ch.Seq
				return total, nil
			}
		}
		total.LastSeq = batch.LastSeq
		opts[core.OptSince] = batch.LastSeq

		if !paused {
			f.Emit(core.EventPaused, nil)
			paused = true
		}
		select {
		case <-ctx.Done():
			total.Status = StatusCancelled
			return total, nil
		case <-ticker.C:
		}
	}
}

func (c *Client) fetch(ctx context.Context, opts core.Options) (core.ChangesResponse, error) {
	var resp core.ChangesResponse
	err := c.do(ctx, http.MethodGet, c.endpoint("_changes", opts), nil, &resp)
	return resp, err
}
