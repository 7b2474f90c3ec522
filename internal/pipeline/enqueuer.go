package pipeline

import (
	"context"
	"errors"
	"fmt"

	"biaseval/pkg/models"
)

// enqueue walks the source in order, skips ids the resume scan already
// recorded, and turns each remaining item into a request without exceeding
// the configured rate ceiling. Waiting for credit blocks only this stage;
// a full request queue propagates backpressure to the source.
func (p *Pipeline) enqueue(ctx context.Context) {
	err := p.cfg.Source.Each(func(item models.Item) error {
		if _, done := p.resumed[item.ID]; done {
			p.stats.skipped.Add(1)
			if p.cfg.Metrics != nil {
				p.cfg.Metrics.IncrementSkipped()
			}
			p.logger.Debug("Skipping already-evaluated item", "item_id", item.ID)
			return nil
		}

		waitStart := p.cfg.now()
		if err := p.throttle.wait(ctx); err != nil {
			return err
		}
		if p.cfg.Metrics != nil {
			p.cfg.Metrics.RecordThrottleWait(p.cfg.now().Sub(waitStart))
		}

		messages, err := p.cfg.Renderer.Render(item)
		if err != nil {
			return fmt.Errorf("failed to render prompt for item %d: %w", item.ID, err)
		}

		p.addOutstanding()
		select {
		case p.requests <- models.Request{
			Parameters: p.cfg.Parameters,
			Messages:   messages,
			Item:       item,
		}:
			p.stats.enqueued.Add(1)
			if p.cfg.Metrics != nil {
				p.cfg.Metrics.SetQueueDepth("requests", len(p.requests))
			}
			return nil
		case <-ctx.Done():
			p.releaseOutstanding()
			return ctx.Err()
		}
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		p.fail(fmt.Errorf("failed to enqueue work items: %w", err))
		return
	}

	p.markEnqueueFinished()
	p.logger.Info("Work source exhausted",
		"enqueued", p.stats.enqueued.Load(),
		"skipped", p.stats.skipped.Load())
}
