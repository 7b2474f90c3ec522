package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"biaseval/internal/api"
	"biaseval/pkg/models"
)

// worker pulls requests, submits them, and classifies failures: a rate
// limit requeues the request and puts this worker to sleep for the fixed
// backoff; a transient server fault requeues with no backoff, up to the
// configured cap; anything else is fatal for the whole pipeline. Workers
// share no state beyond the queues.
func (p *Pipeline) worker(ctx context.Context, id int, wg *sync.WaitGroup) {
	defer wg.Done()

	logger := p.logger.With("worker_id", id)
	logger.Debug("Worker started")

	var backoff bool
	for {
		if backoff {
			backoff = false
			if err := p.cfg.sleep(ctx, p.cfg.RateLimitBackoff); err != nil {
				logger.Debug("Worker stopped during backoff")
				return
			}
		}

		select {
		case <-ctx.Done():
			logger.Debug("Worker stopped")
			return
		case req := <-p.requests:
			if p.cfg.Metrics != nil {
				p.cfg.Metrics.SetQueueDepth("requests", len(p.requests))
			}
			// Cancellation must not abort a submission already in flight;
			// the per-request timeout bounds it instead.
			start := p.cfg.now()
			reply, err := p.cfg.Submitter.Complete(context.WithoutCancel(ctx), req.Parameters, req.Messages)
			if err != nil {
				switch {
				case api.IsRateLimited(err):
					p.stats.rateLimitRetries.Add(1)
					p.observeSubmission(req, "rate_limited", start)
					logger.Debug("Rate limited; requeueing and backing off",
						"item_id", req.Item.ID, "backoff", p.cfg.RateLimitBackoff)
					if !p.requeue(ctx, req, "rate_limited") {
						return
					}
					backoff = true
				case api.IsTransient(err):
					req.TransientRetries++
					if req.TransientRetries > p.cfg.MaxTransientRetries {
						p.observeSubmission(req, "fatal", start)
						p.fail(fmt.Errorf("item %d exhausted %d transient retries: %w",
							req.Item.ID, p.cfg.MaxTransientRetries, err))
						p.releaseOutstanding()
						return
					}
					p.stats.transientRetries.Add(1)
					p.observeSubmission(req, "transient", start)
					logger.Debug("Transient server fault; requeueing",
						"item_id", req.Item.ID, "attempt", req.TransientRetries)
					if !p.requeue(ctx, req, "transient") {
						return
					}
				default:
					p.observeSubmission(req, "fatal", start)
					p.fail(fmt.Errorf("submission for item %d failed: %w", req.Item.ID, err))
					p.releaseOutstanding()
					return
				}
				continue
			}
			p.observeSubmission(req, "success", start)

			result := models.Result{Item: req.Item, Prompt: req.Messages, Reply: *reply}
			select {
			case p.results <- result:
			case <-ctx.Done():
				// Shutdown raced the emit; the result is lost but the item
				// was never recorded, so a resumed run repeats it.
				p.releaseOutstanding()
				logger.Debug("Worker stopped before emitting result", "item_id", req.Item.ID)
				return
			}
		}
	}
}

// requeue re-appends req at the tail of the request queue. The send is
// detached so a full queue cannot wedge the worker, which is itself a
// consumer that frees queue space. Reports false when ctx is done.
func (p *Pipeline) requeue(ctx context.Context, req models.Request, reason string) bool {
	if ctx.Err() != nil {
		p.releaseOutstanding()
		return false
	}
	if p.cfg.Metrics != nil {
		p.cfg.Metrics.IncrementRetry(reason)
	}
	select {
	case p.requests <- req:
		return true
	default:
	}
	go func() {
		select {
		case p.requests <- req:
		case <-ctx.Done():
			p.releaseOutstanding()
		}
	}()
	return true
}

func (p *Pipeline) observeSubmission(req models.Request, outcome string, start time.Time) {
	if p.cfg.Metrics != nil {
		p.cfg.Metrics.RecordSubmission(req.Item.Dataset, outcome, p.cfg.now().Sub(start))
	}
}
