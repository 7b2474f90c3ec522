package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"biaseval/internal/metrics"
	"biaseval/pkg/models"
)

// ErrInvalidConfig marks configuration errors detected before the pipeline
// starts. They are never retried.
var ErrInvalidConfig = errors.New("invalid pipeline configuration")

// Source yields work items in a stable order, one at a time
type Source interface {
	Each(fn func(models.Item) error) error
}

// Renderer turns an item into the ordered prompt turns submitted for it.
// The renderer for a run is chosen once, at pipeline construction.
type Renderer interface {
	Render(item models.Item) ([]models.Message, error)
}

// Submitter submits one rendered request to the completion endpoint
type Submitter interface {
	Complete(ctx context.Context, params models.RequestParameters, messages []models.Message) (*models.Reply, error)
}

// State is the orchestrator's lifecycle state
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateDraining
	StateFailing
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateFailing:
		return "failing"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// Config wires a pipeline. Queues are constructed by New and injected into
// every stage; tests substitute fakes through the three interfaces and the
// unexported clock hooks.
type Config struct {
	Source     Source
	Renderer   Renderer
	Submitter  Submitter
	Parameters models.RequestParameters

	// OutputPath is the append-only results log, also scanned for resume.
	OutputPath string

	MaxRequestsPerMinute int
	Workers              int

	// QueueSize bounds both inter-stage queues. Defaults to Workers.
	QueueSize int
	// RateLimitBackoff is how long a worker sleeps after the API signals a
	// rate limit. Defaults to 10s.
	RateLimitBackoff time.Duration
	// MaxTransientRetries caps requeues for a single request on transient
	// server faults; exceeding it is fatal. Zero means the first transient
	// fault already aborts the run; the config layer supplies the default.
	MaxTransientRetries int
	// ShutdownGrace bounds how long each stage is given to stop before it
	// is abandoned. Defaults to 5s.
	ShutdownGrace time.Duration

	// OnResult, if set, is called after each result is durably appended.
	OnResult func(models.Result)

	Metrics *metrics.Collector
	Logger  *slog.Logger

	// Test hooks. Production uses the real clock.
	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

func (c *Config) validate() error {
	if c.MaxRequestsPerMinute <= 0 {
		return fmt.Errorf("%w: max_requests_per_minute must be greater than 0", ErrInvalidConfig)
	}
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be at least 1", ErrInvalidConfig)
	}
	if c.Source == nil || c.Renderer == nil || c.Submitter == nil {
		return fmt.Errorf("%w: source, renderer, and submitter are required", ErrInvalidConfig)
	}
	if c.OutputPath == "" {
		return fmt.Errorf("%w: output path is required", ErrInvalidConfig)
	}
	return nil
}

// Pipeline evaluates a stream of items against the completion endpoint
// under a request-rate ceiling, persisting results durably as they finish.
type Pipeline struct {
	cfg      Config
	throttle *throttle
	requests chan models.Request
	results  chan models.Result
	resumed  map[int64]struct{}
	logger   *slog.Logger

	state atomic.Int32

	// One outstanding entry per enqueued request, released when its result
	// is persisted or the request is dropped during failure teardown.
	// drained closes once the source is exhausted and outstanding is zero.
	outstanding atomic.Int64
	enqFinished atomic.Bool
	drained     chan struct{}
	drainOnce   sync.Once

	failOnce  sync.Once
	fatalErr  error
	fatalCh   chan struct{}
	cancelRun context.CancelFunc

	stats struct {
		runID            string
		startTime        time.Time
		endTime          time.Time
		skipped          atomic.Int64
		enqueued         atomic.Int64
		persisted        atomic.Int64
		rateLimitRetries atomic.Int64
		transientRetries atomic.Int64
	}
}

// New validates cfg and constructs a pipeline. Configuration errors are
// reported here, before any goroutine starts.
func New(cfg Config) (*Pipeline, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = cfg.Workers
	}
	if cfg.RateLimitBackoff <= 0 {
		cfg.RateLimitBackoff = 10 * time.Second
	}
	if cfg.MaxTransientRetries < 0 {
		cfg.MaxTransientRetries = 0
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}
	if cfg.sleep == nil {
		cfg.sleep = sleepContext
	}

	p := &Pipeline{
		cfg:      cfg,
		throttle: newThrottle(cfg.MaxRequestsPerMinute, cfg.now, cfg.sleep),
		requests: make(chan models.Request, cfg.QueueSize),
		results:  make(chan models.Result, cfg.QueueSize),
		logger:   cfg.Logger,
		drained:  make(chan struct{}),
		fatalCh:  make(chan struct{}),
	}
	p.state.Store(int32(StateIdle))
	return p, nil
}

// State reports the orchestrator's current lifecycle state
func (p *Pipeline) State() State {
	return State(p.state.Load())
}

// Stats returns a snapshot of the run's counters
func (p *Pipeline) Stats() models.RunStats {
	stats := models.RunStats{
		RunID:            p.stats.runID,
		StartTime:        p.stats.startTime,
		EndTime:          p.stats.endTime,
		Skipped:          p.stats.skipped.Load(),
		Enqueued:         p.stats.enqueued.Load(),
		Persisted:        p.stats.persisted.Load(),
		RateLimitRetries: p.stats.rateLimitRetries.Load(),
		TransientRetries: p.stats.transientRetries.Load(),
	}
	if !stats.EndTime.IsZero() {
		stats.TotalDuration = stats.EndTime.Sub(stats.StartTime)
	}
	return stats
}

// Run executes the pipeline to completion. It returns nil once every item
// has been evaluated or skipped, or the recorded fatal error after the
// ordered shutdown has given already-completed results a chance to persist.
func (p *Pipeline) Run(ctx context.Context) error {
	resumed, err := ScanCompleted(p.cfg.OutputPath, p.logger)
	if err != nil {
		return err
	}
	p.resumed = resumed

	file, err := os.OpenFile(p.cfg.OutputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open results log: %w", err)
	}

	p.stats.runID = uuid.New().String()
	p.stats.startTime = p.cfg.now()
	p.state.Store(int32(StateRunning))
	p.logger.Info("Starting evaluation pipeline",
		"run_id", p.stats.runID,
		"workers", p.cfg.Workers,
		"max_requests_per_minute", p.cfg.MaxRequestsPerMinute,
		"resumed_items", len(resumed))

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	p.cancelRun = cancelRun

	enqCtx, cancelEnqueuer := context.WithCancel(runCtx)
	defer cancelEnqueuer()
	workerCtx, cancelWorkers := context.WithCancel(runCtx)
	defer cancelWorkers()

	enqueuerDone := make(chan struct{})
	go func() {
		defer close(enqueuerDone)
		p.enqueue(enqCtx)
	}()

	var workerWG sync.WaitGroup
	workerWG.Add(p.cfg.Workers)
	for i := 0; i < p.cfg.Workers; i++ {
		go p.worker(workerCtx, i, &workerWG)
	}
	workersDone := make(chan struct{})
	go func() {
		workerWG.Wait()
		close(workersDone)
	}()

	persisterStop := make(chan struct{})
	persisterDone := make(chan struct{})
	go func() {
		defer close(persisterDone)
		p.persist(file, persisterStop)
	}()

	// Supervise until the source drains or a fatal error is recorded.
	select {
	case <-p.fatalCh:
	case <-runCtx.Done():
		p.fail(runCtx.Err())
	case <-enqueuerDone:
		p.state.CompareAndSwap(int32(StateRunning), int32(StateDraining))
		select {
		case <-p.fatalCh:
		case <-runCtx.Done():
			p.fail(runCtx.Err())
		case <-p.drained:
		}
	}

	// Ordered shutdown, upstream first, so no in-flight result is discarded
	// while a path to persist it still exists. Stages that miss the grace
	// period are abandoned rather than blocking shutdown.
	p.state.Store(int32(StateStopping))
	grace := p.cfg.ShutdownGrace

	cancelEnqueuer()
	if !waitStop(enqueuerDone, grace) {
		p.logger.Warn("Enqueuer did not stop within grace period; abandoning")
	}

	cancelWorkers()
	workersStopped := waitStop(workersDone, grace)
	if workersStopped {
		// Safe to close: no worker can send anymore.
		close(p.results)
	} else {
		p.logger.Warn("Workers did not stop within grace period; abandoning")
		close(persisterStop)
	}
	if !waitStop(persisterDone, grace) {
		p.logger.Warn("Persister did not stop within grace period; abandoning")
	}

	// Drop whatever never reached a worker so the bookkeeping settles.
	p.drainRequests()

	if err := file.Sync(); err != nil {
		p.logger.Warn("Failed to sync results log", "error", err)
	}
	closeErr := file.Close()

	p.stats.endTime = p.cfg.now()
	p.state.Store(int32(StateStopped))

	var runErr error
	select {
	case <-p.fatalCh:
		runErr = p.fatalErr
	default:
	}

	stats := p.Stats()
	p.logger.Info("Evaluation pipeline stopped",
		"run_id", stats.RunID,
		"enqueued", stats.Enqueued,
		"persisted", stats.Persisted,
		"skipped", stats.Skipped,
		"rate_limit_retries", stats.RateLimitRetries,
		"transient_retries", stats.TransientRetries,
		"duration", stats.TotalDuration)

	if runErr != nil {
		return runErr
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close results log: %w", closeErr)
	}
	return nil
}

// fail records the first fatal error, flips the state machine to FAILING,
// and cancels every stage so no further request is submitted.
func (p *Pipeline) fail(err error) {
	p.failOnce.Do(func() {
		p.fatalErr = err
		if !p.state.CompareAndSwap(int32(StateRunning), int32(StateFailing)) {
			p.state.CompareAndSwap(int32(StateDraining), int32(StateFailing))
		}
		p.logger.Error("Fatal pipeline error; shutting down", "error", err)
		p.cancelRun()
		close(p.fatalCh)
	})
}

func (p *Pipeline) addOutstanding() {
	p.outstanding.Add(1)
}

func (p *Pipeline) releaseOutstanding() {
	if p.outstanding.Add(-1) == 0 && p.enqFinished.Load() {
		p.drainOnce.Do(func() { close(p.drained) })
	}
}

func (p *Pipeline) markEnqueueFinished() {
	p.enqFinished.Store(true)
	if p.outstanding.Load() == 0 {
		p.drainOnce.Do(func() { close(p.drained) })
	}
}

func (p *Pipeline) drainRequests() {
	for {
		select {
		case <-p.requests:
			p.releaseOutstanding()
		default:
			return
		}
	}
}

func waitStop(done <-chan struct{}, grace time.Duration) bool {
	select {
	case <-done:
		return true
	case <-time.After(grace):
		return false
	}
}
