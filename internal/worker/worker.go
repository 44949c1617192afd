package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"reelforge/internal/config"
	"reelforge/internal/encode"
	"reelforge/internal/fingerprint"
	"reelforge/internal/jobgraph"
	"reelforge/internal/logging"
	"reelforge/internal/queue"
	"reelforge/internal/services"
)

// Queue is the part of the work queue a worker uses.
type Queue interface {
	Next(ctx context.Context, workerID string) (*queue.Unit, error)
	Complete(ctx context.Context, jobID, name, workerID string, result map[string]string) error
	Fail(ctx context.Context, jobID, name, workerID, message string, retryable bool) (jobgraph.Status, error)
	Heartbeat(ctx context.Context, jobID, name, workerID string) (bool, error)
	ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error)
	Job(ctx context.Context, id string) (*queue.Job, error)
	Units(ctx context.Context, jobID string) ([]queue.Unit, error)
}

// Worker executes units claimed from a Queue. It carries everything an
// executor needs, so executors share no package level state.
type Worker struct {
	id       string
	store    Queue
	logger   *slog.Logger
	tools    encode.Tools
	executor encode.Executor

	policy        fingerprint.Policy
	lockTimeout   time.Duration
	outputRetries int
	frameRate     float64

	pollInterval      time.Duration
	errorRetry        time.Duration
	maxRetryInterval  time.Duration
	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration
}

// Option customizes a Worker.
type Option func(*Worker)

// WithID sets the worker id instead of generating one.
func WithID(id string) Option {
	return func(w *Worker) {
		if id != "" {
			w.id = id
		}
	}
}

// WithExecutor injects a custom command executor (primarily for tests).
func WithExecutor(exec encode.Executor) Option {
	return func(w *Worker) {
		if exec != nil {
			w.executor = exec
		}
	}
}

// WithLogger sets the worker's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// New constructs a worker from configuration.
func New(cfg *config.Config, store Queue, opts ...Option) (*Worker, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if store == nil {
		return nil, errors.New("queue is nil")
	}
	tools, err := encode.NewTools(cfg)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "", "load encoder arguments", "", err)
	}
	policy, err := fingerprint.ParsePolicy(cfg.Fingerprint.Policy)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "", "fingerprint policy", "", err)
	}
	w := &Worker{
		id:                uuid.NewString(),
		store:             store,
		logger:            logging.NewNop(),
		tools:             tools,
		executor:          encode.CommandExecutor{},
		policy:            policy,
		lockTimeout:       cfg.FingerprintLockTimeout(),
		outputRetries:     cfg.Encoder.OutputRetries,
		frameRate:         cfg.Assembler.FrameRate,
		pollInterval:      cfg.PollInterval(),
		errorRetry:        cfg.ErrorRetryInterval(),
		maxRetryInterval:  cfg.MaxRetryInterval(),
		heartbeatInterval: cfg.HeartbeatInterval(),
		heartbeatTimeout:  cfg.HeartbeatTimeout(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = logging.NewComponentLogger(w.logger, "worker").With(logging.String(logging.FieldWorkerID, w.id))
	return w, nil
}

// ID returns the identifier recorded on claimed units.
func (w *Worker) ID() string {
	return w.id
}

// Run polls the queue until ctx is cancelled. Queue errors back off
// exponentially between ErrorRetryInterval and MaxRetryInterval.
func (w *Worker) Run(ctx context.Context) error {
	errBackoff := backoff.NewExponentialBackOff()
	errBackoff.InitialInterval = w.errorRetry
	errBackoff.MaxInterval = w.maxRetryInterval
	errBackoff.MaxElapsedTime = 0
	errBackoff.Reset()

	w.logger.Info("worker started",
		logging.String(logging.FieldEventType, "worker_start"),
		logging.Duration("poll_interval", w.pollInterval),
	)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopped", logging.String(logging.FieldEventType, "worker_stop"))
			return nil
		default:
		}

		w.reclaimStale(ctx)

		processed, err := w.RunOnce(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				continue
			}
			delay := errBackoff.NextBackOff()
			logging.ErrorWithContext(w.logger, "failed to fetch next work unit", "queue_fetch_failed",
				logging.Error(err),
				logging.Duration("retry_in", delay),
				logging.String(logging.FieldErrorHint, "check queue database access"),
			)
			sleep(ctx, delay)
			continue
		}
		errBackoff.Reset()
		if !processed {
			sleep(ctx, w.pollInterval)
		}
	}
}

// RunOnce claims and executes at most one unit. It reports whether a unit
// was claimed.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	unit, err := w.store.Next(ctx, w.id)
	if err != nil {
		return false, err
	}
	if unit == nil {
		return false, nil
	}
	w.process(ctx, unit)
	return true, ctx.Err()
}

// Drain executes units until none are pending and returns how many ran.
// Units blocked on callbacks that never fire are left alone.
func (w *Worker) Drain(ctx context.Context) (int, error) {
	count := 0
	for {
		processed, err := w.RunOnce(ctx)
		if err != nil {
			return count, err
		}
		if !processed {
			return count, nil
		}
		count++
	}
}

func (w *Worker) reclaimStale(ctx context.Context) {
	if w.heartbeatTimeout <= 0 {
		return
	}
	reclaimed, err := w.store.ReclaimStale(ctx, time.Now().Add(-w.heartbeatTimeout))
	if err != nil {
		logging.WarnWithContext(w.logger, "reclaim stale units failed; stuck units may remain", "heartbeat_reclaim_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check queue database access"),
		)
		return
	}
	if reclaimed > 0 {
		w.logger.Info("reclaimed stale units", logging.Int64("count", reclaimed))
	}
}

// process runs one claimed unit and reports its outcome. Failures are
// recorded on the unit; they never stop the worker.
func (w *Worker) process(ctx context.Context, unit *queue.Unit) {
	unitCtx := services.WithJobID(ctx, unit.JobID)
	unitCtx = services.WithUnit(unitCtx, unit.Name)
	unitCtx = services.WithUnitKind(unitCtx, string(unit.Kind))
	unitCtx = services.WithWorkerID(unitCtx, w.id)
	logger := logging.WithContext(unitCtx, w.logger)

	start := time.Now()
	logger.Info("unit started",
		logging.String(logging.FieldEventType, "unit_start"),
		logging.Int("attempt", unit.Attempts),
	)

	job, err := w.store.Job(ctx, unit.JobID)
	if err != nil {
		w.fail(ctx, logger, unit, services.Wrap(services.ErrValidation, unit.Name, "load job", "", err))
		return
	}

	execCtx, cancel := context.WithCancel(unitCtx)
	var (
		wg        sync.WaitGroup
		abandoned bool
		mu        sync.Mutex
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if w.heartbeatLoop(execCtx, logger, unit) {
			mu.Lock()
			abandoned = true
			mu.Unlock()
			cancel()
		}
	}()

	result, execErr := w.execute(execCtx, logger, job.Package, unit)
	cancel()
	wg.Wait()

	mu.Lock()
	lost := abandoned
	mu.Unlock()
	if lost {
		logger.Info("unit no longer assigned; abandoning without report",
			logging.String(logging.FieldEventType, "unit_abandoned"),
		)
		return
	}
	if ctx.Err() != nil {
		logger.Info("worker shutting down; unit left for reclaim", logging.String(logging.FieldEventType, "unit_interrupted"))
		return
	}
	if execErr != nil {
		w.fail(ctx, logger, unit, execErr)
		return
	}

	if err := w.store.Complete(ctx, unit.JobID, unit.Name, w.id, result); err != nil {
		var transition *queue.TransitionError
		var notOwned *queue.NotOwnedError
		if errors.As(err, &transition) || errors.As(err, &notOwned) {
			logger.Info("unit reassigned before completion; result discarded",
				logging.String(logging.FieldEventType, "unit_abandoned"),
				logging.Error(err),
			)
			return
		}
		logging.ErrorWithContext(logger, "failed to record unit completion", "unit_complete_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the unit will be reclaimed after the heartbeat timeout"),
		)
		return
	}
	logger.Info("unit completed",
		logging.String(logging.FieldEventType, "unit_complete"),
		logging.Duration("duration", time.Since(start)),
	)
}

func (w *Worker) execute(ctx context.Context, logger *slog.Logger, job jobgraph.Job, unit *queue.Unit) (map[string]string, error) {
	switch unit.Kind {
	case jobgraph.KindInitialize:
		return w.runInitialize(ctx, logger, job, unit)
	case jobgraph.KindSegment:
		return w.runSegment(ctx, logger, job, unit)
	case jobgraph.KindOutput:
		return w.runOutput(ctx, logger, job, unit)
	default:
		return nil, services.Wrap(services.ErrValidation, unit.Name, "dispatch", fmt.Sprintf("unknown unit kind %q", unit.Kind), nil)
	}
}

func (w *Worker) fail(ctx context.Context, logger *slog.Logger, unit *queue.Unit, cause error) {
	retryable := services.Retryable(cause)
	status, err := w.store.Fail(ctx, unit.JobID, unit.Name, w.id, cause.Error(), retryable)
	if err != nil {
		logging.ErrorWithContext(logger, "failed to record unit failure", "unit_fail_record_failed",
			logging.Error(err),
			logging.String("cause", cause.Error()),
		)
		return
	}
	logging.ErrorWithContext(logger, "unit failed", "unit_failed",
		logging.Error(cause),
		logging.Bool("retryable", retryable),
		logging.String("error_class", services.ClassName(cause)),
		logging.String("next_status", string(status)),
		logging.String(logging.FieldErrorHint, failureHint(cause)),
	)
}

func failureHint(err error) string {
	var missing *MissingUpstreamArtifactError
	var failure *encode.EncoderFailureError
	var collision *encode.OutputPathCollisionError
	switch {
	case errors.As(err, &missing):
		return "check that the Initialize unit completed and its scene file is reachable from this node"
	case errors.As(err, &failure):
		return "inspect the tool output in the worker log and retry the unit"
	case errors.As(err, &collision):
		return "check permissions on the segment and output folders"
	case errors.Is(err, services.ErrValidation):
		return "fix the job options and resubmit"
	default:
		return "check the worker log for details"
	}
}

// heartbeatLoop refreshes the claim until ctx ends. It returns true when the
// unit is no longer assigned to this worker.
func (w *Worker) heartbeatLoop(ctx context.Context, logger *slog.Logger, unit *queue.Unit) bool {
	if w.heartbeatInterval <= 0 {
		return false
	}
	ticker := time.NewTicker(w.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			alive, err := w.store.Heartbeat(ctx, unit.JobID, unit.Name, w.id)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return false
				}
				logging.WarnWithContext(logger, "heartbeat update failed", "heartbeat_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "the unit may be reclaimed by another worker"),
				)
				continue
			}
			if !alive {
				return true
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
