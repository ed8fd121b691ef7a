// Package worker fulfills proof requests: it follows finalized blocks, runs
// the requested program through an execution engine and submits the proof
// back to the ledger.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cosmossdk.io/log"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/gammazero/workerpool"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/proofmarket/prover/pkg/chain"
	"github.com/proofmarket/prover/pkg/engine"
	"github.com/proofmarket/prover/x/prover/types"
)

const tracerName = "github.com/proofmarket/prover/pkg/worker"

// Ledger reads the prover store and submits messages signed by the worker.
type Ledger interface {
	Fetch(ctx context.Context, key []byte) ([]byte, error)
	Submit(ctx context.Context, msg types.Msg) (*chain.TxResult, error)
	Address() sdk.AccAddress
}

// BlockFeed yields finalized blocks in height order.
type BlockFeed interface {
	Next(ctx context.Context) (*chain.Block, error)
}

// CheckpointStore persists the highest height whose tasks, and those of
// every height below it, have all ended.
type CheckpointStore interface {
	Load() (int64, error)
	Save(height int64) error
}

var (
	_ Ledger    = (*chain.Client)(nil)
	_ BlockFeed = (*chain.Feed)(nil)
)

// Config configures a Worker.
type Config struct {
	// Concurrency bounds the tasks executing at once.
	Concurrency int
	// ExecutionTimeout bounds one program execution.
	ExecutionTimeout time.Duration
	// SubmitMaxRetries bounds resubmissions after transport failures.
	SubmitMaxRetries uint64
	// SubmitBackoff is the first delay between resubmissions.
	SubmitBackoff time.Duration
}

// DefaultConfig returns the default worker configuration.
func DefaultConfig() Config {
	return Config{
		Concurrency:      4,
		ExecutionTimeout: 10 * time.Minute,
		SubmitMaxRetries: 3,
		SubmitBackoff:    500 * time.Millisecond,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be positive, got %d", c.Concurrency)
	}
	if c.ExecutionTimeout <= 0 {
		return fmt.Errorf("execution timeout must be positive, got %s", c.ExecutionTimeout)
	}
	if c.SubmitBackoff <= 0 {
		return fmt.Errorf("submit backoff must be positive, got %s", c.SubmitBackoff)
	}
	return nil
}

// Status is a snapshot of worker progress.
type Status struct {
	Address    string `json:"address"`
	Running    bool   `json:"running"`
	LastHeight int64  `json:"last_height"`
	Checkpoint int64  `json:"checkpoint"`
	InFlight   int    `json:"in_flight"`
	Fulfilled  uint64 `json:"fulfilled"`
	Skipped    uint64 `json:"skipped"`
	Dropped    uint64 `json:"dropped"`
	// Abandoned counts timed-out executions the engine is still running.
	Abandoned int `json:"abandoned"`
}

// Worker consumes blocks from a single feed. Each proof request becomes a
// task on a bounded pool; a task that fails is logged and dropped.
type Worker struct {
	ledger      Ledger
	feed        BlockFeed
	engine      engine.Engine
	checkpoints CheckpointStore
	cfg         Config

	logger  log.Logger
	metrics *WorkerMetrics
	tracer  trace.Tracer

	progress *progress

	mu     sync.Mutex
	status Status
}

// New returns a worker. checkpoints may be nil.
func New(ledger Ledger, feed BlockFeed, eng engine.Engine, checkpoints CheckpointStore, cfg Config, logger log.Logger) (*Worker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Worker{
		ledger:      ledger,
		feed:        feed,
		engine:      eng,
		checkpoints: checkpoints,
		cfg:         cfg,
		logger:      logger.With("module", "worker"),
		metrics:     NewWorkerMetrics(),
		tracer:      otel.Tracer(tracerName),
		status:      Status{Address: ledger.Address().String()},
		progress:    newProgress(checkpoints, logger),
	}, nil
}

// Status returns a snapshot of the worker's progress.
func (w *Worker) Status() Status {
	w.mu.Lock()
	status := w.status
	w.mu.Unlock()

	status.Checkpoint = w.progress.checkpoint()
	if counter, ok := w.engine.(engine.AbandonCounter); ok {
		status.Abandoned = counter.Abandoned()
	}
	return status
}

// Run follows the feed until ctx is done or the feed fails. Cancelling ctx
// is a clean shutdown and returns nil; tasks still running are abandoned
// and submit nothing. A feed failure is returned as an error.
func (w *Worker) Run(ctx context.Context) error {
	pool := workerpool.New(w.cfg.Concurrency)
	taskCtx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		pool.StopWait()
		w.setRunning(false)
	}()

	w.setRunning(true)
	w.logger.Info("worker started", "address", w.status.Address, "concurrency", w.cfg.Concurrency)

	for {
		block, err := w.feed.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				w.logger.Info("worker stopping", "in_flight", w.Status().InFlight)
				return nil
			}
			return fmt.Errorf("block feed: %w", err)
		}

		w.dispatch(taskCtx, pool, block)
	}
}

func (w *Worker) dispatch(ctx context.Context, pool *workerpool.WorkerPool, block *chain.Block) {
	var requests []types.ProofRequestedEvent
	for _, ev := range block.Events {
		if requested, ok := ev.(types.ProofRequestedEvent); ok {
			requests = append(requests, requested)
		}
	}

	// registered before any task can end
	height := block.Height
	w.progress.dispatched(height, len(requests))

	for _, requested := range requests {
		w.metrics.RequestsObserved.Inc()
		w.addInFlight(1)
		pool.Submit(func() {
			defer w.addInFlight(-1)
			if !w.fulfill(ctx, height, requested) {
				w.progress.ended(height)
			}
		})
	}

	w.mu.Lock()
	w.status.LastHeight = block.Height
	w.mu.Unlock()
	w.metrics.LastHeight.Set(float64(block.Height))
}

// fulfill handles one proof request. It never returns an error: every
// failure ends the task with a log line. interrupted reports a task cut short
// by shutdown, whose request is left for the next run.
func (w *Worker) fulfill(ctx context.Context, height int64, ev types.ProofRequestedEvent) (interrupted bool) {
	taskID := uuid.NewString()
	ctx, span := w.tracer.Start(ctx, "worker.fulfill", trace.WithAttributes(
		attribute.String("task", taskID),
		attribute.String("image_id", ev.ImageID.String()),
		attribute.Int64("height", height),
	))
	defer span.End()

	logger := w.logger.With("task", taskID, "image_id", ev.ImageID.String(), "height", height)

	drop := func(reason string, err error) {
		interrupted = ctx.Err() != nil
		span.SetStatus(codes.Error, reason)
		if err != nil {
			span.RecordError(err)
			logger.Error("dropping proof request", "reason", reason, "error", err.Error())
		} else {
			logger.Error("dropping proof request", "reason", reason)
		}
		w.count(func(s *Status) { s.Dropped++ })
	}
	skip := func(reason string) {
		span.SetAttributes(attribute.String("skipped", reason))
		logger.Info("skipping proof request", "reason", reason)
		w.count(func(s *Status) { s.Skipped++ })
	}

	if err := ctx.Err(); err != nil {
		drop("shutdown", err)
		return
	}

	program, err := w.ledger.Fetch(ctx, types.ProgramKey(ev.ImageID))
	if err != nil {
		drop("fetch program", err)
		return
	}
	if program == nil {
		skip("program not found")
		return
	}

	settled, err := w.settled(ctx, ev.ImageID)
	if err != nil {
		drop("fetch request", err)
		return
	}
	if settled {
		skip("already settled")
		return
	}

	execCtx, cancel := context.WithTimeout(ctx, w.cfg.ExecutionTimeout)
	start := time.Now()
	proof, err := w.engine.Execute(execCtx, engine.Job{ImageID: ev.ImageID, Program: program, Args: ev.Args})
	cancel()
	w.metrics.ExecutionDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		w.metrics.Executions.WithLabelValues("fault").Inc()
		drop("execution", err)
		return
	}
	w.metrics.Executions.WithLabelValues("ok").Inc()

	proofBytes, err := proof.Marshal()
	if err != nil {
		drop("encode proof", err)
		return
	}

	if err := ctx.Err(); err != nil {
		drop("shutdown", err)
		return
	}

	msg := &types.MsgStoreAndVerifyProof{
		Prover:  w.ledger.Address().String(),
		ImageID: ev.ImageID,
		Proof:   proofBytes,
	}
	res, err := w.submit(ctx, msg)
	if err != nil {
		w.metrics.Submissions.WithLabelValues(submissionOutcome(err)).Inc()
		drop("submit", err)
		return
	}
	w.metrics.Submissions.WithLabelValues("ok").Inc()

	span.SetAttributes(attribute.Int64("included_height", res.Height))
	logger.Info("proof submitted", "included_height", res.Height, "segments", len(proof.Segments))
	w.count(func(s *Status) { s.Fulfilled++ })
	return false
}

// settled reports whether the stored request on id has already been paid.
func (w *Worker) settled(ctx context.Context, id types.ImageID) (bool, error) {
	bz, err := w.ledger.Fetch(ctx, types.ProofRequestKey(id))
	if err != nil || bz == nil {
		return false, err
	}
	var request types.ProofRequest
	if err := types.Unmarshal(bz, &request); err != nil {
		return false, err
	}
	return request.Status == types.RequestStatusSettled, nil
}

// submit retries transport failures only. Resubmitting a proof that did land
// is harmless since a request is never paid twice.
func (w *Worker) submit(ctx context.Context, msg types.Msg) (*chain.TxResult, error) {
	backoff := retry.WithMaxRetries(w.cfg.SubmitMaxRetries, retry.NewExponential(w.cfg.SubmitBackoff))

	var res *chain.TxResult
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		r, err := w.ledger.Submit(ctx, msg)
		if errors.Is(err, types.ErrTransportFailure) {
			w.logger.Debug("submission failed, retrying", "error", err.Error())
			return retry.RetryableError(err)
		}
		if err != nil {
			return err
		}
		res = r
		return nil
	})
	return res, err
}

func submissionOutcome(err error) string {
	switch {
	case errors.Is(err, types.ErrTransportFailure):
		return "transport"
	case errors.Is(err, types.ErrProofNotVerified):
		return "not_verified"
	case errors.Is(err, types.ErrProgramDoesNotExist):
		return "no_program"
	default:
		return "rejected"
	}
}

func (w *Worker) addInFlight(delta int) {
	w.mu.Lock()
	w.status.InFlight += delta
	w.mu.Unlock()
	w.metrics.InFlight.Add(float64(delta))
}

func (w *Worker) count(update func(s *Status)) {
	w.mu.Lock()
	update(&w.status)
	w.mu.Unlock()
}

func (w *Worker) setRunning(running bool) {
	w.mu.Lock()
	w.status.Running = running
	w.mu.Unlock()
}
