// Package mutate implements the message and queue mutation operations:
// selective delete, move between queues, and bulk queue removal. Runs are
// batched, bounded in concurrency, and account for every targeted message.
package mutate

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/sony/gobreaker"

	"github.com/queueops/jmsqctl/internal/broker"
	"github.com/queueops/jmsqctl/internal/metrics"
	"github.com/queueops/jmsqctl/internal/models"
	"github.com/queueops/jmsqctl/internal/selector"
)

// Options tunes a run. Zero fields fall back to the defaults below, with one
// exception: a zero RetryOnTransient means no retry. The documented default
// of true is applied by the config layer, not here, so a literal Options
// value states its retry policy explicitly.
type Options struct {
	BatchSize        int
	MaxConcurrent    int
	RetryOnTransient bool
	RetryLimit       int
	RetryBackoff     time.Duration
	BreakerThreshold uint32
}

const (
	defaultBatchSize        = 50
	defaultMaxConcurrent    = 4
	defaultRetryLimit       = 3
	defaultRetryBackoff     = 200 * time.Millisecond
	defaultBreakerThreshold = 5
)

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = defaultBatchSize
	}
	if o.MaxConcurrent <= 0 {
		o.MaxConcurrent = defaultMaxConcurrent
	}
	if o.RetryLimit <= 0 {
		o.RetryLimit = defaultRetryLimit
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = defaultRetryBackoff
	}
	if o.BreakerThreshold == 0 {
		o.BreakerThreshold = defaultBreakerThreshold
	}
	return o
}

// Engine runs mutation operations against a single broker session.
type Engine struct {
	session broker.Session
	opts    Options
	log     *slog.Logger
	run     *metrics.Run
}

// New builds an engine. log may be nil; run may be nil to disable counters.
func New(session broker.Session, opts Options, log *slog.Logger, run *metrics.Run) *Engine {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Engine{
		session: session,
		opts:    opts.withDefaults(),
		log:     log,
		run:     run,
	}
}

// mutator applies one operation to one message. On error it reports the
// failure kind the error should be recorded under.
type mutator func(ctx context.Context, m models.MessageDescriptor) (models.FailureKind, error)

// attemptResult is the outcome of one message's attempt. A zero value means
// success.
type attemptResult struct {
	failure      *models.MessageFailure
	notAttempted bool
}

// DeleteMessages removes up to limit messages matching sel from queue.
// limit <= 0 means every matching message. The returned outcome is non-nil
// even when err is set, so partial progress is always reported.
func (e *Engine) DeleteMessages(ctx context.Context, queue string, sel selector.Selector, limit int) (*models.MutationOutcome, error) {
	log := e.log.With(slog.String("queue", queue), slog.String("op", "delete"))
	return e.runMessages(ctx, log, queue, sel, limit, func(ctx context.Context, m models.MessageDescriptor) (models.FailureKind, error) {
		err := e.withRetry(ctx, func() error {
			return e.session.DeleteMessage(ctx, queue, m.ID)
		})
		if err != nil {
			return models.FailureDelete, err
		}
		e.run.MessageDeleted()
		return "", nil
	})
}

// MoveMessages transfers up to limit messages matching sel from source to
// dest. Each message is removed from the source first; a copy that then fails
// to land on dest is recorded as lost in transit and still counts as removed
// from the source.
func (e *Engine) MoveMessages(ctx context.Context, source, dest string, sel selector.Selector, limit int) (*models.MutationOutcome, error) {
	log := e.log.With(slog.String("queue", source), slog.String("dest", dest), slog.String("op", "move"))
	return e.runMessages(ctx, log, source, sel, limit, func(ctx context.Context, m models.MessageDescriptor) (models.FailureKind, error) {
		err := e.withRetry(ctx, func() error {
			return e.session.DeleteMessage(ctx, source, m.ID)
		})
		if err != nil {
			return models.FailureDelete, err
		}
		ref := broker.PayloadRef{Queue: source, MessageID: m.ID}
		err = e.withRetry(ctx, func() error {
			return e.session.EnqueueCopy(ctx, dest, ref)
		})
		if err != nil {
			return models.FailureLostInTransit, err
		}
		e.run.MessageMoved()
		return "", nil
	})
}

// runMessages interleaves discovery and mutation: fetch a batch of matching
// metadata, mutate it concurrently, fetch the next batch. Messages whose
// mutation failed stay in the queue and are filtered out of later batches by
// id, so a run terminates once a batch yields nothing new.
func (e *Engine) runMessages(ctx context.Context, log *slog.Logger, queue string, sel selector.Selector, limit int, op mutator) (*models.MutationOutcome, error) {
	out := &models.MutationOutcome{}

	pool, err := ants.NewPool(e.opts.MaxConcurrent)
	if err != nil {
		return out, err
	}
	defer pool.Release()

	cb := e.newBreaker(queue)
	seen := make(map[string]bool)

	for {
		want := e.opts.BatchSize
		if limit > 0 {
			remaining := limit - out.Requested
			if remaining <= 0 {
				break
			}
			if remaining < want {
				want = remaining
			}
		}

		// Over-fetch by the number of already-seen messages so failed
		// ones left in place cannot starve the batch.
		batch, err := e.session.FetchMessageMetadata(ctx, queue, sel, want+len(seen), broker.OldestFirst)
		if err != nil {
			return out, &broker.QueryError{Op: "fetch message metadata from " + queue, Cause: err}
		}

		fresh := batch[:0]
		for _, m := range batch {
			if seen[m.ID] {
				continue
			}
			seen[m.ID] = true
			fresh = append(fresh, m)
			if len(fresh) == want {
				break
			}
		}
		if len(fresh) == 0 {
			break
		}
		out.Requested += len(fresh)

		results := make([]attemptResult, len(fresh))
		var wg sync.WaitGroup
		for i, m := range fresh {
			i, m := i, m
			wg.Add(1)
			if err := pool.Submit(func() {
				defer wg.Done()
				results[i] = e.attempt(ctx, cb, op, m)
			}); err != nil {
				wg.Done()
				results[i] = attemptResult{notAttempted: true}
			}
		}
		wg.Wait()

		stopped := false
		for _, r := range results {
			switch {
			case r.notAttempted:
				out.NotAttempted++
				stopped = true
			case r.failure != nil:
				out.Failed++
				out.Failures = append(out.Failures, *r.failure)
				log.Warn("message mutation failed",
					slog.String("message_id", r.failure.MessageID),
					slog.String("kind", string(r.failure.Kind)),
					slog.String("reason", r.failure.Reason))
			default:
				out.Succeeded++
			}
		}
		if stopped || ctx.Err() != nil {
			break
		}
	}

	log.Info("run finished",
		slog.Int("requested", out.Requested),
		slog.Int("succeeded", out.Succeeded),
		slog.Int("failed", out.Failed),
		slog.Int("not_attempted", out.NotAttempted))
	return out, nil
}

// attempt runs op for one message behind the circuit breaker. Only transient
// errors count toward the breaker; semantic failures such as a vanished
// message pass through it as successes and are recorded per message.
func (e *Engine) attempt(ctx context.Context, cb *gobreaker.CircuitBreaker, op mutator, m models.MessageDescriptor) attemptResult {
	if ctx.Err() != nil {
		return attemptResult{notAttempted: true}
	}

	var (
		kind  models.FailureKind
		opErr error
	)
	_, cbErr := cb.Execute(func() (any, error) {
		kind, opErr = op(ctx, m)
		if opErr != nil && broker.IsTransient(opErr) {
			return nil, opErr
		}
		return nil, nil
	})
	if errors.Is(cbErr, gobreaker.ErrOpenState) || errors.Is(cbErr, gobreaker.ErrTooManyRequests) {
		return attemptResult{notAttempted: true}
	}
	if opErr == nil {
		return attemptResult{}
	}

	// A cancellation before the first broker call took effect leaves the
	// message untouched. After the source delete succeeded the failure is
	// real and must be recorded.
	if isCtxErr(opErr) && kind != models.FailureLostInTransit {
		return attemptResult{notAttempted: true}
	}

	e.run.Failure(string(kind))
	return attemptResult{failure: &models.MessageFailure{
		MessageID: m.ID,
		Kind:      kind,
		Reason:    opErr.Error(),
	}}
}

// withRetry retries fn on transient broker errors with a fixed backoff.
// Semantic errors and context errors return immediately.
func (e *Engine) withRetry(ctx context.Context, fn func() error) error {
	err := fn()
	if err == nil || !e.opts.RetryOnTransient {
		return err
	}
	for attempt := 0; attempt < e.opts.RetryLimit && broker.IsTransient(err); attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(e.opts.RetryBackoff):
		}
		e.run.Retry()
		e.log.Debug("retrying after transient error",
			slog.Int("attempt", attempt+1),
			slog.String("error", err.Error()))
		err = fn()
	}
	return err
}

func (e *Engine) newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= e.opts.BreakerThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			e.log.Warn("circuit breaker state changed",
				slog.String("queue", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})
}

func isCtxErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// DeleteQueues removes every named queue, each attempt independent of the
// others. The returned map holds one entry per requested queue; a nil value
// means the delete succeeded.
func (e *Engine) DeleteQueues(ctx context.Context, names []string) map[string]error {
	results := make([]error, len(names))

	pool, err := ants.NewPool(e.opts.MaxConcurrent)
	if err != nil {
		out := make(map[string]error, len(names))
		for _, n := range names {
			out[n] = err
		}
		return out
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i, name := range names {
		i, name := i, name
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			results[i] = e.withRetry(ctx, func() error {
				return e.session.DeleteQueue(ctx, name)
			})
		}); err != nil {
			wg.Done()
			results[i] = err
		}
	}
	wg.Wait()

	out := make(map[string]error, len(names))
	for i, name := range names {
		out[name] = results[i]
		if results[i] == nil {
			e.run.QueueDeleted()
			e.log.Info("queue deleted", slog.String("queue", name))
		} else {
			e.log.Warn("queue delete failed",
				slog.String("queue", name),
				slog.String("error", results[i].Error()))
		}
	}
	return out
}
