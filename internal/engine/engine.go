package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/fhe"
	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/ir"
	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/ledger"
)

// Resolver applies an oracle callback. *ledger.Ledger implements it.
type Resolver interface {
	HandleDecryption(ctx context.Context, cb ledger.Callback) (ir.Disclosure, error)
}

// Result is the outcome of one relayed job.
type Result struct {
	Job        fhe.Job
	Disclosure ir.Disclosure
	Err        error
}

// Relay is the single-writer callback loop.
//
// Thread-safety model:
//   - Dispatch(), Len(), Stop(): safe from any goroutine
//   - Run() and Drain(): must not run concurrently with each other
type Relay struct {
	queue    *jobQueue
	oracle   fhe.Oracle
	resolver Resolver
	logger   *slog.Logger
	observe  func(Result)
}

// Option configures a Relay.
type Option func(*Relay)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		r.logger = logger
	}
}

// WithObserver registers a function called after every processed job,
// from the Run goroutine.
func WithObserver(fn func(Result)) Option {
	return func(r *Relay) {
		r.observe = fn
	}
}

// New creates a relay that asks oracle for cleartexts and hands them to
// resolver.
func New(oracle fhe.Oracle, resolver Resolver, opts ...Option) *Relay {
	r := &Relay{
		queue:    newJobQueue(),
		oracle:   oracle,
		resolver: resolver,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Dispatch implements fhe.Dispatcher. Jobs dispatched after Stop are
// dropped with a warning; the ledger still holds them as pending.
func (r *Relay) Dispatch(job fhe.Job) {
	if !r.queue.Enqueue(job) {
		r.logger.Warn("relay stopped, job dropped",
			"request_id", job.RequestID.Dec(),
			"tag", job.Tag,
		)
	}
}

// Len returns the number of queued jobs.
func (r *Relay) Len() int {
	return r.queue.Len()
}

// Stop closes the queue, which makes Run return once it is empty.
func (r *Relay) Stop() {
	r.queue.Close()
}

// Run processes jobs until ctx is cancelled or Stop is called and the
// queue has drained.
//
// On failure the error is logged with the request id and the loop moves
// on. Retrying here would only repeat a rejection; the request stays
// pending and Resume can pick it up.
func (r *Relay) Run(ctx context.Context) error {
	r.logger.Info("relay starting")

	for {
		if job, ok := r.queue.TryDequeue(); ok {
			r.process(ctx, job)
			continue
		}

		select {
		case <-ctx.Done():
			r.logger.Info("relay stopping: context cancelled")
			r.queue.Close()
			return ctx.Err()

		case <-r.queue.Wait():
			// The signal channel is closed with the queue, so this fires
			// immediately once stopped.
			if r.queue.Len() == 0 && r.closed() {
				r.logger.Info("relay stopping: queue closed")
				return nil
			}
		}
	}
}

// Drain processes every queued job on the calling goroutine and returns
// the results in order. It is the synchronous form of Run, used by the
// CLI's one-shot oracle.
func (r *Relay) Drain(ctx context.Context) []Result {
	var results []Result
	for {
		if err := ctx.Err(); err != nil {
			return results
		}
		job, ok := r.queue.TryDequeue()
		if !ok {
			return results
		}
		results = append(results, r.process(ctx, job))
	}
}

// Resume re-queues pending requests, for example after a restart. restore,
// when non-nil, is called first for each job so the oracle can re-register
// the handle snapshot.
func (r *Relay) Resume(pending []ir.DecryptionRequest, restore func(fhe.Job)) int {
	n := 0
	for _, req := range pending {
		job, err := JobFor(req)
		if err != nil {
			r.logger.Warn("pending request not resumable",
				"request_id", req.RequestID.Dec(),
				"error", err,
			)
			continue
		}
		if restore != nil {
			restore(job)
		}
		if r.queue.Enqueue(job) {
			n++
		}
	}
	if n > 0 {
		r.logger.Info("pending requests resumed", "count", n)
	}
	return n
}

// JobFor rebuilds the oracle job for a stored request.
func JobFor(req ir.DecryptionRequest) (fhe.Job, error) {
	tag := fhe.TagFor(req.Target.Kind)
	if tag == "" {
		return fhe.Job{}, fmt.Errorf("unknown target kind %q", req.Target.Kind)
	}
	if len(req.Handles) != req.Target.Kind.HandleCount() {
		return fhe.Job{}, fmt.Errorf("request has %d handles, want %d", len(req.Handles), req.Target.Kind.HandleCount())
	}
	id := req.RequestID
	return fhe.Job{RequestID: &id, Tag: tag, Handles: req.Handles}, nil
}

func (r *Relay) closed() bool {
	r.queue.mu.Lock()
	defer r.queue.mu.Unlock()
	return r.queue.closed
}

// process relays one job. Called only from Run or Drain.
func (r *Relay) process(ctx context.Context, job fhe.Job) Result {
	res := Result{Job: job}
	res.Disclosure, res.Err = r.relay(ctx, job)

	if res.Err != nil {
		logJobError(r.logger, job, res.Err)
	} else {
		r.logger.Info("decryption relayed",
			"request_id", job.RequestID.Dec(),
			"target_kind", res.Disclosure.Target.Kind,
		)
	}
	if r.observe != nil {
		r.observe(res)
	}
	return res
}

func (r *Relay) relay(ctx context.Context, job fhe.Job) (ir.Disclosure, error) {
	cleartexts, proof, err := r.oracle.Decrypt(ctx, job.RequestID)
	if err != nil {
		return ir.Disclosure{}, fmt.Errorf("oracle decrypt: %w", err)
	}
	d, err := r.resolver.HandleDecryption(ctx, ledger.Callback{
		RequestID:  job.RequestID,
		Tag:        job.Tag,
		Cleartexts: cleartexts,
		Proof:      proof,
	})
	if err != nil {
		return ir.Disclosure{}, fmt.Errorf("callback %s: %w", job.Tag, err)
	}
	return d, nil
}

// logJobError logs a failed job with enough context to find the request.
func logJobError(logger *slog.Logger, job fhe.Job, err error) {
	logger.Error("relay job failed",
		"request_id", job.RequestID.Dec(),
		"tag", job.Tag,
		"code", ledger.CodeOf(err),
		"error", err,
	)
}
