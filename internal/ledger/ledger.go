package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/fhe"
	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/ir"
	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/store"
)

// Policy decides what happens to a request after its first accepted
// callback.
type Policy string

const (
	// PolicyConsume makes fulfillment terminal: the handle snapshot is
	// dropped and repeat callbacks fail with INVALID_STATE.
	PolicyConsume Policy = "consume"

	// PolicyRetain keeps the request resolvable, so a repeat callback with a
	// valid proof is accepted again and re-emits DecryptionCompleted.
	PolicyRetain Policy = "retain"
)

// ParsePolicy parses a policy name. The empty string means PolicyConsume.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyConsume:
		return PolicyConsume, nil
	case PolicyRetain:
		return PolicyRetain, nil
	}
	return "", fmt.Errorf("unknown fulfillment policy %q (want consume or retain)", s)
}

// Publisher receives events after the operation that produced them has
// committed. Publish must not block.
type Publisher interface {
	Publish(events []ir.Event)
}

// Ledger is the encrypted-state ledger.
//
// Thread-safety: all methods are safe for concurrent use. Mutations are
// serialized.
type Ledger struct {
	mu sync.Mutex

	store     *store.Store
	engine    fhe.Engine
	logger    *slog.Logger
	now       func() time.Time
	tokens    TokenGenerator
	policy    Policy
	metrics   *Metrics
	publisher Publisher
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

// WithClock sets the wall clock used for record and event timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// WithTokenGenerator sets the per-operation transaction token source.
func WithTokenGenerator(gen TokenGenerator) Option {
	return func(l *Ledger) {
		l.tokens = gen
	}
}

// WithPolicy sets the fulfillment policy. Default: PolicyConsume.
func WithPolicy(p Policy) Option {
	return func(l *Ledger) {
		l.policy = p
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(l *Ledger) {
		l.metrics = m
	}
}

// WithPublisher sets the receiver of committed events.
func WithPublisher(p Publisher) Option {
	return func(l *Ledger) {
		l.publisher = p
	}
}

// New creates a ledger over s that delegates ciphertext work to engine.
func New(s *store.Store, engine fhe.Engine, opts ...Option) *Ledger {
	l := &Ledger{
		store:  s,
		engine: engine,
		logger: slog.New(slog.DiscardHandler),
		now:    time.Now,
		tokens: UUIDv7Generator{},
		policy: PolicyConsume,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Policy returns the configured fulfillment policy.
func (l *Ledger) Policy() Policy {
	return l.policy
}

// SyncMetrics sets gauges that are derived from stored state. Call once
// after New when metrics are enabled.
func (l *Ledger) SyncMetrics(ctx context.Context) error {
	pending, err := l.ListPendingRequests(ctx)
	if err != nil {
		return err
	}
	l.metrics.setPending(len(pending))
	return nil
}

// op is the state of one in-flight ledger operation.
type op struct {
	ctx          context.Context
	name         string
	tx           *store.Tx
	token        string
	now          time.Time
	events       []ir.Event
	pendingDelta int
}

// emit appends an event inside the operation's transaction.
func (o *op) emit(kind ir.EventKind, payload any) error {
	data, err := ir.CanonicalPayload(payload)
	if err != nil {
		return fmt.Errorf("%s: encode %s payload: %w", o.name, kind, err)
	}
	e, err := o.tx.AppendEvent(kind, o.token, o.now, data)
	if err != nil {
		return fmt.Errorf("%s: %w", o.name, err)
	}
	o.events = append(o.events, e)
	return nil
}

// update runs fn as one atomic, serialized ledger operation.
func (l *Ledger) update(ctx context.Context, name string, fn func(*op) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	start := time.Now()
	o := &op{
		ctx:   ctx,
		name:  name,
		token: l.tokens.Generate(),
		now:   l.now().UTC(),
	}

	err := l.store.Update(ctx, func(tx *store.Tx) error {
		o.tx = tx
		o.events = o.events[:0]
		o.pendingDelta = 0
		return fn(o)
	})
	l.metrics.observe(name, err, time.Since(start))

	if err != nil {
		l.logger.Debug("ledger operation rejected",
			"op", name,
			"tx", o.token,
			"code", CodeOf(err),
			"error", err,
		)
		return err
	}

	l.logger.Info("ledger operation committed",
		"op", name,
		"tx", o.token,
		"events", len(o.events),
	)
	l.metrics.committed(o.events, o.pendingDelta)
	if l.publisher != nil && len(o.events) > 0 {
		l.publisher.Publish(o.events)
	}
	return nil
}

// view runs fn against a consistent snapshot.
func (l *Ledger) view(ctx context.Context, fn func(*store.Tx) error) error {
	return l.store.View(ctx, fn)
}

// storeError maps store lookups onto ledger errors.
func storeError(opName string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return &Error{Code: CodeNotFound, Op: opName, Err: err}
	}
	return fmt.Errorf("%s: %w", opName, err)
}

func normalizeCaller(opName string, caller ir.Identity) (ir.Identity, error) {
	id, err := ir.NormalizeIdentity(string(caller))
	if err != nil {
		return "", wrapError(CodeInvalidArgument, opName, err, "invalid caller identity")
	}
	return id, nil
}

// checkHandles rejects empty handles; names and handles are parallel.
func checkHandles(opName string, names []string, handles ...ir.Handle) error {
	for i, h := range handles {
		if len(h) == 0 {
			return newError(CodeInvalidArgument, opName, "%s handle is empty", names[i])
		}
	}
	return nil
}
