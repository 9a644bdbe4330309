package engine

import (
	"context"
	"log/slog"

	"github.com/roach88/cascade/internal/aggregate"
	"github.com/roach88/cascade/internal/cache"
	"github.com/roach88/cascade/internal/formula"
	"github.com/roach88/cascade/internal/ir"
	"github.com/roach88/cascade/internal/linkstore"
	"github.com/roach88/cascade/internal/metrics"
	"github.com/roach88/cascade/internal/queryir"
	"github.com/roach88/cascade/internal/schema"
	"github.com/roach88/cascade/internal/txn"
)

// RecordStore is the storage collaborator. Implemented by *store.Store.
type RecordStore interface {
	Find(ctx context.Context, modelID string, filter queryir.Predicate, sort ...queryir.Sort) ([]ir.Record, error)
	FindByIDs(ctx context.Context, modelID string, ids []string, sort ...queryir.Sort) ([]ir.Record, error)
	txn.Applier
}

// LinkResolver answers neighbour queries. Implemented by *linkstore.Store.
type LinkResolver interface {
	GetLinksFromField(ctx context.Context, modelID, recordID, linkFieldID string) []linkstore.LinkRef
	GetLinks(ctx context.Context, modelID, recordID string) []linkstore.LinkRef
	GetBacklinks(ctx context.Context, modelID, recordID, foreignModelID, foreignLinkFieldID string) []linkstore.LinkRef
}

// FormulaEvaluator evaluates formula fields. The bool result is false
// when the formula yields no value. Implemented by *formula.Evaluator.
type FormulaEvaluator interface {
	Execute(ctx context.Context, expr string, record ir.IRObject, activeFields []string) (ir.IRValue, bool, error)
}

const (
	// DefaultMaxDepth caps how many hops a cascade travels. Cascades that
	// reach it are truncated and reported with a DEPTH_EXCEEDED warning.
	DefaultMaxDepth = 10

	// DefaultMaxSteps is the default task quota of one cascade.
	DefaultMaxSteps = 10000
)

// Engine drives propagation: it recomputes derived fields of changed
// records and cascades the changes through links into a Transaction.
//
// The Engine holds only immutable configuration; every orchestrator call
// owns its own cache scope and transaction, so concurrent calls on
// unrelated records do not interfere.
type Engine struct {
	records  RecordStore
	links    LinkResolver
	registry *schema.Registry
	formulas FormulaEvaluator
	names    aggregate.NameResolver
	caches   *cache.Registry
	metrics  *metrics.Metrics
	tokens   TokenGenerator

	maxDepth int
	maxSteps int
	locking  bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxDepth sets the propagation depth cap.
func WithMaxDepth(depth int) Option {
	return func(e *Engine) {
		e.maxDepth = depth
	}
}

// WithMaxSteps sets the task quota per cascade.
//
// Use WithMaxSteps(5) for testing quota enforcement.
func WithMaxSteps(steps int) Option {
	return func(e *Engine) {
		e.maxSteps = steps
	}
}

// WithOptimisticLocking makes commits fail records that changed after the
// operation read them (default on).
func WithOptimisticLocking(enabled bool) Option {
	return func(e *Engine) {
		e.locking = enabled
	}
}

// WithNameResolver sets the directory used by LIST_NAMES summaries.
func WithNameResolver(names aggregate.NameResolver) Option {
	return func(e *Engine) {
		e.names = names
	}
}

// WithFormulaEvaluator replaces the default gval evaluator.
func WithFormulaEvaluator(f FormulaEvaluator) Option {
	return func(e *Engine) {
		e.formulas = f
	}
}

// WithMetrics sets the collectors the engine reports to.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithCacheRegistry sets the registry cache scopes are opened in.
func WithCacheRegistry(r *cache.Registry) Option {
	return func(e *Engine) {
		e.caches = r
	}
}

// WithTokenGenerator sets the source of transaction and scope ids.
func WithTokenGenerator(g TokenGenerator) Option {
	return func(e *Engine) {
		e.tokens = g
	}
}

// New creates an Engine over the storage, link and schema collaborators.
func New(records RecordStore, links LinkResolver, registry *schema.Registry, opts ...Option) *Engine {
	e := &Engine{
		records:  records,
		links:    links,
		registry: registry,
		maxDepth: DefaultMaxDepth,
		maxSteps: DefaultMaxSteps,
		locking:  true,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.formulas == nil {
		e.formulas = formula.NewEvaluator()
	}
	if e.metrics == nil {
		e.metrics = metrics.New(nil)
	}
	if e.caches == nil {
		m := e.metrics
		e.caches = cache.NewRegistry(cache.DefaultTTL, cache.WithEvictionHook(func(string) {
			m.CacheEvictions.Inc()
		}))
	}
	if e.tokens == nil {
		e.tokens = UUIDv7Generator{}
	}

	slog.Debug("engine configured",
		"models", len(registry.ModelIDs()),
		"max_depth", e.maxDepth,
		"max_steps", e.maxSteps,
		"optimistic_locking", e.locking)
	return e
}

// Registry returns the schema registry.
func (e *Engine) Registry() *schema.Registry {
	return e.registry
}

// MaxDepth returns the propagation depth cap.
func (e *Engine) MaxDepth() int {
	return e.maxDepth
}

// MaxSteps returns the task quota per cascade.
func (e *Engine) MaxSteps() int {
	return e.maxSteps
}

// NewTransaction creates a transaction configured like the engine's own.
func (e *Engine) NewTransaction(id, userID string) *txn.Transaction {
	return txn.New(id, userID, txn.WithOptimisticLocking(e.locking))
}
