// Package sweep runs one independent μ search per λ on a bounded worker
// pool and aggregates the results into a SweepResult.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"districts/pkg/apperror"
	"districts/pkg/cache"
	"districts/pkg/domain"
	"districts/pkg/logger"
	"districts/pkg/metrics"
	"districts/pkg/telemetry"
)

// Searcher finds μ for a single λ. *search.MuSearch implements it.
type Searcher interface {
	Search(ctx context.Context, graph *domain.GraphModel, lambda float64) (*domain.SearchResult, error)
}

// =============================================================================
// Options
// =============================================================================

// Options controls a sweep.
type Options struct {
	// Lambdas is the λ set. Empty selects domain.DefaultLambdas().
	Lambdas []float64

	// MaxWorkers bounds the number of concurrent searches.
	// Zero selects runtime.NumCPU().
	MaxWorkers int

	Policy domain.FailurePolicy

	// Algorithm labels search metrics; it does not select the solver.
	Algorithm string
}

// DefaultOptions returns fail-fast options over the default λ set.
func DefaultOptions() Options {
	return Options{
		Lambdas:    domain.DefaultLambdas(),
		MaxWorkers: runtime.NumCPU(),
		Policy:     domain.FailFast,
	}
}

// Validate checks the options, including the λ set.
func (o Options) Validate() error {
	if o.MaxWorkers < 0 {
		return apperror.InvalidParameter("max_workers", o.MaxWorkers, "must be >= 0")
	}
	if !o.Policy.Valid() {
		return apperror.InvalidParameter("failure_policy", o.Policy, "must be fail_fast or continue")
	}
	return ValidateLambdas(o.Lambdas)
}

// ValidateLambdas rejects any λ outside [0, 1) and any duplicate.
func ValidateLambdas(lambdas []float64) error {
	seen := make(map[float64]struct{}, len(lambdas))
	for _, l := range lambdas {
		if !domain.ValidLambda(l) {
			return apperror.InvalidParameter("lambda", l, "must be in [0, 1)")
		}
		if _, dup := seen[l]; dup {
			return apperror.InvalidParameter("lambda", l, "duplicate value in sweep")
		}
		seen[l] = struct{}{}
	}
	return nil
}

// =============================================================================
// Orchestrator
// =============================================================================

// Orchestrator runs λ sweeps. It is safe for concurrent use when its
// Searcher is.
type Orchestrator struct {
	searcher Searcher
	options  Options

	cache   *cache.SearchCache
	metrics *metrics.Metrics
	tracker *metrics.TaskTracker
}

// Option configures optional collaborators of an Orchestrator.
type Option func(*Orchestrator)

// WithCache makes the orchestrator consult c before each search and store
// converged results in it. The cache stays owned by the caller.
func WithCache(c *cache.SearchCache) Option {
	return func(o *Orchestrator) {
		o.cache = c
	}
}

// WithMetrics records per-λ search and cache metrics into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
		if m != nil {
			o.tracker = metrics.NewTaskTracker(m.SearchesInFlight)
		}
	}
}

// New creates an Orchestrator. Empty Lambdas and zero MaxWorkers are
// replaced by their defaults before validation.
func New(searcher Searcher, options Options, opts ...Option) (*Orchestrator, error) {
	if searcher == nil {
		return nil, apperror.New(apperror.CodeNilInput, "searcher is nil")
	}
	if len(options.Lambdas) == 0 {
		options.Lambdas = domain.DefaultLambdas()
	} else {
		options.Lambdas = append([]float64(nil), options.Lambdas...)
	}
	if options.MaxWorkers == 0 {
		options.MaxWorkers = runtime.NumCPU()
	}
	if options.Policy == "" {
		options.Policy = domain.FailFast
	}
	if err := options.Validate(); err != nil {
		return nil, err
	}

	o := &Orchestrator{searcher: searcher, options: options}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Options returns the effective options.
func (o *Orchestrator) Options() Options {
	return o.options
}

// Run searches every λ of the sweep against graph.
//
// Under fail_fast the first non-converged λ cancels the remaining searches
// and Run returns a SWEEP_FAILURE error without a result. Under continue
// every λ is collected and the failures are listed in FailedLambdas.
// Cancellation and solver contract violations are returned as errors
// under both policies.
func (o *Orchestrator) Run(ctx context.Context, graph *domain.GraphModel) (*domain.SweepResult, error) {
	if graph == nil {
		return nil, apperror.ErrNilGraph
	}

	runID := uuid.NewString()
	lambdas := o.options.Lambdas

	ctx, span := telemetry.StartSpan(ctx, "sweep.Run",
		telemetry.WithAttributes(telemetry.SweepAttributes(
			runID, len(lambdas), o.options.MaxWorkers, string(o.options.Policy))...),
		telemetry.WithAttributes(telemetry.GraphAttributes(graph.NodeCount(), graph.EdgeCount(), graph.Rho)...),
	)
	defer span.End()

	log := logger.WithRunID(ctx, runID)
	log.Info("Sweep started",
		"lambdas", len(lambdas),
		"workers", o.options.MaxWorkers,
		"policy", o.options.Policy,
		"nodes", graph.NodeCount(),
	)
	start := time.Now()

	var graphHash string
	if o.cache != nil {
		graphHash = cache.GraphHash(graph)
	}

	var (
		mu      sync.Mutex
		results = make(map[float64]*domain.SearchResult, len(lambdas))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.options.MaxWorkers)

	for _, lambda := range lambdas {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res, err := o.runLambda(gctx, runID, graph, graphHash, lambda)
			if err != nil {
				return err
			}
			if !res.Converged && o.options.Policy == domain.FailFast {
				return apperror.New(apperror.CodeSweepFailure,
					fmt.Sprintf("search did not converge for lambda = %v", lambda)).
					WithDetails("lambda", lambda).
					WithDetails("iterations", res.Iterations).
					WithDetails("population_fraction", res.Partition.PopulationFraction)
			}

			mu.Lock()
			results[lambda] = res
			mu.Unlock()
			return nil
		})
	}

	err := g.Wait()
	if err == nil && ctx.Err() != nil {
		err = apperror.Canceled(ctx.Err())
	}
	if err != nil {
		telemetry.RecordError(ctx, err)
		log.Error("Sweep failed",
			"error", err,
			"code", apperror.Code(err),
			"completed", len(results),
			"elapsed", time.Since(start),
		)
		return nil, err
	}

	result := aggregate(runID, results)
	result.Elapsed = time.Since(start)

	telemetry.SetAttributes(ctx,
		attribute.Bool(telemetry.AttrAllConverged, result.AllConverged),
		attribute.Float64Slice(telemetry.AttrFailedLambdas, result.FailedLambdas),
		attribute.Int(telemetry.AttrTotalIters, result.TotalIterations),
	)
	log.Info("Sweep finished",
		"outcome", result.Outcome(),
		"total_iterations", result.TotalIterations,
		"failed_lambdas", result.FailedLambdas,
		"elapsed", result.Elapsed,
	)

	return result, nil
}

// runLambda answers one λ from the cache or by running a search.
func (o *Orchestrator) runLambda(ctx context.Context, runID string, graph *domain.GraphModel, graphHash string, lambda float64) (*domain.SearchResult, error) {
	log := logger.WithLambda(ctx, lambda, "run_id", runID)

	if o.cache != nil {
		cached, ok, err := o.cache.Get(ctx, graphHash, lambda)
		switch {
		case err != nil:
			log.Warn("Search cache read failed", "error", err)
			o.recordCache("get", "error")
		case ok:
			o.recordCache("get", "hit")
			log.Debug("Search result served from cache", "iterations", cached.Iterations)
			return cached, nil
		default:
			o.recordCache("get", "miss")
		}
	}

	if o.tracker != nil {
		o.tracker.Start(o.options.Algorithm)
		defer o.tracker.End(o.options.Algorithm)
	}

	start := time.Now()
	res, err := o.searcher.Search(ctx, graph, lambda)
	if err != nil {
		if !errors.Is(err, context.Canceled) && !apperror.Is(err, apperror.CodeCanceled) {
			log.Error("Search failed", "error", err, "code", apperror.Code(err))
		}
		return nil, err
	}
	if res == nil || res.Partition == nil {
		return nil, apperror.ContractViolation(fmt.Sprintf("search for lambda = %v returned no partition", lambda))
	}

	if o.metrics != nil {
		o.metrics.RecordSearch(o.options.Algorithm, res.Converged, res.Iterations, time.Since(start))
	}
	log.Debug("Search finished",
		"converged", res.Converged,
		"iterations", res.Iterations,
		"mu", res.FinalMu(),
		"population_fraction", res.Partition.PopulationFraction,
	)

	if o.cache != nil && res.Converged {
		if err := o.cache.Set(ctx, graphHash, res, 0); err != nil {
			log.Warn("Search cache write failed", "error", err)
			o.recordCache("set", "error")
		} else {
			o.recordCache("set", "ok")
		}
	}

	return res, nil
}

func (o *Orchestrator) recordCache(operation, result string) {
	if o.metrics != nil {
		o.metrics.RecordCacheOperation(operation, result)
	}
}

// aggregate folds per-λ results into a SweepResult.
func aggregate(runID string, results map[float64]*domain.SearchResult) *domain.SweepResult {
	out := &domain.SweepResult{
		RunID:         runID,
		Results:       results,
		AllConverged:  true,
		FailedLambdas: []float64{},
	}
	for lambda, r := range results {
		out.TotalIterations += r.Iterations
		if !r.Converged {
			out.AllConverged = false
			out.FailedLambdas = append(out.FailedLambdas, lambda)
		}
	}
	sort.Float64s(out.FailedLambdas)
	return out
}

// Classify maps the return values of Run onto the three sweep outcomes.
func Classify(result *domain.SweepResult, err error) domain.Outcome {
	if err != nil || result == nil {
		return domain.OutcomeFailed
	}
	return result.Outcome()
}
