// Package search finds, for a fixed λ, the population weight μ at which the
// selected side of the minimum-energy cut holds the target share of the
// population.
package search

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"districts/pkg/apperror"
	"districts/pkg/domain"
	"districts/pkg/logger"
	"districts/pkg/telemetry"
	"districts/services/partition-svc/internal/energy"
	"districts/services/partition-svc/internal/evaluator"
)

// Solver computes a minimum s-t cut of a flow network spec.
type Solver interface {
	Solve(ctx context.Context, spec *domain.FlowNetworkSpec) (*domain.Cut, error)
}

// =============================================================================
// Options
// =============================================================================

// Options controls the bisection over μ.
type Options struct {
	TargetFraction float64
	Tolerance      float64
	MaxIterations  int

	// MuMin and MuMax bound the initial bracket. MuMax = 0 derives the upper
	// bound from the graph: (Σa / Σp) / ρ² · Headroom.
	MuMin    float64
	MuMax    float64
	Headroom float64

	// BracketExpansion grows MuMax by BracketGrowth after ExpandAfter
	// consecutive below-target iterations, while no iteration has landed at
	// or above the target yet.
	BracketExpansion     bool
	BracketGrowth        float64
	MaxBracketExpansions int
	ExpandAfter          int
}

// DefaultOptions returns the default search options.
func DefaultOptions() Options {
	return Options{
		TargetFraction:       domain.DefaultTargetFraction,
		Tolerance:            domain.DefaultTolerance,
		MaxIterations:        domain.DefaultMaxIterations,
		Headroom:             domain.DefaultMuHeadroom,
		BracketExpansion:     true,
		BracketGrowth:        domain.DefaultBracketGrowth,
		MaxBracketExpansions: domain.DefaultMaxBracketExpansions,
		ExpandAfter:          domain.DefaultExpandAfter,
	}
}

// Validate checks option ranges.
func (o Options) Validate() error {
	switch {
	case math.IsNaN(o.TargetFraction) || o.TargetFraction < 0 || o.TargetFraction > 1:
		return apperror.InvalidParameter("target_fraction", o.TargetFraction, "must be in [0, 1]")
	case !domain.IsFiniteNonNegative(o.Tolerance):
		return apperror.InvalidParameter("tolerance", o.Tolerance, "must be finite and >= 0")
	case o.MaxIterations < 1:
		return apperror.InvalidParameter("max_iterations", o.MaxIterations, "must be >= 1")
	case !domain.ValidMu(o.MuMin):
		return apperror.InvalidParameter("mu_min", o.MuMin, "must be finite and >= 0")
	case !domain.IsFiniteNonNegative(o.MuMax):
		return apperror.InvalidParameter("mu_max", o.MuMax, "must be finite and >= 0")
	case o.MuMax > 0 && o.MuMax <= o.MuMin:
		return apperror.InvalidParameter("mu_max", o.MuMax, "must be greater than mu_min")
	case !domain.IsPositive(o.Headroom) || math.IsInf(o.Headroom, 0):
		return apperror.InvalidParameter("headroom", o.Headroom, "must be finite and > 0")
	}
	if o.BracketExpansion {
		switch {
		case math.IsNaN(o.BracketGrowth) || math.IsInf(o.BracketGrowth, 0) || o.BracketGrowth <= 1:
			return apperror.InvalidParameter("bracket_growth", o.BracketGrowth, "must be finite and > 1")
		case o.MaxBracketExpansions < 0:
			return apperror.InvalidParameter("max_bracket_expansions", o.MaxBracketExpansions, "must be >= 0")
		case o.ExpandAfter < 1:
			return apperror.InvalidParameter("expand_after", o.ExpandAfter, "must be >= 1")
		}
	}
	return nil
}

// =============================================================================
// MuSearch
// =============================================================================

// MuSearch runs the bisection over μ for one λ at a time.
// A MuSearch holds no per-call state and is safe for concurrent use when
// its Solver is.
type MuSearch struct {
	solver  Solver
	options Options
}

// New creates a MuSearch. Options are validated once here.
func New(solver Solver, options Options) (*MuSearch, error) {
	if solver == nil {
		return nil, apperror.New(apperror.CodeNilInput, "solver is nil")
	}
	if err := options.Validate(); err != nil {
		return nil, err
	}
	return &MuSearch{solver: solver, options: options}, nil
}

// Options returns the options the search was created with.
func (s *MuSearch) Options() Options {
	return s.options
}

// Search bisects μ until the selected population is within tolerance of
// the target or MaxIterations is reached.
//
// Running out of iterations is reported through Converged=false together
// with the last partition; it is not an error. Every iteration performs
// exactly one build, one solve and one evaluation, so Iterations always
// equals len(MuHistory).
func (s *MuSearch) Search(ctx context.Context, graph *domain.GraphModel, lambda float64) (*domain.SearchResult, error) {
	if graph == nil {
		return nil, apperror.ErrNilGraph
	}
	if !domain.ValidLambda(lambda) {
		return nil, apperror.InvalidParameter("lambda", lambda, "must be in [0, 1)")
	}

	ctx, span := telemetry.StartSpan(ctx, "search.Search",
		telemetry.WithAttributes(telemetry.GraphAttributes(graph.NodeCount(), graph.EdgeCount(), graph.Rho)...),
	)
	defer span.End()

	log := logger.WithLambda(ctx, lambda)
	start := time.Now()

	total := float64(graph.TotalPopulation())
	target := s.options.TargetFraction * total
	tolerance := s.options.Tolerance * total

	b := newBracket(s.options, s.upperBound(graph))
	result := &domain.SearchResult{
		Lambda:           lambda,
		TargetPopulation: target,
		MuHistory:        make([]float64, 0, s.options.MaxIterations),
	}

	for len(result.MuHistory) < s.options.MaxIterations {
		if err := ctx.Err(); err != nil {
			cerr := apperror.Canceled(err)
			telemetry.RecordError(ctx, cerr)
			return nil, cerr
		}

		mu := b.mid()
		partition, err := s.step(ctx, graph, lambda, mu)
		if err != nil {
			telemetry.SetError(ctx, err)
			return nil, err
		}

		result.MuHistory = append(result.MuHistory, mu)
		result.Partition = partition

		selected := float64(partition.SelectedPopulation)
		log.Debug("Search iteration",
			"iteration", len(result.MuHistory),
			"mu", mu,
			"selected_population", partition.SelectedPopulation,
			"target", target,
		)

		if math.Abs(selected-target) <= tolerance {
			result.Converged = true
			break
		}
		if selected < target {
			b.below(mu)
		} else {
			b.above(mu)
		}
	}

	result.Iterations = len(result.MuHistory)
	result.MuMin, result.MuMax = b.lo, b.hi
	result.BracketExpansions = b.expansions
	result.Elapsed = time.Since(start)

	telemetry.SetAttributes(ctx, telemetry.SearchAttributes(
		lambda, result.FinalMu(), result.Iterations, result.Converged, result.Partition.PopulationFraction)...)
	telemetry.SetAttributes(ctx, attribute.Int(telemetry.AttrBracketExpansions, result.BracketExpansions))

	if !result.Converged {
		log.Warn("Search did not converge",
			"iterations", result.Iterations,
			"mu_min", result.MuMin,
			"mu_max", result.MuMax,
			"population_fraction", result.Partition.PopulationFraction,
		)
	}

	return result, nil
}

// upperBound returns the initial μ upper bound.
func (s *MuSearch) upperBound(graph *domain.GraphModel) float64 {
	if s.options.MuMax > 0 {
		return s.options.MuMax
	}
	hi := s.options.Headroom
	if scale := energy.MuScale(graph); scale > 0 {
		hi = scale * s.options.Headroom
	}
	if hi <= s.options.MuMin {
		return s.options.MuMin + hi
	}
	return hi
}

// step runs one build, solve and evaluate at (λ, μ).
func (s *MuSearch) step(ctx context.Context, graph *domain.GraphModel, lambda, mu float64) (*domain.PartitionResult, error) {
	spec, err := energy.Build(graph, lambda, mu)
	if err != nil {
		return nil, err
	}

	cut, err := s.solver.Solve(ctx, spec)
	if err != nil {
		return nil, solverError(err)
	}
	if err := checkCut(spec, cut); err != nil {
		return nil, err
	}

	partition, err := evaluator.Evaluate(graph, cut.Selected, lambda, mu)
	if err != nil {
		return nil, err
	}
	partition.FlowValue = cut.FlowValue
	return partition, nil
}

// checkCut verifies the solver output against the spec it was given.
func checkCut(spec *domain.FlowNetworkSpec, cut *domain.Cut) error {
	switch {
	case cut == nil:
		return apperror.ContractViolation("solver returned nil cut")
	case len(cut.Selected) != spec.NodeCount:
		return apperror.ContractViolation(
			fmt.Sprintf("solver returned %d labels for %d nodes", len(cut.Selected), spec.NodeCount)).
			WithDetails("labels", len(cut.Selected)).
			WithDetails("nodes", spec.NodeCount)
	case math.IsNaN(cut.FlowValue):
		return apperror.ContractViolation("solver returned NaN flow value")
	case cut.FlowValue < 0:
		return apperror.ContractViolation(
			fmt.Sprintf("solver returned negative flow value %v", cut.FlowValue)).
			WithDetails("flow_value", cut.FlowValue)
	}
	return nil
}

// solverError maps a solver failure onto the application error taxonomy.
func solverError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return apperror.Canceled(err)
	}
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperror.Wrap(err, apperror.CodeAlgorithmError, "min-cut solver failed")
}

// =============================================================================
// Bracket
// =============================================================================

// bracket is the [lo, hi] interval of the bisection plus the expansion
// bookkeeping. hi stays unconfirmed until some μ lands at or above target.
type bracket struct {
	lo, hi float64

	expand        bool
	growth        float64
	maxExpansions int
	expandAfter   int

	expansions     int
	consecutiveLow int
	upperConfirmed bool
}

func newBracket(o Options, hi float64) *bracket {
	return &bracket{
		lo:            o.MuMin,
		hi:            hi,
		expand:        o.BracketExpansion,
		growth:        o.BracketGrowth,
		maxExpansions: o.MaxBracketExpansions,
		expandAfter:   o.ExpandAfter,
	}
}

func (b *bracket) mid() float64 {
	return (b.lo + b.hi) / 2
}

// below records an iteration under target and widens hi when the upper
// bound still looks too small.
func (b *bracket) below(mu float64) {
	b.lo = mu
	b.consecutiveLow++
	if !b.expand || b.upperConfirmed || b.expansions >= b.maxExpansions {
		return
	}
	if b.consecutiveLow >= b.expandAfter {
		b.hi *= b.growth
		b.expansions++
		b.consecutiveLow = 0
	}
}

// above records an iteration at or over target.
func (b *bracket) above(mu float64) {
	b.hi = mu
	b.upperConfirmed = true
	b.consecutiveLow = 0
}
