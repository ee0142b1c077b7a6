package scheduler

import (
	"context"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	mk "github.com/prodline/stationsched/pkg/minikanren"
)

// Status reports how the search terminated.
type Status int

const (
	// StatusOptimal means the search proved no better solution exists.
	StatusOptimal Status = iota
	// StatusFeasible means a solution was returned but optimality was not proven
	// (the wall-clock budget elapsed first).
	StatusFeasible
	// StatusInfeasible means the constraint system has no solution.
	StatusInfeasible
	// StatusTimedOut means the budget elapsed before any solution was found.
	StatusTimedOut
)

func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "optimal"
	case StatusFeasible:
		return "feasible"
	case StatusInfeasible:
		return "infeasible"
	case StatusTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// DefaultBudget is the fixed wall-clock search budget from spec.md §4.4.
const DefaultBudget = 60 * time.Second

// SolveOption customizes a single Solve call.
type SolveOption func(*solveConfig)

type solveConfig struct {
	budget  time.Duration
	workers int
	logger  *zerolog.Logger
}

// WithBudget overrides the default 60-second wall-clock search budget.
func WithBudget(d time.Duration) SolveOption {
	return func(c *solveConfig) { c.budget = d }
}

// WithWorkers overrides the default all-logical-CPUs worker count.
func WithWorkers(n int) SolveOption {
	return func(c *solveConfig) { c.workers = n }
}

// WithLogger attaches a zerolog logger; defaults to the global logger.
func WithLogger(l zerolog.Logger) SolveOption {
	return func(c *solveConfig) { c.logger = &l }
}

// outcome is the internal result of the two-phase branch-and-bound search
// (see DESIGN.md for why two sequential solves replace the BIGF
// scalarization described in spec.md §4.3).
type outcome struct {
	status      Status
	assignment  []int // solver variable values, indexed by model variable ID
	throughput  int
	finishTotal int
}

// runSolver drives the Model Builder's output through the constraint
// solver within the configured wall-clock budget, following spec.md §4.4's
// status handling.
func runSolver(ctx context.Context, built *BuiltModel, opts ...SolveOption) (outcome, error) {
	cfg := solveConfig{budget: DefaultBudget, workers: runtime.NumCPU()}
	for _, o := range opts {
		o(&cfg)
	}
	logger := log.Logger
	if cfg.logger != nil {
		logger = *cfg.logger
	}

	if built.Throughput == nil || built.FinishTotal == nil {
		// No jobs were requested at all.
		return outcome{status: StatusOptimal}, nil
	}

	deadline := time.Now().Add(cfg.budget)
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	logger.Info().
		Int("jobs", len(built.Jobs)).
		Int("horizon_ticks", built.HorizonTicks).
		Int("workers", cfg.workers).
		Dur("budget", cfg.budget).
		Msg("scheduler: starting solve")

	// Phase 1: maximize throughput.
	solver1 := mk.NewSolver(built.Model)
	sol1, throughput, err := solver1.SolveOptimalWithOptions(ctx, built.Throughput, false,
		mk.WithTimeLimit(cfg.budget), mk.WithParallelWorkers(cfg.workers))
	phase1TimedOut := err == context.DeadlineExceeded || err == mk.ErrSearchLimitReached
	if err != nil && !phase1TimedOut {
		return outcome{}, err
	}
	if sol1 == nil {
		if phase1TimedOut {
			logger.Warn().Msg("scheduler: timed out before finding a feasible solution")
			return outcome{status: StatusTimedOut}, nil
		}
		logger.Warn().Msg("scheduler: no feasible assignment of presence/time variables exists")
		return outcome{status: StatusInfeasible}, nil
	}

	// Phase 2: pin throughput at its optimum and minimize total finish time,
	// the lexicographic second criterion from spec.md §4.3's objective.
	built.Throughput.SetDomain(mk.NewBitSetDomainFromValues(built.Throughput.Domain().MaxValue(), []int{throughput}))

	if phase1TimedOut || time.Now().After(deadline) {
		logger.Info().Int("throughput", throughput).Msg("scheduler: budget exhausted after phase 1, keeping feasible assignment")
		return outcome{status: StatusFeasible, assignment: sol1, throughput: throughput, finishTotal: sol1[built.FinishTotal.ID()]}, nil
	}

	solver2 := mk.NewSolver(built.Model)
	sol2, finishTotal, err2 := solver2.SolveOptimalWithOptions(ctx, built.FinishTotal, true,
		mk.WithTimeLimit(time.Until(deadline)), mk.WithParallelWorkers(cfg.workers))
	phase2TimedOut := err2 == context.DeadlineExceeded || err2 == mk.ErrSearchLimitReached
	if err2 != nil && !phase2TimedOut {
		return outcome{}, err2
	}
	if sol2 == nil {
		// Phase 2 degraded (e.g. ran out of budget before any leaf); fall
		// back to the phase-1 incumbent, which already satisfies every
		// constraint and achieves the optimal throughput.
		logger.Info().Int("throughput", throughput).Msg("scheduler: phase 2 produced no improvement, keeping phase-1 assignment")
		return outcome{status: StatusFeasible, assignment: sol1, throughput: throughput, finishTotal: sol1[built.FinishTotal.ID()]}, nil
	}

	status := StatusOptimal
	if phase2TimedOut {
		status = StatusFeasible
	}
	logger.Info().
		Str("status", status.String()).
		Int("throughput", throughput).
		Int("finish_total", finishTotal).
		Msg("scheduler: solve finished")

	return outcome{status: status, assignment: sol2, throughput: throughput, finishTotal: finishTotal}, nil
}
