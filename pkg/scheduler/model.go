package scheduler

import (
	"fmt"
	"math"
	"strings"

	mk "github.com/prodline/stationsched/pkg/minikanren"
)

// jobVars holds every variable the Model Builder created for one job,
// independent of whether the solver ultimately keeps it present.
type jobVars struct {
	JobID    string
	Op       string
	Tasks    []Task
	DurTicks []int
	Presence *mk.FDVariable
	Starts   []*mk.FDVariable
	Ends     []*mk.FDVariable
	Finish   *mk.FDVariable
}

// BuiltModel is the output of the Model Builder: a constraint model ready
// to hand to the Solver Driver, plus the bookkeeping the Schedule Projector
// needs to translate variable assignments back into job/task terms.
type BuiltModel struct {
	Model        *mk.Model
	TimeUnit     int
	HorizonTicks int
	ProgramStart float64

	Jobs []*jobVars

	// Throughput is Σ weight(op)·presence(job) over raw {1,2}-valued
	// presence variables; maximizing it is equivalent to maximizing the
	// {0,1}-valued throughput sum since both differ only by the constant
	// Σ weight(op), which does not affect the argmax (see DESIGN.md).
	Throughput *mk.FDVariable
	// FinishTotal is Σ finish(job) over every job, present or not.
	FinishTotal *mk.FDVariable
}

// Build instantiates the optimization variables and constraints for req
// against provider, following spec.md §4.3's five construction steps.
func Build(provider DataProvider, req BatchRequest) (*BuiltModel, error) {
	timeUnit := req.timeUnit()
	programStart := req.programStart()
	horizonTicks := int(math.Round(req.HorizonMin * float64(timeUnit)))
	if horizonTicks < 0 {
		return nil, newInputError("horizon_min must be non-negative")
	}

	model := mk.NewModel()
	built := &BuiltModel{
		Model: model, TimeUnit: timeUnit, HorizonTicks: horizonTicks, ProgramStart: programStart,
	}

	type opPlan struct {
		op       string
		tasks    []Task
		runCount int
		forced   bool
	}
	plans := make([]opPlan, 0, len(req.SelectedOps))
	totalRunCount := 0

	for _, op := range req.SelectedOps {
		recipe, ok := provider.Operation(op)
		if !ok {
			return nil, newInputError("selected operation %q is not in the catalog", op)
		}
		tasks, err := Expand(recipe, provider)
		if err != nil {
			return nil, err
		}
		runCount := req.MaxRuns[op]
		if runCount <= 0 {
			minimal := 0.0
			for _, t := range tasks {
				minimal += t.DurationMin
			}
			if minimal <= 0 {
				runCount = 1
			} else {
				runCount = int(req.HorizonMin/minimal) + 1
			}
		}
		_, forced := req.LatestFinishes[op]
		plans = append(plans, opPlan{op: op, tasks: tasks, runCount: runCount, forced: forced})
		totalRunCount += runCount
	}

	presenceVars := make([]*mk.FDVariable, 0, totalRunCount)
	weightCoeffs := make([]int, 0, totalRunCount)
	jobIndex := make(map[string]*jobVars, totalRunCount)

	stationIntervals := make(map[string][]intervalRef)
	var moveD, moveS []intervalRef

	for _, plan := range plans {
		weight := req.weightFor(plan.op)
		earliestClock, hasEarliest := req.EarliestStarts[plan.op]
		latestClock, hasLatest := req.LatestFinishes[plan.op]

		for k := 0; k < plan.runCount; k++ {
			jobID := fmt.Sprintf("%s_%d", plan.op, k)

			var presence *mk.FDVariable
			if plan.forced {
				presence = model.NewVariableWithName(mk.NewBitSetDomainFromValues(2, []int{2}), "presence:"+jobID)
			} else {
				presence = model.NewVariableWithName(mk.NewBitSetDomain(2), "presence:"+jobID)
			}

			starts := make([]*mk.FDVariable, len(plan.tasks))
			ends := make([]*mk.FDVariable, len(plan.tasks))
			durTicks := make([]int, len(plan.tasks))

			for i, task := range plan.tasks {
				dur := ceilTicks(task.DurationMin, timeUnit)
				durTicks[i] = dur
				startMax := horizonTicks - dur
				if startMax < 0 {
					startMax = 0
				}
				starts[i] = model.NewVariableWithName(mk.NewBitSetDomain(startMax+1), fmt.Sprintf("start:%s:%d", jobID, i))
				ends[i] = model.NewVariableWithName(mk.NewBitSetDomain(horizonTicks+1), fmt.Sprintf("end:%s:%d", jobID, i))

				durConstraint, err := mk.NewArithmetic(starts[i], ends[i], dur)
				if err != nil {
					return nil, fmt.Errorf("building duration constraint for %s task %d: %w", jobID, i, err)
				}
				if err := addReified(model, durConstraint, presence); err != nil {
					return nil, err
				}

				if i > 0 {
					chain, err := mk.NewArithmetic(ends[i-1], starts[i], 0)
					if err != nil {
						return nil, fmt.Errorf("building chaining constraint for %s task %d: %w", jobID, i, err)
					}
					if err := addReified(model, chain, presence); err != nil {
						return nil, err
					}
				}
			}

			if hasEarliest {
				ticks := toTicks(earliestClock, programStart, timeUnit)
				bound := model.NewVariableWithName(mk.NewBitSetDomainFromValues(ticks+1, []int{ticks + 1}), "earliest:"+jobID)
				ineq, err := mk.NewInequality(bound, starts[0], mk.LessEqual)
				if err != nil {
					return nil, fmt.Errorf("building earliest-start constraint for %s: %w", jobID, err)
				}
				if err := addReified(model, ineq, presence); err != nil {
					return nil, err
				}
			}
			if hasLatest {
				ticks := toTicks(latestClock, programStart, timeUnit)
				bound := model.NewVariableWithName(mk.NewBitSetDomainFromValues(ticks+1, []int{ticks + 1}), "latest:"+jobID)
				ineq, err := mk.NewInequality(ends[len(ends)-1], bound, mk.LessEqual)
				if err != nil {
					return nil, fmt.Errorf("building latest-finish constraint for %s: %w", jobID, err)
				}
				if err := addReified(model, ineq, presence); err != nil {
					return nil, err
				}
			}

			finish := model.NewVariableWithName(mk.NewBitSetDomain(horizonTicks+1), "finish:"+jobID)
			for _, e := range ends {
				ineq, err := mk.NewInequality(e, finish, mk.LessEqual)
				if err != nil {
					return nil, fmt.Errorf("building finish-tracking constraint for %s: %w", jobID, err)
				}
				if err := addReified(model, ineq, presence); err != nil {
					return nil, err
				}
			}

			jv := &jobVars{JobID: jobID, Op: plan.op, Tasks: plan.tasks, DurTicks: durTicks, Presence: presence, Starts: starts, Ends: ends, Finish: finish}
			built.Jobs = append(built.Jobs, jv)
			jobIndex[jobID] = jv
			presenceVars = append(presenceVars, presence)
			weightCoeffs = append(weightCoeffs, weight)

			for i, task := range plan.tasks {
				ref := intervalRef{start: starts[i], dur: durTicks[i], presence: presence}
				switch task.Kind {
				case TaskProcess:
					if task.Station != StationSource && task.Station != StationFinish {
						stationIntervals[task.Station] = append(stationIntervals[task.Station], ref)
					}
				case TaskMove:
					if task.ToStation != StationSource && task.ToStation != StationFinish {
						stationIntervals[task.ToStation] = append(stationIntervals[task.ToStation], ref)
					}
					switch {
					case strings.HasPrefix(task.FromStation, "D"):
						moveD = append(moveD, ref)
					case strings.HasPrefix(task.FromStation, "S"):
						moveS = append(moveS, ref)
					}
				}
			}
		}
	}

	for station, refs := range stationIntervals {
		cap := req.StationCaps[station]
		if cap <= 0 {
			if s, ok := provider.Stations()[station]; ok && s.Capacity > 0 {
				cap = s.Capacity
			} else {
				cap = 1
			}
		}
		if err := addCapacityConstraint(model, refs, cap); err != nil {
			return nil, fmt.Errorf("building capacity constraint for station %q: %w", station, err)
		}
	}
	if len(moveD) > 0 {
		if err := addCapacityConstraint(model, moveD, 1); err != nil {
			return nil, fmt.Errorf("building move-line D constraint: %w", err)
		}
	}
	if len(moveS) > 0 {
		if err := addCapacityConstraint(model, moveS, 2); err != nil {
			return nil, fmt.Errorf("building move-line S constraint: %w", err)
		}
	}

	for jobID, preds := range req.Precedence {
		jv, ok := jobIndex[jobID]
		if !ok {
			return nil, newInputError("precedence references unknown job id %q", jobID)
		}
		for _, predID := range preds {
			pv, ok := jobIndex[predID]
			if !ok {
				return nil, newInputError("precedence references unknown job id %q", predID)
			}
			ineq, err := mk.NewInequality(pv.Ends[len(pv.Ends)-1], jv.Starts[0], mk.LessEqual)
			if err != nil {
				return nil, fmt.Errorf("building precedence constraint %s -> %s: %w", predID, jobID, err)
			}
			inner, err := mk.NewReifiedConstraint(ineq, jv.Presence)
			if err != nil {
				return nil, fmt.Errorf("building precedence constraint %s -> %s: %w", predID, jobID, err)
			}
			outer, err := mk.NewReifiedConstraint(inner, pv.Presence)
			if err != nil {
				return nil, fmt.Errorf("building precedence constraint %s -> %s: %w", predID, jobID, err)
			}
			model.AddConstraint(outer)
		}
	}

	sumWeight := 0
	for _, w := range weightCoeffs {
		sumWeight += w
	}
	if len(presenceVars) > 0 {
		throughputMax := sumWeight*2 + 1
		built.Throughput = model.NewVariableWithName(mk.NewBitSetDomain(throughputMax), "throughput")
		ls, err := mk.NewLinearSum(presenceVars, weightCoeffs, built.Throughput)
		if err != nil {
			return nil, fmt.Errorf("building throughput objective: %w", err)
		}
		model.AddConstraint(ls)

		finishVars := make([]*mk.FDVariable, len(built.Jobs))
		finishCoeffs := make([]int, len(built.Jobs))
		for i, jv := range built.Jobs {
			finishVars[i] = jv.Finish
			finishCoeffs[i] = 1
		}
		finishMax := len(built.Jobs)*(horizonTicks+1) + 1
		built.FinishTotal = model.NewVariableWithName(mk.NewBitSetDomain(finishMax), "finishTotal")
		ls2, err := mk.NewLinearSum(finishVars, finishCoeffs, built.FinishTotal)
		if err != nil {
			return nil, fmt.Errorf("building finish-total objective: %w", err)
		}
		model.AddConstraint(ls2)
	}

	return built, nil
}

// intervalRef is the information a capacity constraint needs about one
// task's interval: its start variable, fixed duration, and the presence
// variable gating whether it actually consumes the resource.
type intervalRef struct {
	start    *mk.FDVariable
	dur      int
	presence *mk.FDVariable
}

func addCapacityConstraint(model *mk.Model, refs []intervalRef, capacity int) error {
	starts := make([]*mk.FDVariable, len(refs))
	durs := make([]int, len(refs))
	presences := make([]*mk.FDVariable, len(refs))
	for i, r := range refs {
		starts[i], durs[i], presences[i] = r.start, r.dur, r.presence
	}
	if capacity == 1 {
		con, err := mk.NewOptionalNoOverlap(starts, durs, presences)
		if err != nil {
			return err
		}
		model.AddConstraint(con)
		return nil
	}
	demands := make([]int, len(refs))
	for i := range demands {
		demands[i] = 1
	}
	con, err := mk.NewOptionalCumulative(starts, durs, demands, presences, capacity)
	if err != nil {
		return err
	}
	model.AddConstraint(con)
	return nil
}

func addReified(model *mk.Model, constraint mk.PropagationConstraint, presence *mk.FDVariable) error {
	reified, err := mk.NewReifiedConstraint(constraint, presence)
	if err != nil {
		return err
	}
	model.AddConstraint(reified)
	return nil
}

// ceilTicks converts a duration in minutes to the smallest integer number
// of ticks that covers it.
func ceilTicks(durationMin float64, timeUnit int) int {
	ticks := durationMin * float64(timeUnit)
	t := int(ticks)
	if float64(t) < ticks {
		t++
	}
	if t < 0 {
		t = 0
	}
	return t
}

// toTicks converts a clock-minute timestamp to ticks relative to
// program_start, clamped at zero per spec.md §4.3 step 1.
func toTicks(clockMin, programStart float64, timeUnit int) int {
	v := (clockMin - programStart) * float64(timeUnit)
	if v < 0 {
		v = 0
	}
	return int(math.Round(v))
}
