package scheduler

import "context"

// TaskKey identifies one task of one job.
type TaskKey struct {
	JobID     string
	TaskIndex int
}

// Interval is a projected (start, end) pair in floating-point minutes
// relative to program_start.
type Interval struct {
	StartMin float64
	EndMin   float64
}

// TaskInfo describes one task's shape, regardless of whether its job was
// kept present by the solver.
type TaskInfo struct {
	Kind        TaskKind
	Station     string
	FromStation string
	ToStation   string
	Present     bool
}

// Result is the output of a full Solve call.
type Result struct {
	Status         Status
	Schedule       map[TaskKey]Interval
	TaskMetadata   map[TaskKey]TaskInfo
	HorizonMinutes float64
}

// Solve runs the full pipeline (C1 is provider; C2-C5 run here) for req
// against provider: it expands every selected operation's tasks, builds
// the constraint model, runs the search within the configured budget, and
// projects the result into a minute-denominated schedule.
//
// On success (Optimal or Feasible) it returns the projected schedule. On
// Infeasible or TimedOut-with-no-solution it returns an empty schedule and
// HorizonMinutes == 0, per spec.md §4.4/§7; the task metadata is still
// populated so a caller can see what was attempted.
func Solve(ctx context.Context, provider DataProvider, req BatchRequest, opts ...SolveOption) (Result, error) {
	built, err := Build(provider, req)
	if err != nil {
		return Result{}, err
	}

	out, err := runSolver(ctx, built, opts...)
	if err != nil {
		return Result{}, err
	}

	metadata := make(map[TaskKey]TaskInfo)
	result := Result{Status: out.status, TaskMetadata: metadata}

	if out.status == StatusInfeasible || out.status == StatusTimedOut {
		for _, jv := range built.Jobs {
			for i, task := range jv.Tasks {
				metadata[TaskKey{JobID: jv.JobID, TaskIndex: i}] = taskInfo(task, false)
			}
		}
		return result, nil
	}

	schedule := make(map[TaskKey]Interval)
	timeUnit := float64(built.TimeUnit)

	for _, jv := range built.Jobs {
		present := out.assignment[jv.Presence.ID()] == 2
		for i, task := range jv.Tasks {
			key := TaskKey{JobID: jv.JobID, TaskIndex: i}
			metadata[key] = taskInfo(task, present)
			if !present {
				continue
			}
			startTick := out.assignment[jv.Starts[i].ID()] - 1
			endTick := out.assignment[jv.Ends[i].ID()] - 1
			schedule[key] = Interval{
				StartMin: float64(startTick) / timeUnit,
				EndMin:   float64(endTick) / timeUnit,
			}
		}
	}

	result.Schedule = schedule
	result.HorizonMinutes = float64(built.HorizonTicks) / timeUnit
	return result, nil
}

func taskInfo(task Task, present bool) TaskInfo {
	return TaskInfo{
		Kind: task.Kind, Station: task.Station,
		FromStation: task.FromStation, ToStation: task.ToStation,
		Present: present,
	}
}
