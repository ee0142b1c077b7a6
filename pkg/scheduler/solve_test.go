package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoOpLayout = `
stations:
  M1:
    capacity: 1
operations:
  op1:
    - [S, 5, 5]
    - [M1, 10, 10]
  op2:
    - [S, 2, 2]
    - [M1, 4, 4]
Travel_Times:
  S:
    M1: 1
  M1:
    FIN: 1
`

func mustLayout(t *testing.T, doc string) *Layout {
	t.Helper()
	layout, err := LoadLayout([]byte(doc))
	require.NoError(t, err)
	return layout
}

// Scenario 1: single job, no constraints (spec.md §8 scenario 1).
func TestSolve_SingleJobNoConstraints(t *testing.T) {
	layout := mustLayout(t, twoOpLayout)
	req := BatchRequest{
		SelectedOps: []string{"op1"},
		MaxRuns:     map[string]int{"op1": 1},
		HorizonMin:  60,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result, err := Solve(ctx, layout, req, WithBudget(2*time.Second))
	require.NoError(t, err)
	require.Contains(t, []Status{StatusOptimal, StatusFeasible}, result.Status)

	key := TaskKey{JobID: "op1_0", TaskIndex: 0}
	info, ok := result.TaskMetadata[key]
	require.True(t, ok)
	assert.True(t, info.Present)

	iv := result.Schedule[key]
	assert.Equal(t, 0.0, iv.StartMin)
	assert.Equal(t, 5.0, iv.EndMin)

	move := result.Schedule[TaskKey{JobID: "op1_0", TaskIndex: 1}]
	assert.Equal(t, 5.0, move.StartMin)
	assert.Equal(t, 6.0, move.EndMin)

	proc := result.Schedule[TaskKey{JobID: "op1_0", TaskIndex: 2}]
	assert.Equal(t, 6.0, proc.StartMin)
	assert.Equal(t, 16.0, proc.EndMin)
}

// Scenario 2: capacity blocks a second job from overlapping at M1, but both
// are present and fit in the horizon.
func TestSolve_CapacityKeepsOverlappingTasksApart(t *testing.T) {
	layout := mustLayout(t, twoOpLayout)
	req := BatchRequest{
		SelectedOps: []string{"op1"},
		MaxRuns:     map[string]int{"op1": 2},
		HorizonMin:  60,
		StationCaps: map[string]int{"M1": 1},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	result, err := Solve(ctx, layout, req, WithBudget(5*time.Second))
	require.NoError(t, err)

	job0M1 := result.Schedule[TaskKey{JobID: "op1_0", TaskIndex: 2}]
	job1M1 := result.Schedule[TaskKey{JobID: "op1_1", TaskIndex: 2}]
	require.True(t, result.TaskMetadata[TaskKey{JobID: "op1_0", TaskIndex: 2}].Present)
	require.True(t, result.TaskMetadata[TaskKey{JobID: "op1_1", TaskIndex: 2}].Present)

	overlap := job0M1.StartMin < job1M1.EndMin && job1M1.StartMin < job0M1.EndMin
	assert.False(t, overlap, "M1 intervals must not overlap under capacity 1")
}

// Scenario 3: a forced latest_finishes window is respected.
func TestSolve_LatestFinishForcesPresenceAndDeadline(t *testing.T) {
	layout := mustLayout(t, twoOpLayout)
	req := BatchRequest{
		SelectedOps:    []string{"op1"},
		MaxRuns:        map[string]int{"op1": 1},
		HorizonMin:     60,
		LatestFinishes: map[string]float64{"op1": 30},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result, err := Solve(ctx, layout, req, WithBudget(2*time.Second))
	require.NoError(t, err)

	key := TaskKey{JobID: "op1_0", TaskIndex: 3}
	require.True(t, result.TaskMetadata[key].Present, "forced operations must stay present")
	assert.LessOrEqual(t, result.Schedule[key].EndMin, 30.0)
}

// Scenario 4: precedence between two distinct operations' jobs.
func TestSolve_PrecedenceOrdersTwoJobs(t *testing.T) {
	layout := mustLayout(t, twoOpLayout)
	req := BatchRequest{
		SelectedOps: []string{"op1", "op2"},
		MaxRuns:     map[string]int{"op1": 1, "op2": 1},
		HorizonMin:  60,
		Precedence:  map[string][]string{"op1_0": {"op2_0"}},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result, err := Solve(ctx, layout, req, WithBudget(2*time.Second))
	require.NoError(t, err)

	predEnd := result.Schedule[TaskKey{JobID: "op2_0", TaskIndex: 3}].EndMin
	succStart := result.Schedule[TaskKey{JobID: "op1_0", TaskIndex: 0}].StartMin
	if result.TaskMetadata[TaskKey{JobID: "op1_0", TaskIndex: 0}].Present &&
		result.TaskMetadata[TaskKey{JobID: "op2_0", TaskIndex: 3}].Present {
		assert.GreaterOrEqual(t, succStart, predEnd)
	}
}

// Scenario 5: an infeasible latest-finish window yields an empty schedule
// and a zero horizon rather than an error.
func TestSolve_InfeasibleWindowYieldsEmptySchedule(t *testing.T) {
	layout := mustLayout(t, twoOpLayout)
	req := BatchRequest{
		SelectedOps:    []string{"op1"},
		MaxRuns:        map[string]int{"op1": 1},
		HorizonMin:     60,
		LatestFinishes: map[string]float64{"op1": 1}, // total duration is 17 min
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result, err := Solve(ctx, layout, req, WithBudget(2*time.Second))
	require.NoError(t, err)

	assert.Equal(t, StatusInfeasible, result.Status)
	assert.Empty(t, result.Schedule)
	assert.Equal(t, 0.0, result.HorizonMinutes)
}

// Scenario 6: program_start plus an operation-level earliest_starts offset
// pushes the first task's projected start forward.
func TestSolve_EarliestStartOffsetShiftsProjection(t *testing.T) {
	layout := mustLayout(t, twoOpLayout)
	req := BatchRequest{
		SelectedOps:    []string{"op1"},
		MaxRuns:        map[string]int{"op1": 1},
		HorizonMin:     60,
		EarliestStarts: map[string]float64{programStartKey: 420, "op1": 450},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result, err := Solve(ctx, layout, req, WithBudget(2*time.Second))
	require.NoError(t, err)

	key := TaskKey{JobID: "op1_0", TaskIndex: 0}
	require.True(t, result.TaskMetadata[key].Present)
	assert.GreaterOrEqual(t, result.Schedule[key].StartMin, 30.0)
}

func TestSolve_NoSelectedOperationsReturnsEmptyOptimalResult(t *testing.T) {
	layout := mustLayout(t, twoOpLayout)
	req := BatchRequest{HorizonMin: 10}

	result, err := Solve(context.Background(), layout, req)
	require.NoError(t, err)
	assert.Equal(t, StatusOptimal, result.Status)
	assert.Empty(t, result.Schedule)
}

func TestSolve_UnknownSelectedOperationIsAnInputError(t *testing.T) {
	layout := mustLayout(t, twoOpLayout)
	req := BatchRequest{SelectedOps: []string{"nonexistent"}, HorizonMin: 10}

	_, err := Solve(context.Background(), layout, req)
	require.Error(t, err)
	var inputErr *InputError
	require.ErrorAs(t, err, &inputErr)
}
