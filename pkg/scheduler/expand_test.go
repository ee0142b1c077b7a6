package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider is a minimal in-memory DataProvider for unit tests that don't
// need a full YAML layout document.
type fakeProvider struct {
	stations map[string]Station
	ops      map[string]OperationRecipe
	travel   map[string]map[string]float64
}

func (p *fakeProvider) Stations() map[string]Station { return p.stations }

func (p *fakeProvider) Operation(name string) (OperationRecipe, bool) {
	r, ok := p.ops[name]
	return r, ok
}

func (p *fakeProvider) TravelTime(from, to string) float64 {
	if byFrom, ok := p.travel[from]; ok {
		if t, ok := byFrom[to]; ok {
			return t
		}
	}
	return 1.0
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		stations: map[string]Station{
			StationSource: {Capacity: 0},
			"M1":          {Capacity: 1},
			StationFinish: {Capacity: 0},
		},
		ops: map[string]OperationRecipe{},
		travel: map[string]map[string]float64{
			StationSource: {"M1": 2},
			"M1":          {StationFinish: 3},
		},
	}
}

func TestExpand_SingleStepRecipe(t *testing.T) {
	provider := newFakeProvider()
	recipe := OperationRecipe{
		{Station: StationSource, Min: 5, Max: 5},
		{Station: "M1", Min: 10, Max: 10},
	}

	tasks, err := Expand(recipe, provider)
	require.NoError(t, err)
	require.Len(t, tasks, 4)

	assert.Equal(t, Task{Kind: TaskProcess, Station: StationSource, DurationMin: 5}, tasks[0])
	assert.Equal(t, Task{Kind: TaskMove, FromStation: StationSource, ToStation: "M1", DurationMin: 2}, tasks[1])
	assert.Equal(t, Task{Kind: TaskProcess, Station: "M1", DurationMin: 10}, tasks[2])
	assert.Equal(t, Task{Kind: TaskMove, FromStation: "M1", ToStation: StationFinish, DurationMin: 3}, tasks[3])
}

func TestExpand_SkipsZeroDurationTransitStep(t *testing.T) {
	provider := newFakeProvider()
	recipe := OperationRecipe{
		{Station: StationSource, Min: 0, Max: 0},
		{Station: "M1", Min: 0, Max: 0},
	}

	tasks, err := Expand(recipe, provider)
	require.NoError(t, err)

	// The load PROCESS (duration 0, still emitted) followed by two MOVEs;
	// the second step's PROCESS is skipped because its min duration is 0.
	kinds := make([]TaskKind, len(tasks))
	for i, task := range tasks {
		kinds[i] = task.Kind
	}
	assert.Equal(t, []TaskKind{TaskProcess, TaskMove, TaskMove}, kinds)
}

func TestExpand_RejectsEmptyRecipe(t *testing.T) {
	provider := newFakeProvider()
	_, err := Expand(nil, provider)
	require.Error(t, err)
}

func TestExpand_RejectsRecipeNotStartingAtSource(t *testing.T) {
	provider := newFakeProvider()
	recipe := OperationRecipe{{Station: "M1", Min: 5, Max: 5}}
	_, err := Expand(recipe, provider)
	require.Error(t, err)
}

func TestExpandWithStorage_InjectsRoundRobinBuffers(t *testing.T) {
	provider := newFakeProvider()
	recipe := OperationRecipe{
		{Station: StationSource, Min: 5, Max: 5},
		{Station: "M1", Min: 10, Max: 10},
	}

	tasks, err := ExpandWithStorage(recipe, provider)
	require.NoError(t, err)

	var storageStations []string
	for _, task := range tasks {
		if task.Kind == TaskStorage {
			storageStations = append(storageStations, task.Station)
			assert.Zero(t, task.DurationMin)
		}
	}
	require.Len(t, storageStations, 1)
	assert.Equal(t, []string{"S14"}, storageStations)
}

func TestExpandWithStorage_DoesNotBufferPastFinalStep(t *testing.T) {
	provider := newFakeProvider()
	recipe := OperationRecipe{
		{Station: StationSource, Min: 5, Max: 5},
		{Station: "M1", Min: 10, Max: 10},
		{Station: "M2", Min: 3, Max: 3},
	}

	tasks, err := ExpandWithStorage(recipe, provider)
	require.NoError(t, err)

	var storageStations []string
	for _, task := range tasks {
		if task.Kind == TaskStorage {
			storageStations = append(storageStations, task.Station)
		}
	}
	// A 3-step recipe has 2 adjacent pairs, so exactly 2 buffer insertions -
	// one fewer than the number of steps, and none past the last step.
	require.Len(t, storageStations, 2)
	assert.Equal(t, []string{"S14", "S15"}, storageStations)

	last := tasks[len(tasks)-1]
	assert.Equal(t, TaskProcess, last.Kind)
	assert.Equal(t, "M2", last.Station)
}
