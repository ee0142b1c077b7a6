package scheduler

import "fmt"

// TaskKind identifies the shape of an elementary task.
type TaskKind int

const (
	// TaskProcess occupies one unit of capacity at a station for a fixed duration.
	TaskProcess TaskKind = iota
	// TaskMove occupies a shared movement resource between two stations.
	TaskMove
	// TaskStorage occupies a buffer station with zero processing duration.
	// Only produced by ExpandWithStorage.
	TaskStorage
)

func (k TaskKind) String() string {
	switch k {
	case TaskProcess:
		return "PROCESS"
	case TaskMove:
		return "MOVE"
	case TaskStorage:
		return "STORAGE"
	default:
		return "UNKNOWN"
	}
}

// Task is one elementary task produced by expanding an OperationRecipe.
type Task struct {
	Kind        TaskKind
	Station     string // PROCESS, STORAGE
	FromStation string // MOVE
	ToStation   string // MOVE
	DurationMin float64
}

// Expand converts a single OperationRecipe into its flat, ordered list of
// elementary tasks: a load PROCESS at the source station, then alternating
// MOVE/PROCESS steps through the recipe, ending with a MOVE into FIN. Pure
// and deterministic: no side effects, same inputs always produce the same
// output.
func Expand(recipe OperationRecipe, provider DataProvider) ([]Task, error) {
	if len(recipe) == 0 {
		return nil, newInputError("recipe has no steps")
	}
	if recipe[0].Station != StationSource {
		return nil, newInputError("recipe must start at station %q", StationSource)
	}

	tasks := make([]Task, 0, len(recipe)*2)

	tasks = append(tasks, Task{Kind: TaskProcess, Station: recipe[0].Station, DurationMin: recipe[0].Min})

	next := nextStation(recipe, 0)
	tasks = append(tasks, Task{
		Kind: TaskMove, FromStation: recipe[0].Station, ToStation: next,
		DurationMin: provider.TravelTime(recipe[0].Station, next),
	})

	for i := 1; i < len(recipe); i++ {
		step := recipe[i]
		if step.Min > 0 {
			tasks = append(tasks, Task{Kind: TaskProcess, Station: step.Station, DurationMin: step.Min})
		}
		next := nextStation(recipe, i)
		tasks = append(tasks, Task{
			Kind: TaskMove, FromStation: step.Station, ToStation: next,
			DurationMin: provider.TravelTime(step.Station, next),
		})
	}

	return tasks, nil
}

// nextStation returns the station visited after recipe[i], or FIN if i is
// the last step.
func nextStation(recipe OperationRecipe, i int) string {
	if i+1 < len(recipe) {
		return recipe[i+1].Station
	}
	return StationFinish
}

// storageBuffers is the fixed round-robin buffer list used by
// ExpandWithStorage, matching the historical batch/history analysis path.
var storageBuffers = []string{"S14", "S15", "S16"}

// ExpandWithStorage is the storage-buffer variant of Expand used by the
// batch/history analysis path only: between every pair of adjacent recipe
// steps it injects MOVE -> STORAGE -> MOVE through a buffer station chosen
// round-robin from storageBuffers instead of moving directly between the
// two stations. STORAGE tasks carry zero duration; they are not fed
// through the interactive Model Builder's capacity constraints (see
// SPEC_FULL.md §12) and exist for task-sequence bookkeeping only.
func ExpandWithStorage(recipe OperationRecipe, provider DataProvider) ([]Task, error) {
	if len(recipe) == 0 {
		return nil, newInputError("recipe has no steps")
	}
	if recipe[0].Station != StationSource {
		return nil, newInputError("recipe must start at station %q", StationSource)
	}

	tasks := make([]Task, 0, len(recipe)*4)
	bufIdx := 0
	nextBuffer := func() string {
		b := storageBuffers[bufIdx%len(storageBuffers)]
		bufIdx++
		return b
	}

	tasks = append(tasks, Task{Kind: TaskProcess, Station: recipe[0].Station, DurationMin: recipe[0].Min})

	for i := 0; i < len(recipe); i++ {
		step := recipe[i]
		if i > 0 && step.Min > 0 {
			tasks = append(tasks, Task{Kind: TaskProcess, Station: step.Station, DurationMin: step.Min})
		}
		// Only inject a buffer between adjacent recipe steps; the final step
		// has no "next" to hold for, matching build_tasks_with_storage's own
		// `if i+1 < len(seq)` guard.
		if i+1 >= len(recipe) {
			continue
		}
		next := nextStation(recipe, i)
		buf := nextBuffer()
		tasks = append(tasks, Task{
			Kind: TaskMove, FromStation: step.Station, ToStation: buf,
			DurationMin: provider.TravelTime(step.Station, buf),
		})
		tasks = append(tasks, Task{Kind: TaskStorage, Station: buf, DurationMin: 0})
		tasks = append(tasks, Task{
			Kind: TaskMove, FromStation: buf, ToStation: next,
			DurationMin: provider.TravelTime(buf, next),
		})
	}

	return tasks, nil
}

func (t Task) String() string {
	switch t.Kind {
	case TaskProcess, TaskStorage:
		return fmt.Sprintf("%s(%s, %.1fm)", t.Kind, t.Station, t.DurationMin)
	default:
		return fmt.Sprintf("%s(%s->%s, %.1fm)", t.Kind, t.FromStation, t.ToStation, t.DurationMin)
	}
}
