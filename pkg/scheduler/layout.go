// Package scheduler implements the production-scheduling core: the
// translation of operation recipes and a batch request into a
// constraint-optimization model over pkg/minikanren, its solution, and the
// projection of the result into a time-indexed schedule.
package scheduler

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Reserved station keys with unlimited capacity and no processing time.
const (
	StationSource = "S"
	StationFinish = "FIN"
)

// Station is a resource identified by a short string key.
type Station struct {
	// Capacity is the number of intervals that may occupy this station
	// simultaneously. Zero (or absent) means capacity 1 unless the request
	// overrides it; S and FIN get no capacity constraint.
	Capacity int
	// X and Row are layout hints consumed only by the excluded GUI.
	X, Row int
}

// RecipeStep is one entry of an OperationRecipe: a station visit with a
// fixed and (unused beyond bookkeeping) maximum duration.
type RecipeStep struct {
	Station string
	Min     float64
	Max     float64
}

// OperationRecipe is an ordered sequence of station visits, the first of
// which is always at StationSource.
type OperationRecipe []RecipeStep

// DataProvider supplies the immutable layout consumed by the Task Expander
// and Model Builder: stations, operation recipes, and travel times.
type DataProvider interface {
	Stations() map[string]Station
	Operation(name string) (OperationRecipe, bool)
	TravelTime(from, to string) float64
}

// Layout is the default, read-only DataProvider implementation, loaded once
// from a configuration document.
type Layout struct {
	stations   map[string]Station
	operations map[string]OperationRecipe
	travel     map[string]map[string]float64
}

// Stations returns the station map.
func (l *Layout) Stations() map[string]Station { return l.stations }

// Operation returns the recipe for name, if known.
func (l *Layout) Operation(name string) (OperationRecipe, bool) {
	r, ok := l.operations[name]
	return r, ok
}

// TravelTime returns the travel time in minutes between two stations,
// defaulting to 1.0 when the pair is not recorded.
func (l *Layout) TravelTime(from, to string) float64 {
	if byFrom, ok := l.travel[from]; ok {
		if t, ok := byFrom[to]; ok {
			return t
		}
	}
	return 1.0
}

// layoutDocument mirrors the configuration document shape: stations,
// operations, and Travel_Times sections.
type layoutDocument struct {
	Stations map[string]struct {
		Capacity int `yaml:"capacity"`
		X        int `yaml:"x"`
		Row      int `yaml:"row"`
	} `yaml:"stations"`
	Operations  map[string][]rawRecipeStep    `yaml:"operations"`
	TravelTimes map[string]map[string]float64 `yaml:"Travel_Times"`
}

// rawRecipeStep decodes one `[station, min, max]` recipe triple. Recipe
// steps are heterogeneous (a string station key followed by two numbers),
// which yaml.v3's struct tags cannot express directly, so decoding is done
// by hand against the sequence node.
type rawRecipeStep struct {
	Station  string
	Min, Max float64
}

func (r *rawRecipeStep) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.SequenceNode || len(value.Content) != 3 {
		return fmt.Errorf("recipe step must be a 3-element sequence [station, min, max]")
	}
	if err := value.Content[0].Decode(&r.Station); err != nil {
		return fmt.Errorf("recipe step station: %w", err)
	}
	if err := value.Content[1].Decode(&r.Min); err != nil {
		return fmt.Errorf("recipe step min: %w", err)
	}
	if err := value.Content[2].Decode(&r.Max); err != nil {
		return fmt.Errorf("recipe step max: %w", err)
	}
	return nil
}

// LoadLayoutFile reads and validates a layout document from disk.
func LoadLayoutFile(path string) (*Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, newConfigError("reading layout file "+path, err)
	}
	return LoadLayout(data)
}

// LoadLayout parses and validates a layout document from YAML bytes.
func LoadLayout(data []byte) (*Layout, error) {
	var doc layoutDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, newConfigError("parsing layout document", err)
	}

	stations := make(map[string]Station, len(doc.Stations)+2)
	for id, s := range doc.Stations {
		stations[id] = Station{Capacity: s.Capacity, X: s.X, Row: s.Row}
	}
	if _, ok := stations[StationSource]; !ok {
		stations[StationSource] = Station{Capacity: 0}
	}
	if _, ok := stations[StationFinish]; !ok {
		stations[StationFinish] = Station{Capacity: 0}
	}

	operations := make(map[string]OperationRecipe, len(doc.Operations))
	for name, raw := range doc.Operations {
		if len(raw) == 0 {
			return nil, newConfigError(fmt.Sprintf("operation %q has an empty recipe", name), nil)
		}
		recipe := make(OperationRecipe, 0, len(raw))
		for i, step := range raw {
			if step.Min < 0 {
				return nil, newConfigError(fmt.Sprintf("operation %q step %d has negative min duration", name, i), nil)
			}
			if step.Max < step.Min {
				return nil, newConfigError(fmt.Sprintf("operation %q step %d has max < min duration", name, i), nil)
			}
			recipe = append(recipe, RecipeStep{Station: step.Station, Min: step.Min, Max: step.Max})
		}
		if recipe[0].Station != StationSource {
			return nil, newConfigError(fmt.Sprintf("operation %q must start at station %q", name, StationSource), nil)
		}
		operations[name] = recipe
	}

	for name, recipe := range operations {
		for _, step := range recipe {
			if _, ok := stations[step.Station]; !ok {
				return nil, newConfigError(fmt.Sprintf("operation %q references unknown station %q", name, step.Station), nil)
			}
		}
	}

	travel := make(map[string]map[string]float64, len(doc.TravelTimes))
	for from, tos := range doc.TravelTimes {
		if _, ok := stations[from]; !ok {
			return nil, newConfigError(fmt.Sprintf("Travel_Times references unknown station %q", from), nil)
		}
		inner := make(map[string]float64, len(tos))
		for to, minutes := range tos {
			if _, ok := stations[to]; !ok {
				return nil, newConfigError(fmt.Sprintf("Travel_Times references unknown station %q", to), nil)
			}
			if minutes < 0 {
				return nil, newConfigError(fmt.Sprintf("Travel_Times[%s][%s] is negative", from, to), nil)
			}
			inner[to] = minutes
		}
		travel[from] = inner
	}

	return &Layout{stations: stations, operations: operations, travel: travel}, nil
}

