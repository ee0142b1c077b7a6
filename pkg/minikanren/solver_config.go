package minikanren

// solver_config.go: search heuristic configuration for the FD Model/Solver engine.

// VariableOrderingHeuristic defines strategies for selecting the next variable to assign.
type VariableOrderingHeuristic int

const (
	// HeuristicDomDeg uses domain size / degree (constraints) - smallest first
	HeuristicDomDeg VariableOrderingHeuristic = iota
	// HeuristicDom uses domain size only - smallest first
	HeuristicDom
	// HeuristicDeg uses degree (constraints) only - largest first
	HeuristicDeg
	// HeuristicLex uses lexicographic order (variable ID)
	HeuristicLex
	// HeuristicRandom is scored like HeuristicDom (smallest domain first)
	HeuristicRandom
	// HeuristicActivity is scored like HeuristicDom (smallest domain first)
	HeuristicActivity
)

// ValueOrderingHeuristic defines strategies for ordering values within a domain.
// Solver.orderValues tries values in ascending order whatever this setting
// holds; Desc, Random and Mid change nothing.
type ValueOrderingHeuristic int

const (
	// ValueOrderAsc orders values ascending (1,2,3,...)
	ValueOrderAsc ValueOrderingHeuristic = iota
	// ValueOrderDesc orders values descending (...,3,2,1)
	ValueOrderDesc
	// ValueOrderRandom orders values randomly
	ValueOrderRandom
	// ValueOrderMid starts from middle value outward
	ValueOrderMid
)

// SolverConfig holds configuration for the FD solver.
type SolverConfig struct {
	VariableHeuristic VariableOrderingHeuristic
	ValueHeuristic    ValueOrderingHeuristic
	RandomSeed        int64 // for reproducible random heuristics
}

// DefaultSolverConfig returns a default solver configuration.
func DefaultSolverConfig() *SolverConfig {
	return &SolverConfig{
		VariableHeuristic: HeuristicDomDeg,
		ValueHeuristic:    ValueOrderAsc,
		RandomSeed:        42,
	}
}
