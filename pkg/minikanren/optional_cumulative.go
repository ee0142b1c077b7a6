// Package minikanren implements global constraints for finite-domain CP.
//
// This file adapts the Cumulative time-table filtering algorithm to tasks
// that are only conditionally part of the problem: each task carries an
// optional presence variable (domain subset of {1,2}, 1=false/2=true, same
// convention as ReifiedConstraint). A nil presence entry behaves exactly
// like a mandatory Cumulative task.
//
// Soundness strategy: the resource profile used for pruning is built only
// from tasks that are definitely present (presence bound to 2, or nil).
// Tasks whose presence is still undecided are pruned against that profile
// (safe: if such a task turns out present, it still must not collide with
// tasks that are already certain) but do not themselves contribute to the
// profile until their presence becomes certain. Tasks definitely absent
// (presence bound to 1) are skipped entirely. This mirrors CP-SAT's
// optional-interval cumulative propagation at the same propagation
// strength as the underlying Cumulative implementation.
package minikanren

import "fmt"

// OptionalCumulative generalizes Cumulative to tasks that may be dropped.
type OptionalCumulative struct {
	starts    []*FDVariable
	durations []int
	demands   []int
	presence  []*FDVariable // parallel to starts; nil entry means mandatory
	capacity  int
}

// NewOptionalCumulative constructs an OptionalCumulative constraint.
//
// Parameters mirror NewCumulative, plus presence[i] which, when non-nil,
// must have a domain subset of {1,2} (see ReifiedConstraint).
func NewOptionalCumulative(starts []*FDVariable, durations, demands []int, presence []*FDVariable, capacity int) (PropagationConstraint, error) {
	n := len(starts)
	if n == 0 {
		return nil, fmt.Errorf("OptionalCumulative requires at least one task")
	}
	if len(durations) != n || len(demands) != n || len(presence) != n {
		return nil, fmt.Errorf("OptionalCumulative: mismatched lengths (starts=%d, durations=%d, demands=%d, presence=%d)",
			n, len(durations), len(demands), len(presence))
	}
	if capacity <= 0 {
		return nil, fmt.Errorf("OptionalCumulative: capacity must be > 0")
	}
	for i := 0; i < n; i++ {
		if starts[i] == nil {
			return nil, fmt.Errorf("OptionalCumulative: starts[%d] is nil", i)
		}
		if durations[i] <= 0 {
			return nil, fmt.Errorf("OptionalCumulative: durations[%d] must be > 0", i)
		}
		if demands[i] < 0 {
			return nil, fmt.Errorf("OptionalCumulative: demands[%d] must be >= 0", i)
		}
	}

	return &OptionalCumulative{
		starts:    append([]*FDVariable(nil), starts...),
		durations: append([]int(nil), durations...),
		demands:   append([]int(nil), demands...),
		presence:  append([]*FDVariable(nil), presence...),
		capacity:  capacity,
	}, nil
}

// Variables returns the starts plus every non-nil presence variable.
func (c *OptionalCumulative) Variables() []*FDVariable {
	out := make([]*FDVariable, 0, len(c.starts)+len(c.presence))
	out = append(out, c.starts...)
	for _, p := range c.presence {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

// Type returns the constraint identifier.
func (c *OptionalCumulative) Type() string { return "OptionalCumulative" }

// String returns a readable description.
func (c *OptionalCumulative) String() string {
	return fmt.Sprintf("OptionalCumulative(n=%d, capacity=%d)", len(c.starts), c.capacity)
}

func (c *OptionalCumulative) isDefinitelyPresent(solver *Solver, state *SolverState, i int) bool {
	p := c.presence[i]
	if p == nil {
		return true
	}
	d := solver.GetDomain(state, p.ID())
	return d != nil && d.IsSingleton() && d.SingletonValue() == 2
}

func (c *OptionalCumulative) isDefinitelyAbsent(solver *Solver, state *SolverState, i int) bool {
	p := c.presence[i]
	if p == nil {
		return false
	}
	d := solver.GetDomain(state, p.ID())
	return d != nil && d.IsSingleton() && d.SingletonValue() == 1
}

// Propagate performs time-table filtering restricted to certainly-present tasks.
func (c *OptionalCumulative) Propagate(solver *Solver, state *SolverState) (*SolverState, error) {
	if solver == nil {
		return nil, fmt.Errorf("OptionalCumulative.Propagate: nil solver")
	}
	n := len(c.starts)

	domains := make([]Domain, n)
	est := make([]int, n)
	lst := make([]int, n)
	maxEnd := 0
	for i, v := range c.starts {
		if c.isDefinitelyAbsent(solver, state, i) {
			continue
		}
		d := solver.GetDomain(state, v.ID())
		if d == nil {
			return nil, fmt.Errorf("OptionalCumulative: variable %d has nil domain", v.ID())
		}
		if d.Count() == 0 {
			return nil, fmt.Errorf("OptionalCumulative: variable %d has empty domain", v.ID())
		}
		domains[i] = d
		est[i] = d.Min()
		lst[i] = d.Max()
		end := lst[i] + c.durations[i] - 1
		if end > maxEnd {
			maxEnd = end
		}
	}
	if maxEnd < 1 {
		return state, nil
	}

	profile := make([]int, maxEnd+1)
	cpStart := make([]int, n)
	cpEnd := make([]int, n)
	for i := 0; i < n; i++ {
		if c.isDefinitelyAbsent(solver, state, i) || !c.isDefinitelyPresent(solver, state, i) {
			continue
		}
		cpStart[i] = lst[i]
		cpEnd[i] = est[i] + c.durations[i] - 1
		if cpStart[i] <= cpEnd[i] {
			startT, endT := cpStart[i], cpEnd[i]
			if startT < 1 {
				startT = 1
			}
			if endT > maxEnd {
				endT = maxEnd
			}
			if c.demands[i] > 0 {
				for t := startT; t <= endT; t++ {
					profile[t] += c.demands[i]
					if profile[t] > c.capacity {
						return nil, fmt.Errorf("OptionalCumulative: capacity exceeded at t=%d (profile=%d > %d)", t, profile[t], c.capacity)
					}
				}
			}
		}
	}

	newState := state
	for i, v := range c.starts {
		if c.isDefinitelyAbsent(solver, state, i) || c.demands[i] == 0 {
			continue
		}
		orig := domains[i]
		values := orig.ToSlice()
		if len(values) == 0 {
			return nil, fmt.Errorf("OptionalCumulative: variable %d has empty domain", v.ID())
		}
		allowed := make([]int, 0, len(values))
		dur := c.durations[i]
		dem := c.demands[i]
		selfCertain := c.isDefinitelyPresent(solver, state, i)
		for _, sVal := range values {
			startT := sVal
			endT := sVal + dur - 1
			ok := true
			tStart := startT
			if tStart < 1 {
				tStart = 1
			}
			tEnd := endT
			if tEnd > maxEnd {
				tEnd = maxEnd
			}
			for t := tStart; t <= tEnd; t++ {
				load := profile[t]
				if selfCertain && cpStart[i] <= t && t <= cpEnd[i] {
					load -= dem
				}
				if load+dem > c.capacity {
					ok = false
					break
				}
			}
			if ok {
				allowed = append(allowed, sVal)
			}
		}
		if len(allowed) == 0 {
			if !selfCertain {
				// No start fits beside the certain tasks: the task must be absent.
				pd := solver.GetDomain(newState, c.presence[i].ID())
				newState, _ = solver.SetDomain(newState, c.presence[i].ID(), pd.Remove(2))
				continue
			}
			return nil, fmt.Errorf("OptionalCumulative: variable %d domain empty after pruning", v.ID())
		}
		if len(allowed) < orig.Count() {
			newDom := NewBitSetDomainFromValues(orig.MaxValue(), allowed)
			var changed bool
			newState, changed = solver.SetDomain(newState, v.ID(), newDom)
			if changed {
				domains[i] = newDom
			}
		}
	}

	return newState, nil
}

// NewOptionalNoOverlap is OptionalCumulative specialized to capacity 1, unit demand.
func NewOptionalNoOverlap(starts []*FDVariable, durations []int, presence []*FDVariable) (PropagationConstraint, error) {
	n := len(starts)
	demands := make([]int, n)
	for i := range demands {
		demands[i] = 1
	}
	return NewOptionalCumulative(starts, durations, demands, presence, 1)
}
