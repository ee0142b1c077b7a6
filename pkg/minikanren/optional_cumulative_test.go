package minikanren

import (
	"context"
	"testing"
	"time"
)

// A task bound present and pinned at start=2 must still block an overlapping
// start for a task whose presence is undecided.
func TestOptionalCumulative_CertainTaskPrunesUndecided(t *testing.T) {
	model := NewModel()

	a := model.NewVariableWithName(NewBitSetDomainFromValues(10, []int{2}), "A")
	b := model.NewVariableWithName(NewBitSetDomain(4), "B")
	presentA := model.NewVariableWithName(NewBitSetDomainFromValues(2, []int{2}), "pA")
	presentB := model.NewVariableWithName(NewBitSetDomain(2), "pB")

	cum, err := NewOptionalCumulative(
		[]*FDVariable{a, b}, []int{2, 2}, []int{2, 1},
		[]*FDVariable{presentA, presentB}, 2)
	if err != nil {
		t.Fatalf("NewOptionalCumulative error: %v", err)
	}
	model.AddConstraint(cum)

	solver := NewSolver(model)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := solver.Solve(ctx, 0); err != nil {
		t.Fatalf("Solve error: %v", err)
	}

	domB := solver.GetDomain(nil, b.ID())
	want := NewBitSetDomainFromValues(domB.MaxValue(), []int{4})
	if !domB.Equal(want) {
		t.Fatalf("unexpected B domain: got %s, want %s", domB.String(), want.String())
	}
}

// A task bound absent must never contribute to the resource profile.
func TestOptionalCumulative_AbsentTaskDoesNotBlock(t *testing.T) {
	model := NewModel()

	a := model.NewVariableWithName(NewBitSetDomainFromValues(10, []int{2}), "A")
	b := model.NewVariableWithName(NewBitSetDomain(4), "B")
	absentA := model.NewVariableWithName(NewBitSetDomainFromValues(2, []int{1}), "pA")
	presentB := model.NewVariableWithName(NewBitSetDomainFromValues(2, []int{2}), "pB")

	cum, err := NewOptionalCumulative(
		[]*FDVariable{a, b}, []int{2, 2}, []int{2, 1},
		[]*FDVariable{absentA, presentB}, 2)
	if err != nil {
		t.Fatalf("NewOptionalCumulative error: %v", err)
	}
	model.AddConstraint(cum)

	solver := NewSolver(model)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := solver.Solve(ctx, 0); err != nil {
		t.Fatalf("Solve error: %v", err)
	}

	domB := solver.GetDomain(nil, b.ID())
	if domB.Count() != 4 {
		t.Fatalf("expected B unconstrained by an absent task, got domain %s", domB.String())
	}
}
