package internal

import (
	"fmt"
	"sort"
	"strings"
)

// orderMiddlewares produces the deterministic application order for the
// given descriptors:
//
//  1. Stable sort by priority descending. Priority ties preserve
//     registration order.
//  2. Repeated passes move any descriptor that appears before one of its
//     dependencies to the position directly after that dependency, until a
//     full pass makes no move (fixpoint).
//
// Dependencies are honored globally, not just for adjacent pairs: a chain
// A -> B -> C converges even when the priority sort scatters the three.
// If no fixpoint is reached within len(descriptors) passes the dependency
// graph contains a cycle and an error naming the involved descriptors is
// returned.
//
// Disabled descriptors must be filtered out by the caller; dependencies on
// disabled descriptors are ignored (the dependency is simply not present in
// the working set).
func orderMiddlewares(ms []*Middleware) ([]*Middleware, error) {
	ordered := make([]*Middleware, len(ms))
	copy(ordered, ms)

	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority > ordered[j].Priority
	})

	if !hasDependencies(ordered) {
		return ordered, nil
	}

	maxPasses := len(ordered)
	for pass := 0; pass <= maxPasses; pass++ {
		moved := false
		for i := 0; i < len(ordered); i++ {
			target := lastDependencyIndex(ordered, i)
			if target > i {
				// Shift the dependent after its last-positioned dependency.
				m := ordered[i]
				copy(ordered[i:], ordered[i+1:target+1])
				ordered[target] = m
				moved = true
			}
		}
		if !moved {
			return ordered, nil
		}
	}

	return nil, fmt.Errorf("%w: involving %s", ErrCyclicDependency, strings.Join(cycleSuspects(ordered), ", "))
}

func hasDependencies(ms []*Middleware) bool {
	for _, m := range ms {
		if len(m.Dependencies) > 0 {
			return true
		}
	}
	return false
}

// lastDependencyIndex returns the largest index greater than i holding a
// dependency of ordered[i], or -1 when all dependencies already precede it.
func lastDependencyIndex(ordered []*Middleware, i int) int {
	deps := ordered[i].Dependencies
	if len(deps) == 0 {
		return -1
	}
	target := -1
	for j := i + 1; j < len(ordered); j++ {
		for _, dep := range deps {
			if ordered[j].Name == dep {
				target = j
			}
		}
	}
	return target
}

// cycleSuspects names every descriptor still positioned before one of its
// dependencies after the pass budget is exhausted.
func cycleSuspects(ordered []*Middleware) []string {
	var names []string
	for i := range ordered {
		if lastDependencyIndex(ordered, i) > i {
			names = append(names, ordered[i].Name)
		}
	}
	if len(names) == 0 {
		names = append(names, "unknown")
	}
	return names
}
