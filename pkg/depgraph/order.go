// SPDX-License-Identifier: Apache-2.0

package depgraph

import (
	"errors"
	"fmt"
	"sort"

	"github.com/pgfine/pgfine/pkg/objects"
)

// ErrCycleDetected is raised when the dependency graph contains a
// cycle; it carries the two ids that closed the cycle.
type ErrCycleDetected struct {
	From, To string
}

func (e *ErrCycleDetected) Error() string {
	return fmt.Sprintf("cycle detected in dependency graph: %s -> %s", e.From, e.To)
}

// CreateOrder returns a deterministic topological sort of objs:
// dependencies appear before their dependents. The algorithm is DFS
// post-order starting from every node in id-sorted order, giving
// first-visit-wins determinism (spec section 4.5).
func CreateOrder(objs map[string]*objects.Record) ([]string, error) {
	var (
		order   []string
		visited = map[string]bool{}
		onStack = map[string]bool{}
	)

	var visit func(id string) error
	visit = func(id string) error {
		if visited[id] {
			return nil
		}
		if onStack[id] {
			return &ErrCycleDetected{From: id, To: id}
		}
		onStack[id] = true

		rec, ok := objs[id]
		if ok {
			deps := make([]string, 0, len(rec.DependsOn))
			for dep := range rec.DependsOn {
				deps = append(deps, dep)
			}
			sort.Strings(deps)
			for _, dep := range deps {
				if err := visit(dep); err != nil {
					var cyc *ErrCycleDetected
					if errors.As(err, &cyc) && cyc.From == cyc.To {
						return &ErrCycleDetected{From: id, To: dep}
					}
					return err
				}
			}
		}

		onStack[id] = false
		visited[id] = true
		order = append(order, id)
		return nil
	}

	for _, id := range SortedIDs(objs) {
		if err := visit(id); err != nil {
			return nil, err
		}
	}

	return order, nil
}

// DropOrder reverses a create order restricted to the given id set,
// producing the dependents-first order the Drop Cascade seeds itself
// from (spec section 4.5: "the reverse of any create order over the
// subgraph being dropped").
func DropOrder(createOrder []string, set map[string]struct{}) []string {
	filtered := make([]string, 0, len(set))
	for _, id := range createOrder {
		if _, ok := set[id]; ok {
			filtered = append(filtered, id)
		}
	}
	for i, j := 0, len(filtered)-1; i < j; i, j = i+1, j-1 {
		filtered[i], filtered[j] = filtered[j], filtered[i]
	}
	return filtered
}
