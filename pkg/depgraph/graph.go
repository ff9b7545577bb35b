// SPDX-License-Identifier: Apache-2.0

package depgraph

import (
	"errors"
	"fmt"
	"sort"

	"github.com/pgfine/pgfine/pkg/objects"
)

// ErrInconsistentConstraintDependencies is raised when a
// constraint/trigger/policy's depends_on set does not include its own
// table, which the spec requires unconditionally (section 3, invariant
// 3).
var ErrInconsistentConstraintDependencies = errors.New("constraint dependencies are inconsistent: table must be in depends_on")

// Build populates DependsOn/RequiredBy on every record in objs by
// inverting the textual extraction (required_by) and adding structural
// edges (schema/table membership), then asserts invariants 1 and 3 of
// spec section 3. Build does not check for cycles; CreateOrder reports
// them.
func Build(objs map[string]*objects.Record, searchPath SearchPath) error {
	for _, rec := range objs {
		rec.DependsOn = StructuralDependsOn(rec, objs)
	}

	for id, rec := range objs {
		requiredBy := ExtractRequiredBy(rec, objs, searchPath)
		for dependentID := range requiredBy {
			objs[dependentID].DependsOn[id] = struct{}{}
		}
	}

	for _, rec := range objs {
		rec.RequiredBy = map[string]struct{}{}
	}
	for id, rec := range objs {
		for depID := range rec.DependsOn {
			if dep, ok := objs[depID]; ok {
				dep.RequiredBy[id] = struct{}{}
			}
		}
	}

	if err := assertInvariants(objs); err != nil {
		return err
	}
	return nil
}

func assertInvariants(objs map[string]*objects.Record) error {
	// Invariant 1: required_by(x) contains y iff x in depends_on(y).
	for id, rec := range objs {
		for depID := range rec.DependsOn {
			dep, ok := objs[depID]
			if !ok {
				continue
			}
			if _, ok := dep.RequiredBy[id]; !ok {
				return fmt.Errorf("depgraph: inconsistent edge %s -> %s", id, depID)
			}
		}
	}

	// Invariant 3: constraint/trigger/policy must depend on their table.
	for id, rec := range objs {
		table, ok := objects.TableOf(rec.Kind, id)
		if !ok {
			continue
		}
		if _, ok := rec.DependsOn[table]; !ok {
			return fmt.Errorf("%w: %s missing table dependency %s", ErrInconsistentConstraintDependencies, id, table)
		}
	}

	return nil
}

// SortedIDs returns the ids of objs in ascending lexical order, the
// deterministic DFS starting order used by the topological orderer.
func SortedIDs(objs map[string]*objects.Record) []string {
	ids := make([]string, 0, len(objs))
	for id := range objs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
