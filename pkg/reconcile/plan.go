// SPDX-License-Identifier: Apache-2.0

// Package reconcile implements the Reconciliation Planner, Drop
// Cascade and Update Engine: the part of the engine that diffs a
// loaded project against the database's stored state and drives the
// database to match it. Grounded on original_source/src/database.rs's
// update_object_with_deps/drop_object_with_deps/update_objects/
// drop_missing_objects, generalized from four object kinds to the
// full ten-kind model and from a single linear pass to an explicit
// Planner producing a Plan the Cascade and Update Engine consume.
package reconcile

import (
	"context"
	"fmt"
	"sort"

	"github.com/pgfine/pgfine/pkg/catalog"
	"github.com/pgfine/pgfine/pkg/depgraph"
	"github.com/pgfine/pgfine/pkg/objects"
)

// ErrTableDriftForbidden is raised when a project table's script no
// longer matches the stored fingerprint and the table still exists in
// the database: tables are never auto-altered.
type ErrTableDriftForbidden struct {
	ID string
}

func (e *ErrTableDriftForbidden) Error() string {
	return fmt.Sprintf("table %q has drifted from its stored definition; supply a hand-written migration", e.ID)
}

// ErrTableDeletionForbidden is raised when a table's project file is
// removed while the table still exists in the database.
type ErrTableDeletionForbidden struct {
	ID string
}

func (e *ErrTableDeletionForbidden) Error() string {
	return fmt.Sprintf("table %q was removed from the project but still exists in the database; supply a hand-written migration", e.ID)
}

// Plan is the Planner's output: what the Drop Cascade must remove
// before reconciliation proceeds, and the order in which the Update
// Engine must visit every project object afterwards.
type Plan struct {
	// DropSet holds every id the Drop Cascade must remove, already
	// closed over the stored required_by graph.
	DropSet map[string]struct{}
	// CreateOrder is the project's topological create order; the
	// Update Engine walks it after the Drop Cascade completes.
	CreateOrder []string
	// Warnings holds non-fatal diagnostics (e.g. SchemaAlterSkipped).
	Warnings []string
}

// Planner classifies every id in the union of project and stored
// objects and produces a Plan.
type Planner struct {
	cat *catalog.Catalog
}

// NewPlanner wires a Planner against the target database's catalog.
func NewPlanner(cat *catalog.Catalog) *Planner {
	return &Planner{cat: cat}
}

// Plan diffs project against stored (section 4.8). The Planner only
// ever visits ids in project ∪ stored: an id present in neither is, by
// construction, never examined, so a true orphan (no project file, no
// stored row) is left untouched even though it may still exist in the
// database — this is scenario 6 of section 8 ("Orphan view in DB").
func (p *Planner) Plan(ctx context.Context, project, stored map[string]*objects.Record) (*Plan, error) {
	seedDrop := map[string]struct{}{}
	var warnings []string

	universe := map[string]struct{}{}
	for id := range project {
		universe[id] = struct{}{}
	}
	for id := range stored {
		universe[id] = struct{}{}
	}

	for _, id := range sortedUniverse(universe) {
		pr, inP := project[id]
		st, inS := stored[id]

		switch {
		case inP && !inS:
			// create-or-adopt: left to the Update Engine, which probes
			// existence itself (section 4.10 step 1/2).

		case inP && inS:
			if pr.Fingerprint == st.Fingerprint {
				continue // skip
			}
			switch pr.Kind {
			case objects.KindTable:
				exists, err := p.cat.Exists(ctx, objects.KindTable, id)
				if err != nil {
					return nil, fmt.Errorf("reconcile: failed to probe table %q: %w", id, err)
				}
				if exists {
					return nil, &ErrTableDriftForbidden{ID: id}
				}
				// Stored record is stale (table is gone); the Update
				// Engine will create the table and overwrite the record.
			case objects.KindSchema:
				warnings = append(warnings, fmt.Sprintf("schema %q changed; schema ALTERs must go through a one-shot migration, skipping", id))
			default:
				seedDrop[id] = struct{}{}
			}

		case !inP && inS:
			if st.Kind == objects.KindTable {
				exists, err := p.cat.Exists(ctx, objects.KindTable, id)
				if err != nil {
					return nil, fmt.Errorf("reconcile: failed to probe table %q: %w", id, err)
				}
				if exists {
					return nil, &ErrTableDeletionForbidden{ID: id}
				}
			}
			seedDrop[id] = struct{}{}
		}
	}

	closedDrop := closeOverRequiredBy(seedDrop, stored)

	createOrder, err := depgraph.CreateOrder(project)
	if err != nil {
		return nil, err
	}

	return &Plan{
		DropSet:     closedDrop,
		CreateOrder: createOrder,
		Warnings:    warnings,
	}, nil
}

// closeOverRequiredBy closes seed under the stored required_by graph,
// because that graph reflects what is actually live in the database
// (section 4.8, penultimate paragraph).
func closeOverRequiredBy(seed map[string]struct{}, stored map[string]*objects.Record) map[string]struct{} {
	closed := map[string]struct{}{}
	var visit func(id string)
	visit = func(id string) {
		if _, ok := closed[id]; ok {
			return
		}
		closed[id] = struct{}{}
		if rec, ok := stored[id]; ok {
			for dep := range rec.RequiredBy {
				visit(dep)
			}
		}
	}
	for id := range seed {
		visit(id)
	}
	return closed
}

func sortedUniverse(set map[string]struct{}) []string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
