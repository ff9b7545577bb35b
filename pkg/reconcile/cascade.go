// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"context"
	"fmt"
	"sort"

	"github.com/pgfine/pgfine/pkg/catalog"
	"github.com/pgfine/pgfine/pkg/db"
	"github.com/pgfine/pgfine/pkg/objects"
	"github.com/pgfine/pgfine/pkg/state"
)

// ErrCycleInDropOrder is raised when the stored required_by graph
// loops back on a node already being dropped in the current call stack.
type ErrCycleInDropOrder struct {
	ID string
}

func (e *ErrCycleInDropOrder) Error() string {
	return fmt.Sprintf("cycle in drop order at %q", e.ID)
}

// ErrTableDropRefused is raised whenever the cascade is asked to emit an
// actual DROP TABLE against a table that still exists: tables are never
// auto-dropped, by design (spec section 4.9 step 4).
type ErrTableDropRefused struct {
	ID string
}

func (e *ErrTableDropRefused) Error() string {
	return fmt.Sprintf("refusing to auto-drop table %q; supply a hand-written migration", e.ID)
}

// ErrDropFailed wraps a driver error encountered while dropping id.
type ErrDropFailed struct {
	ID    string
	Cause error
}

func (e *ErrDropFailed) Error() string {
	return fmt.Sprintf("drop %q failed: %v", e.ID, e.Cause)
}

func (e *ErrDropFailed) Unwrap() error { return e.Cause }

// Cascade drops a seed set of ids, dependents first, against the
// *stored* graph (the one that reflects the live database), escalating
// through a fixed-point retry loop that absorbs drop failures caused by
// a stale or not-yet-enumerated dependent.
type Cascade struct {
	gw  db.Gateway
	cat *catalog.Catalog
	st  *state.State
}

// NewCascade wires a drop cascade against the target database.
func NewCascade(gw db.Gateway, cat *catalog.Catalog, st *state.State) *Cascade {
	return &Cascade{gw: gw, cat: cat, st: st}
}

// Run drops every id in seeds, and transitively every id that
// required_by(id) names in stored, until the seed set (closed under
// required_by) is fully gone. stored is read, never mutated; state
// deletions happen through Cascade's own State handle as each drop
// succeeds.
func (c *Cascade) Run(ctx context.Context, seeds map[string]struct{}, stored map[string]*objects.Record) error {
	dropped := map[string]struct{}{}
	pending := make(map[string]struct{}, len(seeds))
	for id := range seeds {
		pending[id] = struct{}{}
	}

	var lastErr error
	for len(pending) > 0 {
		ids := sortedIDs(pending)
		remaining := map[string]struct{}{}
		progressed := false

		for _, id := range ids {
			if _, ok := dropped[id]; ok {
				continue
			}
			if err := c.dropWithDeps(ctx, id, stored, dropped, map[string]struct{}{}); err != nil {
				remaining[id] = struct{}{}
				lastErr = err
				continue
			}
			progressed = true
		}

		pending = remaining
		if !progressed && len(pending) > 0 {
			return fmt.Errorf("drop cascade made no progress with %d object(s) still undropped: %w", len(pending), lastErr)
		}
	}
	return nil
}

func (c *Cascade) dropWithDeps(ctx context.Context, id string, stored map[string]*objects.Record, dropped, onStack map[string]struct{}) error {
	if _, ok := dropped[id]; ok {
		return nil
	}
	if _, ok := onStack[id]; ok {
		return &ErrCycleInDropOrder{ID: id}
	}
	onStack[id] = struct{}{}
	defer delete(onStack, id)

	rec, ok := stored[id]
	if !ok {
		// Not present in the stored graph: nothing for the cascade to
		// drop or recurse into.
		dropped[id] = struct{}{}
		return nil
	}

	for dep := range rec.RequiredBy {
		if err := c.dropWithDeps(ctx, dep, stored, dropped, onStack); err != nil {
			return err
		}
	}

	if err := c.emitDrop(ctx, rec); err != nil {
		return &ErrDropFailed{ID: id, Cause: err}
	}
	if err := c.st.Delete(ctx, id); err != nil {
		return &ErrDropFailed{ID: id, Cause: err}
	}
	dropped[id] = struct{}{}
	return nil
}

// emitDrop runs the kind-specific DROP statement for rec, after
// re-confirming the object is still actually present: a stored record
// whose backing object is already gone (e.g. a table the Planner
// refused to drop because it no longer exists) is treated as already
// dropped rather than re-attempted.
func (c *Cascade) emitDrop(ctx context.Context, rec *objects.Record) error {
	exists, err := c.cat.Exists(ctx, rec.Kind, rec.ID)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}

	if rec.Kind == objects.KindTable {
		return &ErrTableDropRefused{ID: rec.ID}
	}

	if rec.Kind == objects.KindRole {
		return c.dropRole(ctx, rec.ID)
	}

	stmt, err := dropStatement(rec.Kind, rec.ID)
	if err != nil {
		return err
	}
	return c.gw.ExecScript(ctx, stmt)
}

func dropStatement(kind objects.Kind, id string) (string, error) {
	switch kind {
	case objects.KindView:
		return fmt.Sprintf("DROP VIEW %s;", id), nil
	case objects.KindFunction:
		return fmt.Sprintf("DROP FUNCTION %s;", id), nil
	case objects.KindSchema:
		return fmt.Sprintf("DROP SCHEMA %s;", id), nil
	case objects.KindExtension:
		return fmt.Sprintf("DROP EXTENSION %s;", id), nil
	case objects.KindType:
		return fmt.Sprintf("DROP TYPE %s;", id), nil
	case objects.KindConstraint:
		table, ok := objects.TableOf(kind, id)
		if !ok {
			return "", &objects.ErrInvalidObjectID{Kind: kind, ID: id}
		}
		name := constraintOrTriggerName(id)
		return fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s;", table, name), nil
	case objects.KindTrigger:
		table, ok := objects.TableOf(kind, id)
		if !ok {
			return "", &objects.ErrInvalidObjectID{Kind: kind, ID: id}
		}
		name := constraintOrTriggerName(id)
		return fmt.Sprintf("DROP TRIGGER %s ON %s;", name, table), nil
	case objects.KindPolicy:
		table, ok := objects.TableOf(kind, id)
		if !ok {
			return "", &objects.ErrInvalidObjectID{Kind: kind, ID: id}
		}
		name := constraintOrTriggerName(id)
		return fmt.Sprintf("DROP POLICY %s ON %s;", name, table), nil
	default:
		return "", fmt.Errorf("reconcile: no drop statement defined for kind %q", kind)
	}
}

// dropRole force-drops a role: it grants the role to the connection's
// own role so REASSIGN OWNED has privilege to act, reassigns everything
// the role owns in the connected database, drops what can't be
// reassigned (e.g. grants), then drops the role itself. It operates
// only on the connected database, per the recorded Open Question
// decision on role force-drop scope.
func (c *Cascade) dropRole(ctx context.Context, roleID string) error {
	stmt := fmt.Sprintf(`
GRANT %s TO CURRENT_USER;
REASSIGN OWNED BY %s TO CURRENT_USER;
DROP OWNED BY %s;
DROP ROLE %s;
`, roleID, roleID, roleID, roleID)
	return c.gw.ExecScript(ctx, stmt)
}

func constraintOrTriggerName(id string) string {
	last := id
	for i := len(id) - 1; i >= 0; i-- {
		if id[i] == '.' {
			last = id[i+1:]
			break
		}
	}
	return last
}

func sortedIDs(set map[string]struct{}) []string {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
