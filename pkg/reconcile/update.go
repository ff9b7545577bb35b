// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"context"
	"fmt"

	"github.com/pgfine/pgfine/pkg/catalog"
	"github.com/pgfine/pgfine/pkg/db"
	"github.com/pgfine/pgfine/pkg/objects"
	"github.com/pgfine/pgfine/pkg/state"
)

// ErrCreateFailed wraps a driver error encountered while creating id.
type ErrCreateFailed struct {
	ID    string
	Cause error
}

func (e *ErrCreateFailed) Error() string {
	return fmt.Sprintf("create %q failed: %v", e.ID, e.Cause)
}

func (e *ErrCreateFailed) Unwrap() error { return e.Cause }

// Updater walks a Plan's CreateOrder and brings each project object up
// to date: create if missing, adopt if present-but-unknown, skip if
// unchanged, or alter-in-place / drop-and-recreate when the Planner has
// already staged a mismatch (section 4.10).
type Updater struct {
	gw  db.Gateway
	cat *catalog.Catalog
	st  *state.State
	cas *Cascade
}

// NewUpdater wires an Updater against the target database.
func NewUpdater(gw db.Gateway, cat *catalog.Catalog, st *state.State, cas *Cascade) *Updater {
	return &Updater{gw: gw, cat: cat, st: st, cas: cas}
}

// Run applies the drop set, then walks plan.CreateOrder against
// project, using stored (read before any drop ran) as the historical
// record for each id.
func (u *Updater) Run(ctx context.Context, plan *Plan, project, stored map[string]*objects.Record) error {
	if len(plan.DropSet) > 0 {
		if err := u.cas.Run(ctx, plan.DropSet, stored); err != nil {
			return err
		}
	}

	for _, id := range plan.CreateOrder {
		rec, ok := project[id]
		if !ok {
			continue
		}
		if err := u.updateOne(ctx, rec, stored[id], stored); err != nil {
			return err
		}
	}
	return nil
}

func (u *Updater) updateOne(ctx context.Context, rec *objects.Record, priorStored *objects.Record, stored map[string]*objects.Record) error {
	exists, err := u.cat.Exists(ctx, rec.Kind, rec.ID)
	if err != nil {
		return fmt.Errorf("reconcile: failed to probe %q before update: %w", rec.ID, err)
	}

	switch {
	case !exists:
		if err := u.gw.ExecScript(ctx, rec.Script); err != nil {
			return &ErrCreateFailed{ID: rec.ID, Cause: err}
		}
		return u.persist(ctx, rec)

	case priorStored == nil:
		// Adopt: the object already exists but pgfine has no record of
		// it. The script is not re-run; only the state record is
		// written (section 4.10 step 2). Content is not verified at
		// adoption time (recorded Open Question decision).
		return u.persist(ctx, rec)

	case priorStored.Fingerprint == rec.Fingerprint:
		return nil // skip

	case rec.Kind == objects.KindSchema:
		// A changed schema is only warned about by the Planner; no DDL
		// is run for it here.
		return nil

	default:
		// Fingerprint differs and the object already existed going
		// into this reconcile. The Planner already routed
		// drop-and-recreate candidates into plan.DropSet; those were
		// dropped by now and take the !exists branch above instead of
		// this one. This branch remains for kinds
		// the Planner leaves to the Update Engine's historical
		// alter-in-place path (section 4.10 step 4): try the script as
		// a plain re-run first, and only fall back to a targeted drop
		// if that fails.
		if err := u.gw.ExecScript(ctx, rec.Script); err != nil {
			if dropErr := u.cas.Run(ctx, map[string]struct{}{rec.ID: {}}, stored); dropErr != nil {
				return &ErrCreateFailed{ID: rec.ID, Cause: fmt.Errorf("alter-in-place failed (%v), and drop-and-recreate also failed: %w", err, dropErr)}
			}
			if err := u.gw.ExecScript(ctx, rec.Script); err != nil {
				return &ErrCreateFailed{ID: rec.ID, Cause: err}
			}
		}
		return u.persist(ctx, rec)
	}
}

func (u *Updater) persist(ctx context.Context, rec *objects.Record) error {
	if err := u.st.Upsert(ctx, rec); err != nil {
		return fmt.Errorf("reconcile: failed to persist state for %q: %w", rec.ID, err)
	}
	return nil
}
