// SPDX-License-Identifier: Apache-2.0

// Package oneshot runs one-shot migration scripts, one per transaction,
// in filename order, recording each against the target database's
// migration log. Grounded on original_source/src/database.rs's
// update_objects/insert_pgfine_migration/get_db_last_migration loop
// (section 4.11).
package oneshot

import (
	"context"
	"fmt"
	"sort"

	"github.com/pgfine/pgfine/pkg/db"
	"github.com/pgfine/pgfine/pkg/state"
)

// ErrMigrationFailed wraps a driver error encountered while running a
// migration script; the run halts immediately and no later
// reconciliation is attempted.
type ErrMigrationFailed struct {
	ID    string
	Cause error
}

func (e *ErrMigrationFailed) Error() string {
	return fmt.Sprintf("migration %q failed: %v", e.ID, e.Cause)
}

func (e *ErrMigrationFailed) Unwrap() error { return e.Cause }

// Script is a single one-shot migration file.
type Script struct {
	ID     string // filename, used as the sort and pointer key
	Script string
}

// Runner executes pending one-shot migrations against the target
// database.
type Runner struct {
	gw db.Gateway
	st *state.State
}

// New wires a Runner against the target database.
func New(gw db.Gateway, st *state.State) *Runner {
	return &Runner{gw: gw, st: st}
}

// Run executes every migration in scripts whose id sorts after the
// database's current pointer, one at a time, in filename order,
// advancing the pointer to each migration's id as it is recorded. If
// the migrations table
// has no rows at all, the project's latest migration id (or "" if
// scripts is empty) is recorded as the baseline without executing
// anything, accommodating a manually-bootstrapped database.
func (r *Runner) Run(ctx context.Context, scripts []Script) error {
	sorted := make([]Script, len(scripts))
	copy(sorted, scripts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	pointer, err := r.st.LatestMigrationID(ctx)
	if err != nil {
		return fmt.Errorf("oneshot: failed to read migration pointer: %w", err)
	}

	if pointer == nil {
		baseline := ""
		if len(sorted) > 0 {
			baseline = sorted[len(sorted)-1].ID
		}
		if err := r.st.RecordMigration(ctx, baseline); err != nil {
			return fmt.Errorf("oneshot: failed to record baseline migration %q: %w", baseline, err)
		}
		return nil
	}

	for _, s := range sorted {
		if s.ID <= *pointer {
			continue
		}
		if err := r.gw.ExecScript(ctx, s.Script); err != nil {
			return &ErrMigrationFailed{ID: s.ID, Cause: err}
		}
		if err := r.st.RecordMigration(ctx, s.ID); err != nil {
			return &ErrMigrationFailed{ID: s.ID, Cause: err}
		}
		pointer = &s.ID
	}
	return nil
}
