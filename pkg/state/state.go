// SPDX-License-Identifier: Apache-2.0

// Package state persists the engine's per-object state and one-shot
// migration log inside the target database: pgfine_objects and
// pgfine_migrations (spec.md section 6). It mirrors the shape of the
// teacher's own state package (wrap a DB handle, Init idempotently,
// expose typed accessors) while storing the flat, content-hash-keyed
// model this spec requires instead of a versioned migration DAG.
package state

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/pgfine/pgfine/pkg/db"
	"github.com/pgfine/pgfine/pkg/objects"
)

const initSQL = `
CREATE TABLE IF NOT EXISTS pgfine_objects (
	po_id           TEXT PRIMARY KEY,
	po_type         TEXT NOT NULL,
	po_md5          TEXT NOT NULL,
	po_script       TEXT NOT NULL,
	po_path         TEXT NOT NULL,
	po_depends_on   TEXT[] NOT NULL DEFAULT '{}',
	po_required_by  TEXT[] NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS pgfine_migrations (
	pm_id TEXT PRIMARY KEY
);
`

// State wraps a db.Gateway against the target database and exposes the
// accessors the Reconciliation Planner, Drop Cascade, Update Engine and
// Migration Runner need.
type State struct {
	gw db.Gateway
}

// New wraps an already-open target-database gateway.
func New(gw db.Gateway) *State {
	return &State{gw: gw}
}

// Init creates the pgfine_objects/pgfine_migrations tables if they do
// not already exist. It is run at the start of every reconcile and is
// itself idempotent.
func (s *State) Init(ctx context.Context) error {
	if err := s.gw.ExecScript(ctx, initSQL); err != nil {
		return fmt.Errorf("state: failed to create pgfine tables: %w", err)
	}
	return nil
}

// LoadAll reads every row from pgfine_objects and reconstructs the
// stored model, keyed by id.
func (s *State) LoadAll(ctx context.Context) (map[string]*objects.Record, error) {
	rows, err := s.gw.QueryContext(ctx, `
		SELECT po_id, po_type, po_md5, po_script, po_path, po_depends_on, po_required_by
		FROM pgfine_objects
	`)
	if err != nil {
		return nil, fmt.Errorf("state: failed to select pgfine_objects: %w", err)
	}
	defer rows.Close()

	result := map[string]*objects.Record{}
	for rows.Next() {
		var (
			id, kindStr, md5, script, path string
			dependsOn, requiredBy          []string
		)
		if err := rows.Scan(&id, &kindStr, &md5, &script, &path, pq.Array(&dependsOn), pq.Array(&requiredBy)); err != nil {
			return nil, fmt.Errorf("state: failed to scan pgfine_objects row: %w", err)
		}
		rec := objects.NewRecord(objects.Kind(kindStr), id, path, script, md5)
		for _, d := range dependsOn {
			rec.DependsOn[d] = struct{}{}
		}
		for _, r := range requiredBy {
			rec.RequiredBy[r] = struct{}{}
		}
		result[id] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("state: error iterating pgfine_objects: %w", err)
	}
	return result, nil
}

// Upsert atomically inserts or replaces the stored record for rec.ID.
func (s *State) Upsert(ctx context.Context, rec *objects.Record) error {
	_, err := s.gw.ExecContext(ctx, `
		INSERT INTO pgfine_objects (po_id, po_type, po_md5, po_script, po_path, po_depends_on, po_required_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (po_id) DO UPDATE SET
			po_type = excluded.po_type,
			po_md5 = excluded.po_md5,
			po_script = excluded.po_script,
			po_path = excluded.po_path,
			po_depends_on = excluded.po_depends_on,
			po_required_by = excluded.po_required_by
	`, rec.ID, string(rec.Kind), rec.Fingerprint, rec.Script, rec.Path,
		pq.Array(rec.DependsOnIDs()), pq.Array(rec.RequiredByIDs()))
	if err != nil {
		return fmt.Errorf("state: failed to upsert object %q: %w", rec.ID, err)
	}
	return nil
}

// Delete removes the stored record for id, case-insensitively on the
// id, matching the predecessor tool's lower()-folded delete.
func (s *State) Delete(ctx context.Context, id string) error {
	_, err := s.gw.ExecContext(ctx, `DELETE FROM pgfine_objects WHERE lower(po_id) = lower($1)`, id)
	if err != nil {
		return fmt.Errorf("state: failed to delete object %q: %w", id, err)
	}
	return nil
}

// ExistsRecord reports whether a stored record exists for id.
func (s *State) ExistsRecord(ctx context.Context, id string) (bool, error) {
	var exists bool
	row := s.gw.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM pgfine_objects WHERE lower(po_id) = lower($1))`, id)
	if err := row.Scan(&exists); err != nil {
		return false, fmt.Errorf("state: failed to check existence of object %q: %w", id, err)
	}
	return exists, nil
}

// RecordMigration marks migration id as applied; a conflict (already
// recorded) is a no-op, matching the predecessor's ON CONFLICT DO NOTHING.
func (s *State) RecordMigration(ctx context.Context, id string) error {
	_, err := s.gw.ExecContext(ctx, `
		INSERT INTO pgfine_migrations (pm_id) VALUES ($1)
		ON CONFLICT (pm_id) DO NOTHING
	`, id)
	if err != nil {
		return fmt.Errorf("state: failed to record migration %q: %w", id, err)
	}
	return nil
}

// LatestMigrationID returns max(pm_id), or (nil, nil) if the
// migrations table has no rows at all (spec.md section 4.11: this is
// how the Runner distinguishes "never bootstrapped by pgfine" from
// "bootstrapped with the empty baseline migration").
func (s *State) LatestMigrationID(ctx context.Context) (*string, error) {
	var id sql.NullString
	row := s.gw.QueryRowContext(ctx, `SELECT max(pm_id) FROM pgfine_migrations`)
	if err := row.Scan(&id); err != nil {
		return nil, fmt.Errorf("state: failed to select latest migration id: %w", err)
	}
	if !id.Valid {
		return nil, nil
	}
	return &id.String, nil
}
