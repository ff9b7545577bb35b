// SPDX-License-Identifier: Apache-2.0

// Package engine implements the Lifecycle Orchestrator (C12):
// Migrate and Drop, deciding the bootstrap-vs-reconcile path and
// managing admin-vs-target database connections. Grounded on
// original_source/src/database.rs's top-level `pub fn migrate`/`pub fn
// drop`, and on the teacher's pkg/roll.Roll as the "façade type holding
// a DB handle + state + options" shape.
package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/pgfine/pgfine/internal/config"
	"github.com/pgfine/pgfine/internal/connstr"
	"github.com/pgfine/pgfine/pkg/catalog"
	"github.com/pgfine/pgfine/pkg/db"
	"github.com/pgfine/pgfine/pkg/objects"
	"github.com/pgfine/pgfine/pkg/oneshot"
	"github.com/pgfine/pgfine/pkg/project"
	"github.com/pgfine/pgfine/pkg/reconcile"
	"github.com/pgfine/pgfine/pkg/state"
)

// Opener opens a Gateway for a DSN; production wires pkg/db.Open via
// OpenPostgres, and any function of this shape can stand in for it.
type Opener func(ctx context.Context, dsn string) (db.Gateway, error)

// Engine is the entry point for migrate and drop.
type Engine struct {
	cfg         *config.Config
	log         Logger
	open        Opener
	loadProject func() (*project.Project, error)
}

// New wires an Engine from configuration. open is normally
// OpenPostgres, db.Open wrapped to satisfy the Opener signature.
func New(cfg *config.Config, log Logger, open Opener) *Engine {
	return &Engine{
		cfg:  cfg,
		log:  log,
		open: open,
		loadProject: func() (*project.Project, error) {
			return project.New(cfg.Dir, cfg.RolePrefix).Load()
		},
	}
}

// OpenPostgres adapts pkg/db.Open to the Opener signature. It dials dsn
// as given; the Engine appends TLS query parameters from cfg.RootCert
// before calling its Opener.
func OpenPostgres(ctx context.Context, dsn string) (db.Gateway, error) {
	rdb, err := db.Open(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return rdb, nil
}

func (e *Engine) dial(ctx context.Context, dsn string) (db.Gateway, error) {
	withTLS, err := connstr.AppendTLSOption(dsn, e.cfg.RootCert)
	if err != nil {
		return nil, err
	}
	return e.open(ctx, withTLS)
}

// Migrate reconciles the target database with the project (section 4.12).
func (e *Engine) Migrate(ctx context.Context) error {
	runID := uuid.NewString()

	proj, err := e.loadProject()
	if err != nil {
		return fmt.Errorf("migrate: failed to load project: %w", err)
	}

	target, err := e.dial(ctx, e.cfg.ConnectionString)
	if err != nil {
		return e.bootstrap(ctx, runID, proj)
	}
	defer target.Close()

	e.log.Info("connected to target database", "run_id", runID)

	st := state.New(target)
	if err := st.Init(ctx); err != nil {
		return fmt.Errorf("migrate: failed to initialize state tables: %w", err)
	}

	runner := oneshot.New(target, st)
	if err := runner.Run(ctx, toOneshotScripts(proj.Migrations)); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	return e.reconcile(ctx, runID, target, st, proj)
}

// bootstrap runs when the target database connection failed: it
// confirms (via the admin connection) that the failure is absence, not
// a credential problem, then creates the database and role, and does a
// from-scratch Update Engine pass with no prior stored state.
func (e *Engine) bootstrap(ctx context.Context, runID string, proj *project.Project) error {
	e.log.LogBootstrapStart(runID)

	admin, err := e.dial(ctx, e.cfg.AdminConnectionString)
	if err != nil {
		return fmt.Errorf("migrate: failed to connect to target database, and admin connection also failed: %w", err)
	}
	defer admin.Close()

	params, err := connstr.ParseAdminParams(e.cfg.ConnectionString)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	exists, err := e.adminDatabaseExists(ctx, admin, params.DatabaseName)
	if err != nil {
		return fmt.Errorf("migrate: failed to check whether target database exists: %w", err)
	}
	if exists {
		return fmt.Errorf("migrate: target database %q exists but the connection failed; this looks like a credential problem, not absence", params.DatabaseName)
	}

	if err := runAdminScripts(ctx, admin, proj.Bootstrap, params); err != nil {
		return fmt.Errorf("migrate: bootstrap failed: %w", err)
	}

	target, err := e.dial(ctx, e.cfg.ConnectionString)
	if err != nil {
		return fmt.Errorf("migrate: bootstrap scripts ran but the target database is still unreachable: %w", err)
	}
	defer target.Close()

	st := state.New(target)
	if err := st.Init(ctx); err != nil {
		return fmt.Errorf("migrate: failed to initialize state tables after bootstrap: %w", err)
	}

	cat := catalog.New(target)
	plan, err := reconcile.NewPlanner(cat).Plan(ctx, proj.Objects, map[string]*objects.Record{})
	if err != nil {
		return fmt.Errorf("migrate: failed to plan bootstrap objects: %w", err)
	}
	for _, w := range plan.Warnings {
		e.log.LogWarning(runID, w)
	}

	updater := reconcile.NewUpdater(target, cat, st, reconcile.NewCascade(target, cat, st))
	if err := updater.Run(ctx, plan, proj.Objects, map[string]*objects.Record{}); err != nil {
		return fmt.Errorf("migrate: failed to create bootstrap objects: %w", err)
	}

	baseline := ""
	if len(proj.Migrations) > 0 {
		baseline = proj.Migrations[len(proj.Migrations)-1].ID
	}
	if err := st.RecordMigration(ctx, baseline); err != nil {
		return fmt.Errorf("migrate: failed to record baseline migration: %w", err)
	}

	e.log.LogBootstrapComplete(runID)
	return nil
}

func (e *Engine) reconcile(ctx context.Context, runID string, target db.Gateway, st *state.State, proj *project.Project) error {
	cat := catalog.New(target)
	stored, err := st.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("migrate: failed to load stored state: %w", err)
	}

	planner := reconcile.NewPlanner(cat)
	plan, err := planner.Plan(ctx, proj.Objects, stored)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	for _, w := range plan.Warnings {
		e.log.LogWarning(runID, w)
	}

	cascade := reconcile.NewCascade(target, cat, st)
	updater := reconcile.NewUpdater(target, cat, st, cascade)
	if err := updater.Run(ctx, plan, proj.Objects, stored); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Drop runs the teardown path (section 4.12). When noJoke is false it
// only prints a confirmation message and returns, per spec.md section 6.
func (e *Engine) Drop(ctx context.Context, noJoke bool) error {
	if !noJoke {
		e.log.Info("refusing to drop without --no-joke; re-run with --no-joke to actually tear down the database")
		return nil
	}

	runID := uuid.NewString()

	proj, err := e.loadProject()
	if err != nil {
		return fmt.Errorf("drop: failed to load project: %w", err)
	}

	params, err := connstr.ParseAdminParams(e.cfg.ConnectionString)
	if err != nil {
		return fmt.Errorf("drop: %w", err)
	}

	target, dialErr := e.dial(ctx, e.cfg.ConnectionString)
	if dialErr == nil {
		st := state.New(target)
		stored, loadErr := st.LoadAll(ctx)
		if loadErr != nil {
			target.Close()
			return fmt.Errorf("drop: failed to load stored state: %w", loadErr)
		}
		cascade := reconcile.NewCascade(target, catalog.New(target), st)
		roleIDs := rolesOf(stored, proj.Objects)
		for _, id := range roleIDs {
			if err := cascade.Run(ctx, map[string]struct{}{id: {}}, stored); err != nil {
				e.log.LogWarning(runID, fmt.Sprintf("failed to force-drop role %q: %v", id, err))
			} else {
				e.log.LogObjectDropped(runID, id)
			}
		}
		target.Close()
	}

	admin, err := e.dial(ctx, e.cfg.AdminConnectionString)
	if err != nil {
		return fmt.Errorf("drop: failed to connect to target database, and admin connection also failed: %w", err)
	}
	defer admin.Close()

	if dialErr != nil {
		// Symmetric with bootstrap (section 4.12): a failed target dial
		// must mean the database doesn't exist, not a credential
		// problem, before teardown proceeds without it.
		exists, err := e.adminDatabaseExists(ctx, admin, params.DatabaseName)
		if err != nil {
			return fmt.Errorf("drop: failed to check whether target database exists: %w", err)
		}
		if exists {
			return fmt.Errorf("drop: target database %q exists but the connection failed; this looks like a credential problem, not absence", params.DatabaseName)
		}
	}

	if err := runAdminScripts(ctx, admin, proj.Teardown, params); err != nil {
		return fmt.Errorf("drop: teardown failed: %w", err)
	}

	for id, rec := range proj.Objects {
		if rec.Kind != objects.KindRole {
			continue
		}
		stillThere, err := catalog.New(admin).Exists(ctx, objects.KindRole, id)
		if err == nil && stillThere {
			e.log.LogWarning(runID, fmt.Sprintf("role %q still exists after teardown", id))
		}
	}

	return nil
}

func rolesOf(stored, proj map[string]*objects.Record) []string {
	seen := map[string]struct{}{}
	var ids []string
	for id, rec := range stored {
		if rec.Kind == objects.KindRole {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}
	for id, rec := range proj {
		if rec.Kind == objects.KindRole {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}
	return ids
}

func (e *Engine) adminDatabaseExists(ctx context.Context, admin db.Gateway, databaseName string) (bool, error) {
	var exists bool
	row := admin.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)`, databaseName)
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func runAdminScripts(ctx context.Context, gw db.Gateway, scripts []project.Script, params connstr.AdminParams) error {
	for _, s := range scripts {
		prepared, err := connstr.SubstituteAdminParams(s.Script, params)
		if err != nil {
			return fmt.Errorf("%s: %w", s.ID, err)
		}
		if err := gw.ExecScript(ctx, prepared); err != nil {
			return fmt.Errorf("%s: %w", s.ID, err)
		}
	}
	return nil
}

func toOneshotScripts(scripts []project.Script) []oneshot.Script {
	out := make([]oneshot.Script, len(scripts))
	for i, s := range scripts {
		out[i] = oneshot.Script{ID: s.ID, Script: s.Script}
	}
	return out
}
