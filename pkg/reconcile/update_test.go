// SPDX-License-Identifier: Apache-2.0

package reconcile_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgfine/pgfine/internal/testutils"
	"github.com/pgfine/pgfine/pkg/catalog"
	"github.com/pgfine/pgfine/pkg/db"
	"github.com/pgfine/pgfine/pkg/objects"
	"github.com/pgfine/pgfine/pkg/reconcile"
	"github.com/pgfine/pgfine/pkg/state"
)

func newUpdater(gw db.Gateway, st *state.State) *reconcile.Updater {
	cat := catalog.New(gw)
	cas := reconcile.NewCascade(gw, cat, st)
	return reconcile.NewUpdater(gw, cat, st, cas)
}

func TestUpdaterCreatesMissingObject(t *testing.T) {
	t.Parallel()

	testutils.WithInitializedState(t, func(st *state.State, gw db.Gateway, _ string) {
		ctx := context.Background()
		upd := newUpdater(gw, st)

		rec := objects.NewRecord(objects.KindView, "public.v1", "views/public.v1.sql", "CREATE VIEW public.v1 AS SELECT 1", "hash")
		plan := &reconcile.Plan{CreateOrder: []string{"public.v1"}}
		project := map[string]*objects.Record{"public.v1": rec}

		require.NoError(t, upd.Run(ctx, plan, project, map[string]*objects.Record{}))

		cat := catalog.New(gw)
		exists, err := cat.Exists(ctx, objects.KindView, "public.v1")
		require.NoError(t, err)
		assert.True(t, exists)

		all, err := st.LoadAll(ctx)
		require.NoError(t, err)
		assert.Contains(t, all, "public.v1")
	})
}

func TestUpdaterAdoptsPreexistingObjectWithoutRerunningScript(t *testing.T) {
	t.Parallel()

	testutils.WithInitializedState(t, func(st *state.State, gw db.Gateway, _ string) {
		ctx := context.Background()
		upd := newUpdater(gw, st)

		require.NoError(t, gw.ExecScript(ctx, `CREATE VIEW public.v1 AS SELECT 1`))

		// A script that would fail if it were re-run (view already exists).
		rec := objects.NewRecord(objects.KindView, "public.v1", "views/public.v1.sql", "CREATE VIEW public.v1 AS SELECT 1", "hash")
		plan := &reconcile.Plan{CreateOrder: []string{"public.v1"}}
		project := map[string]*objects.Record{"public.v1": rec}

		require.NoError(t, upd.Run(ctx, plan, project, map[string]*objects.Record{}))

		all, err := st.LoadAll(ctx)
		require.NoError(t, err)
		require.Contains(t, all, "public.v1")
		assert.Equal(t, "hash", all["public.v1"].Fingerprint)
	})
}

func TestUpdaterSkipsUnchangedObject(t *testing.T) {
	t.Parallel()

	testutils.WithInitializedState(t, func(st *state.State, gw db.Gateway, _ string) {
		ctx := context.Background()
		upd := newUpdater(gw, st)

		require.NoError(t, gw.ExecScript(ctx, `CREATE VIEW public.v1 AS SELECT 1`))
		stored := objects.NewRecord(objects.KindView, "public.v1", "views/public.v1.sql", "CREATE VIEW public.v1 AS SELECT 1", "samehash")
		require.NoError(t, st.Upsert(ctx, stored))

		project := objects.NewRecord(objects.KindView, "public.v1", "views/public.v1.sql", "CREATE VIEW public.v1 AS SELECT 1", "samehash")
		plan := &reconcile.Plan{CreateOrder: []string{"public.v1"}}

		require.NoError(t, upd.Run(ctx, plan, map[string]*objects.Record{"public.v1": project}, map[string]*objects.Record{"public.v1": stored}))
	})
}

func TestUpdaterAltersInPlaceViaReplace(t *testing.T) {
	t.Parallel()

	testutils.WithInitializedState(t, func(st *state.State, gw db.Gateway, _ string) {
		ctx := context.Background()
		upd := newUpdater(gw, st)

		require.NoError(t, gw.ExecScript(ctx, `CREATE VIEW public.v1 AS SELECT 1 AS n`))
		stored := objects.NewRecord(objects.KindView, "public.v1", "views/public.v1.sql", "CREATE VIEW public.v1 AS SELECT 1 AS n", "oldhash")
		require.NoError(t, st.Upsert(ctx, stored))

		project := objects.NewRecord(objects.KindView, "public.v1", "views/public.v1.sql", "CREATE OR REPLACE VIEW public.v1 AS SELECT 2 AS n", "newhash")
		plan := &reconcile.Plan{CreateOrder: []string{"public.v1"}}

		err := upd.Run(ctx, plan, map[string]*objects.Record{"public.v1": project}, map[string]*objects.Record{"public.v1": stored})
		require.NoError(t, err)

		all, err := st.LoadAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, "newhash", all["public.v1"].Fingerprint)
	})
}

func TestUpdaterAlterFallbackCascadesRealDependents(t *testing.T) {
	t.Parallel()

	testutils.WithInitializedState(t, func(st *state.State, gw db.Gateway, _ string) {
		ctx := context.Background()
		upd := newUpdater(gw, st)

		require.NoError(t, gw.ExecScript(ctx, `
			CREATE VIEW public.v1 AS SELECT 1 AS n;
			CREATE FUNCTION public.f1() RETURNS int AS $$ SELECT count(*) FROM public.v1 $$ LANGUAGE sql;
		`))

		view := objects.NewRecord(objects.KindView, "public.v1", "views/public.v1.sql", "CREATE VIEW public.v1 AS SELECT 1 AS n", "oldhash")
		fn := objects.NewRecord(objects.KindFunction, "public.f1", "functions/public.f1.sql", "CREATE FUNCTION public.f1() RETURNS int AS $$ SELECT count(*) FROM public.v1 $$ LANGUAGE sql", "fnhash")
		view.RequiredBy["public.f1"] = struct{}{}
		fn.DependsOn["public.v1"] = struct{}{}
		require.NoError(t, st.Upsert(ctx, view))
		require.NoError(t, st.Upsert(ctx, fn))

		// No OR REPLACE: re-running this script against the still-existing
		// view always fails, forcing the alter-in-place fallback to the
		// drop cascade (section 4.10 step 4).
		project := objects.NewRecord(objects.KindView, "public.v1", "views/public.v1.sql", "CREATE VIEW public.v1 AS SELECT 2 AS n", "newhash")
		plan := &reconcile.Plan{CreateOrder: []string{"public.v1"}}
		stored := map[string]*objects.Record{"public.v1": view, "public.f1": fn}

		err := upd.Run(ctx, plan, map[string]*objects.Record{"public.v1": project}, stored)
		require.NoError(t, err)

		cat := catalog.New(gw)
		exists, err := cat.Exists(ctx, objects.KindFunction, "public.f1")
		require.NoError(t, err)
		assert.False(t, exists, "the dependent function must be dropped by the cascade fallback, not silently skipped")

		all, err := st.LoadAll(ctx)
		require.NoError(t, err)
		assert.NotContains(t, all, "public.f1")
		require.Contains(t, all, "public.v1")
		assert.Equal(t, "newhash", all["public.v1"].Fingerprint)
	})
}

func TestUpdaterRunsDropSetBeforeCreateOrder(t *testing.T) {
	t.Parallel()

	testutils.WithInitializedState(t, func(st *state.State, gw db.Gateway, _ string) {
		ctx := context.Background()
		upd := newUpdater(gw, st)

		require.NoError(t, gw.ExecScript(ctx, `CREATE VIEW public.old AS SELECT 1`))
		oldRec := objects.NewRecord(objects.KindView, "public.old", "views/public.old.sql", "CREATE VIEW public.old AS SELECT 1", "hash")
		require.NoError(t, st.Upsert(ctx, oldRec))

		newRec := objects.NewRecord(objects.KindView, "public.new", "views/public.new.sql", "CREATE VIEW public.new AS SELECT 2", "hash2")
		plan := &reconcile.Plan{
			DropSet:     map[string]struct{}{"public.old": {}},
			CreateOrder: []string{"public.new"},
		}

		err := upd.Run(ctx, plan, map[string]*objects.Record{"public.new": newRec}, map[string]*objects.Record{"public.old": oldRec})
		require.NoError(t, err)

		cat := catalog.New(gw)
		exists, err := cat.Exists(ctx, objects.KindView, "public.old")
		require.NoError(t, err)
		assert.False(t, exists)
		exists, err = cat.Exists(ctx, objects.KindView, "public.new")
		require.NoError(t, err)
		assert.True(t, exists)
	})
}
