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
)

func TestMain(m *testing.M) {
	testutils.SharedTestMain(m)
}

func TestPlanCreateOrAdoptIsLeftToUpdateEngine(t *testing.T) {
	t.Parallel()

	testutils.WithGatewayToContainer(t, func(gw db.Gateway, _ string) {
		ctx := context.Background()
		planner := reconcile.NewPlanner(catalog.New(gw))

		project := map[string]*objects.Record{
			"public.v1": objects.NewRecord(objects.KindView, "public.v1", "views/public.v1.sql", "CREATE VIEW public.v1 AS SELECT 1", "hash1"),
		}

		plan, err := planner.Plan(ctx, project, map[string]*objects.Record{})
		require.NoError(t, err)
		assert.Empty(t, plan.DropSet)
		assert.Equal(t, []string{"public.v1"}, plan.CreateOrder)
		assert.Empty(t, plan.Warnings)
	})
}

func TestPlanSkipsMatchingFingerprint(t *testing.T) {
	t.Parallel()

	testutils.WithGatewayToContainer(t, func(gw db.Gateway, _ string) {
		ctx := context.Background()
		planner := reconcile.NewPlanner(catalog.New(gw))

		rec := objects.NewRecord(objects.KindView, "public.v1", "views/public.v1.sql", "CREATE VIEW public.v1 AS SELECT 1", "samehash")
		project := map[string]*objects.Record{"public.v1": rec}
		stored := map[string]*objects.Record{"public.v1": rec}

		plan, err := planner.Plan(ctx, project, stored)
		require.NoError(t, err)
		assert.Empty(t, plan.DropSet)
	})
}

func TestPlanDirtyNonTableFeedsDropSet(t *testing.T) {
	t.Parallel()

	testutils.WithGatewayToContainer(t, func(gw db.Gateway, _ string) {
		ctx := context.Background()
		planner := reconcile.NewPlanner(catalog.New(gw))

		project := map[string]*objects.Record{
			"public.v1": objects.NewRecord(objects.KindView, "public.v1", "views/public.v1.sql", "CREATE VIEW public.v1 AS SELECT 2", "newhash"),
		}
		stored := map[string]*objects.Record{
			"public.v1": objects.NewRecord(objects.KindView, "public.v1", "views/public.v1.sql", "CREATE VIEW public.v1 AS SELECT 1", "oldhash"),
		}

		plan, err := planner.Plan(ctx, project, stored)
		require.NoError(t, err)
		assert.Contains(t, plan.DropSet, "public.v1")
	})
}

func TestPlanSchemaDriftWarnsWithoutDropping(t *testing.T) {
	t.Parallel()

	testutils.WithGatewayToContainer(t, func(gw db.Gateway, _ string) {
		ctx := context.Background()
		planner := reconcile.NewPlanner(catalog.New(gw))

		project := map[string]*objects.Record{
			"billing": objects.NewRecord(objects.KindSchema, "billing", "schemas/billing.sql", "CREATE SCHEMA billing AUTHORIZATION alice", "newhash"),
		}
		stored := map[string]*objects.Record{
			"billing": objects.NewRecord(objects.KindSchema, "billing", "schemas/billing.sql", "CREATE SCHEMA billing", "oldhash"),
		}

		plan, err := planner.Plan(ctx, project, stored)
		require.NoError(t, err)
		assert.Empty(t, plan.DropSet)
		assert.Len(t, plan.Warnings, 1)
	})
}

func TestPlanTableDriftIsForbiddenWhenTableStillExists(t *testing.T) {
	t.Parallel()

	testutils.WithGatewayToContainer(t, func(gw db.Gateway, _ string) {
		ctx := context.Background()
		require.NoError(t, gw.ExecScript(ctx, `CREATE TABLE public.t1 (id int)`))

		planner := reconcile.NewPlanner(catalog.New(gw))
		project := map[string]*objects.Record{
			"public.t1": objects.NewRecord(objects.KindTable, "public.t1", "tables/public.t1.sql", "CREATE TABLE public.t1 (id int, b text)", "newhash"),
		}
		stored := map[string]*objects.Record{
			"public.t1": objects.NewRecord(objects.KindTable, "public.t1", "tables/public.t1.sql", "CREATE TABLE public.t1 (id int)", "oldhash"),
		}

		_, err := planner.Plan(ctx, project, stored)
		require.Error(t, err)
		var drift *reconcile.ErrTableDriftForbidden
		assert.ErrorAs(t, err, &drift)
	})
}

func TestPlanTableDriftIsToleratedWhenTableAlreadyGone(t *testing.T) {
	t.Parallel()

	testutils.WithGatewayToContainer(t, func(gw db.Gateway, _ string) {
		ctx := context.Background()
		planner := reconcile.NewPlanner(catalog.New(gw))

		project := map[string]*objects.Record{
			"public.t1": objects.NewRecord(objects.KindTable, "public.t1", "tables/public.t1.sql", "CREATE TABLE public.t1 (id int, b text)", "newhash"),
		}
		stored := map[string]*objects.Record{
			"public.t1": objects.NewRecord(objects.KindTable, "public.t1", "tables/public.t1.sql", "CREATE TABLE public.t1 (id int)", "oldhash"),
		}

		plan, err := planner.Plan(ctx, project, stored)
		require.NoError(t, err)
		assert.Empty(t, plan.DropSet)
	})
}

func TestPlanTableDeletionForbiddenWhenTableStillExists(t *testing.T) {
	t.Parallel()

	testutils.WithGatewayToContainer(t, func(gw db.Gateway, _ string) {
		ctx := context.Background()
		require.NoError(t, gw.ExecScript(ctx, `CREATE TABLE public.t1 (id int)`))

		planner := reconcile.NewPlanner(catalog.New(gw))
		stored := map[string]*objects.Record{
			"public.t1": objects.NewRecord(objects.KindTable, "public.t1", "tables/public.t1.sql", "CREATE TABLE public.t1 (id int)", "oldhash"),
		}

		_, err := planner.Plan(ctx, map[string]*objects.Record{}, stored)
		require.Error(t, err)
		var forbidden *reconcile.ErrTableDeletionForbidden
		assert.ErrorAs(t, err, &forbidden)
	})
}

func TestPlanDropSetClosesOverStoredRequiredBy(t *testing.T) {
	t.Parallel()

	testutils.WithGatewayToContainer(t, func(gw db.Gateway, _ string) {
		ctx := context.Background()
		planner := reconcile.NewPlanner(catalog.New(gw))

		view := objects.NewRecord(objects.KindView, "public.v1", "views/public.v1.sql", "CREATE VIEW public.v1 AS SELECT 1 FROM public.t1", "viewhash")
		fn := objects.NewRecord(objects.KindFunction, "public.f1", "functions/public.f1.sql", "CREATE FUNCTION public.f1() RETURNS int AS $$ SELECT * FROM public.v1 $$ LANGUAGE sql", "fnhash")
		view.RequiredBy["public.f1"] = struct{}{}
		fn.DependsOn["public.v1"] = struct{}{}

		stored := map[string]*objects.Record{
			"public.v1": view,
			"public.f1": fn,
		}
		// Only the view is removed from the project; the function that
		// depends on it must be swept into the drop set too.
		plan, err := planner.Plan(ctx, map[string]*objects.Record{"public.f1": fn}, stored)
		require.NoError(t, err)
		assert.Contains(t, plan.DropSet, "public.v1")
		assert.Contains(t, plan.DropSet, "public.f1")
	})
}
