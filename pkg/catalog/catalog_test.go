// SPDX-License-Identifier: Apache-2.0

package catalog_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgfine/pgfine/internal/testutils"
	"github.com/pgfine/pgfine/pkg/catalog"
	"github.com/pgfine/pgfine/pkg/db"
	"github.com/pgfine/pgfine/pkg/objects"
)

func TestMain(m *testing.M) {
	testutils.SharedTestMain(m)
}

func TestExistsAcrossAllKinds(t *testing.T) {
	t.Parallel()

	testutils.WithGatewayToContainer(t, func(gw db.Gateway, _ string) {
		ctx := context.Background()
		cat := catalog.New(gw)

		require.NoError(t, gw.ExecScript(ctx, `
			CREATE SCHEMA billing;
			CREATE ROLE catalogtest_role;
			CREATE EXTENSION IF NOT EXISTS pgcrypto;
			CREATE TYPE billing.currency AS ENUM ('usd', 'eur');
			CREATE TABLE billing.invoices (id int PRIMARY KEY, total int, CONSTRAINT total_nonneg CHECK (total >= 0));
			CREATE VIEW billing.big_invoices AS SELECT * FROM billing.invoices WHERE total > 1000;
			CREATE FUNCTION billing.double_total(n int) RETURNS int AS $$ SELECT n * 2 $$ LANGUAGE sql;
			CREATE FUNCTION billing.touch_invoice_fn() RETURNS trigger AS $$ BEGIN RETURN NEW; END $$ LANGUAGE plpgsql;
			CREATE TRIGGER touch_invoice BEFORE UPDATE ON billing.invoices FOR EACH ROW EXECUTE FUNCTION billing.touch_invoice_fn();
			ALTER TABLE billing.invoices ENABLE ROW LEVEL SECURITY;
			CREATE POLICY invoices_read ON billing.invoices FOR SELECT USING (true);
		`))

		cases := []struct {
			kind objects.Kind
			id   string
		}{
			{objects.KindSchema, "billing"},
			{objects.KindRole, "catalogtest_role"},
			{objects.KindExtension, "pgcrypto"},
			{objects.KindType, "billing.currency"},
			{objects.KindTable, "billing.invoices"},
			{objects.KindView, "billing.big_invoices"},
			{objects.KindFunction, "billing.double_total"},
			{objects.KindConstraint, "billing.invoices.total_nonneg"},
			{objects.KindTrigger, "billing.invoices.touch_invoice"},
			{objects.KindPolicy, "billing.invoices.invoices_read"},
		}
		for _, tc := range cases {
			exists, err := cat.Exists(ctx, tc.kind, tc.id)
			require.NoError(t, err, "kind %s id %s", tc.kind, tc.id)
			assert.True(t, exists, "expected %s %q to exist", tc.kind, tc.id)
		}
	})
}

func TestExistsFalseForUndeclaredObjects(t *testing.T) {
	t.Parallel()

	testutils.WithGatewayToContainer(t, func(gw db.Gateway, _ string) {
		ctx := context.Background()
		cat := catalog.New(gw)

		cases := []struct {
			kind objects.Kind
			id   string
		}{
			{objects.KindSchema, "nope"},
			{objects.KindRole, "nope_role"},
			{objects.KindExtension, "nope_ext"},
			{objects.KindType, "public.nope_type"},
			{objects.KindTable, "public.nope_table"},
			{objects.KindView, "public.nope_view"},
			{objects.KindFunction, "public.nope_func"},
			{objects.KindConstraint, "public.nope_table.nope_constraint"},
			{objects.KindTrigger, "public.nope_table.nope_trigger"},
			{objects.KindPolicy, "public.nope_table.nope_policy"},
		}
		for _, tc := range cases {
			exists, err := cat.Exists(ctx, tc.kind, tc.id)
			require.NoError(t, err, "kind %s id %s", tc.kind, tc.id)
			assert.False(t, exists, "expected %s %q to not exist", tc.kind, tc.id)
		}
	})
}

func TestExistsRejectsMalformedID(t *testing.T) {
	t.Parallel()

	testutils.WithGatewayToContainer(t, func(gw db.Gateway, _ string) {
		ctx := context.Background()
		cat := catalog.New(gw)

		_, err := cat.Exists(ctx, objects.KindConstraint, "not_enough_parts")
		require.Error(t, err)

		var invalidID *objects.ErrInvalidObjectID
		assert.ErrorAs(t, err, &invalidID)
	})
}
