// SPDX-License-Identifier: Apache-2.0

// Package catalog probes the real state of the target database's
// system catalogs, one query per objects.Kind, so the Reconciliation
// Planner can tell "declared but never created" apart from "declared
// and already exists" without relying on pgfine's own bookkeeping
// table. Grounded on original_source/src/database.rs's exists_object,
// extended from its four kinds (Table/View/Function/Constraint) to
// all ten kinds the spec's object model recognizes.
package catalog

import (
	"context"
	"fmt"

	"github.com/pgfine/pgfine/pkg/db"
	"github.com/pgfine/pgfine/pkg/objects"
)

// Catalog probes live catalog state in the target database.
type Catalog struct {
	gw db.Gateway
}

// New wraps a target-database gateway.
func New(gw db.Gateway) *Catalog {
	return &Catalog{gw: gw}
}

// Exists reports whether the object identified by (kind, id) is
// currently present in the database, independent of pgfine's own
// pgfine_objects bookkeeping.
func (c *Catalog) Exists(ctx context.Context, kind objects.Kind, id string) (bool, error) {
	query, args, err := existsQuery(kind, id)
	if err != nil {
		return false, err
	}

	var exists bool
	row := c.gw.QueryRowContext(ctx, query, args...)
	if err := row.Scan(&exists); err != nil {
		return false, fmt.Errorf("catalog: failed to probe existence of %s %q: %w", kind, id, err)
	}
	return exists, nil
}

func existsQuery(kind objects.Kind, id string) (string, []interface{}, error) {
	switch kind {
	case objects.KindTable, objects.KindView:
		// to_regclass resolves both tables and views (and is NULL-safe
		// for nonexistent or not-yet-visible relations).
		return `SELECT to_regclass($1) IS NOT NULL`, []interface{}{id}, nil

	case objects.KindFunction:
		schema, name, ok := splitSchemaQualifiedFunc(id)
		if !ok {
			return "", nil, &objects.ErrInvalidObjectID{Kind: kind, ID: id}
		}
		return `
			SELECT EXISTS (
				SELECT 1 FROM pg_proc p
				JOIN pg_namespace n ON n.oid = p.pronamespace
				WHERE lower(n.nspname) = lower($1) AND lower(p.proname) = lower($2)
			)`, []interface{}{schema, name}, nil

	case objects.KindConstraint:
		schema, table, name, ok := splitThreePart(id)
		if !ok {
			return "", nil, &objects.ErrInvalidObjectID{Kind: kind, ID: id}
		}
		return `
			SELECT EXISTS (
				SELECT 1 FROM pg_constraint c
				JOIN pg_class t ON t.oid = c.conrelid
				JOIN pg_namespace n ON n.oid = t.relnamespace
				WHERE lower(n.nspname) = lower($1) AND lower(t.relname) = lower($2) AND lower(c.conname) = lower($3)
			)`, []interface{}{schema, table, name}, nil

	case objects.KindTrigger:
		schema, table, name, ok := splitThreePart(id)
		if !ok {
			return "", nil, &objects.ErrInvalidObjectID{Kind: kind, ID: id}
		}
		return `
			SELECT EXISTS (
				SELECT 1 FROM pg_trigger tg
				JOIN pg_class t ON t.oid = tg.tgrelid
				JOIN pg_namespace n ON n.oid = t.relnamespace
				WHERE lower(n.nspname) = lower($1) AND lower(t.relname) = lower($2) AND lower(tg.tgname) = lower($3) AND NOT tg.tgisinternal
			)`, []interface{}{schema, table, name}, nil

	case objects.KindPolicy:
		schema, table, name, ok := splitThreePart(id)
		if !ok {
			return "", nil, &objects.ErrInvalidObjectID{Kind: kind, ID: id}
		}
		return `
			SELECT EXISTS (
				SELECT 1 FROM pg_policy pol
				JOIN pg_class t ON t.oid = pol.polrelid
				JOIN pg_namespace n ON n.oid = t.relnamespace
				WHERE lower(n.nspname) = lower($1) AND lower(t.relname) = lower($2) AND lower(pol.polname) = lower($3)
			)`, []interface{}{schema, table, name}, nil

	case objects.KindSchema:
		return `SELECT EXISTS (SELECT 1 FROM pg_namespace WHERE lower(nspname) = lower($1))`, []interface{}{id}, nil

	case objects.KindRole:
		return `SELECT EXISTS (SELECT 1 FROM pg_roles WHERE lower(rolname) = lower($1))`, []interface{}{id}, nil

	case objects.KindExtension:
		return `SELECT EXISTS (SELECT 1 FROM pg_extension WHERE lower(extname) = lower($1))`, []interface{}{id}, nil

	case objects.KindType:
		schema, name, ok := splitSchemaQualifiedFunc(id)
		if !ok {
			return "", nil, &objects.ErrInvalidObjectID{Kind: kind, ID: id}
		}
		return `
			SELECT EXISTS (
				SELECT 1 FROM pg_type ty
				JOIN pg_namespace n ON n.oid = ty.typnamespace
				WHERE lower(n.nspname) = lower($1) AND lower(ty.typname) = lower($2)
			)`, []interface{}{schema, name}, nil

	default:
		return "", nil, fmt.Errorf("catalog: unsupported object kind %q", kind)
	}
}

func splitSchemaQualifiedFunc(id string) (schema, name string, ok bool) {
	for i := 0; i < len(id); i++ {
		if id[i] == '.' {
			return id[:i], id[i+1:], true
		}
	}
	return "", "", false
}

func splitThreePart(id string) (schema, table, name string, ok bool) {
	firstDot := -1
	secondDot := -1
	for i := 0; i < len(id); i++ {
		if id[i] == '.' {
			if firstDot == -1 {
				firstDot = i
			} else {
				secondDot = i
				break
			}
		}
	}
	if firstDot == -1 || secondDot == -1 {
		return "", "", "", false
	}
	return id[:firstDot], id[firstDot+1 : secondDot], id[secondDot+1:], true
}
