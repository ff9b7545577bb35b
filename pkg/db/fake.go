// SPDX-License-Identifier: Apache-2.0

package db

import (
	"context"
	"database/sql"
)

// FakeGateway is a fake implementation of Gateway. All methods are
// no-ops returning zero values; it exists so callers that only need a
// Gateway-shaped value (not real query results) can be constructed
// without a database connection.
type FakeGateway struct{}

func (db *FakeGateway) ExecScript(ctx context.Context, script string) error {
	return nil
}

func (db *FakeGateway) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return nil, nil
}

func (db *FakeGateway) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return nil, nil
}

func (db *FakeGateway) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return nil
}

func (db *FakeGateway) WithRetryableTransaction(ctx context.Context, f func(context.Context, *sql.Tx) error) error {
	return nil
}

func (db *FakeGateway) Close() error {
	return nil
}
