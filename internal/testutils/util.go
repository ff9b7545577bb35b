// SPDX-License-Identifier: Apache-2.0

package testutils

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/pgfine/pgfine/pkg/db"
	"github.com/pgfine/pgfine/pkg/state"
)

// The version of postgres against which the tests are run
// if the POSTGRES_VERSION environment variable is not set.
const defaultPostgresVersion = "15.3"

// tConnStr holds the connection string to the test container created in TestMain.
var tConnStr string

// SharedTestMain starts a postgres container to be used by all tests in a
// package. Each test then connects to the container and creates a new
// database, so tests don't interfere with each other's objects or state.
func SharedTestMain(m *testing.M) {
	ctx := context.Background()

	waitForLogs := wait.
		ForLog("database system is ready to accept connections").
		WithOccurrence(2).
		WithStartupTimeout(5 * time.Second)

	pgVersion := os.Getenv("POSTGRES_VERSION")
	if pgVersion == "" {
		pgVersion = defaultPostgresVersion
	}

	ctr, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:"+pgVersion),
		testcontainers.WithWaitStrategy(waitForLogs),
	)
	if err != nil {
		os.Exit(1)
	}

	tConnStr, err = ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		os.Exit(1)
	}

	conn, err := sql.Open("postgres", tConnStr)
	if err != nil {
		os.Exit(1)
	}

	exitCode := m.Run()

	if err := conn.Close(); err != nil {
		log.Printf("Failed to close admin connection: %v", err)
	}

	if err := ctr.Terminate(ctx); err != nil {
		log.Printf("Failed to terminate container: %v", err)
	}

	os.Exit(exitCode)
}

// AdminConnStr returns the connection string for the shared container's
// default, already-existing database and superuser role — the "admin
// connection" an engine-level test dials to create/drop databases.
func AdminConnStr() string {
	return tConnStr
}

// WithConnectionToContainer hands fn a raw *sql.DB and connection string for
// a fresh, empty database in the shared container.
func WithConnectionToContainer(t *testing.T, fn func(conn *sql.DB, connStr string)) {
	t.Helper()

	conn, connStr, _ := setupTestDatabase(t)

	fn(conn, connStr)
}

// WithGatewayToContainer hands fn a db.Gateway dialed against a fresh,
// empty database in the shared container.
func WithGatewayToContainer(t *testing.T, fn func(gw db.Gateway, connStr string)) {
	t.Helper()
	ctx := context.Background()

	_, connStr, _ := setupTestDatabase(t)

	gw, err := db.Open(ctx, connStr)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := gw.Close(); err != nil {
			t.Fatalf("Failed to close gateway: %v", err)
		}
	})

	fn(gw, connStr)
}

// WithInitializedState hands fn a *state.State whose tracking tables have
// already been created, against a fresh database in the shared container.
func WithInitializedState(t *testing.T, fn func(st *state.State, gw db.Gateway, connStr string)) {
	t.Helper()
	ctx := context.Background()

	WithGatewayToContainer(t, func(gw db.Gateway, connStr string) {
		st := state.New(gw)
		if err := st.Init(ctx); err != nil {
			t.Fatal(err)
		}
		fn(st, gw, connStr)
	})
}

// setupTestDatabase creates a new database in the test container and returns:
// - a connection to the new database
// - the connection string to the new database
// - the name of the new database
func setupTestDatabase(t *testing.T) (*sql.DB, string, string) {
	t.Helper()
	ctx := context.Background()

	tDB, err := sql.Open("postgres", tConnStr)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := tDB.Close(); err != nil {
			t.Fatalf("Failed to close database connection: %v", err)
		}
	})

	dbName := randomDBName()

	_, err = tDB.ExecContext(ctx, fmt.Sprintf("CREATE DATABASE %s", pq.QuoteIdentifier(dbName)))
	if err != nil {
		t.Fatal(err)
	}

	u, err := url.Parse(tConnStr)
	if err != nil {
		t.Fatal(err)
	}

	u.Path = "/" + dbName
	connStr := u.String()

	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := conn.Close(); err != nil {
			t.Fatalf("Failed to close database connection: %v", err)
		}
	})

	return conn, connStr, dbName
}
