// SPDX-License-Identifier: Apache-2.0

package project

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/pgfine/pgfine/pkg/objects"
)

// defaultRoleName and defaultDatabaseName are used only by Init's
// starter-file generation when a name can't be derived from
// connStr, mirroring original_source/src/project.rs's
// get_default_role_name/get_default_database_name fallbacks.
const (
	defaultRoleName     = "pgfine_role"
	defaultDatabaseName = "pgfine_database"
)

// Init scaffolds a new project directory at dir: every fixed
// subdirectory (spec.md section 6) plus starter bootstrap/teardown
// scripts naming a role and database derived from connStr, falling
// back to defaultRoleName/defaultDatabaseName. It fails if dir already
// exists, mirroring the predecessor tool's init().
func Init(dir, connStr string) error {
	if _, err := os.Stat(dir); err == nil {
		return fmt.Errorf("project: %q already exists", dir)
	}

	roleName, databaseName := namesFromConnStr(connStr)

	subdirs := []string{"create", "drop", "migrations"}
	for _, kind := range objects.AllKinds {
		subdirs = append(subdirs, objects.Dirs[kind])
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("project: failed to create %q: %w", dir, err)
	}
	for _, sub := range subdirs {
		if err := os.Mkdir(filepath.Join(dir, sub), 0o755); err != nil {
			return fmt.Errorf("project: failed to create %q: %w", sub, err)
		}
	}

	starters := map[string]string{
		filepath.Join("create", "00-create-role.sql"): fmt.Sprintf("CREATE ROLE %q;\n", roleName),
		filepath.Join("create", "01-create-database.sql"): fmt.Sprintf(
			"CREATE DATABASE %q\nWITH\nOWNER = %s\nTEMPLATE = template0\nENCODING = 'UTF8';\n",
			databaseName, roleName),
		filepath.Join("drop", "00-drop-database.sql"): fmt.Sprintf("DROP DATABASE IF EXISTS %q;\n", databaseName),
		filepath.Join("drop", "01-drop-role.sql"):      fmt.Sprintf("DROP ROLE IF EXISTS %q;\n", roleName),
	}
	for relPath, content := range starters {
		if err := os.WriteFile(filepath.Join(dir, relPath), []byte(content), 0o644); err != nil {
			return fmt.Errorf("project: failed to write %q: %w", relPath, err)
		}
	}

	return nil
}

func namesFromConnStr(connStr string) (roleName, databaseName string) {
	roleName, databaseName = defaultRoleName, defaultDatabaseName
	if connStr == "" {
		return
	}
	u, err := url.Parse(connStr)
	if err != nil {
		return
	}
	if user := u.User.Username(); user != "" {
		roleName = user
	}
	if dbName := strings.TrimPrefix(u.Path, "/"); dbName != "" {
		databaseName = dbName
	}
	return
}
