// SPDX-License-Identifier: Apache-2.0

package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgfine/pgfine/internal/config"
)

func setEnv(t *testing.T, key, value string) {
	t.Helper()
	t.Setenv(key, value)
}

func TestLoadReadsAllVariables(t *testing.T) {
	setEnv(t, "PGFINE_DIR", "/srv/project")
	setEnv(t, "PGFINE_CONNECTION_STRING", "postgres://alice@localhost/acme")
	setEnv(t, "PGFINE_ADMIN_CONNECTION_STRING", "postgres://postgres@localhost/postgres")
	setEnv(t, "PGFINE_ROLE_PREFIX", "acme_")
	setEnv(t, "PGFINE_ROOT_CERT", "/etc/pgfine/root.crt")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "/srv/project", cfg.Dir)
	assert.Equal(t, "postgres://alice@localhost/acme", cfg.ConnectionString)
	assert.Equal(t, "postgres://postgres@localhost/postgres", cfg.AdminConnectionString)
	assert.Equal(t, "acme_", cfg.RolePrefix)
	assert.Equal(t, "/etc/pgfine/root.crt", cfg.RootCert)
}

func TestLoadAllowsEmptyRolePrefixAndRootCert(t *testing.T) {
	setEnv(t, "PGFINE_DIR", "/srv/project")
	setEnv(t, "PGFINE_CONNECTION_STRING", "postgres://alice@localhost/acme")
	setEnv(t, "PGFINE_ADMIN_CONNECTION_STRING", "postgres://postgres@localhost/postgres")
	setEnv(t, "PGFINE_ROLE_PREFIX", "")
	setEnv(t, "PGFINE_ROOT_CERT", "")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "", cfg.RolePrefix)
	assert.Equal(t, "", cfg.RootCert)
}

func TestLoadFailsWhenRequiredVariableMissing(t *testing.T) {
	setEnv(t, "PGFINE_DIR", "")
	setEnv(t, "PGFINE_CONNECTION_STRING", "")
	setEnv(t, "PGFINE_ADMIN_CONNECTION_STRING", "")
	setEnv(t, "PGFINE_ROLE_PREFIX", "")
	setEnv(t, "PGFINE_ROOT_CERT", "")

	_, err := config.Load()
	require.Error(t, err)
}
