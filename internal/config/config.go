// SPDX-License-Identifier: Apache-2.0

// Package config reads the engine's environment-variable contract
// once into an explicit struct, matching the "no global state" design
// note: configuration is a value threaded through the engine
// constructor, never read again after startup.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config holds every environment variable the engine needs (spec.md
// section 6, "Environment variables").
type Config struct {
	Dir                   string
	ConnectionString      string
	AdminConnectionString string
	RolePrefix            string
	RootCert              string
}

// Load reads PGFINE_* environment variables via viper.AutomaticEnv,
// failing if any required variable is unset. PGFINE_DIR,
// PGFINE_CONNECTION_STRING and PGFINE_ADMIN_CONNECTION_STRING must also
// be non-empty. PGFINE_ROLE_PREFIX and PGFINE_ROOT_CERT must be set but
// may be empty (an empty role prefix, or an empty root cert to disable
// TLS).
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PGFINE")
	v.AutomaticEnv()

	for _, key := range []string{"dir", "connection_string", "admin_connection_string", "role_prefix", "root_cert"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("config: failed to bind PGFINE_%s: %w", key, err)
		}
	}

	cfg := &Config{
		Dir:                   v.GetString("dir"),
		ConnectionString:      v.GetString("connection_string"),
		AdminConnectionString: v.GetString("admin_connection_string"),
		RolePrefix:            v.GetString("role_prefix"),
		RootCert:              v.GetString("root_cert"),
	}

	var missing []string
	if cfg.Dir == "" {
		missing = append(missing, "PGFINE_DIR")
	}
	if cfg.ConnectionString == "" {
		missing = append(missing, "PGFINE_CONNECTION_STRING")
	}
	if cfg.AdminConnectionString == "" {
		missing = append(missing, "PGFINE_ADMIN_CONNECTION_STRING")
	}
	for _, name := range []string{"PGFINE_ROLE_PREFIX", "PGFINE_ROOT_CERT"} {
		if _, ok := os.LookupEnv(name); !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("config: missing required environment variable(s): %v", missing)
	}

	return cfg, nil
}
