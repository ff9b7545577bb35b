// SPDX-License-Identifier: Apache-2.0

package connstr

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// AdminScriptParamPattern is the shape every {database_name},
// {role_name} and {password} substituent must match before it is
// allowed into a bootstrap/teardown script, so that an unexpected
// character (in particular a quote that could break out of a SQL
// string literal) is rejected rather than substituted.
var AdminScriptParamPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// ErrAdminScriptParamRejected is returned when a connection-string
// component destined for bootstrap/teardown substitution fails
// AdminScriptParamPattern.
type ErrAdminScriptParamRejected struct {
	Param string
	Value string
}

func (e *ErrAdminScriptParamRejected) Error() string {
	return fmt.Sprintf("admin script parameter %q contains a character outside [A-Za-z0-9_]", e.Param)
}

// AdminParams is the set of values {database_name}/{role_name}/
// {password} substitute into bootstrap and teardown scripts.
type AdminParams struct {
	DatabaseName string
	RoleName     string
	Password     string // empty if the connection string carries no password
}

// ParseAdminParams extracts dbname/user/password from a Postgres
// connection string and validates each against AdminScriptParamPattern,
// mirroring the predecessor tool's get_database_name/get_role_name/
// get_password + validate_admin_script_param.
func ParseAdminParams(connStr string) (AdminParams, error) {
	u, err := url.Parse(connStr)
	if err != nil {
		return AdminParams{}, fmt.Errorf("failed to parse connection string: %w", err)
	}

	dbName := strings.TrimPrefix(u.Path, "/")
	if dbName == "" {
		return AdminParams{}, fmt.Errorf("connection string has no dbname component")
	}
	if err := validateAdminScriptParam("database_name", dbName); err != nil {
		return AdminParams{}, err
	}

	roleName := u.User.Username()
	if roleName == "" {
		return AdminParams{}, fmt.Errorf("connection string has no user component")
	}
	if err := validateAdminScriptParam("role_name", roleName); err != nil {
		return AdminParams{}, err
	}

	password, hasPassword := u.User.Password()
	if hasPassword && password != "" {
		if err := validateAdminScriptParam("password", password); err != nil {
			return AdminParams{}, err
		}
	}

	return AdminParams{DatabaseName: dbName, RoleName: roleName, Password: password}, nil
}

func validateAdminScriptParam(name, value string) error {
	if !AdminScriptParamPattern.MatchString(value) {
		return &ErrAdminScriptParamRejected{Param: name, Value: value}
	}
	return nil
}

// SubstituteAdminParams replaces {database_name} and {role_name} in
// script unconditionally, and {password} only when params.Password is
// set; a template that still contains {password} after substitution
// with no password available is rejected, since the script expects a
// parameter the connection string never supplied.
func SubstituteAdminParams(script string, params AdminParams) (string, error) {
	result := strings.ReplaceAll(script, "{database_name}", params.DatabaseName)
	result = strings.ReplaceAll(result, "{role_name}", params.RoleName)
	if params.Password != "" {
		result = strings.ReplaceAll(result, "{password}", params.Password)
	} else if strings.Contains(result, "{password}") {
		return "", fmt.Errorf("admin script expects a {password} parameter the connection string did not provide")
	}
	return result, nil
}

// AppendSearchPathOption take a Postgres connection string in URL format and
// produces the same connection string with the search_path option set to the
// provided schema.
func AppendSearchPathOption(connStr, schema string) (string, error) {
	u, err := url.Parse(connStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse connection string: %w", err)
	}

	if schema == "" {
		return connStr, nil
	}

	q := u.Query()
	q.Set("options", fmt.Sprintf("-c search_path=%s", schema))
	encodedQuery := q.Encode()

	// Replace '+' with '%20' to ensure proper encoding of spaces within the
	// `options` query parameter.
	encodedQuery = strings.ReplaceAll(encodedQuery, "+", "%20")

	u.RawQuery = encodedQuery

	return u.String(), nil
}

// AppendTLSOption appends sslmode/sslrootcert query parameters to connStr
// when rootCertPath is non-empty, and leaves connStr untouched otherwise
// (PGFINE_ROOT_CERT="" disables TLS, per the engine's environment contract).
func AppendTLSOption(connStr, rootCertPath string) (string, error) {
	if rootCertPath == "" {
		return connStr, nil
	}

	u, err := url.Parse(connStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse connection string: %w", err)
	}

	q := u.Query()
	q.Set("sslmode", "verify-full")
	q.Set("sslrootcert", rootCertPath)
	u.RawQuery = q.Encode()

	return u.String(), nil
}
