// SPDX-License-Identifier: Apache-2.0

// Package fingerprint computes the stable content hash pgfine persists
// and compares, byte-for-byte, to detect whether a project object's
// script has changed since it was last reconciled.
package fingerprint

import (
	"crypto/md5" //nolint:gosec // fingerprint, not a security boundary; format is pinned by spec.
	"encoding/hex"
)

// Compute returns the hex-encoded MD5 digest of script, taken over its
// bytes after placeholder substitution has already been applied by the
// caller. Any stable 128-bit content hash would satisfy the engine's
// requirements; MD5 is fixed because the digest is persisted in
// pgfine_objects and compared across process runs.
func Compute(script string) string {
	sum := md5.Sum([]byte(script))
	return hex.EncodeToString(sum[:])
}
