// SPDX-License-Identifier: Apache-2.0

// Package depgraph builds the project dependency graph: textual
// reference extraction, depends_on/required_by inversion, and
// deterministic topological ordering.
package depgraph

import (
	"regexp"
	"strings"

	"github.com/pgfine/pgfine/pkg/objects"
)

// boundary reports whether the byte at position i in s is a
// non-alphanumeric-underscore boundary, or i is outside s — matching
// the spec's "string endpoints count as boundaries" rule.
func boundary(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return true
	}
	c := s[i]
	isWord := c == '_' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
	return !isWord
}

// ContainsWholeWordCI reports whether needle occurs in haystack as a
// whole word, case-insensitively: a non-alphanumeric-underscore
// boundary (or string endpoint) must precede and follow every match.
func ContainsWholeWordCI(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	lowerHay := strings.ToLower(haystack)
	lowerNeedle := strings.ToLower(needle)

	start := 0
	for {
		idx := strings.Index(lowerHay[start:], lowerNeedle)
		if idx < 0 {
			return false
		}
		pos := start + idx
		end := pos + len(lowerNeedle)
		if boundary(lowerHay, pos-1) && boundary(lowerHay, end) {
			return true
		}
		start = pos + 1
		if start >= len(lowerHay) {
			return false
		}
	}
}

// identPattern matches a bare dotted identifier. No code path uses it:
// the matching itself is done by ContainsWholeWordCI; it only documents
// the shape of what counts as a needle.
var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*(\.[a-z_][a-z0-9_]*)*$`)

// SearchPath is the set of schemas whose objects are referenced by
// unqualified name in scripts, per spec section 4.3.
type SearchPath map[string]struct{}

// DefaultSearchPath is {public}, the contract's default.
func DefaultSearchPath() SearchPath {
	return SearchPath{"public": {}}
}

// needle returns the string a reference to object id/kind should be
// searched for in another object's script, applying search-path
// elision: schema-qualified kinds whose schema is in searchPath are
// matched by their unqualified name.
func needle(k objects.Kind, id string, searchPath SearchPath) string {
	schema, hasSchema := objects.SchemaOf(k, id)
	if !hasSchema {
		return id
	}
	if _, inSearchPath := searchPath[schema]; inSearchPath {
		return id[len(schema)+1:]
	}
	return id
}

// ExtractRequiredBy computes, for target, the set of other project
// object ids whose script textually references it (spec section 4.3):
// the textual required_by(target) contributions from scanning every
// other object's script for target's needle. Structural schema/table
// edges are not included; StructuralDependsOn computes those.
func ExtractRequiredBy(target *objects.Record, all map[string]*objects.Record, searchPath SearchPath) map[string]struct{} {
	result := map[string]struct{}{}
	targetNeedle := needle(target.Kind, target.ID, searchPath)

	for otherID, other := range all {
		if otherID == target.ID {
			continue
		}
		if !objects.HasTextualExtraction(other.Kind) {
			continue
		}
		if ContainsWholeWordCI(other.Script, targetNeedle) {
			result[otherID] = struct{}{}
		}
	}
	return result
}

// StructuralDependsOn returns the depends_on edges implied structurally
// by an object's own id shape, independent of script text: schema
// membership for schema-qualified kinds, and table ownership for
// constraint/trigger/policy kinds.
func StructuralDependsOn(rec *objects.Record, all map[string]*objects.Record) map[string]struct{} {
	deps := map[string]struct{}{}

	if schema, ok := objects.SchemaOf(rec.Kind, rec.ID); ok {
		if _, exists := all[schema]; exists {
			deps[schema] = struct{}{}
		}
	}

	if table, ok := objects.TableOf(rec.Kind, rec.ID); ok {
		deps[table] = struct{}{}
	}

	return deps
}
