// SPDX-License-Identifier: Apache-2.0

package objects

// Record is an immutable, once-built project object: a repeatable SQL
// definition discovered under one of the fixed project subdirectories.
type Record struct {
	ID          string
	Kind        Kind
	Path        string
	Script      string
	Fingerprint string

	DependsOn  map[string]struct{}
	RequiredBy map[string]struct{}
}

// NewRecord builds a Record with empty dependency sets; depends_on and
// required_by are populated later by pkg/depgraph.
func NewRecord(kind Kind, id, path, script, fingerprint string) *Record {
	return &Record{
		ID:          id,
		Kind:        kind,
		Path:        path,
		Script:      script,
		Fingerprint: fingerprint,
		DependsOn:   map[string]struct{}{},
		RequiredBy:  map[string]struct{}{},
	}
}

// DependsOnIDs returns DependsOn as a sorted slice, for deterministic
// persistence and comparison.
func (r *Record) DependsOnIDs() []string {
	return sortedKeys(r.DependsOn)
}

// RequiredByIDs returns RequiredBy as a sorted slice.
func (r *Record) RequiredByIDs() []string {
	return sortedKeys(r.RequiredBy)
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sortStrings(out)
	return out
}
