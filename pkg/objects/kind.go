// SPDX-License-Identifier: Apache-2.0

// Package objects defines the object-kind enumeration and identifier
// rules that a pgfine project's repeatable database objects are built
// from: one fixed subdirectory per kind, one file per object, filename
// stem as id.
package objects

import (
	"fmt"
	"strings"
)

// Kind is the closed enumeration of repeatable database object kinds a
// pgfine project can declare.
type Kind string

const (
	KindTable      Kind = "table"
	KindView       Kind = "view"
	KindFunction   Kind = "function"
	KindConstraint Kind = "constraint"
	KindTrigger    Kind = "trigger"
	KindSchema     Kind = "schema"
	KindPolicy     Kind = "policy"
	KindExtension  Kind = "extension"
	KindType       Kind = "type"
	KindRole       Kind = "role"
)

// Dirs maps each kind to its fixed project subdirectory name.
var Dirs = map[Kind]string{
	KindTable:      "tables",
	KindView:       "views",
	KindFunction:   "functions",
	KindConstraint: "constraints",
	KindTrigger:    "triggers",
	KindSchema:     "schemas",
	KindPolicy:     "policies",
	KindExtension:  "extensions",
	KindType:       "types",
	KindRole:       "roles",
}

// DirKinds is the inverse of Dirs, used when walking the project tree.
var DirKinds = func() map[string]Kind {
	m := make(map[string]Kind, len(Dirs))
	for k, d := range Dirs {
		m[d] = k
	}
	return m
}()

// AllKinds lists every kind, in a fixed order used wherever a stable
// iteration order over kinds matters (e.g. init scaffolding).
var AllKinds = []Kind{
	KindSchema,
	KindRole,
	KindExtension,
	KindType,
	KindTable,
	KindView,
	KindFunction,
	KindConstraint,
	KindTrigger,
	KindPolicy,
}

// idParts is the number of dot-separated parts a valid id has per kind.
func idParts(k Kind) int {
	switch k {
	case KindSchema, KindRole, KindExtension:
		return 1
	case KindTable, KindView, KindFunction, KindType:
		return 2
	case KindConstraint, KindTrigger, KindPolicy:
		return 3
	default:
		return 0
	}
}

// ErrInvalidObjectID is returned when an id's shape does not match what
// its kind requires.
type ErrInvalidObjectID struct {
	Kind Kind
	ID   string
}

func (e *ErrInvalidObjectID) Error() string {
	return fmt.Sprintf("invalid object id %q for kind %q: expected %d dot-separated part(s)", e.ID, e.Kind, idParts(e.Kind))
}

// Validate checks that id has the dotted shape required by kind, per
// the table in spec section 3: schema/role/extension are bare names;
// table/view/function/type are schema.name; constraint/trigger/policy
// are schema.table.name.
func Validate(k Kind, id string) error {
	want := idParts(k)
	if want == 0 {
		return fmt.Errorf("unknown object kind %q", k)
	}
	if id == "" {
		return &ErrInvalidObjectID{Kind: k, ID: id}
	}
	if id != strings.ToLower(id) {
		return &ErrInvalidObjectID{Kind: k, ID: id}
	}
	parts := strings.Split(id, ".")
	for _, p := range parts {
		if p == "" {
			return &ErrInvalidObjectID{Kind: k, ID: id}
		}
	}
	if len(parts) != want {
		return &ErrInvalidObjectID{Kind: k, ID: id}
	}
	return nil
}

// SchemaOf returns the schema part of an id for kinds whose id begins
// with a schema (table, view, function, type, constraint, trigger,
// policy). It returns false for kinds with no schema part.
func SchemaOf(k Kind, id string) (string, bool) {
	switch k {
	case KindTable, KindView, KindFunction, KindType, KindConstraint, KindTrigger, KindPolicy:
		parts := strings.SplitN(id, ".", 2)
		return parts[0], true
	default:
		return "", false
	}
}

// TableOf returns the schema-qualified table id a constraint, trigger
// or policy id belongs to: "schema.table.name" -> "schema.table".
func TableOf(k Kind, id string) (string, bool) {
	switch k {
	case KindConstraint, KindTrigger, KindPolicy:
		idx := strings.LastIndex(id, ".")
		if idx < 0 {
			return "", false
		}
		return id[:idx], true
	default:
		return "", false
	}
}

// HasTextualExtraction reports whether a script of this kind should be
// scanned for references to other objects (spec section 4.3: Constraint,
// Trigger, Policy and Extension contribute no outgoing textual edges).
func HasTextualExtraction(k Kind) bool {
	switch k {
	case KindConstraint, KindTrigger, KindPolicy, KindExtension:
		return false
	default:
		return true
	}
}
