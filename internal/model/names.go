package model

import "strings"

// ProcedurePrefix marks the naming convention for stored procedures.
const ProcedurePrefix = "stp_"

// CanonicalProcedure normalizes a call-site spelling of a procedure name.
// A schema-qualified name is reduced to its trailing component, and the
// stp_ prefix is added unless the name already starts with "stp_" or "stp.".
// The result is idempotent: CanonicalProcedure(CanonicalProcedure(x)) ==
// CanonicalProcedure(x).
func CanonicalProcedure(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	if HasProcedurePrefix(name) {
		return name
	}
	return ProcedurePrefix + name
}

// HasProcedurePrefix reports whether name follows the stp naming convention.
func HasProcedurePrefix(name string) bool {
	return strings.HasPrefix(name, "stp_") || strings.HasPrefix(name, "stp.")
}

// IsTemporaryTable reports whether a table name refers to a temp table.
func IsTemporaryTable(name string) bool {
	return strings.HasPrefix(name, "#")
}
