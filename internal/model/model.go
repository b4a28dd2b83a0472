// Package model defines core data structures for sprocmap.
package model

// Node type markers written into the structured report.
const (
	TypeTree      = "dependency_tree"
	TypeFile      = "file"
	TypeFunction  = "function"
	TypeProcedure = "stored_procedure"
)

// FunctionSpan is the verbatim text of one function definition in a file.
type FunctionSpan struct {
	Name string
	Body string
}

// Procedure is one stored procedure definition supplied by a catalog.
type Procedure struct {
	Name       string
	Definition string
}

// Tree is the assembled file → function → procedure → table hierarchy.
// Trees are built fresh for each report and must not be modified after
// assembly.
type Tree struct {
	Files []FileNode

	// ProcedureTables holds every known procedure → tables mapping,
	// including procedures never reached from a call site.
	ProcedureTables map[string][]string
}

// FileNode is one analyzed source file.
type FileNode struct {
	Path      string
	Functions []FunctionNode
}

// FunctionNode is one function and the procedures it invokes.
type FunctionNode struct {
	Name       string
	Procedures []ProcedureNode
}

// ProcedureNode is one invoked procedure and the tables it touches.
type ProcedureNode struct {
	Name   string
	Tables []string
}

// Counts returns the number of files, functions and distinct procedures
// referenced from call sites.
func (t *Tree) Counts() (files, functions, procedures int) {
	seen := make(map[string]struct{})
	for i := range t.Files {
		functions += len(t.Files[i].Functions)
		for j := range t.Files[i].Functions {
			for _, p := range t.Files[i].Functions[j].Procedures {
				seen[p.Name] = struct{}{}
			}
		}
	}
	return len(t.Files), functions, len(seen)
}
