// Package tree folds a store snapshot into the file → function → procedure
// → table hierarchy.
package tree

import (
	"sort"

	"github.com/phobologic/sprocmap/internal/model"
	"github.com/phobologic/sprocmap/internal/store"
)

// Assemble builds a Tree from snap. Files and functions follow the store's
// insertion order; procedures and tables are sorted, so identical store
// contents always produce the same tree. A procedure without a table entry
// gets an empty table list.
func Assemble(snap store.Snapshot) *model.Tree {
	t := &model.Tree{
		Files:           make([]model.FileNode, 0, len(snap.Files)),
		ProcedureTables: make(map[string][]string, len(snap.ProcedureTables)),
	}

	for proc, tables := range snap.ProcedureTables {
		t.ProcedureTables[proc] = sortedCopy(tables)
	}

	for _, path := range snap.Files {
		fileNode := model.FileNode{Path: path}
		for _, span := range snap.Functions[path] {
			fnNode := model.FunctionNode{Name: span.Name}
			procs := sortedCopy(snap.CallSites[path][span.Name])
			for _, proc := range procs {
				fnNode.Procedures = append(fnNode.Procedures, model.ProcedureNode{
					Name:   proc,
					Tables: append([]string{}, t.ProcedureTables[proc]...),
				})
			}
			fileNode.Functions = append(fileNode.Functions, fnNode)
		}
		t.Files = append(t.Files, fileNode)
	}

	return t
}

func sortedCopy(s []string) []string {
	out := append([]string{}, s...)
	sort.Strings(out)
	return out
}
