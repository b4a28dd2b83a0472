package graph

import "github.com/phobologic/sprocmap/internal/model"

// Prune returns the part of t reachable through the functions in imp.
// Within a kept function only the procedures in imp are kept, unless imp
// names no procedures. The procedure mapping is limited the same way.
func Prune(t *model.Tree, imp Impact) *model.Tree {
	keepFn := make(map[FuncRef]struct{}, len(imp.Functions))
	for _, ref := range imp.Functions {
		keepFn[ref] = struct{}{}
	}
	keepProc := make(map[string]struct{}, len(imp.Procedures))
	for _, p := range imp.Procedures {
		keepProc[p] = struct{}{}
	}

	out := &model.Tree{ProcedureTables: make(map[string][]string)}
	for _, f := range t.Files {
		var fns []model.FunctionNode
		for _, fn := range f.Functions {
			if _, ok := keepFn[FuncRef{File: f.Path, Function: fn.Name}]; !ok {
				continue
			}
			kept := model.FunctionNode{Name: fn.Name}
			for _, p := range fn.Procedures {
				if _, ok := keepProc[p.Name]; ok || len(keepProc) == 0 {
					kept.Procedures = append(kept.Procedures, p)
				}
			}
			fns = append(fns, kept)
		}
		if len(fns) > 0 {
			out.Files = append(out.Files, model.FileNode{Path: f.Path, Functions: fns})
		}
	}

	for proc, tables := range t.ProcedureTables {
		if _, ok := keepProc[proc]; ok {
			out.ProcedureTables[proc] = tables
		}
	}
	return out
}
