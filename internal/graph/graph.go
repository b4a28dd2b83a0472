// Package graph indexes a dependency tree for impact queries and ranks its
// nodes by how much depends on them.
package graph

import (
	"math"
	"sort"
	"strings"

	"github.com/phobologic/sprocmap/internal/model"
)

// FuncRef identifies one function in one file.
type FuncRef struct {
	File     string
	Function string
}

func (r FuncRef) String() string {
	return r.File + "::" + r.Function
}

// Impact is the result of an impact query. All slices are sorted.
type Impact struct {
	Procedures []string
	Functions  []FuncRef
	Tables     []string
}

// Index answers which functions, procedures and tables relate to each other.
type Index struct {
	funcs      []FuncRef
	funcProcs  map[FuncRef][]string
	callers    map[string][]FuncRef
	procTables map[string][]string
	tableProcs map[string]map[string]struct{} // lowercased table → procedures
	tableNames map[string]map[string]struct{} // lowercased table → spellings seen
}

// Build indexes t. The tree's top-level procedure mapping takes precedence
// over the per-node table lists.
func Build(t *model.Tree) *Index {
	ix := &Index{
		funcProcs:  make(map[FuncRef][]string),
		callers:    make(map[string][]FuncRef),
		procTables: make(map[string][]string),
		tableProcs: make(map[string]map[string]struct{}),
		tableNames: make(map[string]map[string]struct{}),
	}

	for _, f := range t.Files {
		for _, fn := range f.Functions {
			ref := FuncRef{File: f.Path, Function: fn.Name}
			ix.funcs = append(ix.funcs, ref)
			for _, p := range fn.Procedures {
				ix.funcProcs[ref] = append(ix.funcProcs[ref], p.Name)
				ix.callers[p.Name] = append(ix.callers[p.Name], ref)
				if _, ok := ix.procTables[p.Name]; !ok {
					ix.procTables[p.Name] = p.Tables
				}
			}
		}
	}
	for proc, tables := range t.ProcedureTables {
		ix.procTables[proc] = tables
	}

	for proc, tables := range ix.procTables {
		for _, table := range tables {
			key := strings.ToLower(table)
			addTo(ix.tableProcs, key, proc)
			addTo(ix.tableNames, key, table)
		}
	}
	return ix
}

// ByTable reports the procedures touching table, compared case-insensitively,
// and the functions that call them.
func (ix *Index) ByTable(table string) Impact {
	key := strings.ToLower(table)
	procs := sortedKeys(ix.tableProcs[key])
	return Impact{
		Procedures: procs,
		Functions:  ix.callersOf(procs),
		Tables:     sortedKeys(ix.tableNames[key]),
	}
}

// ByProcedure reports the functions calling proc and the tables it touches.
// The name is canonicalized first, so "getWidgets" finds "stp_getWidgets".
func (ix *Index) ByProcedure(proc string) Impact {
	proc = model.CanonicalProcedure(proc)
	_, called := ix.callers[proc]
	tables, known := ix.procTables[proc]
	if !called && !known {
		return Impact{}
	}
	return Impact{
		Procedures: []string{proc},
		Functions:  ix.callersOf([]string{proc}),
		Tables:     sortedUnique(tables),
	}
}

// ByFunction reports the procedures and tables reachable from a function.
// ref is either "path::name" or a bare function name, which matches that
// name in every file.
func (ix *Index) ByFunction(ref string) Impact {
	file, name, qualified := strings.Cut(ref, "::")
	if !qualified {
		name, file = file, ""
	}

	var (
		funcs  []FuncRef
		procs  = make(map[string]struct{})
		tables = make(map[string]struct{})
	)
	for _, fr := range ix.funcs {
		if fr.Function != name || (qualified && fr.File != file) {
			continue
		}
		funcs = append(funcs, fr)
		for _, p := range ix.funcProcs[fr] {
			procs[p] = struct{}{}
			for _, table := range ix.procTables[p] {
				tables[table] = struct{}{}
			}
		}
	}
	if len(funcs) == 0 {
		return Impact{}
	}
	sortRefs(funcs)
	return Impact{
		Procedures: sortedKeys(procs),
		Functions:  funcs,
		Tables:     sortedKeys(tables),
	}
}

func (ix *Index) callersOf(procs []string) []FuncRef {
	seen := make(map[FuncRef]struct{})
	var out []FuncRef
	for _, p := range procs {
		for _, ref := range ix.callers[p] {
			if _, ok := seen[ref]; ok {
				continue
			}
			seen[ref] = struct{}{}
			out = append(out, ref)
		}
	}
	sortRefs(out)
	return out
}

// Node kinds reported by Hotspots.
const (
	KindFunction  = "function"
	KindProcedure = "procedure"
	KindTable     = "table"
)

// Hotspot is one ranked node of the dependency graph.
type Hotspot struct {
	Kind string
	Name string
	Rank float64
}

// Hotspots ranks every function, procedure and table with PageRank over
// function → procedure → table edges and returns the top n, highest first.
// Tables and procedures that many callers reach rank highest. n <= 0
// returns all nodes.
func (ix *Index) Hotspots(n int) []Hotspot {
	nodes := make(map[string]struct{})
	outEdges := make(map[string][]string)
	outDegree := make(map[string]int)
	kinds := make(map[string]Hotspot)

	add := func(kind, name string) string {
		id := kind + ":" + name
		nodes[id] = struct{}{}
		kinds[id] = Hotspot{Kind: kind, Name: name}
		return id
	}
	link := func(src, dst string) {
		outEdges[src] = append(outEdges[src], dst)
		outDegree[src]++
	}

	for _, fr := range ix.funcs {
		src := add(KindFunction, fr.String())
		for _, p := range ix.funcProcs[fr] {
			link(src, add(KindProcedure, p))
		}
	}
	for proc, tables := range ix.procTables {
		src := add(KindProcedure, proc)
		for _, table := range tables {
			link(src, add(KindTable, table))
		}
	}

	ranks := pageRank(nodes, outEdges, outDegree, 0.85, 100, 1e-6)

	out := make([]Hotspot, 0, len(nodes))
	for id := range nodes {
		h := kinds[id]
		h.Rank = ranks[id]
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rank != out[j].Rank {
			return out[i].Rank > out[j].Rank
		}
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Name < out[j].Name
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func pageRank(
	nodes map[string]struct{},
	outEdges map[string][]string,
	outDegree map[string]int,
	alpha float64,
	maxIter int,
	tol float64,
) map[string]float64 {
	n := len(nodes)
	if n == 0 {
		return nil
	}

	rank := make(map[string]float64, n)
	for node := range nodes {
		rank[node] = 1.0 / float64(n)
	}
	teleport := (1.0 - alpha) / float64(n)

	for iter := 0; iter < maxIter; iter++ {
		next := make(map[string]float64, n)

		// Sinks spread their rank evenly.
		var sinkSum float64
		for node := range nodes {
			if outDegree[node] == 0 {
				sinkSum += rank[node]
			}
		}
		base := teleport + alpha*sinkSum/float64(n)
		for node := range nodes {
			next[node] = base
		}

		for src, targets := range outEdges {
			share := alpha * rank[src] / float64(outDegree[src])
			for _, dst := range targets {
				next[dst] += share
			}
		}

		var diff float64
		for node := range nodes {
			diff += math.Abs(next[node] - rank[node])
		}
		rank = next
		if diff < tol {
			break
		}
	}
	return rank
}

func addTo(m map[string]map[string]struct{}, key, value string) {
	set, ok := m[key]
	if !ok {
		set = make(map[string]struct{})
		m[key] = set
	}
	set[value] = struct{}{}
}

func sortedKeys(m map[string]struct{}) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedUnique(s []string) []string {
	set := make(map[string]struct{}, len(s))
	for _, v := range s {
		set[v] = struct{}{}
	}
	return sortedKeys(set)
}

func sortRefs(refs []FuncRef) {
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].File != refs[j].File {
			return refs[i].File < refs[j].File
		}
		return refs[i].Function < refs[j].Function
	})
}
