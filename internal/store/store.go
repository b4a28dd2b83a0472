// Package store accumulates the facts discovered during one analysis run.
package store

import (
	"sort"
	"sync"

	"github.com/phobologic/sprocmap/internal/model"
)

// Store holds functions, call sites, known procedures and procedure tables.
// A Store belongs to a single run; create one per analysis. Methods are safe
// for concurrent use.
type Store struct {
	mu sync.Mutex

	files     []string // insertion order
	functions map[string][]model.FunctionSpan
	callSites map[string]map[string]map[string]struct{}
	known     map[string]struct{}
	tables    map[string][]string
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		functions: make(map[string][]model.FunctionSpan),
		callSites: make(map[string]map[string]map[string]struct{}),
		known:     make(map[string]struct{}),
		tables:    make(map[string][]string),
	}
}

// RecordFileFunctions replaces everything recorded for file with spans.
// Call sites recorded for the file's previous functions are discarded.
// Recording no spans removes the file. A file recorded again keeps its
// original position in the file order.
func (s *Store) RecordFileFunctions(file string, spans []model.FunctionSpan) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.callSites, file)

	if len(spans) == 0 {
		if _, ok := s.functions[file]; ok {
			delete(s.functions, file)
			s.files = removeString(s.files, file)
		}
		return
	}

	if _, ok := s.functions[file]; !ok {
		s.files = append(s.files, file)
	}
	s.functions[file] = dedupeSpans(spans)
}

// RecordCallSites records the procedures function invokes. Empty sets are
// ignored, as are functions not recorded for file. Every name is added to
// the known procedures.
func (s *Store) RecordCallSites(file, function string, procedures []string) {
	if len(procedures) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !hasFunction(s.functions[file], function) {
		return
	}

	byFunc := s.callSites[file]
	if byFunc == nil {
		byFunc = make(map[string]map[string]struct{})
		s.callSites[file] = byFunc
	}
	set := byFunc[function]
	if set == nil {
		set = make(map[string]struct{}, len(procedures))
		byFunc[function] = set
	}
	for _, p := range procedures {
		set[p] = struct{}{}
		s.known[p] = struct{}{}
	}
}

// RecordProcedureTables sets the tables for procedure, replacing any earlier
// list. Callers control precedence between sources by call order.
func (s *Store) RecordProcedureTables(procedure string, tables []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[procedure] = append([]string(nil), tables...)
}

// AddKnownProcedure marks a procedure as known without any call site.
func (s *Store) AddKnownProcedure(procedure string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.known[procedure] = struct{}{}
}

// ImportExisting records every procedure → tables entry of a previously
// persisted report under its canonical name. Entries are applied in sorted
// key order, so when two spellings canonicalize to the same name the later
// key wins.
func (s *Store) ImportExisting(prior map[string][]string) {
	keys := make([]string, 0, len(prior))
	for k := range prior {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		name := model.CanonicalProcedure(k)
		s.RecordProcedureTables(name, prior[k])
		s.AddKnownProcedure(name)
	}
}

// Files returns the recorded files in insertion order.
func (s *Store) Files() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.files...)
}

// Functions returns the spans recorded for file in definition order.
func (s *Store) Functions(file string) []model.FunctionSpan {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.FunctionSpan(nil), s.functions[file]...)
}

// CallSites returns the sorted procedures recorded for a function.
func (s *Store) CallSites(file, function string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedKeys(s.callSites[file][function])
}

// Tables returns the tables recorded for procedure and whether an entry
// exists.
func (s *Store) Tables(procedure string) ([]string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[procedure]
	return append([]string(nil), t...), ok
}

// KnownProcedures returns every known procedure name, sorted.
func (s *Store) KnownProcedures() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedKeys(s.known)
}

// Snapshot is a consistent copy of the store contents.
type Snapshot struct {
	Files           []string
	Functions       map[string][]model.FunctionSpan
	CallSites       map[string]map[string][]string
	KnownProcedures []string
	ProcedureTables map[string][]string
}

// Snapshot copies the store contents under a single lock.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Files:           append([]string(nil), s.files...),
		Functions:       make(map[string][]model.FunctionSpan, len(s.functions)),
		CallSites:       make(map[string]map[string][]string, len(s.callSites)),
		KnownProcedures: sortedKeys(s.known),
		ProcedureTables: make(map[string][]string, len(s.tables)),
	}
	for f, spans := range s.functions {
		snap.Functions[f] = append([]model.FunctionSpan(nil), spans...)
	}
	for f, byFunc := range s.callSites {
		m := make(map[string][]string, len(byFunc))
		for fn, set := range byFunc {
			m[fn] = sortedKeys(set)
		}
		snap.CallSites[f] = m
	}
	for p, t := range s.tables {
		snap.ProcedureTables[p] = append([]string(nil), t...)
	}
	return snap
}

// dedupeSpans keeps the first position of each name with the last body.
func dedupeSpans(spans []model.FunctionSpan) []model.FunctionSpan {
	index := make(map[string]int, len(spans))
	out := make([]model.FunctionSpan, 0, len(spans))
	for _, sp := range spans {
		if i, ok := index[sp.Name]; ok {
			out[i] = sp
			continue
		}
		index[sp.Name] = len(out)
		out = append(out, sp)
	}
	return out
}

func hasFunction(spans []model.FunctionSpan, name string) bool {
	for _, sp := range spans {
		if sp.Name == name {
			return true
		}
	}
	return false
}

func removeString(slice []string, s string) []string {
	out := slice[:0]
	for _, v := range slice {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
