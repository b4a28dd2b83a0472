package store

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/sprocmap/internal/model"
)

func spans(names ...string) []model.FunctionSpan {
	out := make([]model.FunctionSpan, len(names))
	for i, n := range names {
		out[i] = model.FunctionSpan{Name: n, Body: "def " + n + "():"}
	}
	return out
}

func TestRecordFileFunctionsOrder(t *testing.T) {
	t.Parallel()

	s := New()
	s.RecordFileFunctions("b.py", spans("z", "a"))
	s.RecordFileFunctions("a.py", spans("m"))

	assert.Equal(t, []string{"b.py", "a.py"}, s.Files())
	fns := s.Functions("b.py")
	require.Len(t, fns, 2)
	assert.Equal(t, "z", fns[0].Name)
	assert.Equal(t, "a", fns[1].Name)
}

func TestRecordFileFunctionsReplacesWholesale(t *testing.T) {
	t.Parallel()

	s := New()
	s.RecordFileFunctions("a.py", spans("old", "kept"))
	s.RecordCallSites("a.py", "old", []string{"stp_x"})
	s.RecordFileFunctions("b.py", spans("b"))

	s.RecordFileFunctions("a.py", spans("new"))

	assert.Equal(t, []string{"a.py", "b.py"}, s.Files(), "re-recorded file keeps its position")
	fns := s.Functions("a.py")
	require.Len(t, fns, 1)
	assert.Equal(t, "new", fns[0].Name)
	assert.Empty(t, s.CallSites("a.py", "old"))
}

func TestRecordFileFunctionsEmptyRemovesFile(t *testing.T) {
	t.Parallel()

	s := New()
	s.RecordFileFunctions("a.py", spans("f"))
	s.RecordFileFunctions("a.py", nil)
	s.RecordFileFunctions("never.py", nil)

	assert.Empty(t, s.Files())
	assert.Empty(t, s.Functions("a.py"))
}

func TestRecordFileFunctionsDuplicateNames(t *testing.T) {
	t.Parallel()

	s := New()
	s.RecordFileFunctions("a.py", []model.FunctionSpan{
		{Name: "f", Body: "first"},
		{Name: "g", Body: "g"},
		{Name: "f", Body: "second"},
	})
	fns := s.Functions("a.py")
	require.Len(t, fns, 2)
	assert.Equal(t, model.FunctionSpan{Name: "f", Body: "second"}, fns[0])
}

func TestRecordCallSites(t *testing.T) {
	t.Parallel()

	s := New()
	s.RecordFileFunctions("a.py", spans("f", "g"))
	s.RecordCallSites("a.py", "f", []string{"stp_b", "stp_a"})
	s.RecordCallSites("a.py", "f", []string{"stp_a"})
	s.RecordCallSites("a.py", "g", nil)

	assert.Equal(t, []string{"stp_a", "stp_b"}, s.CallSites("a.py", "f"))
	assert.Empty(t, s.CallSites("a.py", "g"))
	assert.Equal(t, []string{"stp_a", "stp_b"}, s.KnownProcedures())

	snap := s.Snapshot()
	_, ok := snap.CallSites["a.py"]["g"]
	assert.False(t, ok, "function without procedures must not appear in call sites")
}

func TestRecordCallSitesUnknownFunctionIgnored(t *testing.T) {
	t.Parallel()

	s := New()
	s.RecordCallSites("missing.py", "f", []string{"stp_a"})
	assert.Empty(t, s.KnownProcedures())
	assert.Empty(t, s.Snapshot().CallSites)
}

func TestRecordProcedureTablesLastWriterWins(t *testing.T) {
	t.Parallel()

	s := New()
	s.RecordProcedureTables("stp_a", []string{"Old"})
	s.RecordProcedureTables("stp_a", []string{"New", "#Tmp"})

	tables, ok := s.Tables("stp_a")
	require.True(t, ok)
	assert.Equal(t, []string{"New", "#Tmp"}, tables)

	_, ok = s.Tables("stp_missing")
	assert.False(t, ok)
}

func TestImportExisting(t *testing.T) {
	t.Parallel()

	s := New()
	s.ImportExisting(map[string][]string{
		"getWidgets":   {"Widgets"},
		"stp_getLines": {"Lines"},
		"oee.getShift": {"Shifts"},
	})

	tables, ok := s.Tables("stp_getWidgets")
	require.True(t, ok)
	assert.Equal(t, []string{"Widgets"}, tables)

	tables, _ = s.Tables("stp_getLines")
	assert.Equal(t, []string{"Lines"}, tables)

	tables, _ = s.Tables("stp_getShift")
	assert.Equal(t, []string{"Shifts"}, tables)

	assert.Equal(t, []string{"stp_getLines", "stp_getShift", "stp_getWidgets"}, s.KnownProcedures())
}

func TestSnapshotIsCopy(t *testing.T) {
	t.Parallel()

	s := New()
	s.RecordFileFunctions("a.py", spans("f"))
	s.RecordProcedureTables("stp_a", []string{"T"})

	snap := s.Snapshot()
	snap.ProcedureTables["stp_a"][0] = "mutated"
	snap.Files[0] = "mutated"

	tables, _ := s.Tables("stp_a")
	assert.Equal(t, []string{"T"}, tables)
	assert.Equal(t, []string{"a.py"}, s.Files())
}

func TestConcurrentDisjointWriters(t *testing.T) {
	t.Parallel()

	s := New()
	files := []string{"a.py", "b.py", "c.py", "d.py"}

	var wg sync.WaitGroup
	for _, f := range files {
		f := f
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.RecordFileFunctions(f, spans("f"))
			s.RecordCallSites(f, "f", []string{"stp_" + f[:1]})
			s.RecordProcedureTables("stp_"+f[:1], []string{"T"})
		}()
	}
	wg.Wait()

	assert.ElementsMatch(t, files, s.Files())
	assert.Equal(t, []string{"stp_a", "stp_b", "stp_c", "stp_d"}, s.KnownProcedures())
}
