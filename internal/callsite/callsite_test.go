package callsite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcedures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want []string
	}{
		{
			"run stored procedure",
			`system.db.runStoredProcedure("stp_getWidgets")`,
			[]string{"stp_getWidgets"},
		},
		{
			"run stored procedure without prefix",
			`call = system.db.runStoredProcedure('getWidgets', db)`,
			[]string{"stp_getWidgets"},
		},
		{
			"run stored procedure schema qualified",
			`system.db.runStoredProcedure("oee.stp_getWidgets")`,
			[]string{"stp_getWidgets"},
		},
		{
			"prep stmt exec",
			`system.db.runPrepStmt("EXEC stp_saveLine ?, ?", [a, b])`,
			[]string{"stp_saveLine"},
		},
		{
			"run query exec dotted",
			`system.db.runQuery("EXEC stp.listLines")`,
			[]string{"stp_listLines"},
		},
		{
			"bare exec lowercase",
			`q = "exec stp_purge 1"`,
			[]string{"stp_purge"},
		},
		{
			"execute with schema",
			`q = "EXECUTE dbo.stp_archive @id"`,
			[]string{"stp_archive"},
		},
		{
			"create sproc call with schema",
			`call = system.db.createSProcCall("oee.stp_getGroupOEE_AQP")`,
			[]string{"stp_getGroupOEE_AQP"},
		},
		{
			"mes namespace sp",
			`rows = mes.oee.sp.getPeriodAllLinesOEE_AQP(start, end)`,
			[]string{"stp_getPeriodAllLinesOEE_AQP"},
		},
		{
			"mes namespace sproc",
			`mes.quality.sproc.listDefects()`,
			[]string{"stp_listDefects"},
		},
		{
			"direct stp namespace",
			`stp.refreshCache()`,
			[]string{"stp_refreshCache"},
		},
		{
			"call procedure method",
			`conn.callProcedure("closeShift")`,
			[]string{"stp_closeShift"},
		},
		{
			"stored procedure method",
			`db.storedProcedure('stp_openShift')`,
			[]string{"stp_openShift"},
		},
		{
			"run procedure",
			`system.db.runProcedure("reset")`,
			[]string{"stp_reset"},
		},
		{
			"multi-line statement",
			"result = system.db.runStoredProcedure(\n    \"stp_getLines\",\n    database)",
			[]string{"stp_getLines"},
		},
		{
			"several calls deduplicated and sorted",
			`system.db.runStoredProcedure("stp_b")
x = "stp_a"
system.db.runStoredProcedure("stp_b")`,
			[]string{"stp_a", "stp_b"},
		},
		{
			"upper-case prefix yields one name",
			`system.db.runStoredProcedure("STP_Foo")`,
			[]string{"stp_STP_Foo"},
		},
		{
			"upper-case prefix in exec",
			`system.db.runPrepStmt("EXEC STP_Foo ?", [a])`,
			[]string{"stp_STP_Foo"},
		},
		{
			"upper-case dotted prefix",
			`system.db.runStoredProcedure("STP.Foo")`,
			[]string{"stp_Foo"},
		},
		{
			"word containing sp is not a namespace",
			`grasp.run()`,
			[]string{},
		},
		{
			"no calls",
			`return x + 1`,
			[]string{},
		},
		{
			"malformed syntax",
			`system.db.runStoredProcedure(("`,
			[]string{},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Default.Procedures(tt.body)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProceduresScenario(t *testing.T) {
	t.Parallel()

	body := `def getData():
    """docstring"""
    system.db.runStoredProcedure("stp_getWidgets")
`
	assert.Equal(t, []string{"stp_getWidgets"}, Default.Procedures(body))
}

func TestCompile(t *testing.T) {
	t.Parallel()

	p, err := Compile("legacy", `legacyCall\(["'](\w+)`, 1)
	require.NoError(t, err)

	r := Default.With(p)
	assert.Len(t, r.Patterns(), len(DefaultPatterns)+1)
	assert.Equal(t, []string{"stp_oldThing"}, r.Procedures(`LEGACYCALL("oldThing")`))
	assert.Empty(t, Default.Procedures(`legacyCall("oldThing")`))
}

func TestCompileErrors(t *testing.T) {
	t.Parallel()

	_, err := Compile("bad", `(unclosed`, 1)
	assert.Error(t, err)

	_, err = Compile("no group", `plain`, 1)
	assert.ErrorContains(t, err, "out of range")

	_, err = Compile("zero group", `(x)`, 0)
	assert.Error(t, err)
}
